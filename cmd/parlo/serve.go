package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/parloteam/parlo/internal/agent"
	"github.com/parloteam/parlo/internal/completion"
	"github.com/parloteam/parlo/internal/config"
	"github.com/parloteam/parlo/internal/handlers"
	"github.com/parloteam/parlo/internal/ingress"
	"github.com/parloteam/parlo/internal/intent"
	"github.com/parloteam/parlo/internal/logger"
	"github.com/parloteam/parlo/internal/media"
	"github.com/parloteam/parlo/internal/media/providers/localfs"
	"github.com/parloteam/parlo/internal/orchestrator"
	"github.com/parloteam/parlo/internal/outbound"
	"github.com/parloteam/parlo/internal/pending"
	"github.com/parloteam/parlo/internal/server"
	"github.com/parloteam/parlo/internal/speech"
	"github.com/parloteam/parlo/internal/vision"
	"github.com/parloteam/parlo/internal/whatsapp"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideChannelClient,
			provideMediaService,
			providePendingStore,
			provideAgentClient,
			provideTranscriber,
			provideSynthesizer,
			provideVisionClient,
			provideClassifier,
			provideSender,
			provideOrchestrator,
			provideIngressHandler,
			provideCompletionHandler,
			handlers.NewPingHandler,
			handlers.NewMetricsHandler,
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	_ = godotenv.Load()
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideChannelClient(log *slog.Logger, cfg config.Config) *whatsapp.Client {
	return whatsapp.NewClient(log, cfg.WhatsApp.GraphBase, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.Token)
}

func provideMediaService(log *slog.Logger, cfg config.Config) (*media.Service, error) {
	provider, err := localfs.New(cfg.Media.Root, cfg.Media.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init media provider: %w", err)
	}
	return media.NewService(log, provider), nil
}

func providePendingStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (pending.Store, error) {
	if cfg.Jobs.Store != "postgres" {
		return pending.NewMemoryStore(), nil
	}
	pool, err := pgxpool.New(context.Background(), cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	store, err := pending.NewPostgresStore(context.Background(), pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	log.Info("pending jobs backed by postgres", slog.String("database", cfg.Postgres.Database))
	return store, nil
}

func provideAgentClient(log *slog.Logger, cfg config.Config) *agent.Client {
	return agent.NewClient(log, cfg.Agent.BaseURL, cfg.Agent.APIKey,
		config.Duration(cfg.Agent.Timeout, 0))
}

func provideTranscriber(log *slog.Logger, cfg config.Config) *speech.Transcriber {
	return speech.NewTranscriber(log, cfg.Speech.TranscribeURL, cfg.Speech.Languages,
		config.Duration(cfg.Speech.Timeout, 0))
}

func provideSynthesizer(log *slog.Logger, cfg config.Config) *speech.Synthesizer {
	return speech.NewSynthesizer(log, cfg.Speech.TTSURL,
		config.Duration(cfg.Speech.Timeout, 0))
}

func provideVisionClient(log *slog.Logger, cfg config.Config) *vision.Client {
	return vision.NewClient(log, cfg.Vision.BaseURL,
		config.Duration(cfg.Vision.Timeout, 0))
}

func provideClassifier(cfg config.Config) (intent.Classifier, error) {
	policy, err := intent.LoadPolicy(cfg.Intent.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load intent policy: %w", err)
	}
	return intent.NewRuleClassifier(policy), nil
}

func provideSender(log *slog.Logger, cfg config.Config, client *whatsapp.Client) *outbound.Sender {
	return outbound.NewSender(log, client, outbound.SenderOptions{
		MessagesPerSecond: cfg.Outbound.SendRate,
		Burst:             cfg.Outbound.SendBurst,
		MaxAttempts:       cfg.Outbound.RetryMax,
		BaseBackoff:       config.Duration(cfg.Outbound.RetryBackoff, 0),
	})
}

func provideOrchestrator(
	log *slog.Logger,
	cfg config.Config,
	agentClient *agent.Client,
	transcriber *speech.Transcriber,
	visionClient *vision.Client,
	synthesizer *speech.Synthesizer,
	sender *outbound.Sender,
	store pending.Store,
	classifier intent.Classifier,
	mediaService *media.Service,
) *orchestrator.Orchestrator {
	return orchestrator.New(log, agentClient, transcriber, visionClient, synthesizer, sender, store, classifier, mediaService, orchestrator.Options{
		DispatchTimeout: config.Duration(cfg.Agent.Timeout, 0),
		JobTTL:          config.Duration(cfg.Jobs.TTL, 0),
		DedupTTL:        config.Duration(cfg.Jobs.DedupTTL, 0),
	})
}

func provideIngressHandler(log *slog.Logger, cfg config.Config, orch *orchestrator.Orchestrator, client *whatsapp.Client, mediaService *media.Service) *ingress.Handler {
	return ingress.NewHandler(log, cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, orch, client, mediaService)
}

func provideCompletionHandler(log *slog.Logger, store pending.Store, orch *orchestrator.Orchestrator, sender *outbound.Sender) *completion.Handler {
	return completion.NewHandler(log, store, orch, sender)
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, metricsHandler *handlers.MetricsHandler, ingressHandler *ingress.Handler, completionHandler *completion.Handler) *server.Server {
	return server.NewServer(cfg.Server.Addr, cfg.Auth.JWTSecret, pingHandler, metricsHandler, ingressHandler, completionHandler)
}

func startSweeper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, store pending.Store, orch *orchestrator.Orchestrator) {
	sweeper := pending.NewSweeper(log, store, orch, cfg.Jobs.SweepSpec)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return sweeper.Start() },
		OnStop:  func(ctx context.Context) error { sweeper.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, cfg config.Config) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		log.Info("server starting", slog.String("addr", cfg.Server.Addr))
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("server stopped", slog.String("error", err.Error()))
			}
		}()
		return nil
	}})
}
