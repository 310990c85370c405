package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultGraphBase     = "https://graph.facebook.com/v22.0"
	DefaultMediaRoot     = "data"
	DefaultJobTTL        = "15m"
	DefaultSweepSpec     = "@every 1m"
	DefaultDedupTTL      = "15m"
	DefaultCallTimeout   = "25s"
	DefaultJWTExpiresIn  = "24h"
	DefaultPGHost        = "127.0.0.1"
	DefaultPGPort        = 5432
	DefaultPGUser        = "postgres"
	DefaultPGDatabase    = "parlo"
	DefaultPGSSLMode     = "disable"
	DefaultSendRate      = 10.0
	DefaultSendBurst     = 5
	DefaultRetryMax      = 4
	DefaultRetryBackoff  = "500ms"
	DefaultIntentPolicy  = "intent_policy.yaml"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Media    MediaConfig    `toml:"media"`
	Agent    AgentConfig    `toml:"agent"`
	Speech   SpeechConfig   `toml:"speech"`
	Vision   VisionConfig   `toml:"vision"`
	Jobs     JobsConfig     `toml:"jobs"`
	Intent   IntentConfig   `toml:"intent"`
	Outbound OutboundConfig `toml:"outbound"`
	Postgres PostgresConfig `toml:"postgres"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	// JWTSecret signs tokens presented on the job-completion endpoint.
	JWTSecret    string `toml:"jwt_secret" validate:"required"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// WhatsAppConfig holds Graph API credentials and webhook verification secrets.
type WhatsAppConfig struct {
	GraphBase     string `toml:"graph_base"`
	PhoneNumberID string `toml:"phone_number_id" validate:"required"`
	Token         string `toml:"token" validate:"required"`
	// VerifyToken answers the GET subscription handshake.
	VerifyToken string `toml:"verify_token" validate:"required"`
	// AppSecret verifies the X-Hub-Signature-256 header on deliveries.
	AppSecret string `toml:"app_secret" validate:"required"`
}

type MediaConfig struct {
	Root string `toml:"root"`
	// BaseURL is prefixed to storage keys to form fetchable media links
	// for outbound audio/image replies.
	BaseURL string `toml:"base_url"`
}

// AgentConfig points at the reasoning collaborator.
type AgentConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	APIKey  string `toml:"api_key"`
	Timeout string `toml:"timeout"`
}

type SpeechConfig struct {
	TranscribeURL string   `toml:"transcribe_url" validate:"required,url"`
	TTSURL        string   `toml:"tts_url"`
	Languages     []string `toml:"languages"`
	Timeout       string   `toml:"timeout"`
}

type VisionConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	Timeout string `toml:"timeout"`
}

// JobsConfig bounds the pending-job table.
type JobsConfig struct {
	// Store selects the pending-job backend: "memory" or "postgres".
	Store string `toml:"store" validate:"oneof=memory postgres"`
	TTL   string `toml:"ttl"`
	// SweepSpec is a cron expression for the TTL sweep.
	SweepSpec string `toml:"sweep_spec"`
	DedupTTL  string `toml:"dedup_ttl"`
}

type IntentConfig struct {
	PolicyPath string `toml:"policy_path"`
}

type OutboundConfig struct {
	// SendRate is the sustained outbound messages-per-second budget.
	SendRate     float64 `toml:"send_rate"`
	SendBurst    int     `toml:"send_burst"`
	RetryMax     int     `toml:"retry_max"`
	RetryBackoff string  `toml:"retry_backoff"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN returns a pgx-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Duration parses s, falling back to def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		WhatsApp: WhatsAppConfig{
			GraphBase: DefaultGraphBase,
		},
		Media: MediaConfig{
			Root: DefaultMediaRoot,
		},
		Agent: AgentConfig{
			Timeout: DefaultCallTimeout,
		},
		Speech: SpeechConfig{
			Languages: []string{"es-US", "es-ES", "en-US", "pt-BR"},
			Timeout:   DefaultCallTimeout,
		},
		Vision: VisionConfig{
			Timeout: DefaultCallTimeout,
		},
		Jobs: JobsConfig{
			Store:     "memory",
			TTL:       DefaultJobTTL,
			SweepSpec: DefaultSweepSpec,
			DedupTTL:  DefaultDedupTTL,
		},
		Intent: IntentConfig{
			PolicyPath: DefaultIntentPolicy,
		},
		Outbound: OutboundConfig{
			SendRate:     DefaultSendRate,
			SendBurst:    DefaultSendBurst,
			RetryMax:     DefaultRetryMax,
			RetryBackoff: DefaultRetryBackoff,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}
}

// Load reads the TOML config at path, applies environment overrides for
// secrets, and validates required fields. A missing file is not an error;
// defaults plus environment are used.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	applyEnvOverrides(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file, so the file can be committed without credentials.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"PARLO_JWT_SECRET":      &cfg.Auth.JWTSecret,
		"PARLO_WA_TOKEN":        &cfg.WhatsApp.Token,
		"PARLO_WA_VERIFY_TOKEN": &cfg.WhatsApp.VerifyToken,
		"PARLO_WA_APP_SECRET":   &cfg.WhatsApp.AppSecret,
		"PARLO_WA_PHONE_ID":     &cfg.WhatsApp.PhoneNumberID,
		"PARLO_AGENT_API_KEY":   &cfg.Agent.APIKey,
		"PARLO_PG_PASSWORD":     &cfg.Postgres.Password,
	}
	for key, dest := range overrides {
		if value := os.Getenv(key); value != "" {
			*dest = value
		}
	}
}
