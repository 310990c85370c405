package pending

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// TimeoutNotifier is told about jobs reclaimed by the TTL sweep so the
// conversation can receive a timeout notice.
type TimeoutNotifier interface {
	NotifyTimeout(ctx context.Context, job Job)
}

// Sweeper purges expired pending jobs on a cron schedule.
type Sweeper struct {
	store    Store
	notifier TimeoutNotifier
	cron     *cron.Cron
	spec     string
	logger   *slog.Logger
}

// NewSweeper creates a sweeper for store. notifier may be nil, in which case
// expired jobs are only logged.
func NewSweeper(log *slog.Logger, store Store, notifier TimeoutNotifier, spec string) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if spec == "" {
		spec = "@every 1m"
	}
	return &Sweeper{
		store:    store,
		notifier: notifier,
		cron:     cron.New(),
		spec:     spec,
		logger:   log.With(slog.String("component", "pending_sweeper")),
	}
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep purges everything expired as of now and notifies per job.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.store.ExpireBefore(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("ttl sweep failed", slog.Any("error", err))
		return
	}
	for _, job := range expired {
		s.logger.Warn("pending job expired",
			slog.String("job_id", job.JobID),
			slog.String("conversation_id", job.ConversationID),
			slog.String("intent", string(job.Intent)))
		if s.notifier != nil {
			s.notifier.NotifyTimeout(ctx, job)
		}
	}
}
