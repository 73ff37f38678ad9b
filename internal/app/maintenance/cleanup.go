package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/leadvault/leadvault/internal/auth"
	"github.com/leadvault/leadvault/pkg/logger"
)

const (
	defaultSessionSpec = "@hourly"
	defaultTokenSpec   = "@daily"
)

// Cleaner runs the background sweeps: purging expired sessions and removing
// stale verification tokens. Expiry is otherwise enforced only at read time,
// so the sweeps keep the tables from accumulating dead rows.
type Cleaner struct {
	sessions      *iauth.SessionService
	verifications *iauth.VerificationService
	cron          *cron.Cron
	log           *zap.Logger

	sessionSchedule string
	tokenSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSessionSchedule overrides the cron schedule for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron schedule for verification token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding job being skipped.
func NewCleaner(sessions *iauth.SessionService, verifications *iauth.VerificationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		verifications:   verifications,
		sessionSchedule: defaultSessionSpec,
		tokenSchedule:   defaultTokenSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the sweeps with the scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sessions == nil && c.verifications == nil {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if removed, err := c.sessions.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			} else if removed > 0 {
				c.log.Info("expired sessions removed", zap.Int64("count", removed))
			}
		}); err != nil {
			return err
		}
	}

	if c.verifications != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			if removed, err := c.verifications.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("verification token cleanup failed", zap.Error(err))
			} else if removed > 0 {
				c.log.Info("expired verification tokens removed", zap.Int64("count", removed))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured sweeps sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.verifications != nil {
		if _, err := c.verifications.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
