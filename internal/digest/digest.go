// Package digest periodically summarizes failed deliveries into a single
// notification, so operators hear about dropped messages without tailing the
// delivery log.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tokobot/internal/auditlog"
	"tokobot/internal/notify"
	"tokobot/internal/settings"
	logx "tokobot/pkg/logx"
)

// Dispatcher is the slice of the notification pipeline the digest needs.
type Dispatcher interface {
	Send(ctx context.Context, templateKey string, data map[string]any, nc notify.Context) error
}

type Config struct {
	Enabled bool
	// Schedule is a standard 5-field cron spec or a descriptor like
	// "@daily". Empty means daily at 08:00 local time.
	Schedule string
	// Window is how far back each run looks for failures.
	Window time.Duration
	// MaxIDs caps the log IDs listed in the message body.
	MaxIDs int
}

func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = "0 8 * * *"
	}
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.MaxIDs <= 0 {
		c.MaxIDs = 10
	}
}

// Service owns the cron entry and the per-run query/dispatch cycle.
type Service struct {
	cfg   Config
	store auditlog.Store
	disp  Dispatcher
	log   logx.Logger

	c   *cron.Cron
	now func() time.Time
}

func New(cfg Config, store auditlog.Store, disp Dispatcher, log logx.Logger) *Service {
	cfg.defaults()
	return &Service{
		cfg:   cfg,
		store: store,
		disp:  disp,
		log:   log,
		now:   time.Now,
	}
}

// Start registers the cron entry and starts its scheduler. It is a no-op when
// the digest is disabled or there is no store to read from.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Debug("failure digest disabled")
		return nil
	}
	if s.store == nil {
		s.log.Warn("failure digest enabled but delivery log storage is off; skipping")
		return nil
	}
	s.c = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := s.c.AddFunc(s.cfg.Schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("digest schedule %q: %w", s.cfg.Schedule, err)
	}
	s.c.Start()
	s.log.Info("failure digest scheduled", logx.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (s *Service) Stop() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
}

func (s *Service) runOnce(ctx context.Context) {
	since := s.now().Add(-s.cfg.Window)
	failed, err := s.store.ListFailedSince(ctx, since)
	if err != nil {
		s.log.Error("digest query failed", logx.Err(err))
		return
	}
	if len(failed) == 0 {
		s.log.Debug("digest window clean, nothing to report")
		return
	}

	ids := make([]string, 0, min(len(failed), s.cfg.MaxIDs))
	for _, e := range failed {
		if len(ids) == s.cfg.MaxIDs {
			break
		}
		ids = append(ids, e.ID)
	}
	data := map[string]any{
		"count": len(failed),
		"since": since.Local().Format("2006-01-02 15:04"),
		"ids":   ids,
	}
	err = s.disp.Send(ctx, settings.KeyFailureDigest, data, notify.Context{EventType: "failure-digest"})
	if err != nil {
		s.log.Error("digest send failed", logx.Err(err))
		return
	}
	s.log.Info("failure digest sent", logx.Int("count", len(failed)))
}
