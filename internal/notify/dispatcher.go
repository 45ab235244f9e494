// Package notify implements the outbound delivery pipeline: the Dispatcher
// renders and sends one notification per call, the Resender re-attempts a
// previously logged failure, and every attempt, successful or not, leaves
// an immutable audit entry.
package notify

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tokobot/internal/auditlog"
	"tokobot/internal/render"
	"tokobot/internal/settings"
	"tokobot/internal/transport"
	logx "tokobot/pkg/logx"
)

// ChannelTelegram names the delivery channel in audit entries and errors.
const ChannelTelegram = "telegram"

// Context carries per-delivery metadata alongside a send or resend.
type Context struct {
	// EventType labels the attempt in the audit trail ("webhook-reply",
	// "payment-confirmation", ...).
	EventType string
	// ChatID, when non-zero, overrides the default destination from the
	// settings snapshot. Reply flows always set it to the sender's chat.
	ChatID int64
}

type Config struct {
	// SendTimeout bounds one transport attempt so a slow upstream call
	// cannot pin a handler goroutine under webhook bursts.
	SendTimeout time.Duration
	// RatePerSec throttles outbound calls across all senders (token
	// bucket, burst = rate).
	RatePerSec int
}

func (c *Config) defaults() {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 25
	}
}

// Dispatcher resolves the destination, renders the message, calls the chat
// API and records the outcome.
//
// Failure policy is two-tier by design:
//   - configuration absence (no token, no destination, notifications off)
//     is logged to the audit trail and swallowed (nil error) so unrelated
//     business flows never fail because messaging is unconfigured;
//   - a failure after a real delivery attempt is logged AND returned.
type Dispatcher struct {
	settings settings.Provider
	store    auditlog.Store // nil when storage is disabled
	sender   transport.Sender
	limiter  *rate.Limiter
	log      logx.Logger

	sendTimeout time.Duration
}

func NewDispatcher(cfg Config, sp settings.Provider, store auditlog.Store, sender transport.Sender, log logx.Logger) *Dispatcher {
	cfg.defaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		settings:    sp,
		store:       store,
		sender:      sender,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:         log,
		sendTimeout: cfg.SendTimeout,
	}
}

// Send renders the template behind templateKey with data and delivers it.
// The settings snapshot is read fresh; nothing is cached across calls.
func (d *Dispatcher) Send(ctx context.Context, templateKey string, data map[string]any, nc Context) error {
	st, err := d.settings.Get(ctx)
	if err != nil {
		return &ServiceError{Service: "settings", Err: err}
	}

	dest := nc.ChatID
	if dest == 0 {
		dest = st.DefaultChatID
	}

	if strings.TrimSpace(st.Token) == "" || dest == 0 {
		d.append(ctx, auditlog.Entry{
			Channel:   ChannelTelegram,
			Status:    auditlog.StatusFailure,
			EventType: nc.EventType,
			ChatID:    dest,
			Error:     "bot token or destination not configured",
		})
		return nil
	}
	if !st.NotificationsEnabled() {
		d.append(ctx, auditlog.Entry{
			Channel:   ChannelTelegram,
			Status:    auditlog.StatusFailure,
			EventType: nc.EventType,
			ChatID:    dest,
			Error:     "notifications disabled",
		})
		return nil
	}

	tmpl := st.Template(templateKey)
	if tmpl == "" {
		return validationf("template %q is empty", templateKey)
	}
	text := render.Render(tmpl, data)

	nc.ChatID = dest
	return d.deliver(ctx, st.Token, text, text, nc)
}

// deliver performs one rate-limited, timeout-bounded transport attempt and
// records the outcome. wireText goes over the wire; logText is what the audit
// entry stores (they differ only for resends, which mark the new entry).
func (d *Dispatcher) deliver(ctx context.Context, token, wireText, logText string, nc Context) error {
	entry := auditlog.Entry{
		Channel:   ChannelTelegram,
		Status:    auditlog.StatusFailure,
		Message:   logText,
		EventType: nc.EventType,
		ChatID:    nc.ChatID,
	}

	if err := d.limiter.Wait(ctx); err != nil {
		entry.Error = err.Error()
		d.append(ctx, entry)
		return &ServiceError{Service: ChannelTelegram, Err: err}
	}

	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err := d.sender.SendMessage(sctx, token, nc.ChatID, wireText)
	cancel()
	if err != nil {
		entry.Error = err.Error()
		d.append(ctx, entry)
		d.log.Warn("delivery failed",
			logx.String("event", nc.EventType), logx.Int64("chat_id", nc.ChatID), logx.Err(err))
		return &ServiceError{Service: ChannelTelegram, Err: err}
	}

	entry.Status = auditlog.StatusSuccess
	entry.Error = ""
	d.append(ctx, entry)
	d.log.Info("delivered",
		logx.String("event", nc.EventType), logx.Int64("chat_id", nc.ChatID))
	return nil
}

// append writes one audit entry detached from the caller's cancellation:
// a dropped webhook request must not lose the trail.
func (d *Dispatcher) append(ctx context.Context, e auditlog.Entry) {
	if d.store == nil {
		d.log.Warn("audit log disabled; dropping delivery record",
			logx.String("event", e.EventType), logx.String("status", string(e.Status)))
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := d.store.Append(wctx, e); err != nil {
		d.log.Error("audit append failed",
			logx.String("event", e.EventType), logx.String("status", string(e.Status)), logx.Err(err))
	}
}
