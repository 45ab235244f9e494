package notify

import (
	"context"
	"strings"

	"tokobot/internal/auditlog"
)

// resendMarker prefixes the audit text of the new attempt so the trail shows
// it was a re-delivery. The wire payload stays the stored text, verbatim.
const resendMarker = "[resend] "

// Resender re-attempts delivery of a previously logged, non-successful
// message using its original rendered text. It never re-renders, even if the
// template has since been edited.
type Resender struct {
	d *Dispatcher
}

func NewResender(d *Dispatcher) *Resender {
	return &Resender{d: d}
}

func (r *Resender) Resend(ctx context.Context, logID string) error {
	logID = strings.TrimSpace(logID)
	if logID == "" {
		return validationf("log id is required")
	}
	if r.d.store == nil {
		return &ServiceError{Service: "auditlog", Err: auditlog.ErrDisabled}
	}

	entry, ok, err := r.d.store.GetByID(ctx, logID)
	if err != nil {
		return &ServiceError{Service: "auditlog", Err: err}
	}
	if !ok {
		return &NotFoundError{Resource: "delivery log entry", ID: logID}
	}
	// Refusing here keeps a real recipient from seeing the message twice;
	// the rejection writes no new entry.
	if entry.Status == auditlog.StatusSuccess {
		return validationf("entry %s already delivered", logID)
	}

	// Settings may have changed since the original attempt; the CURRENT
	// default destination applies when the entry carried no override.
	st, err := r.d.settings.Get(ctx)
	if err != nil {
		return &ServiceError{Service: "settings", Err: err}
	}
	dest := entry.ChatID
	if dest == 0 {
		dest = st.DefaultChatID
	}

	// Same two-tier policy as Send: configuration absence and the kill
	// switch are logged and swallowed, never delivered around.
	if strings.TrimSpace(st.Token) == "" || dest == 0 {
		r.swallow(ctx, entry, dest, "bot token or destination not configured")
		return nil
	}
	if !st.NotificationsEnabled() {
		r.swallow(ctx, entry, dest, "notifications disabled")
		return nil
	}

	nc := Context{EventType: entry.EventType, ChatID: dest}
	return r.d.deliver(ctx, st.Token, entry.Message, resendMarker+entry.Message, nc)
}

func (r *Resender) swallow(ctx context.Context, entry auditlog.Entry, dest int64, reason string) {
	r.d.append(ctx, auditlog.Entry{
		Channel:   ChannelTelegram,
		Status:    auditlog.StatusFailure,
		Message:   resendMarker + entry.Message,
		EventType: entry.EventType,
		ChatID:    dest,
		Error:     reason,
	})
}
