package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"tokobot/internal/auditlog"
	"tokobot/internal/settings"
	"tokobot/internal/transport"
	logx "tokobot/pkg/logx"
)

type sentCall struct {
	Token  string
	ChatID int64
	Text   string
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	err   error
}

func (f *fakeSender) SendMessage(ctx context.Context, token string, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{Token: token, ChatID: chatID, Text: text})
	return f.err
}

func (f *fakeSender) VerifyToken(ctx context.Context, token string) (transport.Profile, error) {
	return transport.Profile{ID: 42, Username: "tokobot", IsBot: true}, nil
}

func (f *fakeSender) sent() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestDispatcher(t *testing.T, s settings.Settings) (*Dispatcher, *auditlog.Memory, *fakeSender) {
	t.Helper()
	store := auditlog.NewMemory()
	sender := &fakeSender{}
	d := NewDispatcher(Config{}, settings.Static{S: s}, store, sender, logx.Nop())
	return d, store, sender
}

func configured() settings.Settings {
	return settings.Settings{
		Token:         "tok-123",
		DefaultChatID: 900,
		Templates: map[string]string{
			"greet": "Halo {{name}}!",
		},
	}
}

func TestSendHappyPath(t *testing.T) {
	t.Parallel()
	d, store, sender := newTestDispatcher(t, configured())

	err := d.Send(context.Background(), "greet", map[string]any{"name": "Budi"}, Context{EventType: "test-notification"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	calls := sender.sent()
	if len(calls) != 1 {
		t.Fatalf("expected 1 send, got %d", len(calls))
	}
	if calls[0].ChatID != 900 || calls[0].Text != "Halo Budi!" || calls[0].Token != "tok-123" {
		t.Fatalf("unexpected call: %+v", calls[0])
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != auditlog.StatusSuccess || e.Message != "Halo Budi!" || e.ChatID != 900 || e.EventType != "test-notification" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestSendChatOverrideWins(t *testing.T) {
	t.Parallel()
	d, _, sender := newTestDispatcher(t, configured())

	if err := d.Send(context.Background(), "greet", map[string]any{"name": "Budi"}, Context{EventType: "webhook-reply", ChatID: 555}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	calls := sender.sent()
	if len(calls) != 1 || calls[0].ChatID != 555 {
		t.Fatalf("override not applied: %+v", calls)
	}
}

// Configuration absence is logged and swallowed: best-effort callers must not
// fail because messaging is unconfigured, but the trail must show the miss.
func TestSendUnconfiguredIsSwallowedButLogged(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		set  func(*settings.Settings)
		want string
	}{
		{name: "empty token", set: func(s *settings.Settings) { s.Token = "" }, want: "not configured"},
		{name: "no destination", set: func(s *settings.Settings) { s.DefaultChatID = 0 }, want: "not configured"},
		{name: "disabled", set: func(s *settings.Settings) { off := false; s.Enabled = &off }, want: "disabled"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := configured()
			tt.set(&s)
			d, store, sender := newTestDispatcher(t, s)

			if err := d.Send(context.Background(), "greet", map[string]any{"name": "Budi"}, Context{EventType: "test-notification"}); err != nil {
				t.Fatalf("expected swallowed nil error, got %v", err)
			}
			if n := len(sender.sent()); n != 0 {
				t.Fatalf("expected no transport call, got %d", n)
			}
			entries := store.Entries()
			if len(entries) != 1 {
				t.Fatalf("expected exactly 1 failure entry, got %d", len(entries))
			}
			if entries[0].Status != auditlog.StatusFailure || !strings.Contains(entries[0].Error, tt.want) {
				t.Fatalf("unexpected entry: %+v", entries[0])
			}
		})
	}
}

func TestSendEmptyTemplateIsValidationError(t *testing.T) {
	t.Parallel()
	d, store, sender := newTestDispatcher(t, configured())

	err := d.Send(context.Background(), "no-such-template", nil, Context{EventType: "test-notification"})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(sender.sent()) != 0 || len(store.Entries()) != 0 {
		t.Fatal("validation failure must precede all side effects")
	}
}

// A failure after a real attempt is logged AND surfaced, unlike the
// configuration-absence path.
func TestSendTransportFailureIsLoggedAndReturned(t *testing.T) {
	t.Parallel()
	d, store, sender := newTestDispatcher(t, configured())
	sender.err = errors.New("telegram: chat not found")

	err := d.Send(context.Background(), "greet", map[string]any{"name": "Budi"}, Context{EventType: "webhook-reply", ChatID: 555})
	if err == nil {
		t.Fatal("expected error")
	}
	var se *ServiceError
	if !errors.As(err, &se) || se.Service != ChannelTelegram {
		t.Fatalf("expected telegram ServiceError, got %v", err)
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 failure entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != auditlog.StatusFailure || !strings.Contains(e.Error, "chat not found") {
		t.Fatalf("upstream message not captured: %+v", e)
	}
	if e.Message != "Halo Budi!" {
		t.Fatalf("rendered text not stored on failure: %+v", e)
	}
}

// A cancelled request must not abandon the in-flight audit write.
func TestSendAuditWriteSurvivesCancelledContext(t *testing.T) {
	t.Parallel()
	d, store, _ := newTestDispatcher(t, configured())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Settings provider rejects the cancelled ctx first; use the append
	// path directly to pin the detachment behavior.
	d.append(ctx, auditlog.Entry{Channel: ChannelTelegram, Status: auditlog.StatusFailure, Error: "x"})
	if len(store.Entries()) != 1 {
		t.Fatal("audit write lost on cancelled context")
	}
}

func TestSendNilStoreDoesNotPanic(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	d := NewDispatcher(Config{}, settings.Static{S: configured()}, nil, sender, logx.Nop())
	if err := d.Send(context.Background(), "greet", map[string]any{"name": "Budi"}, Context{}); err != nil {
		t.Fatalf("Send with disabled storage: %v", err)
	}
	if len(sender.sent()) != 1 {
		t.Fatal("delivery should proceed without a store")
	}
}
