package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileProviderReadsFreshEveryCall(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yaml")

	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatalf("write settings: %v", err)
		}
	}

	write("token: abc\ndefault_chat_id: 100\n")
	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}

	s, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Token != "abc" || s.DefaultChatID != 100 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}

	// An operator edit between calls must be visible on the next call.
	write("token: xyz\ndefault_chat_id: 200\n")
	s, err = p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get after edit: %v", err)
	}
	if s.Token != "xyz" || s.DefaultChatID != 200 {
		t.Fatalf("stale snapshot after edit: %+v", s)
	}
}

func TestFileProviderMissingFileIsUnconfigured(t *testing.T) {
	t.Parallel()
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}
	s, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Token != "" {
		t.Fatalf("expected empty token, got %q", s.Token)
	}
	if s.Template(KeyStartReply) == "" {
		t.Fatal("defaults not seeded for missing file")
	}
}

func TestDefaultTemplateSeeding(t *testing.T) {
	t.Parallel()
	s := Settings{Templates: map[string]string{
		KeyEchoReply: "custom: {{message}}",
		"order-note": "Pesanan {{id}} dicatat",
	}}
	s.normalize()

	if got := s.Template(KeyEchoReply); got != "custom: {{message}}" {
		t.Fatalf("operator template overridden: %q", got)
	}
	if s.Template(KeyStartReply) == "" {
		t.Fatal("missing known key not seeded")
	}
	if got := s.Template("order-note"); got != "Pesanan {{id}} dicatat" {
		t.Fatalf("custom key lost: %q", got)
	}
	if s.Template("never-set") != "" {
		t.Fatal("unknown key should stay empty")
	}
}

func TestNotificationsEnabledDefault(t *testing.T) {
	t.Parallel()
	var s Settings
	if !s.NotificationsEnabled() {
		t.Fatal("omitted enabled flag must mean enabled")
	}
	off := false
	s.Enabled = &off
	if s.NotificationsEnabled() {
		t.Fatal("explicit false must disable")
	}
}
