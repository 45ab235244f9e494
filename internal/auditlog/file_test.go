package auditlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "tokobot/pkg/logx"
)

func openTestFileStore(t *testing.T) Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "delivery.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFileStoreAppendGet(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t)
	ctx := context.Background()

	id, err := st.Append(ctx, Entry{
		Channel:   "telegram",
		Status:    StatusFailure,
		Message:   "Halo Budi!",
		EventType: "webhook-reply",
		ChatID:    555,
		Error:     "chat not found",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	e, ok, err := st.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !ok {
		t.Fatal("entry not found")
	}
	if e.Message != "Halo Budi!" || e.Status != StatusFailure || e.ChatID != 555 || e.Error != "chat not found" {
		t.Fatalf("round trip mismatch: %+v", e)
	}
	if e.At.IsZero() {
		t.Fatal("timestamp not set")
	}

	if _, ok, err := st.GetByID(ctx, "nope"); err != nil || ok {
		t.Fatalf("lookup of unknown id: ok=%v err=%v", ok, err)
	}
}

func TestFileStoreListFailedSince(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t)
	ctx := context.Background()
	now := time.Now()

	mustAppend := func(e Entry) {
		t.Helper()
		if _, err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	mustAppend(Entry{Channel: "telegram", Status: StatusFailure, Message: "old", At: now.Add(-48 * time.Hour)})
	mustAppend(Entry{Channel: "telegram", Status: StatusFailure, Message: "recent", At: now.Add(-time.Hour)})
	mustAppend(Entry{Channel: "telegram", Status: StatusSuccess, Message: "ok", At: now})

	got, err := st.ListFailedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListFailedSince: %v", err)
	}
	if len(got) != 1 || got[0].Message != "recent" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestFileStoreSkipsCorruptLine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "delivery.jsonl")

	// A torn line left behind by a crash must not make the log unreadable.
	if err := os.WriteFile(path, []byte("{\"id\":\"torn\n"), 0o600); err != nil {
		t.Fatalf("seed corrupt line: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	id, err := st.Append(ctx, Entry{Channel: "telegram", Status: StatusSuccess, Message: "ok"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, ok, err := st.GetByID(ctx, id); err != nil || !ok {
		t.Fatalf("entry unreadable after corrupt line: ok=%v err=%v", ok, err)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("empty driver: st=%v err=%v", st, err)
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
