package auditlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "tokobot/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one append-only JSON
// Lines file. Reads scan the file front to back, which is fine for an admin
// audit surface; deployments with heavy history should use the sqlite driver.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
	f    *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("auditlog.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if filepath.Ext(path) == "" {
		path += ".jsonl"
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, f: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) Append(ctx context.Context, e Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return "", errors.New("audit log file closed")
	}
	if err := json.NewEncoder(s.f).Encode(e); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (s *fileStore) GetByID(ctx context.Context, id string) (Entry, bool, error) {
	var found Entry
	ok := false
	err := s.scan(ctx, func(e Entry) bool {
		if e.ID == id {
			found = e
			ok = true
			return false
		}
		return true
	})
	return found, ok, err
}

func (s *fileStore) ListFailedSince(ctx context.Context, since time.Time) ([]Entry, error) {
	var out []Entry
	err := s.scan(ctx, func(e Entry) bool {
		if e.Status == StatusFailure && !e.At.Before(since) {
			out = append(out, e)
		}
		return true
	})
	return out, err
}

// scan streams the log file through fn; fn returning false stops the scan.
func (s *fileStore) scan(ctx context.Context, fn func(Entry) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	path := s.path
	closed := s.f == nil
	s.mu.Unlock()
	if closed {
		return errors.New("audit log file closed")
	}

	rf, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer rf.Close()

	sc := bufio.NewScanner(rf)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			// A torn trailing line after a crash is expected; skip it.
			s.log.Warn("skipping unreadable audit line", logx.Err(err))
			continue
		}
		if !fn(e) {
			return nil
		}
	}
	return sc.Err()
}
