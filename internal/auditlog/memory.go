package auditlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs the "memory" driver and doubles as
// the fake for pipeline tests that need to inspect appended entries.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	byID    map[string]int

	// AppendErr, when set, makes Append fail. Test hook.
	AppendErr error
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

func (m *Memory) Append(ctx context.Context, e Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return "", m.AppendErr
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.byID[e.ID] = len(m.entries)
	m.entries = append(m.entries, e)
	return e.ID, nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return Entry{}, false, nil
	}
	return m.entries[i], true, nil
}

func (m *Memory) ListFailedSince(ctx context.Context, since time.Time) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Status == StatusFailure && !e.At.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

// Entries returns a copy of everything appended so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
