package auditlog

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("audit log disabled")

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Entry is one immutable record of a delivery attempt.
//
// Entries are append-only: a resend produces a brand-new entry, never an
// update to the old one. Keep the shape compact and schema-stable.
type Entry struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	EventType string    `json:"event_type,omitempty"`
	ChatID    int64     `json:"chat_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Config configures the delivery log store.
//
// Driver values:
//   - "file": dependency-free append-only jsonl backend
//   - "sqlite": SQLite database file
//   - "memory": in-process store (tests, ephemeral deployments)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
