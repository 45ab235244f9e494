package transport

import (
	"context"
	"errors"
)

// ErrInvalidToken marks a verification failure where the chat API rejected
// the credentials themselves, as opposed to a transport outage. Callers can
// map it to a caller-input error.
var ErrInvalidToken = errors.New("invalid bot token")

// Profile identifies the bot account a token belongs to.
type Profile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	IsBot     bool   `json:"is_bot"`
}

// Sender is the outbound chat API the dispatcher talks to.
//
// The token is a per-call argument, not adapter state: credentials come from
// the settings snapshot of each request and may change between calls.
// Implementations must be safe for concurrent use and must check ctx before
// starting a network call.
type Sender interface {
	SendMessage(ctx context.Context, token string, chatID int64, text string) error
	VerifyToken(ctx context.Context, token string) (Profile, error)
}
