// Package webhook validates inbound chat updates and routes the reply.
package webhook

import (
	"context"
	"encoding/json"
	"strings"

	"tokobot/internal/notify"
	"tokobot/internal/settings"
	logx "tokobot/pkg/logx"
)

// Update is one webhook delivery in the Telegram wire shape. Only the fields
// this pipeline reads are declared; everything else is ignored.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	ID   int64 `json:"message_id"`
	From *User `json:"from"`
	Chat *Chat `json:"chat"`
	Date int64 `json:"date"`
	// Text is a pointer: absent means a non-text payload (sticker, photo,
	// join event), which is acknowledged without a reply.
	Text *string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Type      string `json:"type"`
}

// Dispatcher is the slice of the notify pipeline the router needs.
type Dispatcher interface {
	Send(ctx context.Context, templateKey string, data map[string]any, nc notify.Context) error
}

type Router struct {
	dispatcher Dispatcher
	log        logx.Logger
}

func NewRouter(d Dispatcher, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{dispatcher: d, log: log}
}

const cmdStart = "/start"

// HandleInbound validates one raw webhook payload and dispatches the reply.
//
// acknowledged=false means the payload was malformed and the transport should
// see a 4xx. A well-formed update is acknowledged even when no reply is sent
// (non-text payloads), which keeps the platform from retrying it.
//
// Replies ALWAYS target the originating chat, bypassing the configured
// default destination. That asymmetry (reply-to-sender vs default-to-admin)
// is a protocol invariant.
func (r *Router) HandleInbound(ctx context.Context, raw []byte) (bool, error) {
	var upd Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		return false, &notify.ValidationError{Reason: "malformed update payload: " + err.Error()}
	}
	m := upd.Message
	if m == nil || m.From == nil || m.Chat == nil || m.ID == 0 || m.Chat.ID == 0 || m.Date == 0 {
		return false, &notify.ValidationError{Reason: "update is missing required message fields"}
	}

	if m.Text == nil {
		// Dropped without a delivery attempt, so no audit entry either:
		// the trail records attempts, not every sticker in a group chat.
		r.log.Debug("ignoring non-text update",
			logx.Int64("update_id", upd.UpdateID), logx.Int64("chat_id", m.Chat.ID))
		return true, nil
	}

	nc := notify.Context{EventType: "webhook-reply", ChatID: m.Chat.ID}

	var (
		key  string
		data map[string]any
	)
	if strings.TrimSpace(*m.Text) == cmdStart {
		key = settings.KeyStartReply
		data = map[string]any{"name": m.From.FirstName}
	} else {
		key = settings.KeyEchoReply
		data = map[string]any{"message": *m.Text}
	}

	if err := r.dispatcher.Send(ctx, key, data, nc); err != nil {
		return false, err
	}
	return true, nil
}
