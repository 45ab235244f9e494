// Package telegram adapts the Telegram Bot API to the transport.Sender
// contract using telebot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"tokobot/internal/transport"
	logx "tokobot/pkg/logx"
)

// MessageLimit is Telegram's maximum text message length. Longer rendered
// output is truncated (not rejected) before the send; see Truncate.
const MessageLimit = 4096

type Sender struct {
	http *http.Client
	log  logx.Logger
}

func New(log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	// The client timeout is a hard upper bound on one API call; the
	// dispatcher additionally bounds the whole attempt with its own ctx.
	return &Sender{http: &http.Client{Timeout: 15 * time.Second}, log: log}
}

func (s *Sender) SendMessage(ctx context.Context, token string, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return errors.New("telegram chat id is empty")
	}

	// Offline: no getMe round trip per send; the token is validated by the
	// sendMessage call itself.
	b, err := tele.NewBot(tele.Settings{Token: token, Offline: true, Client: s.http})
	if err != nil {
		return err
	}

	_, err = b.Send(&tele.Chat{ID: chatID}, Truncate(text, MessageLimit), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}
	s.log.Debug("message sent", logx.Int64("chat_id", chatID), logx.Int("len", len(text)))
	return nil
}

// VerifyToken resolves the bot profile behind token via getMe.
func (s *Sender) VerifyToken(ctx context.Context, token string) (transport.Profile, error) {
	if err := ctx.Err(); err != nil {
		return transport.Profile{}, err
	}
	if strings.TrimSpace(token) == "" {
		return transport.Profile{}, errors.New("telegram token is empty")
	}

	// NewBot performs getMe when not offline.
	b, err := tele.NewBot(tele.Settings{Token: token, Client: s.http})
	if err != nil {
		if isUnauthorized(err) {
			return transport.Profile{}, fmt.Errorf("%w: %v", transport.ErrInvalidToken, err)
		}
		return transport.Profile{}, err
	}
	me := b.Me
	if me == nil {
		return transport.Profile{}, errors.New("telegram getMe returned no profile")
	}
	return transport.Profile{
		ID:        me.ID,
		Username:  me.Username,
		FirstName: me.FirstName,
		IsBot:     me.IsBot,
	}, nil
}

// isUnauthorized reports whether the API rejected the credentials themselves
// (HTTP 401) rather than failing transiently.
func isUnauthorized(err error) bool {
	var te *tele.Error
	return errors.As(err, &te) && te.Code == 401
}

// Truncate caps s at limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s
	}
	if limit <= 3 {
		return string(rs[:limit])
	}
	return string(rs[:limit-3]) + "..."
}
