package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"tokobot/internal/notify"
	"tokobot/internal/settings"
	"tokobot/internal/transport"
	logx "tokobot/pkg/logx"
)

// webhookSecretHeader is Telegram's secret-token header, set when the webhook
// was registered with a secret.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxBodyBytes = 1 << 20

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Get(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	if sec := st.WebhookSecret; sec != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(sec)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "bad webhook secret")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if _, err := s.router.HandleInbound(r.Context(), body); err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		s.writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	profile, err := s.verifier.VerifyToken(r.Context(), req.Token)
	if err != nil {
		// A rejected token is caller input, not an outage.
		if errors.Is(err, transport.ErrInvalidToken) {
			s.writeMappedError(w, &notify.ValidationError{Reason: err.Error()})
			return
		}
		s.writeMappedError(w, &notify.ServiceError{Service: notify.ChannelTelegram, Err: err})
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"time": time.Now().Format(time.RFC3339)}
	err := s.dispatcher.Send(r.Context(), settings.KeyTestNotification, data, notify.Context{EventType: "test-notification"})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogID string `json:"logId"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.resender.Resend(r.Context(), req.LogID); err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) writeMappedError(w http.ResponseWriter, err error) {
	var (
		ve  *notify.ValidationError
		nfe *notify.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		s.writeError(w, http.StatusBadRequest, ve.Reason)
	case errors.As(err, &nfe):
		s.writeError(w, http.StatusNotFound, nfe.Error())
	default:
		s.log.Error("request failed", logx.Err(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", logx.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"error": msg})
}
