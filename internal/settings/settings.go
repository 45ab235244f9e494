// Package settings supplies the operational bot configuration: credentials,
// default destination and the named message templates.
//
// Settings are owned by an external admin surface. This core only reads a
// snapshot per call and must never cache one across calls: an operator may
// change the token, destination or a template between a send and a later
// resend.
package settings

import (
	"context"
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Template keys known to this pipeline. Operators may add arbitrary keys for
// their own notification call sites; these are the ones the core itself uses.
const (
	KeyStartReply          = "start-reply"
	KeyEchoReply           = "echo-reply"
	KeyTestNotification    = "test-notification"
	KeyPaymentConfirmation = "payment-confirmation"
	KeyFailureDigest       = "failure-digest"
)

// defaultTemplates are seeded for known keys the operator has not set, so a
// fresh install replies out of the box.
var defaultTemplates = map[string]string{
	KeyStartReply:          "Halo {{name}}! 👋\nKetik pesan apa saja dan bot akan mengulanginya.",
	KeyEchoReply:           "{{message}}",
	KeyTestNotification:    "✅ Notifikasi uji coba — {{time}}",
	KeyPaymentConfirmation: "💰 Pembayaran diterima.\nPesanan: {{#each items}}{{this}}, {{/each}}total {{total}}.",
	KeyFailureDigest:       "⚠️ {{count}} notifikasi gagal sejak {{since}}:\n{{#each ids}}- {{this}}\n{{/each}}",
}

// Settings is one read-only snapshot of the bot configuration.
type Settings struct {
	Token         string            `yaml:"token" json:"token"`
	DefaultChatID int64             `yaml:"default_chat_id" json:"default_chat_id"`
	WebhookSecret string            `yaml:"webhook_secret" json:"webhook_secret"`
	WebhookURL    string            `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`
	Templates     map[string]string `yaml:"templates" json:"templates"`

	// Enabled is a pointer so an omitted field means "enabled" while an
	// explicit false is a kill switch for outbound notifications.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// NotificationsEnabled reports whether outbound notifications are switched on.
func (s Settings) NotificationsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Template returns the raw template text for key, "" when unset.
func (s Settings) Template(key string) string {
	return strings.TrimSpace(s.Templates[key])
}

// normalize trims credentials and seeds default templates for known keys.
func (s *Settings) normalize() {
	s.Token = strings.TrimSpace(s.Token)
	s.WebhookSecret = strings.TrimSpace(s.WebhookSecret)
	if s.Templates == nil {
		s.Templates = make(map[string]string, len(defaultTemplates))
	}
	for k, v := range defaultTemplates {
		if strings.TrimSpace(s.Templates[k]) == "" {
			s.Templates[k] = v
		}
	}
}

// Provider returns the current settings snapshot.
//
// Implementations must read fresh state on every call; callers rely on
// picking up operator edits made between two calls.
type Provider interface {
	Get(ctx context.Context) (Settings, error)
}

// FileProvider reads settings from a yaml file on every Get.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) (*FileProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings path is required")
	}
	return &FileProvider{path: path}, nil
}

func (p *FileProvider) Get(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	b, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file is a valid "unconfigured" state, not an error:
			// the dispatcher turns it into an auditable swallowed failure.
			var s Settings
			s.normalize()
			return s, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", p.path, err)
	}
	s.normalize()
	return s, nil
}

// Static is an in-memory Provider for wiring tests and embedded callers.
type Static struct{ S Settings }

func (p Static) Get(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	s := p.S
	s.normalize()
	return s, nil
}
