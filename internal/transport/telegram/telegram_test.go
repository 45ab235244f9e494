package telegram

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"
)

func TestIsUnauthorized(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "bad token", err: tele.ErrUnauthorized, want: true},
		{name: "wrapped", err: fmt.Errorf("getMe: %w", tele.ErrUnauthorized), want: true},
		{name: "other api error", err: tele.ErrInternal, want: false},
		{name: "plain error", err: errors.New("connection refused"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isUnauthorized(tt.err); got != tt.want {
				t.Fatalf("isUnauthorized(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", MessageLimit+100)

	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short unchanged", in: "halo", limit: 10, want: "halo"},
		{name: "exact unchanged", in: "abcd", limit: 4, want: "abcd"},
		{name: "cut with ellipsis", in: "abcdef", limit: 5, want: "ab..."},
		{name: "tiny limit", in: "abcdef", limit: 2, want: "ab"},
		{name: "zero limit disables", in: "abcdef", limit: 0, want: "abcdef"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.limit); got != tt.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}

	if got := Truncate(long, MessageLimit); utf8.RuneCountInString(got) != MessageLimit {
		t.Fatalf("truncated length = %d, want %d", utf8.RuneCountInString(got), MessageLimit)
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("é", 10)
	got := Truncate(in, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if want := "éé..."; got != want {
		t.Fatalf("Truncate = %q, want %q", got, want)
	}
}
