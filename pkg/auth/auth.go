package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Mode selects how bearer tokens are verified.
type Mode string

const (
	// ModeClerk verifies Clerk session JWTs against the instance JWKS.
	ModeClerk Mode = "clerk"
	// ModeNoop accepts any non-empty token and uses it verbatim as the Clerk user id.
	ModeNoop Mode = "noop"
)

// ParseMode normalises an AUTH_MODE value.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeClerk, ModeNoop:
		return m, nil
	default:
		return "", fmt.Errorf("auth: unknown mode %q", raw)
	}
}

// Config holds what NewVerifier needs. JWKSURL, Audience and Issuer only apply to ModeClerk.
type Config struct {
	Mode     Mode
	JWKSURL  string
	Audience string
	Issuer   string
	Logger   *slog.Logger
}

// AuthenticatedUser is the caller behind a verified token; UserID is the Clerk user id.
type AuthenticatedUser struct {
	UserID    string
	SessionID string
	ExpiresAt int64
	Token     string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (AuthenticatedUser, error)
}

// NewVerifier builds the Verifier for cfg.Mode.
func NewVerifier(cfg Config) (Verifier, error) {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	if mode == ModeNoop {
		return newNoopVerifier(cfg), nil
	}
	return newClerkVerifier(cfg)
}
