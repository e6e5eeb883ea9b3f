// Package auth supplies bearer tokens for API requests.
//
// Where the token comes from (login flow, keychain, browser storage) is not this
// package's concern: it only reads a token that something else has put in the
// environment or in a file.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// TokenSource yields the bearer token for the next request.
// An empty token with a nil error means "send the request unauthenticated".
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, typically from AUTH_TOKEN.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// FileToken reads the token from a file on every call so an external process
// can rotate it. A missing file yields no token.
type FileToken struct {
	Path string
}

func (f FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ExpiryChecked withholds tokens that are JWTs with an exp claim in the past.
// Opaque (non-JWT) tokens are passed through unchanged.
type ExpiryChecked struct {
	Source TokenSource
	Logger *slog.Logger

	// Now defaults to time.Now
	Now func() time.Time
}

func (e ExpiryChecked) Token(ctx context.Context) (string, error) {
	token, err := e.Source.Token(ctx)
	if err != nil || token == "" {
		return token, err
	}

	exp, ok := Expiry(token)
	if !ok {
		return token, nil
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	if !exp.After(now()) {
		if e.Logger != nil {
			e.Logger.Warn("auth token has expired, sending request without credentials",
				slog.Time("expired_at", exp),
			)
		}
		return "", nil
	}
	return token, nil
}

// Expiry returns the exp claim of a JWT without verifying its signature.
// ok is false when the token is not a JWT or carries no exp claim.
func Expiry(token string) (exp time.Time, ok bool) {
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return time.Time{}, false
	}
	return parsed.Expiration()
}

// FromConfig picks the token source: an explicit token wins over a token file.
// It returns nil when neither is configured.
func FromConfig(token, tokenFile string, logger *slog.Logger) TokenSource {
	var src TokenSource
	switch {
	case token != "":
		src = StaticToken(token)
	case tokenFile != "":
		src = FileToken{Path: tokenFile}
	default:
		return nil
	}
	return ExpiryChecked{Source: src, Logger: logger}
}
