// Package auth verifies session tokens and turns them into principals.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultProvider = "default"

var (
	// ErrMissingToken indicates a request without a session token.
	ErrMissingToken = errors.New("auth: token required")
	// ErrInvalidToken indicates a token that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken indicates a correctly signed token past its expiry.
	ErrExpiredToken = errors.New("auth: token expired")
	// ErrMissingSubject indicates a verified token without a subject.
	ErrMissingSubject = errors.New("auth: subject required")
)

// Principal is the verified identity behind a request.
type Principal struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
	ExpiresAt   time.Time
}

// Authenticator verifies a raw session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// TokenClaims is the session JWT payload. UserID optionally carries a "provider:subject" pair.
type TokenClaims struct {
	UserID      string `json:"user_id,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	AvatarURL   string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

func principalFromClaims(claims *TokenClaims) (Principal, error) {
	provider := defaultProvider
	subject := strings.TrimSpace(claims.Subject)

	if raw := strings.TrimSpace(claims.UserID); raw != "" {
		if segments := strings.SplitN(raw, ":", 2); len(segments) == 2 {
			if strings.TrimSpace(segments[0]) != "" && strings.TrimSpace(segments[1]) != "" {
				provider = strings.TrimSpace(segments[0])
				subject = strings.TrimSpace(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}
	if subject == "" {
		return Principal{}, ErrMissingSubject
	}

	principal := Principal{
		Provider:    provider,
		Subject:     subject,
		Email:       strings.TrimSpace(claims.Email),
		DisplayName: strings.TrimSpace(claims.DisplayName),
		AvatarURL:   strings.TrimSpace(claims.AvatarURL),
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

// classifyParseError maps jwt parse failures onto the package sentinels.
func classifyParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	if errors.Is(err, ErrInvalidToken) {
		return err
	}
	return errors.Join(ErrInvalidToken, err)
}
