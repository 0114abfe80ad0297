package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionIssuer is the iss claim of locally minted development sessions.
const DefaultSessionIssuer = "notepilot-dev"

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
)

// SessionValidatorConfig describes how to validate locally signed HS256 session tokens.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// SessionValidator validates HS256 session tokens for development deployments without an identity provider.
type SessionValidator struct {
	signingSecret []byte
	issuer        string
	clock         func() time.Time
}

// NewSessionValidator constructs a validator with the provided configuration.
func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		clock:         clock,
	}, nil
}

// Authenticate validates the supplied JWT string and returns its principal.
func (v *SessionValidator) Authenticate(_ context.Context, tokenString string) (Principal, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Principal{}, ErrMissingToken
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, classifyParseError(err)
	}
	if parsed == nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	return principalFromClaims(claims)
}
