package auth

import (
	"context"
	"testing"
	"time"
)

func TestTokenIssuerMintsSessionsAcceptedByValidator(t *testing.T) {
	clockNow := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return clockNow }
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		TokenTTL:      30 * time.Minute,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	tokenString, expiresIn, err := issuer.IssueSessionToken("user-123", "user@example.com")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds %d", expiresIn)
	}

	validator, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("super-secret"), Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	principal, err := validator.Authenticate(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("expected minted token to validate: %v", err)
	}
	if principal.Subject != "user-123" || principal.Email != "user@example.com" || principal.Provider != defaultProvider {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestTokenIssuerRejectsMissingSecretAndSubject(t *testing.T) {
	if _, err := NewTokenIssuer(TokenIssuerConfig{}); err == nil {
		t.Fatalf("expected error when signing secret is missing")
	}
	issuer, err := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, _, err := issuer.IssueSessionToken("  ", ""); err == nil {
		t.Fatalf("expected error when subject is missing")
	}
}
