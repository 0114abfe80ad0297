package config

import (
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "dev-secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabaseDriver != DatabaseDriverSQLite {
		t.Fatalf("unexpected driver %q", cfg.DatabaseDriver)
	}
	if cfg.OpenAIModel != defaultOpenAIModel {
		t.Fatalf("unexpected model %q", cfg.OpenAIModel)
	}
	if cfg.OpenAIMaxRetries != 0 {
		t.Fatalf("expected single attempt by default, got %d retries", cfg.OpenAIMaxRetries)
	}
	if cfg.AuthCookieName != defaultCookieName {
		t.Fatalf("unexpected cookie name %q", cfg.AuthCookieName)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.UsesProviderJWKS() {
		t.Fatalf("expected dev session mode without jwks url")
	}
	if !cfg.AutoMigrate {
		t.Fatalf("expected schema auto-migration by default")
	}
}

func TestLoadAutoMigrateCanBeDisabled(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "dev-secret")
	configViper.Set("database.auto_migrate", "false")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.AutoMigrate {
		t.Fatalf("expected auto-migration to be disabled")
	}
}

func TestLoadValidationFailures(t *testing.T) {
	testCases := []struct {
		name      string
		overrides map[string]any
	}{
		{
			name:      "missing-auth",
			overrides: map[string]any{},
		},
		{
			name: "jwks-without-issuer",
			overrides: map[string]any{
				"auth.jwks_url": "https://identity.example.com/.well-known/jwks.json",
			},
		},
		{
			name: "postgres-without-dsn",
			overrides: map[string]any{
				"auth.signing_secret": "dev-secret",
				"database.driver":     "postgres",
			},
		},
		{
			name: "unknown-driver",
			overrides: map[string]any{
				"auth.signing_secret": "dev-secret",
				"database.driver":     "oracle",
			},
		},
		{
			name: "negative-retries",
			overrides: map[string]any{
				"auth.signing_secret": "dev-secret",
				"openai.max_retries":  -1,
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.overrides {
				configViper.Set(key, value)
			}
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadSplitsCommaSeparatedOrigins(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.jwks_url", "https://identity.example.com/.well-known/jwks.json")
	configViper.Set("auth.issuer", "https://identity.example.com")
	configViper.Set("cors.allowed_origins", "https://app.example.com, https://admin.example.com")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected second origin %q", cfg.AllowedOrigins[1])
	}
	if !cfg.UsesProviderJWKS() {
		t.Fatalf("expected provider jwks mode")
	}
}
