package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "NOTEPILOT"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = DatabaseDriverSQLite
	defaultDatabasePath       = "notepilot.db"
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultCookieName         = "__session"
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultOpenAIModel        = "gpt-4o-mini"
	defaultTranscriptionModel = "whisper-1"
	defaultRedisChannel       = "notepilot-events"
)

const (
	// DatabaseDriverSQLite selects the embedded SQLite driver.
	DatabaseDriverSQLite = "sqlite"
	// DatabaseDriverPostgres selects the hosted Postgres driver.
	DatabaseDriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabaseDriver     string
	DatabasePath       string
	DatabaseDSN        string
	AutoMigrate        bool
	LogLevel           string
	LogFormat          string
	AuthJWKSURL        string
	AuthIssuer         string
	AuthAudience       string
	AuthSigningSecret  string
	AuthCookieName     string
	OpenAIBaseURL      string
	OpenAIModel        string
	TranscriptionModel string
	OpenAIMaxRetries   uint
	RedisAddress       string
	RedisChannel       string
	AllowedOrigins     []string
}

// UsesProviderJWKS reports whether session tokens are verified against the identity provider JWKS.
func (c AppConfig) UsesProviderJWKS() bool {
	return strings.TrimSpace(c.AuthJWKSURL) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.auto_migrate", true)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("openai.base_url", defaultOpenAIBaseURL)
	configViper.SetDefault("openai.model", defaultOpenAIModel)
	configViper.SetDefault("openai.transcription_model", defaultTranscriptionModel)
	configViper.SetDefault("openai.max_retries", 0)
	configViper.SetDefault("realtime.redis_channel", defaultRedisChannel)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	maxRetries := configViper.GetInt("openai.max_retries")
	if maxRetries < 0 {
		return AppConfig{}, fmt.Errorf("openai.max_retries must not be negative")
	}

	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:       configViper.GetString("database.path"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		AutoMigrate:        configViper.GetBool("database.auto_migrate"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          configViper.GetString("log.format"),
		AuthJWKSURL:        configViper.GetString("auth.jwks_url"),
		AuthIssuer:         configViper.GetString("auth.issuer"),
		AuthAudience:       configViper.GetString("auth.audience"),
		AuthSigningSecret:  configViper.GetString("auth.signing_secret"),
		AuthCookieName:     configViper.GetString("auth.cookie_name"),
		OpenAIBaseURL:      configViper.GetString("openai.base_url"),
		OpenAIModel:        configViper.GetString("openai.model"),
		TranscriptionModel: configViper.GetString("openai.transcription_model"),
		OpenAIMaxRetries:   uint(maxRetries),
		RedisAddress:       configViper.GetString("realtime.redis_addr"),
		RedisChannel:       configViper.GetString("realtime.redis_channel"),
		AllowedOrigins:     splitOrigins(configViper.GetStringSlice("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DatabaseDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.UsesProviderJWKS() {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("auth.issuer is required when auth.jwks_url is set")
		}
	} else if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.jwks_url or auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if strings.TrimSpace(c.OpenAIModel) == "" {
		return fmt.Errorf("openai.model is required")
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
