package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/config"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/database"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/generation"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/ingestion"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/server"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/users"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "notepilot-api",
		Short: "NotePilot backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "Postgres connection string")
	cmd.PersistentFlags().Bool("auto-migrate", defaults.GetBool("database.auto_migrate"), "Create missing tables and columns on start")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("jwks-url", "", "Identity provider JWKS URL")
	cmd.PersistentFlags().String("auth-issuer", "", "Identity provider issuer")
	cmd.PersistentFlags().String("signing-secret", "", "Development session signing secret (overrides env)")
	cmd.PersistentFlags().String("openai-model", defaults.GetString("openai.model"), "Chat completion model")
	cmd.PersistentFlags().String("redis-addr", "", "Redis address for cross-instance realtime fan-out")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "database.auto_migrate", "auto-migrate")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth.jwks_url", "jwks-url")
	bindFlag(cmd, "auth.issuer", "auth-issuer")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "openai.model", "openai-model")
	bindFlag(cmd, "realtime.redis_addr", "redis-addr")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// newTokenCommand mints a development session token for local testing without an identity provider.
func newTokenCommand() *cobra.Command {
	var (
		subject string
		email   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if appConfig.UsesProviderJWKS() {
				return fmt.Errorf("development tokens are not accepted when auth.jwks_url is set")
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				Issuer:        appConfig.AuthIssuer,
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresIn, err := issuer.IssueSessionToken(subject, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires in %ds\n", expiresIn)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "user-id", "", "Subject of the session")
	cmd.Flags().StringVar(&email, "email", "", "Optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver:      appConfig.DatabaseDriver,
		Path:        appConfig.DatabasePath,
		DSN:         appConfig.DatabaseDSN,
		AutoMigrate: appConfig.AutoMigrate,
		Models: []any{
			&notes.Note{},
			&generation.Quiz{},
			&generation.FlashcardSet{},
			&chat.Chat{},
			&chat.Message{},
			&users.Identity{},
		},
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:            appConfig.OpenAIBaseURL,
		Model:              appConfig.OpenAIModel,
		TranscriptionModel: appConfig.TranscriptionModel,
		MaxRetries:         appConfig.OpenAIMaxRetries,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	defer llmClient.Close() //nolint:errcheck
	if llm.EnvironmentAPIKey() == "" {
		logger.Warn("OpenAI API key is not set; model requests will fail until it is provided")
	}

	idProvider := notes.NewUUIDProvider()
	notesService, err := notes.NewService(notes.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
		Extractor: ingestion.NewExtractor(ingestion.ExtractorConfig{
			Fetcher:     ingestion.NewFetcher(ingestion.FetcherConfig{}),
			Transcriber: llmClient,
		}),
		Completer: llmClient,
		Dependents: []notes.DependentStore{
			notes.DependentFunc(generation.DeleteByNote),
			notes.DependentFunc(chat.DeleteByNote),
		},
	})
	if err != nil {
		return err
	}

	generationService, err := generation.NewService(generation.ServiceConfig{
		Database:   db,
		Notes:      notesService,
		Completer:  llmClient,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	chatService, err := chat.NewService(chat.ServiceConfig{
		Database:   db,
		Notes:      notesService,
		Completer:  llmClient,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	authenticator, err := newAuthenticator(appConfig, logger)
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := realtime.NewDispatcher()
	var publisher realtime.Publisher = dispatcher
	if strings.TrimSpace(appConfig.RedisAddress) != "" {
		bus, err := realtime.NewRedisBus(signalCtx, realtime.RedisConfig{
			Address: appConfig.RedisAddress,
			Channel: appConfig.RedisChannel,
		}, dispatcher, logger)
		if err != nil {
			return err
		}
		defer bus.Close() //nolint:errcheck
		if err := bus.Start(signalCtx); err != nil {
			return err
		}
		publisher = bus
		logger.Info("realtime fan-out via redis", zap.String("channel", appConfig.RedisChannel))
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Authenticator:  authenticator,
		Users:          userService,
		NotesService:   notesService,
		Generation:     generationService,
		ChatService:    chatService,
		Publisher:      publisher,
		Subscriber:     dispatcher,
		Logger:         logger,
		AllowedOrigins: appConfig.AllowedOrigins,
		CookieName:     appConfig.AuthCookieName,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newAuthenticator(appConfig config.AppConfig, logger *zap.Logger) (auth.Authenticator, error) {
	if appConfig.UsesProviderJWKS() {
		verifier, err := auth.NewJWKSVerifier(auth.JWKSVerifierConfig{
			JWKSURL:        appConfig.AuthJWKSURL,
			AllowedIssuers: []string{appConfig.AuthIssuer},
			Audience:       appConfig.AuthAudience,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		return verifier, nil
	}
	logger.Warn("no identity provider configured; accepting development session tokens")
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
	})
	if err != nil {
		return nil, err
	}
	return validator, nil
}
