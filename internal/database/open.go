package database

import (
	"fmt"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// DriverSQLite opens a local SQLite file.
	DriverSQLite = "sqlite"
	// DriverPostgres opens a hosted Postgres instance.
	DriverPostgres = "postgres"
)

// Config selects and tunes the datastore.
type Config struct {
	Driver string
	// Path is the SQLite file path; ":memory:" opens a private in-memory database.
	Path string
	DSN  string
	// AutoMigrate creates missing tables and columns for Models.
	// Leave it off when the schema is owned by external tooling.
	AutoMigrate bool
	Models      []any
}

// Open connects to the configured datastore, migrates the schema and applies named data migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	gormConfig := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, fmt.Errorf("database path is required")
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite serializes writers; a single connection also keeps ":memory:" databases shared.
		sqlDB.SetMaxOpenConns(1)
	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := db.AutoMigrate(&migrationRecord{}); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate && len(cfg.Models) > 0 {
		if err := db.AutoMigrate(cfg.Models...); err != nil {
			return nil, err
		}
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized",
		zap.String("driver", db.Dialector.Name()),
		zap.Bool("auto_migrate", cfg.AutoMigrate),
	)

	return db, nil
}
