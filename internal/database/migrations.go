package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillQuizTitles   = "2025-06-02_backfill_quiz_titles"
	migrationBackfillMessageScope = "2025-06-09_backfill_message_scope"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

// Data migrations run once per database. A migration whose table or column does not
// exist yet is skipped without being recorded, so it runs once the schema catches up.
func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillQuizTitles, apply: backfillQuizTitles},
		{name: migrationBackfillMessageScope, apply: backfillMessageScope},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			if errors.Is(err, errMigrationNotReady) {
				logger.Info("database migration deferred", zap.String("migration", migration.name))
				continue
			}
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

var errMigrationNotReady = errors.New("migration prerequisites missing")

func requireColumns(db *gorm.DB, table string, columns ...string) error {
	migrator := db.Migrator()
	if !migrator.HasTable(table) {
		return errMigrationNotReady
	}
	for _, column := range columns {
		if !migrator.HasColumn(table, column) {
			return errMigrationNotReady
		}
	}
	return nil
}

// backfillQuizTitles gives quizzes stored before titles existed their note's title.
func backfillQuizTitles(db *gorm.DB) error {
	if err := requireColumns(db, "quizzes", "title", "note_id"); err != nil {
		return err
	}
	if err := requireColumns(db, "notes", "title"); err != nil {
		return err
	}
	return db.Exec(`UPDATE quizzes SET title = (SELECT notes.title FROM notes WHERE notes.id = quizzes.note_id)
		WHERE (title IS NULL OR title = '') AND EXISTS (SELECT 1 FROM notes WHERE notes.id = quizzes.note_id)`).Error
}

func backfillMessageScope(db *gorm.DB) error {
	if err := requireColumns(db, "messages", "scope"); err != nil {
		return err
	}
	return db.Exec(`UPDATE messages SET scope = 'note' WHERE scope IS NULL OR scope = ''`).Error
}
