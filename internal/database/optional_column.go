package database

import (
	"sync/atomic"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	columnUnknown int32 = iota
	columnPresent
	columnAbsent
)

// OptionalColumn inserts rows into a table whose column may be missing on older schemas.
// The first insert that fails on the missing column switches every later insert to the
// variant that omits it.
type OptionalColumn struct {
	table  string
	column string
	logger *zap.Logger
	state  atomic.Int32
}

// NewOptionalColumn constructs an OptionalColumn for table.column.
func NewOptionalColumn(table, column string, logger *zap.Logger) *OptionalColumn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OptionalColumn{table: table, column: column, logger: logger}
}

// Create inserts value, omitting the column when the table does not have it.
func (c *OptionalColumn) Create(db *gorm.DB, value any) error {
	if c.state.Load() == columnAbsent {
		return db.Omit(c.column).Create(value).Error
	}

	err := db.Create(value).Error
	if err == nil {
		c.state.CompareAndSwap(columnUnknown, columnPresent)
		return nil
	}
	if !IsMissingColumnError(err, c.column) {
		return err
	}

	c.state.Store(columnAbsent)
	c.logger.Warn("optional column missing; inserting without it",
		zap.String("table", c.table),
		zap.String("column", c.column),
		zap.Error(err),
	)
	return db.Omit(c.column).Create(value).Error
}

// Absent reports whether the column is known to be missing.
func (c *OptionalColumn) Absent() bool {
	return c.state.Load() == columnAbsent
}
