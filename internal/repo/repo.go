// Package repo holds the pieces domain repositories share.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base carries the handle a repository queries through: the pool, or a
// transaction after WithTx.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the handle bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds to tx; a nil tx keeps the current handle.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// UpdateByID writes cols to the T row whose primary key is id and fails with
// gorm.ErrRecordNotFound when no row matched.
func UpdateByID[T any](db *gorm.DB, id any, cols map[string]any) error {
	res := db.Model(new(T)).Where("id = ?", id).UpdateColumns(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// InsertOrGet inserts row unless the conflict columns already match a stored
// row, then reloads the stored row into row. The insert and the reload run on
// the same handle so callers inside a transaction see their own writes.
func InsertOrGet[T any](db *gorm.DB, row *T, conflict []string, query string, args ...any) error {
	cols := make([]clause.Column, 0, len(conflict))
	for _, name := range conflict {
		cols = append(cols, clause.Column{Name: name})
	}
	if err := db.Clauses(clause.OnConflict{Columns: cols, DoNothing: true}).Create(row).Error; err != nil {
		return err
	}
	var stored T
	if err := db.Where(query, args...).Take(&stored).Error; err != nil {
		return err
	}
	*row = stored
	return nil
}
