// Package dedup persists set membership for resources already processed once.
package dedup

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shizoid/shizoid/internal/models"
)

// Filter answers "have we seen this key before?" and records it if not.
type Filter struct {
	db *gorm.DB
}

// New creates a filter over the relational store.
func New(db *gorm.DB) *Filter {
	return &Filter{db: db}
}

// SeenOrRecord returns true when the key was already recorded. Otherwise it
// records the key and returns false. The insert rides on the unique
// constraint, so two concurrent callers racing on the same key still end up
// with a single row and exactly one of them gets false.
func (f *Filter) SeenOrRecord(ctx context.Context, key string) (bool, error) {
	result := f.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(&models.URL{URL: key})
	if result.Error != nil {
		return false, fmt.Errorf("record url: %w", result.Error)
	}
	return result.RowsAffected == 0, nil
}
