// Package store persists the session state as JSON values under fixed keys.
package store

import (
	"context"
	"encoding/json"
	"time"

	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a key-value store of JSON documents.
type Store interface {
	// Get decodes the value under key into dst. found is false when the
	// key has never been written.
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	Put(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// GormStore keeps entries in the kv_entries table.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	var entry models.Entry
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if err != nil {
		if ierr.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, ierr.WithError(err).
			WithHintf("Could not read %s", key).
			Mark(ierr.ErrPersistence)
	}
	if err := json.Unmarshal(entry.Value, dst); err != nil {
		return false, ierr.WithError(err).
			WithHintf("Stored value of %s is corrupt", key).
			Mark(ierr.ErrPersistence)
	}
	return true, nil
}

func (s *GormStore) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not encode %s", key).
			Mark(ierr.ErrPersistence)
	}
	entry := models.Entry{Key: key, Value: datatypes.JSON(raw), UpdatedAt: s.now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not save %s", key).
			Mark(ierr.ErrPersistence)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Entry{}).Error; err != nil {
		return ierr.WithError(err).
			WithHintf("Could not delete %s", key).
			Mark(ierr.ErrPersistence)
	}
	return nil
}
