package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceEntry is one row of the device store table.
type DeviceEntry struct {
	Key       string `gorm:"primaryKey;type:varchar(255)"`
	Value     []byte
	UpdatedAt time.Time
}

// GORM is a KeyValue backed by the device_entries table.
type GORM struct {
	db *gorm.DB
}

// NewGORM creates a GORM store. The caller is expected to have migrated
// DeviceEntry.
func NewGORM(db *gorm.DB) *GORM {
	return &GORM{db: db}
}

func (g *GORM) Get(ctx context.Context, key string) ([]byte, error) {
	var entry DeviceEntry
	if err := g.db.WithContext(ctx).First(&entry, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return entry.Value, nil
}

func (g *GORM) Set(ctx context.Context, key string, value []byte) error {
	entry := DeviceEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (g *GORM) Delete(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Delete(&DeviceEntry{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
