package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Slot is the single-table schema backing the sqlite state store.
type Slot struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (Slot) TableName() string { return "slots" }

// SQLiteKV persists slots in a local sqlite database.
type SQLiteKV struct {
	conn *gorm.DB
}

// NewSQLiteKV opens (and migrates) the sqlite database at the given path.
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}

	silent := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 silent,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite state db: %w", err)
	}
	if err := conn.AutoMigrate(&Slot{}); err != nil {
		return nil, fmt.Errorf("migrating slots table: %w", err)
	}
	return &SQLiteKV{conn: conn}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, error) {
	var slot Slot
	err := s.conn.WithContext(ctx).First(&slot, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading slot %q: %w", key, err)
	}
	return slot.Value, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	err := s.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Slot{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("writing slot %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) Remove(ctx context.Context, key string) error {
	if err := s.conn.WithContext(ctx).Delete(&Slot{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("removing slot %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying sql connection.
func (s *SQLiteKV) Close() error {
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
