package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Well-known keys. Each one rehydrates independently; a missing key is
// always "empty/default", never an error.
const (
	KeyAuthToken        = "auth/token"
	KeyAvatar           = "auth/avatar"
	KeyRecentSearches   = "search/recent"
	KeyFilterState      = "catalog/filters"
	KeyCart             = "cart/items"
	KeyWishlist         = "wishlist/items"
	KeyDeferredCart     = "deferred/cart"
	KeyDeferredWishlist = "deferred/wishlist"
	KeyReturnTo         = "deferred/return_to"
)

type kvEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string { return "kv_entries" }

// Store is the device-local durable key/value store backing tokens,
// snapshots and deferred intents across restarts.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is empty")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	var entry kvEntry
	if err := s.db.Where("key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value, true, nil
}

func (s *Store) Put(key string, value []byte) error {
	entry := kvEntry{Key: key, Value: value}
	return s.db.Save(&entry).Error
}

func (s *Store) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&kvEntry{}).Error
}

// GetJSON reports false when the key is absent; dest is untouched then.
func (s *Store) GetJSON(key string, dest any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) PutJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(key, raw)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
