package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/danhigham/telequeue/internal/domain"
)

var (
	bucketSettings = []byte("settings")
	keyConfig      = []byte("telegram_config")
)

// BboltStorage keeps the single persisted configuration blob.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSettings)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// LoadConfig returns the stored config, or nil when none was saved.
func (s *BboltStorage) LoadConfig() (*domain.APIConfig, error) {
	var cfg *domain.APIConfig
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get(keyConfig)
		if data == nil {
			return nil
		}
		var dbCfg DBConfig
		if err := dbCfg.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		c := dbCfg.toDomain()
		cfg = &c
		return nil
	})
	return cfg, err
}

// SaveConfig replaces the stored config.
func (s *BboltStorage) SaveConfig(cfg domain.APIConfig) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := fromDomain(cfg).MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSettings).Put(keyConfig, data)
	})
}

// ClearConfig removes the stored config. Clearing an empty store is not an error.
func (s *BboltStorage) ClearConfig() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete(keyConfig)
	})
}
