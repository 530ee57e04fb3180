package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	"go.etcd.io/bbolt"

	"github.com/L1nMay/rangeprobe/internal/config"
)

const bucketAggregations = "aggregations"

// AggregationStore keeps saved aggregate configurations by short id.
type AggregationStore interface {
	SaveAggregation(content []byte) (string, error)
	GetAggregation(id string) ([]byte, bool, error)
	Close() error
}

type record struct {
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// Open returns the backend selected by cfg.Database.Driver.
func Open(cfg *config.Config) (AggregationStore, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := NewPostgres(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(cfg.Database.Migrations); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pg, nil
	case "bbolt", "":
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return NewStorage(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func newID() string {
	return xid.New().String()
}

type Storage struct {
	db *bbolt.DB
}

func NewStorage(dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists([]byte(bucketAggregations))
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveAggregation stores content, which must be valid JSON, under a new id.
func (s *Storage) SaveAggregation(content []byte) (string, error) {
	if !json.Valid(content) {
		return "", errors.New("content is not valid JSON")
	}
	data, err := json.Marshal(record{Content: content, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}

	id := newID()
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAggregations))
		if b == nil {
			return errors.New("bucket not found")
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) GetAggregation(id string) ([]byte, bool, error) {
	var (
		content []byte
		ok      bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAggregations))
		if b == nil {
			return errors.New("bucket not found")
		}
		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		var r record
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		content = append([]byte(nil), r.Content...)
		ok = true
		return nil
	})
	return content, ok, err
}
