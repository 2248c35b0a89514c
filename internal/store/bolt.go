package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketPages = []byte("pages")

// errNoBucket is returned when the pages bucket vanished after open.
var errNoBucket = fmt.Errorf("bolt: %q bucket missing", bucketPages)

// BoltStore keeps page records in a single bbolt bucket keyed by title.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("bolt store dir: %w", err)
	}

	// A second process holding the file lock fails fast instead of hanging.
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, cerr := tx.CreateBucketIfNotExists(bucketPages)
		return cerr
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init pages bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

func pages(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(bucketPages)
	if b == nil {
		return nil, errNoBucket
	}
	return b, nil
}

func (s *BoltStore) Save(ctx context.Context, title string, record *PageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", title, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := pages(tx)
		if err != nil {
			return err
		}
		return b.Put([]byte(title), payload)
	})
}

func (s *BoltStore) Load(ctx context.Context, title string) (*PageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		b, err := pages(tx)
		if err != nil {
			return err
		}
		// Values are only valid inside the transaction.
		if v := b.Get([]byte(title)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, notFound(title)
	}
	return decodeRecord(raw, title)
}

// List returns records in key order.
func (s *BoltStore) List(ctx context.Context) ([]*PageRecord, error) {
	var out []*PageRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := pages(tx)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := decodeRecord(v, string(k))
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
