package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/zjymars/3d-wall-picture/internal/domain"
)

const imageBucket = "images"

var errBucketMissing = errors.New("image bucket missing")

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	recordTTL       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(imageBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		recordTTL:       opts.RecordTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Lookup returns the record stored under key, dropping it if it has expired.
func (b *boltStore) Lookup(_ context.Context, key string) (domain.ImageRecord, bool, error) {
	var rec domain.ImageRecord
	if b == nil || b.db == nil {
		return rec, false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return rec, false, err
	}

	found := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(imageBucket))
		if bucket == nil {
			return errBucketMissing
		}

		k := []byte(key)
		value := bucket.Get(k)
		if value == nil {
			return nil
		}

		stored, ok := decodeRecord(value)
		if !ok || !stored.ExpiresAt.After(now) {
			return bucket.Delete(k)
		}

		rec, found = stored, true
		return nil
	})
	return rec, found, err
}

// Record stores rec under rec.Key with a fresh expiry.
func (b *boltStore) Record(_ context.Context, rec domain.ImageRecord) error {
	if b == nil || b.db == nil {
		return nil
	}
	if rec.Key == "" {
		return fmt.Errorf("record key is empty")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	value, err := json.Marshal(stamp(rec, now, b.recordTTL))
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(imageBucket))
		if bucket == nil {
			return errBucketMissing
		}
		return bucket.Put([]byte(rec.Key), value)
	})
}

// Clear drops every record.
func (b *boltStore) Clear(_ context.Context) error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(imageBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(imageBucket))
		return err
	})
}

// maybeCleanupExpired removes expired records on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(imageBucket))
		if bucket == nil {
			return errBucketMissing
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			rec, ok := decodeRecord(v)
			if !ok || !rec.ExpiresAt.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// decodeRecord decodes a stored record. Unreadable values count as expired.
func decodeRecord(value []byte) (domain.ImageRecord, bool) {
	var rec domain.ImageRecord
	if err := json.Unmarshal(value, &rec); err != nil || rec.ExpiresAt.IsZero() {
		return domain.ImageRecord{}, false
	}
	return rec, true
}
