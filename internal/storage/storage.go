package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zjymars/3d-wall-picture/internal/domain"
)

// Package storage keeps the local ledger of synced images.

// Store remembers which images were saved locally and under which fingerprint.
type Store interface {
	Close() error
	// Lookup returns the unexpired record for key. found is false when the
	// key is unknown or its record has expired.
	Lookup(ctx context.Context, key string) (rec domain.ImageRecord, found bool, err error)
	Record(ctx context.Context, rec domain.ImageRecord) error
	Clear(ctx context.Context) error
}

// Options controls the backend location and retention characteristics.
type Options struct {
	Path            string
	MongoURI        string
	MongoDatabase   string
	RecordTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRecordTTL       = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
	defaultMongoDatabase   = "image_sync"
)

// NewStore creates the configured storage backend.
func NewStore(ctx context.Context, typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(opts.Path, opts)
	case "mongo", "mongodb":
		if strings.TrimSpace(opts.MongoURI) == "" {
			return nil, fmt.Errorf("mongo storage requires a uri")
		}
		return openMongo(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RecordTTL <= 0 {
		opts.RecordTTL = defaultRecordTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if strings.TrimSpace(opts.MongoDatabase) == "" {
		opts.MongoDatabase = defaultMongoDatabase
	}
	return opts
}

// stamp fills the bookkeeping timestamps of rec.
func stamp(rec domain.ImageRecord, now time.Time, ttl time.Duration) domain.ImageRecord {
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = now
	}
	rec.SyncedAt = rec.SyncedAt.UTC()
	rec.ExpiresAt = now.Add(ttl).UTC()
	return rec
}

type noopStore struct{}

func (noopStore) Close() error { return nil }
func (noopStore) Lookup(context.Context, string) (domain.ImageRecord, bool, error) {
	return domain.ImageRecord{}, false, nil
}
func (noopStore) Record(context.Context, domain.ImageRecord) error { return nil }
func (noopStore) Clear(context.Context) error                      { return nil }
