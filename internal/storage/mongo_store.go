package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zjymars/3d-wall-picture/internal/domain"
)

const imageCollection = "synced_images"

// mongoStore implements a Store backed by a MongoDB collection.
// Expired documents are removed by a TTL index on expires_at and are
// filtered out on read until the server sweeps them.
type mongoStore struct {
	client    *mongo.Client
	col       *mongo.Collection
	recordTTL time.Duration
	now       func() time.Time
}

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return client, nil
}

func openMongo(ctx context.Context, opts Options) (Store, error) {
	client, err := ConnectMongo(ctx, opts.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	store, err := newMongoStore(ctx, client, client.Database(opts.MongoDatabase), opts)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func newMongoStore(ctx context.Context, client *mongo.Client, db *mongo.Database, opts Options) (*mongoStore, error) {
	store := &mongoStore{
		client:    client,
		col:       db.Collection(imageCollection),
		recordTTL: opts.RecordTTL,
		now:       time.Now,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return store, nil
}

// ensureIndexes lets the server expire records and keeps per-group scans cheap.
func (m *mongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "group_id", Value: 1}},
		},
	}
	_, err := m.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// Close disconnects the underlying client.
func (m *mongoStore) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Lookup returns the unexpired record stored under key.
func (m *mongoStore) Lookup(ctx context.Context, key string) (domain.ImageRecord, bool, error) {
	var rec domain.ImageRecord
	filter := bson.M{"_id": key, "expires_at": bson.M{"$gt": m.now().UTC()}}

	err := m.col.FindOne(ctx, filter).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ImageRecord{}, false, nil
	}
	if err != nil {
		return domain.ImageRecord{}, false, fmt.Errorf("find record %q: %w", key, err)
	}
	return rec, true, nil
}

// Record upserts rec with a fresh expiry.
func (m *mongoStore) Record(ctx context.Context, rec domain.ImageRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("record key is empty")
	}
	rec = stamp(rec, m.now(), m.recordTTL)

	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": rec.Key}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", rec.Key, err)
	}
	return nil
}

// Clear drops every record.
func (m *mongoStore) Clear(ctx context.Context) error {
	if _, err := m.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
