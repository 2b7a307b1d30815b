package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/zjymars/3d-wall-picture/internal/config"
	"github.com/zjymars/3d-wall-picture/internal/imagesync"
	"github.com/zjymars/3d-wall-picture/internal/logger"
	"github.com/zjymars/3d-wall-picture/internal/storage"
	"github.com/zjymars/3d-wall-picture/pkg/httpclient"
	"github.com/zjymars/3d-wall-picture/pkg/imageapi"
	"github.com/zjymars/3d-wall-picture/pkg/publishers"
)

// Syncer represents the image sync runtime. It owns the API client, the
// ledger and the publishers, and drives the sync service on a fixed interval.
type Syncer struct {
	cfg          *config.Config
	client       *imageapi.Client
	fanout       *publishers.Fanout
	service      *imagesync.Service
	store        storage.Store
	syncInterval time.Duration
	log          logger.Logger
}

// NewSyncer builds a sync runtime from config.
func NewSyncer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Syncer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	transport := httpclient.NewRestyClient(cfg.APITimeout)
	if logger.S != nil {
		transport = httpclient.NewRestyClientWithLogger(cfg.APITimeout, logger.S)
	}
	client, err := imageapi.New(
		imageapi.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout},
		imageapi.WithHTTPClient(transport),
		imageapi.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("init image api client: %w", err)
	}
	log.InfoObj("image api client ready", "api_config", map[string]any{
		"base_url":        client.BaseURL(),
		"timeout_seconds": int(cfg.APITimeout.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		client.Close()
		return nil, err
	}

	storeOpts := storage.Options{
		Path:            cfg.BBoltPath,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		RecordTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(ctx, cfg.StorageType, storeOpts)
	if err != nil {
		_ = fanout.Close()
		client.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"mongo_database":           cfg.MongoDatabase,
		"record_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		_ = store.Close()
		_ = fanout.Close()
		client.Close()
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	var pub imagesync.EventPublisher
	if fanout.Size() > 0 {
		pub = fanout
	}
	service := imagesync.NewService(client, store, pub, fs, log)

	return &Syncer{
		cfg:          cfg,
		client:       client,
		fanout:       fanout,
		service:      service,
		store:        store,
		syncInterval: cfg.SyncInterval,
		log:          log,
	}, nil
}

// buildFanout loads the optional publishers file. No file means no publishers.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("no publishers file configured; events disabled", "publishers_meta", map[string]any{"count": 0})
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Options returns the sync pass options derived from config.
func (s *Syncer) Options() imagesync.Options {
	return imagesync.Options{
		Dir:           s.cfg.DownloadDir,
		GroupSearch:   s.cfg.SyncGroupSearch,
		GroupPageSize: s.cfg.SyncGroupPageSize,
		ImagePageSize: s.cfg.SyncImagePageSize,
		MaxImages:     s.cfg.SyncMaxImages,
		ClearLocal:    s.cfg.SyncClearLocal,
	}
}

// Run performs an initial sync and then repeats on the configured interval
// until the context is cancelled. With sync_once it returns after the first pass.
func (s *Syncer) Run(ctx context.Context) error {
	if s == nil || s.service == nil {
		return fmt.Errorf("syncer is not initialized")
	}
	defer s.close()

	s.log.InfoObj("sync loop starting", "syncer_state", map[string]any{
		"publishers_count": s.fanout.Size(),
		"sync_interval":    s.syncInterval.String(),
		"sync_once":        s.cfg.SyncOnce,
		"download_dir":     s.cfg.DownloadDir,
	})

	opts := s.Options()
	res, err := s.runOnce(ctx, opts)
	if s.cfg.SyncOnce {
		if err != nil {
			return err
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	}
	if err != nil {
		s.log.ErrorObj("initial sync failed", "error", err)
	}

	// A cleared ledger only makes sense for the first pass.
	opts.ClearLocal = false

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoObj("sync loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if _, err := s.runOnce(ctx, opts); err != nil {
				s.log.ErrorObj("scheduled sync failed", "error", err)
			}
		}
	}
}

// runOnce performs a single sync pass.
func (s *Syncer) runOnce(ctx context.Context, opts imagesync.Options) (imagesync.Result, error) {
	start := time.Now()
	s.log.InfoObj("sync pass started", "sync_meta", map[string]any{
		"started_at": start.UTC(),
	})
	res, err := s.service.Run(ctx, opts)
	if err != nil {
		return res, err
	}
	s.log.InfoObj("sync pass completed", "sync_meta", map[string]any{
		"new":        res.NewImages,
		"updated":    res.UpdatedImages,
		"skipped":    res.Skipped,
		"failed":     res.Failed,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return res, nil
}

// close releases the store, the publishers and the API client, logging any errors encountered.
func (s *Syncer) close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.ErrorObj("storage close failed", "error", err)
		}
	}
	if err := s.fanout.Close(); err != nil {
		s.log.ErrorObj("publishers close failed", "error", err)
	}
	s.client.Close()
}
