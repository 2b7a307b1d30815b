package imagesync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/zjymars/3d-wall-picture/internal/domain"
	"github.com/zjymars/3d-wall-picture/internal/logger"
	"github.com/zjymars/3d-wall-picture/pkg/imageapi"
	"github.com/zjymars/3d-wall-picture/pkg/publishers"
)

// ErrSyncInProgress is returned when Run is called while another run is active.
var ErrSyncInProgress = errors.New("sync already in progress")

// Options tunes a single sync pass.
type Options struct {
	// Dir is the root directory images are written under, one subdirectory per group.
	Dir           string
	GroupSearch   string
	GroupPageSize int
	ImagePageSize int
	// MaxImages caps the number of images saved in one pass. Zero means no cap.
	MaxImages int
	// ClearLocal empties the ledger before syncing so every image is fetched again.
	ClearLocal bool
}

// Result summarizes a sync pass.
type Result struct {
	Success       bool          `json:"success"`
	NewImages     int           `json:"new_images"`
	UpdatedImages int           `json:"updated_images"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	TotalImages   int           `json:"total_images"`
	Groups        int           `json:"groups"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Status reports whether a sync is running and when the last one finished.
type Status struct {
	Syncing      bool
	LastSyncTime time.Time
	LastResult   Result
}

// Service mirrors the remote image catalog into a local directory.
type Service struct {
	source ImageSource
	ledger Ledger
	pub    EventPublisher
	fs     afero.Fs
	log    logger.Logger

	runMu sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

// NewService wires a sync service. pub may be nil when no publishers are configured.
func NewService(source ImageSource, ledger Ledger, pub EventPublisher, fs afero.Fs, log logger.Logger) *Service {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		source: source,
		ledger: ledger,
		pub:    pub,
		fs:     fs,
		log:    log,
	}
}

// Status returns a snapshot of the sync state.
func (s *Service) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Run performs one sync pass. Per-image download failures are counted in the
// result and do not fail the pass.
func (s *Service) Run(ctx context.Context, opts Options) (Result, error) {
	if s == nil || s.source == nil || s.ledger == nil {
		return Result{Error: "sync service is not initialized"}, fmt.Errorf("sync service is not initialized")
	}
	if !s.runMu.TryLock() {
		s.log.WarnObj("sync skipped", "sync_state", map[string]any{"reason": ErrSyncInProgress.Error()})
		return Result{Error: ErrSyncInProgress.Error()}, ErrSyncInProgress
	}
	defer s.runMu.Unlock()

	s.setSyncing(true)
	start := time.Now()

	r := &run{svc: s, opts: opts}
	err := r.execute(ctx)

	res := r.res
	res.Duration = time.Since(start)
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		s.log.ErrorObj("sync failed", "sync_result", map[string]any{
			"error":      err.Error(),
			"error_kind": imageapi.Kind(err),
			"new":        res.NewImages,
			"updated":    res.UpdatedImages,
			"failed":     res.Failed,
		})
	} else {
		res.Success = true
		s.log.InfoObj("sync completed", "sync_result", res)
	}

	s.finish(res)
	return res, err
}

func (s *Service) setSyncing(v bool) {
	s.statusMu.Lock()
	s.status.Syncing = v
	s.statusMu.Unlock()
}

func (s *Service) finish(res Result) {
	s.statusMu.Lock()
	s.status = Status{Syncing: false, LastSyncTime: time.Now(), LastResult: res}
	s.statusMu.Unlock()
}

// run holds the state of one pass.
type run struct {
	svc  *Service
	opts Options
	res  Result
}

func (r *run) saved() int { return r.res.NewImages + r.res.UpdatedImages }

func (r *run) capped() bool { return r.opts.MaxImages > 0 && r.saved() >= r.opts.MaxImages }

func (r *run) execute(ctx context.Context) error {
	s := r.svc

	stats, err := s.source.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("connection test: %w", err)
	}
	s.log.InfoObj("sync started", "sync_meta", map[string]any{
		"remote_groups": stats.TotalGroups,
		"remote_images": stats.TotalImages,
		"dir":           r.opts.Dir,
		"max_images":    r.opts.MaxImages,
		"clear_local":   r.opts.ClearLocal,
	})

	if r.opts.ClearLocal {
		if err := s.ledger.Clear(ctx); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
		s.log.InfoObj("local ledger cleared", "sync_meta", map[string]any{"dir": r.opts.Dir})
	}

	groupOpts := imageapi.GroupListOptions{Size: r.opts.GroupPageSize, Search: r.opts.GroupSearch}
	err = s.source.EachImageGroup(ctx, groupOpts, func(g imageapi.ImageGroup) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.res.Groups++
		if err := r.syncGroup(ctx, g); err != nil {
			return err
		}
		if r.capped() {
			return imageapi.ErrStopWalk
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk image groups: %w", err)
	}
	return nil
}

func (r *run) syncGroup(ctx context.Context, g imageapi.ImageGroup) error {
	imageOpts := imageapi.ImageListOptions{Size: r.opts.ImagePageSize}
	groupDir := filepath.Join(r.opts.Dir, strconv.FormatInt(g.ID, 10))
	dirReady := false

	err := r.svc.source.EachGroupImage(ctx, g.ID, imageOpts, func(img imageapi.Image) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.capped() {
			return imageapi.ErrStopWalk
		}
		r.res.TotalImages++

		if !dirReady {
			if err := r.svc.fs.MkdirAll(groupDir, 0o755); err != nil {
				return fmt.Errorf("create group directory %s: %w", groupDir, err)
			}
			dirReady = true
		}
		r.syncImage(ctx, g, img, filepath.Join(groupDir, img.FileName()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("group %d: %w", g.ID, err)
	}
	return nil
}

func (r *run) syncImage(ctx context.Context, g imageapi.ImageGroup, img imageapi.Image, dest string) {
	s := r.svc
	key := domain.ImageKey(g.ID, img.ID)
	fingerprint := img.Fingerprint()

	prev, found, err := s.ledger.Lookup(ctx, key)
	if err != nil {
		s.log.WarnObj("ledger lookup failed", "ledger_error", map[string]any{"key": key, "error": err.Error()})
		found = false
	}
	if found && prev.Fingerprint == fingerprint && r.fileExists(dest) {
		r.res.Skipped++
		return
	}

	out := s.source.Download(ctx, img.MinioURL, dest)
	if !out.OK {
		r.res.Failed++
		return
	}

	if found {
		r.res.UpdatedImages++
	} else {
		r.res.NewImages++
	}

	rec := domain.ImageRecord{
		Key:         key,
		ImageID:     img.ID,
		GroupID:     g.ID,
		Fingerprint: fingerprint,
		LocalPath:   dest,
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		s.log.WarnObj("ledger record failed", "ledger_error", map[string]any{"key": key, "error": err.Error()})
	}

	if s.pub == nil {
		return
	}
	evt := publishers.NewImageSyncedEvent(g, img, dest, out.Written)
	if _, err := s.pub.Publish(ctx, evt); err != nil {
		s.log.WarnObj("image event publish failed", "publish_error", map[string]any{
			"image_id": img.ID,
			"error":    err.Error(),
		})
	}
}

func (r *run) fileExists(path string) bool {
	ok, err := afero.Exists(r.svc.fs, path)
	return err == nil && ok
}
