package imagesync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjymars/3d-wall-picture/internal/domain"
	"github.com/zjymars/3d-wall-picture/pkg/imageapi"
	"github.com/zjymars/3d-wall-picture/pkg/publishers"
)

// fakeSource serves a fixed catalog and writes downloads to fs.
type fakeSource struct {
	fs       afero.Fs
	groups   []imageapi.ImageGroup
	images   map[int64][]imageapi.Image
	statsErr error
	failURLs map[string]bool
	block    chan struct{}

	mu        sync.Mutex
	downloads []string
}

func newFakeSource(fs afero.Fs, groups, perGroup int) *fakeSource {
	src := &fakeSource{fs: fs, images: map[int64][]imageapi.Image{}, failURLs: map[string]bool{}}
	for g := int64(1); g <= int64(groups); g++ {
		src.groups = append(src.groups, imageapi.ImageGroup{ID: g, Name: fmt.Sprintf("group-%d", g)})
		for i := int64(1); i <= int64(perGroup); i++ {
			id := g*100 + i
			src.images[g] = append(src.images[g], imageapi.Image{
				ID:        id,
				Filename:  fmt.Sprintf("img-%d.jpg", id),
				FileSize:  10,
				MinioURL:  fmt.Sprintf("http://minio/img-%d.jpg", id),
				CreatedAt: "2024-05-01T10:00:00",
			})
		}
	}
	return src
}

func (f *fakeSource) GetStats(context.Context) (*imageapi.Stats, error) {
	if f.block != nil {
		<-f.block
	}
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &imageapi.Stats{TotalGroups: len(f.groups)}, nil
}

func (f *fakeSource) EachImageGroup(_ context.Context, _ imageapi.GroupListOptions, fn func(imageapi.ImageGroup) error) error {
	for _, g := range f.groups {
		if err := fn(g); err != nil {
			if errors.Is(err, imageapi.ErrStopWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (f *fakeSource) EachGroupImage(_ context.Context, groupID int64, _ imageapi.ImageListOptions, fn func(imageapi.Image) error) error {
	for _, img := range f.images[groupID] {
		if err := fn(img); err != nil {
			if errors.Is(err, imageapi.ErrStopWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (f *fakeSource) Download(_ context.Context, url, dest string) imageapi.DownloadOutcome {
	f.mu.Lock()
	f.downloads = append(f.downloads, url)
	f.mu.Unlock()
	if f.failURLs[url] {
		return imageapi.DownloadOutcome{URL: url, Destination: dest, Failure: &imageapi.DownloadFailure{Stage: imageapi.StageStatus, StatusCode: 404}}
	}
	data := []byte(url)
	if err := afero.WriteFile(f.fs, dest, data, 0o644); err != nil {
		return imageapi.DownloadOutcome{URL: url, Destination: dest, Failure: &imageapi.DownloadFailure{Stage: imageapi.StageCreate, Err: err}}
	}
	return imageapi.DownloadOutcome{OK: true, URL: url, Destination: dest, Written: int64(len(data))}
}

func (f *fakeSource) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.downloads)
}

// memLedger is an in-memory Ledger.
type memLedger struct {
	mu      sync.Mutex
	records map[string]domain.ImageRecord
	cleared int
}

func newMemLedger() *memLedger { return &memLedger{records: map[string]domain.ImageRecord{}} }

func (m *memLedger) Lookup(_ context.Context, key string) (domain.ImageRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *memLedger) Record(_ context.Context, rec domain.ImageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
	return nil
}

func (m *memLedger) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]domain.ImageRecord{}
	m.cleared++
	return nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, evt publishers.Event) (int, error) {
	args := m.Called(ctx, evt)
	return args.Int(0), args.Error(1)
}

func baseOptions() Options {
	return Options{Dir: "/wall", GroupPageSize: 20, ImagePageSize: 50}
}

func TestRunDownloadsNewImages(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 2, 3)
	ledger := newMemLedger()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.AnythingOfType("publishers.Event")).Return(1, nil).Times(6)

	svc := NewService(src, ledger, pub, fs, nil)
	res, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 6, res.NewImages)
	assert.Equal(t, 0, res.UpdatedImages)
	assert.Equal(t, 6, res.TotalImages)
	assert.Equal(t, 2, res.Groups)
	pub.AssertExpectations(t)

	path := filepath.Join("/wall", "2", "203_img-203.jpg")
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "http://minio/img-203.jpg", string(data))

	rec, found, _ := ledger.Lookup(context.Background(), domain.ImageKey(2, 203))
	require.True(t, found)
	assert.Equal(t, path, rec.LocalPath)
	assert.Equal(t, src.images[2][2].Fingerprint(), rec.Fingerprint)

	status := svc.Status()
	assert.False(t, status.Syncing)
	assert.False(t, status.LastSyncTime.IsZero())
	assert.Equal(t, 6, status.LastResult.NewImages)
}

func TestRunSkipsUnchangedAndUpdatesChanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 1, 3)
	svc := NewService(src, newMemLedger(), nil, fs, nil)

	_, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)
	require.Equal(t, 3, src.downloadCount())

	src.images[1][0].FileSize = 99
	res, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, res.NewImages)
	assert.Equal(t, 1, res.UpdatedImages)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 4, src.downloadCount())
}

func TestRunRedownloadsMissingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 1, 2)
	svc := NewService(src, newMemLedger(), nil, fs, nil)

	_, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)
	require.NoError(t, fs.Remove(filepath.Join("/wall", "1", "101_img-101.jpg")))

	res, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedImages)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunCountsFailedDownloadsAndContinues(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 1, 3)
	src.failURLs["http://minio/img-102.jpg"] = true
	ledger := newMemLedger()
	svc := NewService(src, ledger, nil, fs, nil)

	res, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.NewImages)

	_, found, _ := ledger.Lookup(context.Background(), domain.ImageKey(1, 102))
	assert.False(t, found, "failed download must not be recorded")
}

func TestRunStopsAtMaxImages(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 3, 3)
	svc := NewService(src, newMemLedger(), nil, fs, nil)

	opts := baseOptions()
	opts.MaxImages = 4
	res, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewImages)
	assert.Equal(t, 4, src.downloadCount())
	assert.Equal(t, 2, res.Groups)
}

func TestRunClearLocalRefetchesEverything(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 1, 2)
	ledger := newMemLedger()
	svc := NewService(src, ledger, nil, fs, nil)

	_, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)

	opts := baseOptions()
	opts.ClearLocal = true
	res, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.cleared)
	assert.Equal(t, 2, res.NewImages)
	assert.Equal(t, 0, res.Skipped)
}

func TestRunFailsWhenConnectionTestFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 1, 1)
	src.statsErr = &imageapi.TransportError{Method: "GET", URL: "http://api/stats", Err: errors.New("refused")}
	svc := NewService(src, newMemLedger(), nil, fs, nil)

	res, err := svc.Run(context.Background(), baseOptions())
	require.Error(t, err)
	assert.True(t, imageapi.IsTransport(err))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, src.downloadCount())
}

func TestRunPublishErrorsAreNotFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 1, 1)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(0, errors.New("broker down")).Once()

	svc := NewService(src, newMemLedger(), pub, fs, nil)
	res, err := svc.Run(context.Background(), baseOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewImages)
	pub.AssertExpectations(t)

	evt := pub.Calls[0].Arguments.Get(1).(publishers.Event)
	assert.Equal(t, publishers.EventImageSynced, evt.Event)
	assert.Equal(t, int64(101), evt.Image.ID)
	assert.Equal(t, "group-1", evt.GroupName)
}

func TestRunRejectsOverlappingSync(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 1, 1)
	src.block = make(chan struct{})
	svc := NewService(src, newMemLedger(), nil, fs, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), baseOptions())
		done <- err
	}()

	require.Eventually(t, func() bool { return svc.Status().Syncing }, time.Second, 5*time.Millisecond)

	res, err := svc.Run(context.Background(), baseOptions())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.False(t, res.Success)

	close(src.block)
	require.NoError(t, <-done)
}

func TestRunHonoursCancellation(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := newFakeSource(fs, 2, 2)
	svc := NewService(src, newMemLedger(), nil, fs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx, baseOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, src.downloadCount())
}
