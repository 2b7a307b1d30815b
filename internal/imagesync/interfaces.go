package imagesync

import (
	"context"

	"github.com/zjymars/3d-wall-picture/internal/domain"
	"github.com/zjymars/3d-wall-picture/pkg/imageapi"
	"github.com/zjymars/3d-wall-picture/pkg/publishers"
)

// ImageSource is the slice of the image API client the sync relies on.
type ImageSource interface {
	GetStats(ctx context.Context) (*imageapi.Stats, error)
	EachImageGroup(ctx context.Context, opts imageapi.GroupListOptions, fn func(imageapi.ImageGroup) error) error
	EachGroupImage(ctx context.Context, groupID int64, opts imageapi.ImageListOptions, fn func(imageapi.Image) error) error
	Download(ctx context.Context, url, destination string) imageapi.DownloadOutcome
}

// Ledger records which images are already stored locally.
type Ledger interface {
	Lookup(ctx context.Context, key string) (domain.ImageRecord, bool, error)
	Record(ctx context.Context, rec domain.ImageRecord) error
	Clear(ctx context.Context) error
}

// EventPublisher publishes sync events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
