package publishers

import (
	"strconv"
	"time"

	"github.com/zjymars/3d-wall-picture/pkg/imageapi"
)

// EventImageSynced is emitted after an image has been written locally.
const EventImageSynced = "image.synced"

// Event represents the payload published downstream.
type Event struct {
	Event     string         `json:"event"`
	GroupID   int64          `json:"group_id"`
	GroupName string         `json:"group_name"`
	Image     imageapi.Image `json:"image"`
	LocalPath string         `json:"local_path"`
	Bytes     int64          `json:"bytes"`
	SyncedAt  time.Time      `json:"synced_at"`
}

// NewImageSyncedEvent constructs the event for an image saved to localPath.
func NewImageSyncedEvent(group imageapi.ImageGroup, img imageapi.Image, localPath string, bytes int64) Event {
	return Event{
		Event:     EventImageSynced,
		GroupID:   group.ID,
		GroupName: group.Name,
		Image:     img,
		LocalPath: localPath,
		Bytes:     bytes,
		SyncedAt:  time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to brokered messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event":    e.Event,
		"group_id": strconv.FormatInt(e.GroupID, 10),
		"image_id": strconv.FormatInt(e.Image.ID, 10),
	}
}
