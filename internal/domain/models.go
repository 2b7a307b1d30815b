package domain

import (
	"fmt"
	"time"
)

// Domain contains core models shared by the sync components.

// ImageRecord is the ledger entry kept for every image saved locally.
type ImageRecord struct {
	Key         string    `json:"key" bson:"_id"`
	ImageID     int64     `json:"image_id" bson:"image_id"`
	GroupID     int64     `json:"group_id" bson:"group_id"`
	Fingerprint string    `json:"fingerprint" bson:"fingerprint"`
	LocalPath   string    `json:"local_path" bson:"local_path"`
	SyncedAt    time.Time `json:"synced_at" bson:"synced_at"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
}

// ImageKey is the ledger key for an image within a group.
func ImageKey(groupID, imageID int64) string {
	return fmt.Sprintf("g%d/i%d", groupID, imageID)
}
