package publishers

import "github.com/zjymars/3d-wall-picture/pkg/imageapi"

func sampleEvent() Event {
	return NewImageSyncedEvent(
		imageapi.ImageGroup{ID: 3, Name: "mountains"},
		imageapi.Image{ID: 301, Filename: "peak.jpg", MinioURL: "http://minio/peak.jpg", FileSize: 2048},
		"/data/images/3/301_peak.jpg",
		2048,
	)
}
