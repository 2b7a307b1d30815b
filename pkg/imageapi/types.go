package imageapi

import (
	"fmt"
	"strconv"
)

// Page is the pagination envelope returned by collection endpoints.
// TotalPages is reported by the server and is never recomputed locally.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// ImageGroup is a named collection of images. UpdatedAt is only present on
// the detail endpoint.
type ImageGroup struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	SearchKeyword string `json:"search_keyword"`
	SourceWebsite string `json:"source_website"`
	ImageCount    int    `json:"image_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at,omitempty"`
	CoverImage    string `json:"cover_image,omitempty"`
}

// GroupInfo is the parent group summary embedded in an image detail.
type GroupInfo struct {
	ID            int64  `json:"id,omitempty"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	SearchKeyword string `json:"search_keyword,omitempty"`
	SourceWebsite string `json:"source_website,omitempty"`
}

// Image describes a stored image file. GroupInfo is only present on the
// detail endpoint.
type Image struct {
	ID            int64      `json:"id"`
	Filename      string     `json:"filename"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	FileSize      int64      `json:"file_size"`
	Format        string     `json:"format"`
	MinioURL      string     `json:"minio_url"`
	OriginalURL   string     `json:"original_url"`
	SourceWebsite string     `json:"source_website"`
	CreatedAt     string     `json:"created_at"`
	GroupInfo     *GroupInfo `json:"group_info,omitempty"`
}

// Fingerprint identifies the stored content of an image for change detection.
func (i Image) Fingerprint() string {
	return i.CreatedAt + "|" + strconv.FormatInt(i.FileSize, 10) + "|" + i.MinioURL
}

// FileName returns a local file name for the image that cannot escape a directory.
func (i Image) FileName() string {
	name := sanitizeFileName(i.Filename)
	if name == "" {
		name = "image"
		if i.Format != "" {
			name += "." + sanitizeFileName(i.Format)
		}
	}
	return fmt.Sprintf("%d_%s", i.ID, name)
}

// SourceStat counts images per source website.
type SourceStat struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Stats is the aggregate catalog summary.
type Stats struct {
	APIVersion   string       `json:"api_version"`
	Description  string       `json:"description"`
	TotalGroups  int          `json:"total_groups"`
	TotalImages  int          `json:"total_images"`
	SourcesStats []SourceStat `json:"sources_stats"`
}

// Required top-level keys per payload shape; absence is a DecodeError.
var (
	pageFields  = []string{"data", "total", "page", "total_pages"}
	groupFields = []string{"id", "name"}
	imageFields = []string{"id", "filename", "minio_url"}
	statsFields = []string{"total_groups", "total_images"}
)
