package imageapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultGroupPageSize = 20
	maxGroupPageSize     = 100
	defaultImagePageSize = 50
	maxImagePageSize     = 200
)

// GroupListOptions configures ListImageGroups. Zero Page and Size select the defaults (1 and 20).
type GroupListOptions struct {
	Page   int
	Size   int
	Search string
}

// ImageListOptions configures ListGroupImages. Zero Page and Size select the defaults (1 and 50).
type ImageListOptions struct {
	Page int
	Size int
}

// ListImageGroups fetches one page of image groups, optionally filtered by a search term.
func (c *Client) ListImageGroups(ctx context.Context, opts GroupListOptions) (*Page[ImageGroup], error) {
	page, size, err := pagination(opts.Page, opts.Size, defaultGroupPageSize, maxGroupPageSize)
	if err != nil {
		return nil, err
	}
	params := Params{"page": page, "size": size}
	if search := strings.TrimSpace(opts.Search); search != "" {
		params["search"] = search
	}

	var out Page[ImageGroup]
	if err := c.execute(ctx, http.MethodGet, "/image-groups", params, &out, pageShape(groupFields)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetImageGroup fetches one image group by id.
func (c *Client) GetImageGroup(ctx context.Context, id int64) (*ImageGroup, error) {
	if id <= 0 {
		return nil, invalidArgument("group id must be positive, got %d", id)
	}
	var out ImageGroup
	path := "/image-groups/" + strconv.FormatInt(id, 10)
	if err := c.execute(ctx, http.MethodGet, path, nil, &out, shape{fields: groupFields}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListGroupImages fetches one page of the images inside a group.
func (c *Client) ListGroupImages(ctx context.Context, groupID int64, opts ImageListOptions) (*Page[Image], error) {
	if groupID <= 0 {
		return nil, invalidArgument("group id must be positive, got %d", groupID)
	}
	page, size, err := pagination(opts.Page, opts.Size, defaultImagePageSize, maxImagePageSize)
	if err != nil {
		return nil, err
	}

	var out Page[Image]
	path := "/image-groups/" + strconv.FormatInt(groupID, 10) + "/images"
	if err := c.execute(ctx, http.MethodGet, path, Params{"page": page, "size": size}, &out, pageShape(imageFields)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetImage fetches one image by id.
func (c *Client) GetImage(ctx context.Context, id int64) (*Image, error) {
	if id <= 0 {
		return nil, invalidArgument("image id must be positive, got %d", id)
	}
	var out Image
	path := "/images/" + strconv.FormatInt(id, 10)
	if err := c.execute(ctx, http.MethodGet, path, nil, &out, shape{fields: imageFields}); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStats fetches the aggregate catalog statistics.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.execute(ctx, http.MethodGet, "/stats", nil, &out, shape{fields: statsFields}); err != nil {
		return nil, err
	}
	return &out, nil
}

func pagination(page, size, defSize, maxSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = defSize
	}
	if page < 1 {
		return 0, 0, invalidArgument("page must be >= 1, got %d", page)
	}
	if size < 1 || size > maxSize {
		return 0, 0, invalidArgument("size must be within [1,%d], got %d", maxSize, size)
	}
	return page, size, nil
}
