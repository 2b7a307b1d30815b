package imageapi

import (
	"context"
	"errors"
)

// ErrStopWalk can be returned from a walk callback to end the walk early
// without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// EachImageGroup calls fn for every group on every page starting at opts.Page.
// Pages are fetched one at a time and the walk ends at the server-reported
// last page or on the first empty page.
func (c *Client) EachImageGroup(ctx context.Context, opts GroupListOptions, fn func(ImageGroup) error) error {
	if opts.Page == 0 {
		opts.Page = 1
	}
	for {
		page, err := c.ListImageGroups(ctx, opts)
		if err != nil {
			return err
		}
		for _, g := range page.Data {
			if err := fn(g); err != nil {
				return stopOrErr(err)
			}
		}
		if len(page.Data) == 0 || opts.Page >= page.TotalPages {
			return nil
		}
		opts.Page++
	}
}

// EachGroupImage calls fn for every image of a group, page by page.
func (c *Client) EachGroupImage(ctx context.Context, groupID int64, opts ImageListOptions, fn func(Image) error) error {
	if opts.Page == 0 {
		opts.Page = 1
	}
	for {
		page, err := c.ListGroupImages(ctx, groupID, opts)
		if err != nil {
			return err
		}
		for _, img := range page.Data {
			if err := fn(img); err != nil {
				return stopOrErr(err)
			}
		}
		if len(page.Data) == 0 || opts.Page >= page.TotalPages {
			return nil
		}
		opts.Page++
	}
}

func stopOrErr(err error) error {
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}
