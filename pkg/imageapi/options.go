package imageapi

import (
	"github.com/spf13/afero"

	"github.com/zjymars/3d-wall-picture/pkg/httpclient"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	http   httpclient.Client
	fs     afero.Fs
	logger Logger
}

// WithHTTPClient replaces the resty-backed transport.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.http = c
		}
	}
}

// WithFs sets the filesystem downloads are written to.
func WithFs(fs afero.Fs) Option {
	return func(o *clientOptions) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log Logger) Option {
	return func(o *clientOptions) {
		o.logger = ensureLogger(log)
	}
}
