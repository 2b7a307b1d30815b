package imageapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DownloadChunkSize is the fixed buffer size used to copy download bodies.
const DownloadChunkSize = 8 * 1024

// DownloadStage names the step at which a download failed.
type DownloadStage string

const (
	StageRequest   DownloadStage = "request"
	StageTransport DownloadStage = "transport"
	StageStatus    DownloadStage = "status"
	StageCreate    DownloadStage = "create"
	StageRead      DownloadStage = "read"
	StageWrite     DownloadStage = "write"
	StageClose     DownloadStage = "close"
)

// DownloadFailure is the diagnostic attached to an unsuccessful download.
type DownloadFailure struct {
	Stage      DownloadStage
	StatusCode int
	Err        error
}

func (f *DownloadFailure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("download %s failed: status %d: %v", f.Stage, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("download %s failed: %v", f.Stage, f.Err)
}

func (f *DownloadFailure) Unwrap() error { return f.Err }

// DownloadOutcome reports the result of Download. OK is true only when the
// whole body was written to the destination. On failure the destination may
// hold a partial file.
type DownloadOutcome struct {
	OK          bool
	URL         string
	Destination string
	Written     int64
	Failure     *DownloadFailure
}

// Download streams url into destination in DownloadChunkSize chunks. The
// parent directory must already exist. Every failure is contained in the
// returned outcome and logged; nothing is returned as an error.
func (c *Client) Download(ctx context.Context, url, destination string) DownloadOutcome {
	out := DownloadOutcome{URL: url, Destination: destination}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.download(ctx, url, destination, &out); err != nil {
		out.Failure = err
		c.log.WarnObj("image download failed", "download_error", map[string]any{
			"url":         url,
			"destination": destination,
			"stage":       string(err.Stage),
			"status":      err.StatusCode,
			"written":     out.Written,
			"error":       fmt.Sprint(err.Err),
		})
		return out
	}
	out.OK = true
	c.log.InfoObj("image saved", "download_result", map[string]any{
		"url":         url,
		"destination": destination,
		"bytes":       out.Written,
	})
	return out
}

func (c *Client) download(ctx context.Context, url, destination string, out *DownloadOutcome) *DownloadFailure {
	if c == nil || c.http == nil {
		return &DownloadFailure{Stage: StageRequest, Err: errors.New("client is not initialized")}
	}
	if strings.TrimSpace(url) == "" {
		return &DownloadFailure{Stage: StageRequest, Err: errors.New("url is empty")}
	}
	if strings.TrimSpace(destination) == "" {
		return &DownloadFailure{Stage: StageRequest, Err: errors.New("destination is empty")}
	}

	resp, err := c.http.Stream(ctx, url, nil)
	if err != nil {
		return &DownloadFailure{Stage: StageTransport, Err: err}
	}
	body := resp.Body()
	defer body.Close()

	if status := resp.StatusCode(); status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &DownloadFailure{Stage: StageStatus, StatusCode: status, Err: errors.New(http.StatusText(status))}
	}

	f, err := c.fs.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &DownloadFailure{Stage: StageCreate, Err: err}
	}

	failure := copyChunks(f, body, &out.Written)
	if cerr := f.Close(); cerr != nil && failure == nil {
		failure = &DownloadFailure{Stage: StageClose, Err: cerr}
	}
	return failure
}

// copyChunks copies src into dst one fixed-size chunk at a time.
func copyChunks(dst io.Writer, src io.Reader, written *int64) *DownloadFailure {
	buf := make([]byte, DownloadChunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			*written += int64(wn)
			if werr != nil {
				return &DownloadFailure{Stage: StageWrite, Err: werr}
			}
			if wn != n {
				return &DownloadFailure{Stage: StageWrite, Err: io.ErrShortWrite}
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return &DownloadFailure{Stage: StageRead, Err: rerr}
		}
	}
}

// sanitizeFileName reduces name to a single path element.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
