// Package imageapi is a client for the image toolkit external API: paginated
// image groups, the images inside them, aggregate statistics, and direct image
// file downloads.
//
// Metadata calls return typed results or one of three errors:
//
//   - *TransportError: no response was received (DNS, refused, reset, timeout)
//   - *HTTPError: a non-2xx response, carrying the status and the "detail" message
//   - *DecodeError: a 2xx response whose body is not the expected JSON
//
// Invalid arguments are rejected with ErrInvalidArgument before any request is sent.
//
// Download never returns an error. It reports a DownloadOutcome so that bulk
// workflows can continue past individual failures:
//
//	client, err := imageapi.New(imageapi.Config{BaseURL: imageapi.DefaultBaseURL})
//	if err != nil {
//		return err
//	}
//	img, err := client.GetImage(ctx, 42)
//	if err != nil {
//		return err
//	}
//	if out := client.Download(ctx, img.MinioURL, "/tmp/42.jpg"); !out.OK {
//		log.Printf("skipped: %v", out.Failure)
//	}
package imageapi
