package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidpullgo/internal/models"
	"vidpullgo/internal/utils"
)

const (
	chunkSize = 32 * 1024
	// videoSuffix asks the media host for the transcoded video bytes.
	videoSuffix = "=dv"
	partSuffix  = ".part"
)

type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// New returns a fetcher. A zero timeout lets a transfer run as long as
// bytes keep arriving; connection setup is still bounded by the transport.
func New(timeout time.Duration) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 60 * time.Second
	return &Fetcher{
		client:  &http.Client{Transport: transport},
		timeout: timeout,
	}
}

func SourceURL(item models.MediaItem) string {
	return item.SourceLocator + videoSuffix
}

// PartPath is where an in-flight transfer for localPath is written before it
// is renamed into place.
func PartPath(localPath string) string {
	dir, name := filepath.Split(localPath)
	return filepath.Join(dir, "."+name+partSuffix)
}

// Fetch streams the item's video into localPath and returns the number of
// bytes written. The file only appears under its final name once the body
// has been fully drained.
func (f *Fetcher) Fetch(ctx context.Context, item models.MediaItem, localPath string) (int64, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.doRequest(ctx, SourceURL(item))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	partPath := PartPath(localPath)
	file, err := os.Create(partPath)
	if err != nil {
		return 0, err
	}

	started := time.Now()
	n, err := copyChunked(file, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength > 0 && n != resp.ContentLength {
		err = fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}
	if err != nil {
		os.Remove(partPath)
		return n, err
	}

	if err := os.Rename(partPath, localPath); err != nil {
		os.Remove(partPath)
		return n, err
	}

	elapsed := time.Since(started)
	if elapsed > 0 {
		slog.Debug("Transfer finished", "file", item.Filename, "size", utils.FormatBytes(n),
			"speed", utils.FormatSpeed(float64(n)/elapsed.Seconds()))
	}
	return n, nil
}

func (f *Fetcher) doRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Message: utils.DescribeErrorBody(resp)}
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/") {
		defer resp.Body.Close()
		return nil, fmt.Errorf("unexpected content type: %s", contentType)
	}

	return resp, nil
}

func copyChunked(dst io.Writer, src io.Reader) (int64, error) {
	var total int64
	buf := make([]byte, chunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
