// Package fetcher downloads a published search index over HTTP.
package fetcher

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
)

const maxAttempts = 3

// maxArtifactSize bounds how much of a response body is decoded.
const maxArtifactSize = 256 << 20

type Fetcher struct {
	Client *http.Client
	Logger *slog.Logger
	// Backoff is the delay unit between attempts; attempt n waits n*Backoff.
	Backoff time.Duration
}

func New(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		Client:  http.DefaultClient,
		Logger:  logger,
		Backoff: time.Second,
	}
}

// FetchIndex downloads and decodes the artifact at url. Transport errors
// and non-2xx responses are retried; a body that does not decode is not.
// Every failure is returned as a *index.LoadError.
func (f *Fetcher) FetchIndex(ctx context.Context, url string) (*index.SearchIndex, error) {
	if f.Logger != nil {
		f.Logger.Debug("downloading index", "url", url)
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if f.Logger != nil {
				f.Logger.Warn("retrying download", "url", url, "attempt", attempt+1, "error", lastErr)
			}
			select {
			case <-ctx.Done():
				return nil, &index.LoadError{Source: url, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * f.Backoff):
			}
		}

		var body io.ReadCloser
		body, lastErr = f.open(ctx, url)
		if lastErr == nil {
			idx, err := decode(body)
			_ = body.Close()
			if err != nil {
				return nil, &index.LoadError{Source: url, Err: err}
			}
			return idx, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &index.LoadError{Source: url, Err: lastErr}
}

func (f *Fetcher) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download index: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download index: status %s", resp.Status)
	}
	return resp.Body, nil
}

// decode sniffs the gzip magic so both search-index.json and a
// precompressed search-index.json.gz served as a plain file are accepted.
func decode(body io.ReadCloser) (*index.SearchIndex, error) {
	br := bufio.NewReader(io.LimitReader(body, maxArtifactSize))
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := wrapGzipReader(io.NopCloser(br))
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return index.Decode(r)
}

func wrapGzipReader(r io.ReadCloser) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	return &gzipReadCloser{ReadCloser: r, Reader: gz}, nil
}

type gzipReadCloser struct {
	io.ReadCloser
	Reader *gzip.Reader
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.Reader.Read(p)
}

func (g *gzipReadCloser) Close() error {
	_ = g.Reader.Close()
	return g.ReadCloser.Close()
}
