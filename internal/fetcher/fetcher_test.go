package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
)

const artifact = `{"documents": [{"id": "module-01-intro", "title": "Module 1: Foundations", "type": "module",
	"module": "module-01", "url": "/docs/module-01", "keywords": [], "headings": [], "content": ""}],
	"metadata": {"totalDocuments": 1, "lastUpdated": "2025-03-01T12:00:00.000Z", "modules": ["module-01"]}}`

func newFetcher(server *httptest.Server) *Fetcher {
	return &Fetcher{Client: server.Client(), Backoff: time.Millisecond}
}

func resetConnection(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("server doesn't support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatal(err)
	}
	_ = conn.(*net.TCPConn).SetLinger(0)
	_ = conn.Close()
}

func TestFetchIndex_RetriesOnConnectionReset(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			resetConnection(t, w)
			return
		}
		_, _ = w.Write([]byte(artifact))
	}))
	defer server.Close()

	idx, err := newFetcher(server).FetchIndex(context.Background(), server.URL+"/search-index.json")
	if err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if len(idx.Documents) != 1 {
		t.Errorf("expected 1 document, got %d", len(idx.Documents))
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestFetchIndex_FailsAfterAllRetries(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	url := server.URL + "/search-index.json"
	_, err := newFetcher(server).FetchIndex(context.Background(), url)

	var le *index.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if le.Source != url {
		t.Errorf("LoadError.Source = %q, want %q", le.Source, url)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should mention the status: %v", err)
	}
	if got := attempts.Load(); got != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, got)
	}
}

func TestFetchIndex_DecodeErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		_, _ = w.Write([]byte(`{"metadata": {}}`))
	}))
	defer server.Close()

	_, err := newFetcher(server).FetchIndex(context.Background(), server.URL)
	if !errors.Is(err, index.ErrMissingDocuments) {
		t.Errorf("expected ErrMissingDocuments, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestFetchIndex_Gzip(t *testing.T) {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, _ = w.Write([]byte(artifact))
	_ = w.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(gz.Bytes())
	}))
	defer server.Close()

	idx, err := newFetcher(server).FetchIndex(context.Background(), server.URL+"/search-index.json.gz")
	if err != nil {
		t.Fatalf("FetchIndex failed: %v", err)
	}
	if want := []string{"module-01"}; !reflect.DeepEqual(idx.Metadata.Modules, want) {
		t.Errorf("modules = %v, want %v", idx.Metadata.Modules, want)
	}
}

func TestFetchIndex_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newFetcher(server).FetchIndex(ctx, server.URL)
	var le *index.LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected LoadError, got %v", err)
	}
}
