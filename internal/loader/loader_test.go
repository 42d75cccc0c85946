package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/storage"
)

func publish(t *testing.T, dir string) *index.SearchIndex {
	t.Helper()
	idx, err := index.NewBuilder().Build([]index.Unit{{
		Path: "module-01/intro.md", ID: "module-01-intro", Title: "Foundations",
		Type: index.TypeModule, Module: "module-01", URL: "/docs/module-01",
	}})
	if err != nil {
		t.Fatal(err)
	}

	if err := storage.NewFSStorage(dir, "").WriteIndex(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	db, err := storage.NewSQLiteStore(filepath.Join(dir, "search-index.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.WriteIndex(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestOpen_Locations(t *testing.T) {
	dir := t.TempDir()
	publish(t, dir)

	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer server.Close()

	l := &Loader{Client: server.Client()}
	for _, location := range []string{
		filepath.Join(dir, "search-index.json"),
		filepath.Join(dir, "search-index.json.gz"),
		filepath.Join(dir, "search-index.db"),
		server.URL + "/search-index.json",
		server.URL + "/search-index.json.gz",
	} {
		idx, err := l.Open(context.Background(), location)
		if err != nil {
			t.Errorf("Open(%s) failed: %v", location, err)
			continue
		}
		if want := []string{"module-01"}; !reflect.DeepEqual(idx.Metadata.Modules, want) {
			t.Errorf("Open(%s) modules = %v, want %v", location, idx.Metadata.Modules, want)
		}
	}
}

func TestOpenOrEmpty_FallsBack(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.json")
	if err := os.WriteFile(garbage, []byte("<html>not json</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := &Loader{}
	for _, location := range []string{"", filepath.Join(dir, "missing.json"), garbage, filepath.Join(dir, "missing.db")} {
		idx, loaded := l.OpenOrEmpty(context.Background(), location)
		if loaded {
			t.Errorf("OpenOrEmpty(%q) reported loaded", location)
		}
		if idx == nil {
			t.Fatalf("OpenOrEmpty(%q) returned nil index", location)
		}
		if len(idx.Documents) != 0 || idx.Metadata.TotalDocuments != 0 {
			t.Errorf("OpenOrEmpty(%q) fallback is not empty", location)
		}
		if age := time.Since(idx.Metadata.LastUpdated); age < 0 || age > time.Minute {
			t.Errorf("OpenOrEmpty(%q) lastUpdated = %v, want now", location, idx.Metadata.LastUpdated)
		}
	}
}

func TestOpenOrEmpty_Loaded(t *testing.T) {
	dir := t.TempDir()
	want := publish(t, dir)

	idx, loaded := (&Loader{}).OpenOrEmpty(context.Background(), filepath.Join(dir, "search-index.json"))
	if !loaded {
		t.Fatal("expected loaded index")
	}
	if idx.Metadata.BuildID != want.Metadata.BuildID {
		t.Errorf("BuildID = %q, want %q", idx.Metadata.BuildID, want.Metadata.BuildID)
	}
}
