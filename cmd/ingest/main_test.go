package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/storage"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func runBuild(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"build", "--log-level", "error"}, args...))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestBuild_WritesArtifacts(t *testing.T) {
	t.Setenv("TEXTBOOK_SEARCH_CONFIG", filepath.Join(t.TempDir(), "absent.json"))
	docs := writeTree(t, map[string]string{
		"intro.md":                  "# Welcome\n\nStart here.",
		"module-01/index.md":        "# Foundations\n\nRobots and sensors.",
		"module-01/02-actuators.md": "# Actuators\n\nMotors and gears.",
		"module-02/_category_.json": `{"label": "Kinematics"}`,
		"module-02/forward.md":      "# Forward Kinematics",
	})
	out := t.TempDir()

	err := runBuild(t, "--content", docs, "--output", out, "--root-module", "getting-started",
		"--site", "https://book.example.org", "--sqlite", "--workers", "2")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	idx, err := index.LoadFile(filepath.Join(out, storage.DefaultIndexName))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if idx.Metadata.TotalDocuments != 5 {
		t.Errorf("TotalDocuments = %d, want 5", idx.Metadata.TotalDocuments)
	}
	if want := []string{"getting-started", "module-01", "module-02"}; !reflect.DeepEqual(idx.Metadata.Modules, want) {
		t.Errorf("Modules = %v, want %v", idx.Metadata.Modules, want)
	}

	for _, name := range []string{"search-index.json.gz", "search-index.db", "sitemaps/sitemap-index.xml"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(name))); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	mirror, err := storage.LoadSQLite(context.Background(), filepath.Join(out, "search-index.db"))
	if err != nil {
		t.Fatalf("LoadSQLite: %v", err)
	}
	if !reflect.DeepEqual(mirror.Documents, idx.Documents) {
		t.Error("SQLite mirror differs from the JSON artifact")
	}
}

func TestBuild_FailsOnFileOutsideModule(t *testing.T) {
	t.Setenv("TEXTBOOK_SEARCH_CONFIG", filepath.Join(t.TempDir(), "absent.json"))
	docs := writeTree(t, map[string]string{"stray.md": "# Stray"})
	out := t.TempDir()

	err := runBuild(t, "--content", docs, "--output", out)
	var be *index.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if be.Path != "stray.md" {
		t.Errorf("Path = %q, want stray.md", be.Path)
	}

	if _, err := os.Stat(filepath.Join(out, storage.DefaultIndexName)); !os.IsNotExist(err) {
		t.Errorf("index written despite build failure: %v", err)
	}
}

func TestBuild_ExplicitConfigMustExist(t *testing.T) {
	err := runBuild(t, "--config", filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("expected read config error, got %v", err)
	}
}

func TestBuild_ConfigFileAndOverrides(t *testing.T) {
	docs := writeTree(t, map[string]string{"module-01/a.md": "# A"})
	out := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{"content_dir": "/does/not/exist", "index_file": "book.json"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runBuild(t, "--config", cfgPath, "--content", docs, "--output", out); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := index.LoadFile(filepath.Join(out, "book.json")); err != nil {
		t.Errorf("index not written under the configured name: %v", err)
	}
}
