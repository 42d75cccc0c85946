package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/search"
	"github.com/physical-ai-textbook/textbook-search/internal/storage"
)

func writeIndex(t *testing.T) string {
	t.Helper()
	b := &index.Builder{
		Now:        func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
		NewBuildID: func() string { return "build-cli" },
	}
	idx, err := b.Build([]index.Unit{
		{
			Path: "module-01/index.md", ID: "module-01-intro", Title: "Robotics Foundations",
			Description: "Introduction to robotics and sensors", Type: index.TypeModule,
			Module: "module-01", URL: "/docs/module-01",
		},
		{
			Path: "module-02/ik.md", ID: "module-02-ik", Title: "Inverse Kinematics",
			Type: index.TypeChapter, Module: "module-02", URL: "/docs/module-02/ik",
			Body: "Solving joint angles for a target pose.",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := storage.NewFSStorage(dir, "").WriteIndex(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, storage.DefaultIndexName)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TEXTBOOK_SEARCH_CONFIG", filepath.Join(t.TempDir(), "absent.json"))
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return out
}

func TestQuery_Text(t *testing.T) {
	out := mustRun(t, "query", "inverse", "kinematics", "--index", writeIndex(t))
	for _, want := range []string{"1. Inverse Kinematics [chapter, module-02]", "/docs/module-02/ik"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestQuery_JSON(t *testing.T) {
	out := mustRun(t, "query", "robotics", "--index", writeIndex(t), "--json", "--type", "module")

	var results []search.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(results) != 1 || results[0].ID != "module-01-intro" {
		t.Errorf("results = %+v", results)
	}
}

func TestQuery_NoResults(t *testing.T) {
	if out := mustRun(t, "query", "xyzxyz", "--index", writeIndex(t), "--fuzzy", "0.9"); out != "No results.\n" {
		t.Errorf("output = %q", out)
	}
}

func TestQuery_InvalidOptions(t *testing.T) {
	_, err := run(t, "query", "robot", "--index", writeIndex(t), "--limit", "-1")
	var qe *search.InvalidQueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected InvalidQueryError, got %v", err)
	}
	if qe.Field != "limit" {
		t.Errorf("Field = %q, want limit", qe.Field)
	}
}

func TestQuery_LimitZero(t *testing.T) {
	if out := mustRun(t, "query", "kinematics", "--index", writeIndex(t), "--limit", "0"); out != "No results.\n" {
		t.Errorf("output = %q", out)
	}
}

func TestQuery_MissingIndex(t *testing.T) {
	_, err := run(t, "query", "robot", "--index", filepath.Join(t.TempDir(), "none.json"))
	var le *index.LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected LoadError, got %v", err)
	}
}

func TestSuggest(t *testing.T) {
	if out := mustRun(t, "suggest", "kinem", "--index", writeIndex(t)); !strings.Contains(out, "kinematics\n") {
		t.Errorf("output = %q", out)
	}
}

func TestInfo(t *testing.T) {
	out := mustRun(t, "info", "--index", writeIndex(t))
	for _, want := range []string{
		"documents:    2",
		"build id:     build-cli",
		"modules:      module-01, module-02",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
