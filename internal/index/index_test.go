package index

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fixedBuilder() *Builder {
	return &Builder{
		Now:        func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
		NewBuildID: func() string { return "build-1" },
	}
}

func sampleUnits() []Unit {
	return []Unit{
		{
			Path:        "module-01/index.md",
			ID:          "module-01-intro",
			Title:       "Module 1:   Foundations",
			Description: "Introduction to robotics, components,\nand AI fundamentals",
			Type:        TypeModule,
			Module:      "module-01",
			URL:         "/docs/module-01",
			Headings:    []string{"Introduction to Robotics", "  Foundations  "},
			Body:        "Introduction to Robotics\n\nThe   field of robotics...",
		},
		{
			Path:     "module-02/kinematics.md",
			ID:       "kinematics",
			Title:    "Kinematics",
			Type:     TypeSection,
			Module:   "module-02",
			URL:      "/docs/module-02/kinematics",
			Headings: []string{"Forward Kinematics", "Inverse Kinematics"},
			Body:     "Kinematics studies the motion of objects.",
			Keywords: []string{"Motion", "transformation"},
		},
	}
}

func mustBuild(t *testing.T) *SearchIndex {
	t.Helper()
	idx, err := fixedBuilder().Build(sampleUnits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return idx
}

func TestBuild_ComputesMetadata(t *testing.T) {
	idx := mustBuild(t)

	if idx.Metadata.TotalDocuments != len(idx.Documents) {
		t.Errorf("TotalDocuments = %d, want %d", idx.Metadata.TotalDocuments, len(idx.Documents))
	}
	if want := []string{"module-01", "module-02"}; !reflect.DeepEqual(idx.Metadata.Modules, want) {
		t.Errorf("Modules = %v, want %v", idx.Metadata.Modules, want)
	}
	if idx.Metadata.BuildID != "build-1" {
		t.Errorf("BuildID = %q", idx.Metadata.BuildID)
	}
	if idx.Metadata.Generator != Generator {
		t.Errorf("Generator = %q, want %q", idx.Metadata.Generator, Generator)
	}
	if !idx.Consistent() {
		t.Error("built index is not consistent")
	}
}

func TestBuild_NormalizesFields(t *testing.T) {
	idx := mustBuild(t)

	mod := idx.Documents[0]
	if mod.Title != "Module 1: Foundations" {
		t.Errorf("Title = %q", mod.Title)
	}
	if mod.Description != "Introduction to robotics, components, and AI fundamentals" {
		t.Errorf("Description = %q", mod.Description)
	}
	if want := []string{"Introduction to Robotics", "Foundations"}; !reflect.DeepEqual(mod.Headings, want) {
		t.Errorf("Headings = %q, want %q", mod.Headings, want)
	}
	if mod.Content != "introduction to robotics the field of robotics..." {
		t.Errorf("Content = %q", mod.Content)
	}

	// Stop words, single letters and numbers never become keywords.
	want := []string{"module", "foundations", "introduction", "robotics", "components", "ai", "fundamentals"}
	if !reflect.DeepEqual(mod.Keywords, want) {
		t.Errorf("module keywords = %v, want %v", mod.Keywords, want)
	}

	kin := idx.Documents[1]
	if want := []string{"kinematics", "forward", "inverse", "motion", "transformation"}; !reflect.DeepEqual(kin.Keywords, want) {
		t.Errorf("kinematics keywords = %v, want %v", kin.Keywords, want)
	}
	if kin.Description != "" {
		t.Errorf("expected empty description, got %q", kin.Description)
	}
}

func TestBuild_PreservesInputOrder(t *testing.T) {
	units := sampleUnits()
	units[0], units[1] = units[1], units[0]

	idx, err := fixedBuilder().Build(units)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Documents[0].ID != "kinematics" || idx.Documents[1].ID != "module-01-intro" {
		t.Errorf("order = [%s %s]", idx.Documents[0].ID, idx.Documents[1].ID)
	}
}

func TestBuild_FailsOnInvalidUnit(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *Unit)
		reason string
	}{
		{"missing id", func(u *Unit) { u.ID = " " }, "missing required field id"},
		{"missing url", func(u *Unit) { u.URL = "" }, "missing required field url"},
		{"missing module", func(u *Unit) { u.Module = "" }, "not inside a module"},
		{"bad type", func(u *Unit) { u.Type = "appendix" }, `unknown type "appendix"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := sampleUnits()
			tt.mutate(&units[1])

			idx, err := fixedBuilder().Build(units)
			if err == nil {
				t.Fatal("expected error")
			}
			if idx != nil {
				t.Error("expected nil index on failure")
			}

			var be *BuildError
			if !errors.As(err, &be) {
				t.Fatalf("expected BuildError, got %T", err)
			}
			if be.Path != "module-02/kinematics.md" {
				t.Errorf("Path = %q", be.Path)
			}
			if be.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", be.Reason, tt.reason)
			}
			if !strings.Contains(err.Error(), "module-02/kinematics.md") {
				t.Errorf("error %q does not name the unit", err)
			}
		})
	}
}

func TestBuild_RejectsDuplicateIDs(t *testing.T) {
	units := sampleUnits()
	units[1].ID = units[0].ID

	_, err := fixedBuilder().Build(units)
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if be.ID != "module-01-intro" {
		t.Errorf("ID = %q", be.ID)
	}
	if !strings.Contains(be.Reason, "module-01/index.md") {
		t.Errorf("Reason %q does not name the first unit", be.Reason)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	idx, err := fixedBuilder().Build(nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(idx.Documents) != 0 || idx.Metadata.TotalDocuments != 0 || len(idx.Metadata.Modules) != 0 {
		t.Errorf("expected empty index, got %+v", idx.Metadata)
	}
}

func TestParseDocType(t *testing.T) {
	got, err := ParseDocType(" Chapter ")
	if err != nil {
		t.Fatalf("ParseDocType failed: %v", err)
	}
	if got != TypeChapter {
		t.Errorf("got %q, want %q", got, TypeChapter)
	}

	if _, err := ParseDocType("appendix"); err == nil {
		t.Error("expected error for unknown type")
	}

	order := []DocType{TypeModule, TypeChapter, TypeSection, TypeExercise, TypeResource, DocType("other")}
	for i := 1; i < len(order); i++ {
		if order[i-1].Priority() >= order[i].Priority() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
}

func TestTokenize_Offsets(t *testing.T) {
	text := "Forward-Kinematics, 2 DOF"
	tokens := Tokenize(text)
	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d: %v", len(tokens), tokens)
	}
	if want := (Token{Text: "forward", Start: 0, End: 7}); tokens[0] != want {
		t.Errorf("tokens[0] = %+v, want %+v", tokens[0], want)
	}
	if tokens[1].Text != "kinematics" || text[tokens[1].Start:tokens[1].End] != "Kinematics" {
		t.Errorf("tokens[1] = %+v", tokens[1])
	}
	if tokens[2].Text != "2" || tokens[3].Text != "dof" {
		t.Errorf("tail tokens = %+v", tokens[2:])
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	idx := mustBuild(t)

	var buf bytes.Buffer
	if err := Encode(&buf, idx); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, idx) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, idx)
	}
}

func TestDecode_ToleratesUnknownFields(t *testing.T) {
	artifact := `{
		"documents": [{"id": "a", "title": "A", "type": "chapter", "module": "m1", "url": "/a", "extra": 1, "matches": {}, "highlights": []}],
		"metadata": {"totalDocuments": 1, "lastUpdated": "2024-01-01T00:00:00.000Z", "modules": ["m1"], "future": true},
		"version": 2
	}`
	idx, err := DecodeBytes([]byte(artifact))
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if len(idx.Documents) != 1 || idx.Documents[0].Title != "A" {
		t.Fatalf("unexpected documents: %+v", idx.Documents)
	}
	if idx.Metadata.LastUpdated.Year() != 2024 {
		t.Errorf("LastUpdated = %v", idx.Metadata.LastUpdated)
	}
}

func TestDecode_RepairsMetadata(t *testing.T) {
	artifact := `{"documents": [{"id": "a", "module": "m2"}, {"id": "b", "module": "m1"}], "metadata": {"totalDocuments": 7, "lastUpdated": "not a time"}}`
	idx, err := DecodeBytes([]byte(artifact))
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if idx.Metadata.TotalDocuments != 2 {
		t.Errorf("TotalDocuments = %d, want 2", idx.Metadata.TotalDocuments)
	}
	if want := []string{"m1", "m2"}; !reflect.DeepEqual(idx.Metadata.Modules, want) {
		t.Errorf("Modules = %v, want %v", idx.Metadata.Modules, want)
	}
	if !idx.Repaired {
		t.Error("expected Repaired to be set")
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		missing  bool
	}{
		{"documents absent", `{"metadata": {"totalDocuments": 0}}`, true},
		{"documents null", `{"documents": null}`, true},
		{"documents not array", `{"documents": {"id": "a"}}`, false},
		{"garbage", `<html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.artifact))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrMissingDocuments); got != tt.missing {
				t.Errorf("errors.Is(err, ErrMissingDocuments) = %v, want %v (%v)", got, tt.missing, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	idx := mustBuild(t)

	var plain bytes.Buffer
	if err := Encode(&plain, idx); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "search-index.json")
	if err := os.WriteFile(jsonPath, plain.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	var zipped bytes.Buffer
	gz := gzip.NewWriter(&zipped)
	if _, err := gz.Write(plain.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	gzPath := jsonPath + ".gz"
	if err := os.WriteFile(gzPath, zipped.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{jsonPath, gzPath} {
		got, err := LoadFile(path)
		if err != nil {
			t.Errorf("LoadFile(%s) failed: %v", path, err)
			continue
		}
		if len(got.Documents) != 2 {
			t.Errorf("LoadFile(%s): expected 2 documents, got %d", path, len(got.Documents))
		}
	}
}

func TestLoadFile_ReturnsLoadError(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"metadata": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.json"), bad} {
		_, err := LoadFile(path)
		var le *LoadError
		if !errors.As(err, &le) {
			t.Errorf("LoadFile(%s): expected LoadError, got %v", path, err)
			continue
		}
		if le.Source != path {
			t.Errorf("Source = %q, want %q", le.Source, path)
		}
		if !strings.HasPrefix(err.Error(), "load index ") {
			t.Errorf("unexpected message %q", err)
		}
	}
}
