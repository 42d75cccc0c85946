package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
)

// DefaultIndexName is the artifact file name the site loads at runtime.
const DefaultIndexName = "search-index.json"

// Sink receives a finished index. Every sink is written once per build.
type Sink interface {
	WriteIndex(ctx context.Context, idx *index.SearchIndex) error
	Close() error
}

// FSStorage writes the JSON artifact and a precompressed copy under Root.
type FSStorage struct {
	Root string
	Name string
}

func NewFSStorage(root, name string) *FSStorage {
	if name == "" {
		name = DefaultIndexName
	}
	return &FSStorage{Root: root, Name: name}
}

// Path is the location of the JSON artifact.
func (s *FSStorage) Path() string {
	return filepath.Join(s.Root, s.Name)
}

// WriteIndex replaces the artifact atomically. The .gz copy is written
// first so a reader reacting to the JSON file always finds a matching
// compressed copy.
func (s *FSStorage) WriteIndex(ctx context.Context, idx *index.SearchIndex) error {
	var plain bytes.Buffer
	if err := index.Encode(&plain, idx); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	var zipped bytes.Buffer
	gz, err := gzip.NewWriterLevel(&zipped, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	if _, err := gz.Write(plain.Bytes()); err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("gzip: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.writeFile(s.Name+".gz", zipped.Bytes()); err != nil {
		return err
	}
	return s.writeFile(s.Name, plain.Bytes())
}

func (s *FSStorage) Close() error { return nil }

func (s *FSStorage) writeFile(destPath string, content []byte) error {
	fullPath := filepath.Join(s.Root, filepath.FromSlash(destPath))
	return s.writeFileAbsolute(fullPath, content)
}

// writeFileAbsolute renames a fully written temp file over fullPath, so a
// symlink left at the destination is replaced rather than followed.
func (s *FSStorage) writeFileAbsolute(fullPath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := renameio.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
