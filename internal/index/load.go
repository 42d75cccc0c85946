package index

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingDocuments is wrapped by a LoadError when the artifact has no
// documents array.
var ErrMissingDocuments = errors.New("missing documents array")

// LoadError reports an artifact that could not be turned into an index.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load index %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Decode reads a JSON artifact. Unknown fields are ignored. A missing or
// non-array documents field is an error; unreadable metadata is recomputed
// from the documents instead.
func Decode(r io.Reader) (*SearchIndex, error) {
	var raw struct {
		Documents *[]Document    `json:"documents"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if raw.Documents == nil {
		return nil, ErrMissingDocuments
	}

	idx := &SearchIndex{Documents: *raw.Documents}
	if len(raw.Metadata) > 0 {
		if err := json.Unmarshal(raw.Metadata, &idx.Metadata); err != nil {
			idx.Metadata = Metadata{}
		}
	}
	idx.Repaired = idx.Repair()
	return idx, nil
}

// DecodeBytes is Decode over an in-memory artifact.
func DecodeBytes(data []byte) (*SearchIndex, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes idx as indented JSON.
func Encode(w io.Writer, idx *SearchIndex) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(idx)
}

// LoadFile reads an artifact from disk. Paths ending in ".gz" are
// decompressed. Every failure is returned as a *LoadError.
func LoadFile(path string) (*SearchIndex, error) {
	reader, cleanup, err := openMaybeGzipped(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer func() { _ = cleanup() }()

	idx, err := Decode(reader)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return idx, nil
}

// openMaybeGzipped opens a file and wraps it in a gzip reader when the
// path ends with ".gz". The returned cleanup function closes all
// underlying readers and must always be called.
func openMaybeGzipped(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}

	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		cleanup := func() error { return file.Close() }
		return file, cleanup, nil
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("read gzip: %w", err)
	}
	cleanup := func() error {
		_ = gz.Close()
		return file.Close()
	}
	return gz, cleanup, nil
}
