package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
)

// schema drops and recreates all tables. The mirror is rebuilt from
// scratch on each build so there is no need for migrations.
const schema = `
DROP TABLE IF EXISTS documents;
DROP TABLE IF EXISTS metadata;

CREATE TABLE documents (
	position INTEGER NOT NULL,
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	type TEXT NOT NULL,
	module TEXT NOT NULL,
	url TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	keywords TEXT NOT NULL DEFAULT '[]',
	headings TEXT NOT NULL DEFAULT '[]',
	content TEXT NOT NULL DEFAULT '',
	learning_objectives TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX documents_module ON documents(module);

CREATE TABLE metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const batchSize = 500

const (
	metaTotal       = "totalDocuments"
	metaLastUpdated = "lastUpdated"
	metaModules     = "modules"
	metaBuildID     = "buildId"
	metaGenerator   = "generator"
)

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// SQLiteStore mirrors the index into a SQLite database for tools that
// prefer SQL over JSON.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// WriteIndex replaces the contents of the mirror with idx. Documents are
// inserted in batches, keeping their index order in the position column.
func (s *SQLiteStore) WriteIndex(ctx context.Context, idx *index.SearchIndex) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	stmt, err := s.db.PrepareContext(ctx, `INSERT INTO documents
		(position, id, title, type, module, url, description, keywords, headings, content, learning_objectives)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for start := 0; start < len(idx.Documents); start += batchSize {
		end := min(start+batchSize, len(idx.Documents))
		if err := s.insertBatch(ctx, stmt, start, idx.Documents[start:end]); err != nil {
			return err
		}
	}

	return s.writeMetadata(ctx, idx.Metadata)
}

func (s *SQLiteStore) insertBatch(ctx context.Context, stmt *sql.Stmt, offset int, docs []index.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStmt := tx.StmtContext(ctx, stmt)
	for i, doc := range docs {
		_, err := txStmt.ExecContext(ctx, offset+i, doc.ID, doc.Title, string(doc.Type), doc.Module, doc.URL,
			doc.Description, jsonList(doc.Keywords), jsonList(doc.Headings), doc.Content, jsonList(doc.LearningObjectives))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) writeMetadata(ctx context.Context, meta index.Metadata) error {
	values := map[string]string{
		metaTotal:       strconv.Itoa(meta.TotalDocuments),
		metaLastUpdated: meta.LastUpdated.UTC().Format(time.RFC3339Nano),
		metaModules:     jsonList(meta.Modules),
		metaBuildID:     meta.BuildID,
		metaGenerator:   meta.Generator,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, key, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write metadata %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadSQLite reads an index back from a mirror written by SQLiteStore.
// Every failure is returned as a *index.LoadError.
func LoadSQLite(ctx context.Context, path string) (*index.SearchIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &index.LoadError{Source: path, Err: err}
	}
	idx, err := loadSQLite(ctx, path)
	if err != nil {
		return nil, &index.LoadError{Source: path, Err: err}
	}
	return idx, nil
}

func loadSQLite(ctx context.Context, path string) (*index.SearchIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `SELECT id, title, type, module, url, description,
		keywords, headings, content, learning_objectives
		FROM documents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := []index.Document{}
	for rows.Next() {
		var doc index.Document
		var docType, keywords, headings, objectives string
		if err := rows.Scan(&doc.ID, &doc.Title, &docType, &doc.Module, &doc.URL, &doc.Description,
			&keywords, &headings, &doc.Content, &objectives); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Type = index.DocType(docType)
		if doc.Keywords, err = parseList(keywords); err != nil {
			return nil, fmt.Errorf("document %s keywords: %w", doc.ID, err)
		}
		if doc.Headings, err = parseList(headings); err != nil {
			return nil, fmt.Errorf("document %s headings: %w", doc.ID, err)
		}
		if doc.LearningObjectives, err = parseList(objectives); err != nil {
			return nil, fmt.Errorf("document %s learning objectives: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	idx := &index.SearchIndex{Documents: docs}
	meta, err := readMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	idx.Metadata = meta
	idx.Repaired = idx.Repair()
	return idx, nil
}

func readMetadata(ctx context.Context, db *sql.DB) (index.Metadata, error) {
	var meta index.Metadata
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return meta, fmt.Errorf("query metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return meta, fmt.Errorf("scan metadata: %w", err)
		}
		// Bad values are left zero; Repair recomputes what it can.
		switch key {
		case metaTotal:
			meta.TotalDocuments, _ = strconv.Atoi(value)
		case metaLastUpdated:
			meta.LastUpdated, _ = time.Parse(time.RFC3339Nano, value)
		case metaModules:
			meta.Modules, _ = parseList(value)
		case metaBuildID:
			meta.BuildID = value
		case metaGenerator:
			meta.Generator = value
		}
	}
	return meta, rows.Err()
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func parseList(raw string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}
