package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteEngine is an Engine backed by SQLite FTS5. Several processes may
// share one database through WAL mode.
type SQLiteEngine struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var (
	_ Engine  = (*SQLiteEngine)(nil)
	_ Batcher = (*SQLiteEngine)(nil)
)

// validateSQLiteIntegrity runs PRAGMA integrity_check on an existing database
// and confirms the FTS table is present.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='fts_documents'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_documents' missing")
	}
	return nil
}

// NewSQLiteEngine opens or creates a database at path. An empty path
// creates an in-memory database.
func NewSQLiteEngine(path string) (*SQLiteEngine, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("sqlite_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, run a full reindex"))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN parameters; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	e := &SQLiteEngine{db: db, path: path}
	if err := e.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return e, nil
}

func (s *SQLiteEngine) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		doc_type TEXT NOT NULL,
		doc_id   TEXT NOT NULL,
		source   TEXT NOT NULL,
		PRIMARY KEY (doc_type, doc_id)
	);

	-- exact-match filter values
	CREATE TABLE IF NOT EXISTS document_fields (
		doc_type TEXT NOT NULL,
		doc_id   TEXT NOT NULL,
		name     TEXT NOT NULL,
		value    TEXT NOT NULL,
		PRIMARY KEY (doc_type, doc_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_document_fields_value
		ON document_fields (name, value);

	CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
		doc_type UNINDEXED,
		doc_id UNINDEXED,
		text,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Index implements Engine.
func (s *SQLiteEngine) Index(ctx context.Context, docType string, docs ...Document) error {
	return s.Apply(ctx, docType, docs, nil)
}

// Remove implements Engine.
func (s *SQLiteEngine) Remove(ctx context.Context, docType string, ids ...string) error {
	return s.Apply(ctx, docType, nil, ids)
}

// Apply writes upserts and removals in one transaction.
func (s *SQLiteEngine) Apply(ctx context.Context, docType string, upserts []Document, removals []string) error {
	if len(upserts) == 0 && len(removals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 tables do not support REPLACE, so every upsert deletes first.
	deletes := []string{
		`DELETE FROM documents WHERE doc_type = ? AND doc_id = ?`,
		`DELETE FROM document_fields WHERE doc_type = ? AND doc_id = ?`,
		`DELETE FROM fts_documents WHERE doc_type = ? AND doc_id = ?`,
	}
	deleteStmts := make([]*sql.Stmt, len(deletes))
	for i, q := range deletes {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return fmt.Errorf("failed to prepare delete statement: %w", err)
		}
		defer stmt.Close()
		deleteStmts[i] = stmt
	}
	deleteDoc := func(id string) error {
		for _, stmt := range deleteStmts {
			if _, err := stmt.ExecContext(ctx, docType, id); err != nil {
				return fmt.Errorf("failed to delete document %s: %w", id, err)
			}
		}
		return nil
	}

	if len(upserts) > 0 {
		docStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO documents(doc_type, doc_id, source) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare document statement: %w", err)
		}
		defer docStmt.Close()

		fieldStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO document_fields(doc_type, doc_id, name, value) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare field statement: %w", err)
		}
		defer fieldStmt.Close()

		ftsStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO fts_documents(doc_type, doc_id, text) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare FTS statement: %w", err)
		}
		defer ftsStmt.Close()

		for _, d := range upserts {
			if err := deleteDoc(d.ID); err != nil {
				return err
			}
			if _, err := docStmt.ExecContext(ctx, docType, d.ID, string(d.Source)); err != nil {
				return fmt.Errorf("failed to index document %s: %w", d.ID, err)
			}
			for name, value := range d.Fields {
				if _, err := fieldStmt.ExecContext(ctx, docType, d.ID, name, value); err != nil {
					return fmt.Errorf("failed to index field %s of %s: %w", name, d.ID, err)
				}
			}
			if _, err := ftsStmt.ExecContext(ctx, docType, d.ID, d.Text); err != nil {
				return fmt.Errorf("failed to index text of %s: %w", d.ID, err)
			}
		}
	}

	for _, id := range removals {
		if err := deleteDoc(id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Search implements Engine.
func (s *SQLiteEngine) Search(ctx context.Context, q Query) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	match := ftsMatchExpr(q.Text)
	if strings.TrimSpace(q.Text) != "" && match == "" {
		return &Response{Results: []Result{}}, nil
	}

	var (
		from  string
		score string
		order string
		where []string
		args  []any
	)
	if match != "" {
		from = `fts_documents f JOIN documents d ON d.doc_type = f.doc_type AND d.doc_id = f.doc_id`
		score = `-bm25(fts_documents)`
		order = `score DESC, d.doc_id`
		where = append(where, `fts_documents MATCH ?`)
		args = append(args, match)
	} else {
		from = `documents d`
		score = `0.0`
		order = `d.doc_id`
	}
	if q.DocType != "" {
		where = append(where, `d.doc_type = ?`)
		args = append(args, q.DocType)
	}
	for name, value := range q.Fields {
		where = append(where, `EXISTS (SELECT 1 FROM document_fields x
			WHERE x.doc_type = d.doc_type AND x.doc_id = d.doc_id AND x.name = ? AND x.value = ?)`)
		args = append(args, name, value)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+from+cond, args...).Scan(&total); err != nil {
		// FTS5 rejects some match strings; treat them as matching nothing.
		if strings.Contains(err.Error(), "fts5:") {
			return &Response{Results: []Result{}}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	pageArgs := append(append([]any(nil), args...), q.size(), q.From)
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.doc_id, d.source, `+score+` AS score FROM `+from+cond+
			` ORDER BY `+order+` LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	resp := &Response{Total: total, Results: []Result{}}
	for rows.Next() {
		var (
			r      Result
			source string
		)
		if err := rows.Scan(&r.ID, &source, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if source != "" {
			r.Data = json.RawMessage(source)
		}
		resp.Results = append(resp.Results, r)
	}
	return resp, rows.Err()
}

// ftsMatchExpr quotes every whitespace separated term so user input cannot
// inject FTS5 syntax. Adjacent quoted strings are ANDed by FTS5.
func ftsMatchExpr(text string) string {
	terms := strings.Fields(text)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.Trim(t, `"`) == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// Count implements Engine.
func (s *SQLiteEngine) Count(ctx context.Context, docType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("index is closed")
	}

	var count int
	var err error
	if docType == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE doc_type = ?`, docType).Scan(&count)
	}
	return count, err
}

// Close checkpoints the WAL and closes the database. It is idempotent.
func (s *SQLiteEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
