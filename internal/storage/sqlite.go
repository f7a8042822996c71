package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/serroba/line-docs/internal/diff"
	"github.com/serroba/line-docs/internal/document"
)

// SQLiteStore is a Store backed by a SQLite database. The whole document
// record is written in a single transaction so loads always observe a
// consistent snapshot.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL,
		share_link TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		last_modified TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS collaborators (
		doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		PRIMARY KEY (doc_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS versions (
		doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		version_number INTEGER NOT NULL,
		content TEXT NOT NULL,
		author TEXT NOT NULL,
		diff TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (doc_id, version_number)
	);

	CREATE TABLE IF NOT EXISTS locked_lines (
		doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		line_number INTEGER NOT NULL,
		locked_by TEXT NOT NULL,
		locked_at TIMESTAMP NOT NULL,
		PRIMARY KEY (doc_id, line_number)
	);

	CREATE TABLE IF NOT EXISTS line_edits (
		doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		line_number INTEGER NOT NULL,
		edited_by TEXT NOT NULL,
		edited_at TIMESTAMP NOT NULL,
		PRIMARY KEY (doc_id, line_number)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return nil
}

// CreateDocument persists a new document.
func (s *SQLiteStore) CreateDocument(doc *document.Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO documents (id, title, content, owner, share_link, version, created_at, last_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, doc.Owner, doc.ShareLink, doc.Version, doc.CreatedAt, doc.LastModified,
	)
	if err != nil {
		if exists, checkErr := s.documentExists(doc.ID); checkErr == nil && exists {
			return ErrDocumentExists
		}

		return fmt.Errorf("insert document: %w", err)
	}

	if err := writeChildren(tx, doc); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadDocument retrieves the full document record.
func (s *SQLiteStore) LoadDocument(docID string) (*document.Document, error) {
	doc := &document.Document{ID: docID}

	err := s.db.QueryRow(
		`SELECT title, content, owner, share_link, version, created_at, last_modified
		 FROM documents WHERE id = ?`, docID,
	).Scan(&doc.Title, &doc.Content, &doc.Owner, &doc.ShareLink, &doc.Version, &doc.CreatedAt, &doc.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	if err := s.loadChildren(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// SaveDocument persists the full document record. Stored version entries
// are never rewritten; only new entries are appended.
func (s *SQLiteStore) SaveDocument(doc *document.Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`UPDATE documents SET title = ?, content = ?, owner = ?, share_link = ?, version = ?, last_modified = ?
		 WHERE id = ?`,
		doc.Title, doc.Content, doc.Owner, doc.ShareLink, doc.Version, time.Now(), doc.ID,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDocumentNotFound
	}

	for _, table := range []string{"collaborators", "locked_lines", "line_edits"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE doc_id = ?", doc.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := writeChildren(tx, doc); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteDocument removes the document and all associated state.
func (s *SQLiteStore) DeleteDocument(docID string) error {
	res, err := s.db.Exec("DELETE FROM documents WHERE id = ?", docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// ListDocuments returns every document the user owns or collaborates on.
func (s *SQLiteStore) ListDocuments(userID string) ([]*document.Document, error) {
	rows, err := s.db.Query(
		`SELECT id FROM documents WHERE owner = ?
		 UNION
		 SELECT doc_id FROM collaborators WHERE user_id = ?`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	result := make([]*document.Document, 0, len(ids))

	for _, id := range ids {
		doc, err := s.LoadDocument(id)
		if err != nil {
			return nil, err
		}

		result = append(result, doc)
	}

	return result, nil
}

func (s *SQLiteStore) documentExists(docID string) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM documents WHERE id = ?", docID).Scan(&n); err != nil {
		return false, err
	}

	return n > 0, nil
}

func writeChildren(tx *sql.Tx, doc *document.Document) error {
	for _, userID := range doc.Collaborators {
		if _, err := tx.Exec(
			"INSERT INTO collaborators (doc_id, user_id) VALUES (?, ?)", doc.ID, userID,
		); err != nil {
			return fmt.Errorf("insert collaborator: %w", err)
		}
	}

	for _, lock := range doc.LockedLines {
		if _, err := tx.Exec(
			"INSERT INTO locked_lines (doc_id, line_number, locked_by, locked_at) VALUES (?, ?, ?, ?)",
			doc.ID, lock.LineNumber, lock.LockedBy, lock.LockedAt,
		); err != nil {
			return fmt.Errorf("insert lock: %w", err)
		}
	}

	for _, edit := range doc.LineEdits {
		if _, err := tx.Exec(
			"INSERT INTO line_edits (doc_id, line_number, edited_by, edited_at) VALUES (?, ?, ?, ?)",
			doc.ID, edit.LineNumber, edit.EditedBy, edit.EditedAt,
		); err != nil {
			return fmt.Errorf("insert line edit: %w", err)
		}
	}

	for _, v := range doc.Versions {
		diffJSON := ""

		if len(v.Diff) > 0 {
			data, err := json.Marshal(v.Diff)
			if err != nil {
				return fmt.Errorf("marshal diff: %w", err)
			}

			diffJSON = string(data)
		}

		// INSERT OR IGNORE keeps stored entries immutable: an already
		// persisted version number is never rewritten.
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO versions (doc_id, version_number, content, author, diff, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, v.VersionNumber, v.Content, v.Author, diffJSON, v.Description, v.Timestamp,
		); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) loadChildren(doc *document.Document) error {
	rows, err := s.db.Query("SELECT user_id FROM collaborators WHERE doc_id = ?", doc.ID)
	if err != nil {
		return fmt.Errorf("load collaborators: %w", err)
	}

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			rows.Close()

			return fmt.Errorf("scan collaborator: %w", err)
		}

		doc.Collaborators = append(doc.Collaborators, userID)
	}

	rows.Close()

	rows, err = s.db.Query(
		"SELECT line_number, locked_by, locked_at FROM locked_lines WHERE doc_id = ? ORDER BY line_number", doc.ID,
	)
	if err != nil {
		return fmt.Errorf("load locks: %w", err)
	}

	for rows.Next() {
		var lock document.LineLock
		if err := rows.Scan(&lock.LineNumber, &lock.LockedBy, &lock.LockedAt); err != nil {
			rows.Close()

			return fmt.Errorf("scan lock: %w", err)
		}

		doc.LockedLines = append(doc.LockedLines, lock)
	}

	rows.Close()

	rows, err = s.db.Query(
		"SELECT line_number, edited_by, edited_at FROM line_edits WHERE doc_id = ? ORDER BY line_number", doc.ID,
	)
	if err != nil {
		return fmt.Errorf("load line edits: %w", err)
	}

	for rows.Next() {
		var edit document.LineEdit
		if err := rows.Scan(&edit.LineNumber, &edit.EditedBy, &edit.EditedAt); err != nil {
			rows.Close()

			return fmt.Errorf("scan line edit: %w", err)
		}

		doc.LineEdits = append(doc.LineEdits, edit)
	}

	rows.Close()

	rows, err = s.db.Query(
		`SELECT version_number, content, author, diff, description, created_at
		 FROM versions WHERE doc_id = ? ORDER BY version_number`, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("load versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v        document.Version
			diffJSON string
		)

		if err := rows.Scan(&v.VersionNumber, &v.Content, &v.Author, &diffJSON, &v.Description, &v.Timestamp); err != nil {
			return fmt.Errorf("scan version: %w", err)
		}

		if diffJSON != "" {
			var ops []diff.Op
			if err := json.Unmarshal([]byte(diffJSON), &ops); err != nil {
				return fmt.Errorf("unmarshal diff: %w", err)
			}

			v.Diff = ops
		}

		doc.Versions = append(doc.Versions, v)
	}

	return rows.Err()
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
