package storage

import (
	"errors"

	"github.com/serroba/line-docs/internal/document"
)

// Common errors.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
)

// Store defines the interface for durable document persistence. Loads and
// saves are atomic over the whole record: content, locks, edit provenance,
// and version history travel together. Implementations can use in-memory
// storage, databases, or other backends.
type Store interface {
	// CreateDocument persists a new document.
	// Returns ErrDocumentExists if the ID is taken.
	CreateDocument(doc *document.Document) error

	// LoadDocument retrieves the full document record.
	// Returns ErrDocumentNotFound if it does not exist.
	LoadDocument(docID string) (*document.Document, error)

	// SaveDocument persists the full document record, replacing the stored
	// state. Version entries are append-only: entries already stored are
	// never rewritten. Returns ErrDocumentNotFound if it does not exist.
	SaveDocument(doc *document.Document) error

	// DeleteDocument removes the document and all associated state.
	// Returns ErrDocumentNotFound if it does not exist.
	DeleteDocument(docID string) error

	// ListDocuments returns every document the user owns or collaborates on.
	ListDocuments(userID string) ([]*document.Document, error)
}
