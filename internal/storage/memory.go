package storage

import (
	"sync"
	"time"

	"github.com/serroba/line-docs/internal/document"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Useful for testing and development. Documents are deep-copied on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*document.Document
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*document.Document),
	}
}

// CreateDocument persists a new document.
func (m *MemoryStore) CreateDocument(doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[doc.ID]; exists {
		return ErrDocumentExists
	}

	m.docs[doc.ID] = doc.Clone()

	return nil
}

// LoadDocument retrieves the full document record.
func (m *MemoryStore) LoadDocument(docID string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[docID]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	return doc.Clone(), nil
}

// SaveDocument persists the full document record.
func (m *MemoryStore) SaveDocument(doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[doc.ID]; !exists {
		return ErrDocumentNotFound
	}

	stored := doc.Clone()
	stored.LastModified = time.Now()
	m.docs[doc.ID] = stored

	return nil
}

// DeleteDocument removes the document and all associated state.
func (m *MemoryStore) DeleteDocument(docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[docID]; !exists {
		return ErrDocumentNotFound
	}

	delete(m.docs, docID)

	return nil
}

// ListDocuments returns every document the user owns or collaborates on.
func (m *MemoryStore) ListDocuments(userID string) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*document.Document

	for _, doc := range m.docs {
		if doc.HasAccess(userID) {
			result = append(result, doc.Clone())
		}
	}

	return result, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
