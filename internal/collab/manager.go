package collab

import (
	"log/slog"
	"sync"

	"github.com/serroba/line-docs/internal/storage"
	"github.com/serroba/line-docs/internal/ws"
)

// Manager owns the set of live sessions, one per document with activity.
// Sessions are created lazily and kept for the process lifetime; they hold
// no document state themselves, only the serialization point.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store         storage.Store
	hub           *ws.Hub
	versionPolicy *VersionPolicy
	logger        *slog.Logger
}

// ManagerConfig holds the dependencies shared by all sessions.
type ManagerConfig struct {
	Store         storage.Store
	Hub           *ws.Hub
	VersionPolicy *VersionPolicy
	Logger        *slog.Logger
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		sessions:      make(map[string]*Session),
		store:         cfg.Store,
		hub:           cfg.Hub,
		versionPolicy: cfg.VersionPolicy,
		logger:        logger,
	}
}

// Session returns the session for docID, creating it on first use.
func (m *Manager) Session(docID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[docID]; ok {
		return s
	}

	s := NewSession(SessionConfig{
		DocID:         docID,
		Store:         m.store,
		Hub:           m.hub,
		VersionPolicy: m.versionPolicy,
		Logger:        m.logger,
	})
	m.sessions[docID] = s

	return s
}

// HandleDisconnect runs the disconnect cascade: for every room the client
// was in, release the locks their user held and notify peers, then drop the
// client from the hub.
func (m *Manager) HandleDisconnect(client *ws.Client) {
	for _, docID := range client.ActiveDocuments() {
		m.Session(docID).ReleaseLocks(client)
	}

	m.hub.Unregister(client)
}
