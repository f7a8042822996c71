package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/serroba/line-docs/internal/auth"
	"github.com/serroba/line-docs/internal/collab"
	"github.com/serroba/line-docs/internal/notify"
	"github.com/serroba/line-docs/internal/storage"
	"github.com/serroba/line-docs/internal/ws"
)

// Server handles HTTP and WebSocket requests for the collaboration API.
type Server struct {
	manager    *collab.Manager
	store      storage.Store
	hub        *ws.Hub
	verifier   auth.Verifier
	autoLocker *collab.AutoLocker
	notifier   notify.Sink
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Manager    *collab.Manager
	Store      storage.Store
	Hub        *ws.Hub
	Verifier   auth.Verifier
	AutoLocker *collab.AutoLocker
	Notifier   notify.Sink
	Logger     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}

	return &Server{
		manager:    cfg.Manager,
		store:      cfg.Store,
		hub:        cfg.Hub,
		verifier:   cfg.Verifier,
		autoLocker: cfg.AutoLocker,
		notifier:   notifier,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for demo
			},
		},
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.POST("/documents", s.requireAuth(s.handleCreateDocument))
	router.GET("/documents", s.requireAuth(s.handleListDocuments))
	router.GET("/documents/:id", s.requireAuth(s.handleGetDocument))
	router.PUT("/documents/:id", s.requireAuth(s.handleUpdateDocument))
	router.DELETE("/documents/:id", s.requireAuth(s.handleDeleteDocument))
	router.POST("/documents/:id/collaborators", s.requireAuth(s.handleAddCollaborator))

	router.POST("/documents/:id/lock", s.requireAuth(s.handleLockLine))
	router.POST("/documents/:id/unlock", s.requireAuth(s.handleUnlockLine))
	router.GET("/documents/:id/locked-lines", s.requireAuth(s.handleLockedLines))

	router.GET("/documents/:id/versions", s.requireAuth(s.handleListVersions))
	router.GET("/documents/:id/versions/:number", s.requireAuth(s.handleGetVersion))
	router.POST("/documents/:id/versions", s.requireAuth(s.handleCreateVersion))
	router.POST("/documents/:id/versions/:number/restore", s.requireAuth(s.handleRestoreVersion))

	// WebSocket clients authenticate via token; unauthenticated
	// connections are downgraded to read-mostly anonymous sessions
	// rather than rejected.
	router.HandlerFunc(http.MethodGet, "/ws", s.handleWebSocket)

	return router
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Message: message})
}
