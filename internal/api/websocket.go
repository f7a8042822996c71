package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/serroba/line-docs/internal/access"
	"github.com/serroba/line-docs/internal/auth"
	"github.com/serroba/line-docs/internal/document"
	"github.com/serroba/line-docs/internal/storage"
	"github.com/serroba/line-docs/internal/ws"
)

// handleWebSocket handles GET /ws. A missing or invalid token downgrades
// the connection to an anonymous session instead of refusing it: anonymous
// clients can watch and relay edits but never acquire locks, provenance,
// or versions.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := auth.Anonymous
	authenticated := false

	if token := bearerToken(r); token != "" {
		id, err := s.verifier.Verify(token)
		if err != nil {
			s.logger.Warn("websocket token rejected, continuing anonymously", "error", err)
		} else {
			identity = id
			authenticated = true
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "error", err)

		return
	}

	client := ws.NewClient(uuid.New().String(), identity.UserID, identity.UserName, authenticated, conn)
	s.hub.Register(client)

	s.logger.Info("client connected", "clientId", client.ID, "userId", client.UserID, "authenticated", authenticated)

	defer func() {
		if s.autoLocker != nil {
			s.autoLocker.Cancel(client)
		}
		s.manager.HandleDisconnect(client)
		_ = client.Close()
		s.logger.Info("client disconnected", "clientId", client.ID)
	}()

	s.readLoop(client)
}

// readLoop processes incoming messages until the connection drops. A
// malformed message earns the client an error event, not a disconnect.
func (s *Server) readLoop(client *ws.Client) {
	for {
		msg, err := client.Receive()
		if err != nil {
			if errors.Is(err, ws.ErrInvalidPayload) {
				_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())

				continue
			}

			return
		}

		s.dispatch(client, msg)
	}
}

func (s *Server) dispatch(client *ws.Client, msg ws.Message) {
	switch p := msg.Payload.(type) {
	case *ws.JoinDocumentPayload:
		client.JoinDoc(p.DocID)
		s.manager.Session(p.DocID).Join(client)
	case *ws.LeaveDocumentPayload:
		client.LeaveDoc(p.DocID)
		s.manager.Session(p.DocID).Leave(client)
	case *ws.DocumentChangePayload:
		s.handleDocumentChange(client, p)
	case *ws.LineLockPayload:
		if msg.Type == ws.MessageTypeAutoLockLine {
			s.manager.Session(p.DocID).AutoLock(client, p.LineNumber)
		} else {
			s.manager.Session(p.DocID).AutoUnlock(client, p.LineNumber)
		}
	case *ws.CursorPositionPayload:
		s.manager.Session(p.DocID).Cursor(client, p)
	case *ws.CreateVersionPayload:
		s.handleCreateVersionEvent(client, p)
	case *ws.RestoreVersionPayload:
		s.handleRestoreVersionEvent(client, p)
	}
}

// handleDocumentChange relays the edit and feeds the touched lines into
// the auto-lock debouncer: a burst of keystrokes settles into one lock
// attempt per distinct line.
func (s *Server) handleDocumentChange(client *ws.Client, p *ws.DocumentChangePayload) {
	s.manager.Session(p.DocID).Change(client, p)

	if !client.Authenticated || s.autoLocker == nil {
		return
	}

	for _, line := range p.ChangedLines {
		s.autoLocker.Touch(client, p.DocID, line)
	}
}

// handleCreateVersionEvent runs version creation for a socket client and
// announces the result to the room. Failures go only to the requester.
func (s *Server) handleCreateVersionEvent(client *ws.Client, p *ws.CreateVersionPayload) {
	if !client.Authenticated {
		s.sendVersionError(client, "Authentication required to create versions")

		return
	}

	v, summary, err := s.manager.Session(p.DocID).CreateVersion(client.UserID, p.Content, p.PreviousContent, p.Description)
	if err != nil {
		s.sendVersionError(client, versionErrorMessage(err, "Error creating version"))

		return
	}

	s.hub.Broadcast(p.DocID, ws.Message{
		Type: ws.MessageTypeVersionCreated,
		Payload: ws.VersionCreatedPayload{
			DocID:       p.DocID,
			Version:     v.VersionNumber,
			VersionData: v,
			Summary:     summary,
			CreatedBy:   ws.UserRef{UserID: client.UserID, UserName: client.UserName},
		},
	}, "")
}

// handleRestoreVersionEvent rolls the live buffer back to a snapshot and
// announces the restored content to the room.
func (s *Server) handleRestoreVersionEvent(client *ws.Client, p *ws.RestoreVersionPayload) {
	if !client.Authenticated {
		s.sendVersionError(client, "Authentication required to restore versions")

		return
	}

	content, err := s.manager.Session(p.DocID).RestoreVersion(client.UserID, p.VersionNumber)
	if err != nil {
		s.sendVersionError(client, versionErrorMessage(err, "Error restoring version"))

		return
	}

	s.hub.Broadcast(p.DocID, ws.Message{
		Type: ws.MessageTypeVersionRestored,
		Payload: ws.VersionRestoredPayload{
			DocID:           p.DocID,
			Content:         content,
			RestoredVersion: p.VersionNumber,
			RestoredBy:      ws.UserRef{UserID: client.UserID, UserName: client.UserName},
		},
	}, "")
}

func (s *Server) sendVersionError(client *ws.Client, message string) {
	_ = client.Send(ws.Message{
		Type:    ws.MessageTypeVersionError,
		Payload: ws.VersionErrorPayload{Message: message},
	})
}

func versionErrorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
		return "Document not found"
	case errors.Is(err, access.ErrAccessDenied):
		return "Access denied: You are not a collaborator on this document"
	case errors.Is(err, document.ErrVersionNotFound):
		return "Version not found"
	default:
		return fallback
	}
}
