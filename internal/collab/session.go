package collab

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/serroba/line-docs/internal/access"
	"github.com/serroba/line-docs/internal/diff"
	"github.com/serroba/line-docs/internal/document"
	"github.com/serroba/line-docs/internal/storage"
	"github.com/serroba/line-docs/internal/ws"
)

// Session coordinates collaborative editing for a single document. Every
// mutating operation runs under the session mutex, so the document has a
// single logical writer: there is no window between an access or lock check
// and the corresponding save for another event to slip through.
type Session struct {
	docID string

	mu sync.Mutex

	// Dependencies
	store         storage.Store
	hub           *ws.Hub
	versionPolicy *VersionPolicy
	logger        *slog.Logger
}

// SessionConfig holds configuration for creating a session.
type SessionConfig struct {
	DocID         string
	Store         storage.Store
	Hub           *ws.Hub
	VersionPolicy *VersionPolicy
	Logger        *slog.Logger
}

// NewSession creates a collaborative editing session for one document.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		docID:         cfg.DocID,
		store:         cfg.Store,
		hub:           cfg.Hub,
		versionPolicy: cfg.VersionPolicy,
		logger:        logger.With("docId", cfg.DocID),
	}
}

// DocID returns the document ID for this session.
func (s *Session) DocID() string {
	return s.docID
}

// Join subscribes the client to the room, notifies peers, and sends the
// joining client a snapshot of the current lock set and edit provenance.
func (s *Session) Join(client *ws.Client) {
	s.hub.Subscribe(client, s.docID)

	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeUserJoined,
		Payload: ws.PresencePayload{
			UserID:    client.UserID,
			UserName:  client.UserName,
			Timestamp: time.Now(),
		},
	}, client.ID)

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		// The state snapshot is best-effort; the client is in the room
		// either way.
		s.logger.Error("fetch document state on join", "error", err)

		return
	}

	_ = client.Send(ws.Message{
		Type: ws.MessageTypeDocumentState,
		Payload: ws.DocumentStatePayload{
			LockedLines: doc.LockedLines,
			LineEdits:   doc.LineEdits,
		},
	})
}

// Leave unsubscribes the client from the room and notifies peers.
func (s *Session) Leave(client *ws.Client) {
	s.hub.Unsubscribe(client, s.docID)

	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeUserLeft,
		Payload: ws.PresencePayload{
			UserID:    client.UserID,
			UserName:  client.UserName,
			Timestamp: time.Now(),
		},
	}, client.ID)
}

// Change handles a document-change event. The raw update is relayed to room
// peers first, regardless of sender authentication, so the UI stays live
// even for anonymous viewers. Only authenticated senders get provenance
// tracking and persistence. A persistence failure here is logged and
// swallowed: peers already received the optimistic update, and the system
// favors live feedback over strict consistency on this path.
func (s *Session) Change(client *ws.Client, p *ws.DocumentChangePayload) {
	userID := client.UserID
	if !client.Authenticated {
		userID = "anonymous"
	}

	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeDocumentUpdate,
		Payload: ws.DocumentUpdatePayload{
			Content:        p.Content,
			ChangedLines:   p.ChangedLines,
			CursorPosition: p.CursorPosition,
			UserID:         userID,
			UserName:       client.UserName,
		},
	}, client.ID)

	if !client.Authenticated || len(p.ChangedLines) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		s.logger.Error("load document for change", "error", err)

		return
	}

	for _, line := range p.ChangedLines {
		doc.RecordLineEdit(line, client.UserID)
	}

	if p.PreviousContent != "" {
		ops := diff.Diff(p.PreviousContent, p.Content)

		// Live display only; the diff is not persisted.
		s.hub.Broadcast(s.docID, ws.Message{
			Type: ws.MessageTypeContentDiff,
			Payload: ws.ContentDiffPayload{
				Diff:     ops,
				Summary:  diff.Summary(ops),
				UserID:   client.UserID,
				UserName: client.UserName,
			},
		}, client.ID)
	}

	doc.Content = p.Content

	if s.versionPolicy != nil {
		s.versionPolicy.RecordChange(s.docID)

		if s.versionPolicy.ShouldCreate(s.docID) {
			s.autoVersion(doc, client)
		}
	}

	if err := s.store.SaveDocument(doc); err != nil {
		s.logger.Error("save document after change", "error", err)

		return
	}

	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeLineEditsUpdated,
		Payload: ws.LineEditsUpdatedPayload{
			DocID:     s.docID,
			LineEdits: doc.LineEdits,
		},
	}, "")
}

// autoVersion appends a policy-triggered snapshot. Called with the session
// mutex held and the document about to be saved.
func (s *Session) autoVersion(doc *document.Document, client *ws.Client) {
	base := ""
	if len(doc.Versions) > 0 {
		base = doc.Versions[len(doc.Versions)-1].Content
	}

	ops := diff.Diff(base, doc.Content)
	summary := diff.Summary(ops)
	v := doc.AddVersion(doc.Content, client.UserID, ops, "Auto-saved version")

	s.versionPolicy.MarkVersioned(s.docID)

	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeVersionCreated,
		Payload: ws.VersionCreatedPayload{
			DocID:       s.docID,
			Version:     doc.Version,
			VersionData: v,
			Summary:     summary,
			CreatedBy:   ws.UserRef{UserID: client.UserID, UserName: client.UserName},
		},
	}, "")
}

// Update is the synchronous write path. Before anything is broadcast it
// validates every changed line against foreign locks: one conflict rejects
// the entire write with a LineLockedError and nothing is persisted. This is
// the only hard consistency guarantee in the system; unlocked lines remain
// last-write-wins because persistence is whole-buffer overwrite.
func (s *Session) Update(userID, title, content string, changedLines []int) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		return nil, err
	}

	if !doc.HasAccess(userID) {
		return nil, access.ErrAccessDenied
	}

	for _, line := range changedLines {
		if _, locked := doc.LockedByOther(line, userID); locked {
			return nil, document.LineLockedError{Line: line}
		}
	}

	for _, line := range changedLines {
		doc.RecordLineEdit(line, userID)
	}

	if title != "" {
		doc.Title = title
	}

	doc.Content = content
	doc.LastModified = time.Now()

	if err := s.store.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	if s.versionPolicy != nil && len(changedLines) > 0 {
		s.versionPolicy.RecordChange(s.docID)
	}

	return doc, nil
}

// AutoLock handles a debounced lock attempt. Failures never reach peers:
// unauthenticated or unauthorized attempts are dropped silently, and a
// conflict goes to the requester only.
func (s *Session) AutoLock(client *ws.Client, line int) {
	if !client.Authenticated {
		s.logger.Warn("auto-lock attempt without authentication", "clientId", client.ID)

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		s.logger.Warn("auto-lock load failed", "error", err)

		return
	}

	if !doc.HasAccess(client.UserID) {
		s.logger.Warn("auto-lock without access", "userId", client.UserID)

		return
	}

	if holder := doc.LineLocker(line); holder != "" {
		// Already holding the line is a no-op; held by someone else is an
		// error for the requester only, never broadcast.
		if holder != client.UserID {
			_ = client.Send(ws.Message{
				Type: ws.MessageTypeLineLockedError,
				Payload: ws.LineLockedErrorPayload{
					LineNumber: line,
					Message:    "This line is already locked by another user",
				},
			})
		}

		return
	}

	if err := doc.LockLine(line, client.UserID); err != nil {
		return
	}

	if err := s.store.SaveDocument(doc); err != nil {
		s.logger.Error("save auto-lock", "error", err)
		_ = client.Send(ws.Message{
			Type: ws.MessageTypeLineLockedError,
			Payload: ws.LineLockedErrorPayload{
				LineNumber: line,
				Message:    "Server error when locking line",
			},
		})

		return
	}

	lock, _ := doc.LockedByOther(line, "")

	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeLineLocked,
		Payload: ws.LineLockedPayload{
			DocID: s.docID,
			Lock:  lock,
		},
	}, "")
}

// AutoUnlock releases a line held by the requester. Lines held by others
// are left alone without an error event.
func (s *Session) AutoUnlock(client *ws.Client, line int) {
	if !client.Authenticated {
		s.logger.Warn("auto-unlock attempt without authentication", "clientId", client.ID)

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		s.logger.Warn("auto-unlock load failed", "error", err)

		return
	}

	if !doc.HasAccess(client.UserID) {
		s.logger.Warn("auto-unlock without access", "userId", client.UserID)

		return
	}

	if doc.LineLocker(line) != client.UserID {
		return
	}

	if err := doc.UnlockLine(line, client.UserID); err != nil {
		return
	}

	if err := s.store.SaveDocument(doc); err != nil {
		s.logger.Error("save auto-unlock", "error", err)

		return
	}

	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeLineUnlocked,
		Payload: ws.LineUnlockedPayload{
			DocID:      s.docID,
			LineNumber: line,
		},
	}, "")
}

// Lock is the manual lock path. Unlike auto-lock, denial is explicit: the
// caller gets ErrAccessDenied or ErrLineAlreadyLocked. Re-locking a line
// already held by the requester is rejected too, not treated as idempotent.
func (s *Session) Lock(userID string, line int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		return err
	}

	if !doc.HasAccess(userID) {
		return access.ErrAccessDenied
	}

	if err := doc.LockLine(line, userID); err != nil {
		return err
	}

	if err := s.store.SaveDocument(doc); err != nil {
		return fmt.Errorf("save lock: %w", err)
	}

	return nil
}

// Unlock is the manual unlock path: the holder or the document owner may
// release the line.
func (s *Session) Unlock(userID string, line int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		return err
	}

	if !doc.HasAccess(userID) {
		return access.ErrAccessDenied
	}

	if err := doc.UnlockLine(line, userID); err != nil {
		return err
	}

	if err := s.store.SaveDocument(doc); err != nil {
		return fmt.Errorf("save unlock: %w", err)
	}

	return nil
}

// LockedLines returns the current lock set.
func (s *Session) LockedLines(userID string) ([]document.LineLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		return nil, err
	}

	if !doc.HasAccess(userID) {
		return nil, access.ErrAccessDenied
	}

	return doc.LockedLines, nil
}

// CreateVersion appends an immutable snapshot. If the save fails, the
// write is retried once against a freshly loaded record before the error
// surfaces; the caller decides how to report it.
func (s *Session) CreateVersion(userID, content, previousContent, description string) (document.Version, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		return document.Version{}, "", err
	}

	if !doc.HasAccess(userID) {
		return document.Version{}, "", access.ErrAccessDenied
	}

	base := previousContent
	if base == "" {
		base = doc.Content
	}

	ops := diff.Diff(base, content)
	summary := diff.Summary(ops)

	if description == "" {
		description = summary
	}

	v := doc.AddVersion(content, userID, ops, description)

	if err := s.store.SaveDocument(doc); err != nil {
		s.logger.Warn("version save failed, retrying", "error", err)

		fresh, loadErr := s.store.LoadDocument(s.docID)
		if loadErr != nil {
			return document.Version{}, "", fmt.Errorf("save version: %w", err)
		}

		v = fresh.AddVersion(content, userID, ops, description)

		if retryErr := s.store.SaveDocument(fresh); retryErr != nil {
			return document.Version{}, "", fmt.Errorf("save version: %w", retryErr)
		}
	}

	if s.versionPolicy != nil {
		s.versionPolicy.MarkVersioned(s.docID)
	}

	return v, summary, nil
}

// RestoreVersion overwrites the live buffer with the stored snapshot and
// returns the restored content. No version entry is appended for the
// restore itself; that is policy, the restored content simply becomes the
// live buffer going forward.
func (s *Session) RestoreVersion(userID string, versionNumber int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		return "", err
	}

	if !doc.HasAccess(userID) {
		return "", access.ErrAccessDenied
	}

	if err := doc.RestoreVersion(versionNumber); err != nil {
		return "", err
	}

	if err := s.store.SaveDocument(doc); err != nil {
		return "", fmt.Errorf("save restored version: %w", err)
	}

	return doc.Content, nil
}

// Versions returns the document's version history.
func (s *Session) Versions(userID string) ([]document.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		return nil, err
	}

	if !doc.HasAccess(userID) {
		return nil, access.ErrAccessDenied
	}

	return doc.Versions, nil
}

// ReleaseLocks force-releases every lock held by the client's user,
// bypassing the holder check, and notifies the room with reason
// "user_disconnected". Locks held by other sessions are untouched.
func (s *Session) ReleaseLocks(client *ws.Client) {
	if client.UserID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadDocument(s.docID)
	if err != nil {
		if !errors.Is(err, storage.ErrDocumentNotFound) {
			s.logger.Error("load document for lock cleanup", "error", err)
		}

		return
	}

	released := doc.ReleaseLocksHeldBy(client.UserID)
	if len(released) == 0 {
		return
	}

	if err := s.store.SaveDocument(doc); err != nil {
		s.logger.Error("save lock cleanup", "error", err)

		return
	}

	for _, line := range released {
		s.hub.Broadcast(s.docID, ws.Message{
			Type: ws.MessageTypeLineUnlocked,
			Payload: ws.LineUnlockedPayload{
				DocID:      s.docID,
				LineNumber: line,
				Reason:     "user_disconnected",
			},
		}, "")
	}
}

// Cursor relays a caret/selection update to room peers.
func (s *Session) Cursor(client *ws.Client, p *ws.CursorPositionPayload) {
	s.hub.Broadcast(s.docID, ws.Message{
		Type: ws.MessageTypeCursorPosition,
		Payload: ws.CursorPositionPayload{
			DocID:     s.docID,
			Position:  p.Position,
			Selection: p.Selection,
			UserID:    client.UserID,
			UserName:  client.UserName,
		},
	}, client.ID)
}
