package ws

import (
	"errors"
	"fmt"
	"time"

	"github.com/serroba/line-docs/internal/diff"
	"github.com/serroba/line-docs/internal/document"
)

// MessageType identifies the kind of WebSocket message. The set is closed:
// unknown types are rejected at the boundary before dispatch.
type MessageType string

const (
	// Client to Server messages.
	MessageTypeJoinDocument   MessageType = "join-document"
	MessageTypeLeaveDocument  MessageType = "leave-document"
	MessageTypeDocumentChange MessageType = "document-change"
	MessageTypeAutoLockLine   MessageType = "auto-lock-line"
	MessageTypeAutoUnlockLine MessageType = "auto-unlock-line"
	MessageTypeCursorPosition MessageType = "cursor-position"
	MessageTypeCreateVersion  MessageType = "create-version"
	MessageTypeRestoreVersion MessageType = "restore-version"

	// Server to Client messages.
	MessageTypeDocumentState    MessageType = "document-state"
	MessageTypeDocumentUpdate   MessageType = "document-update"
	MessageTypeLineLocked       MessageType = "line-locked"
	MessageTypeLineUnlocked     MessageType = "line-unlocked"
	MessageTypeLineLockedError  MessageType = "line-locked-error"
	MessageTypeLineEditsUpdated MessageType = "line-edits-updated"
	MessageTypeContentDiff      MessageType = "content-diff"
	MessageTypeVersionCreated   MessageType = "version-created"
	MessageTypeVersionRestored  MessageType = "version-restored"
	MessageTypeVersionError     MessageType = "version-error"
	MessageTypeUserJoined       MessageType = "user-joined"
	MessageTypeUserLeft         MessageType = "user-left"
	MessageTypeError            MessageType = "error"
)

// Message is the envelope for all WebSocket communication.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// ErrInvalidPayload is returned when a client payload fails validation.
var ErrInvalidPayload = errors.New("invalid payload")

// JoinDocumentPayload subscribes the connection to a document room.
type JoinDocumentPayload struct {
	DocID string `json:"docId"`
}

func (p JoinDocumentPayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrInvalidPayload)
	}

	return nil
}

// LeaveDocumentPayload unsubscribes the connection from a document room.
type LeaveDocumentPayload struct {
	DocID string `json:"docId"`
}

func (p LeaveDocumentPayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrInvalidPayload)
	}

	return nil
}

// DocumentChangePayload carries an edited buffer plus the lines it touched.
type DocumentChangePayload struct {
	DocID           string `json:"docId"`
	Content         string `json:"content"`
	ChangedLines    []int  `json:"changedLines"`
	CursorPosition  int    `json:"cursorPosition"`
	PreviousContent string `json:"previousContent,omitempty"`
}

func (p DocumentChangePayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrInvalidPayload)
	}

	for _, line := range p.ChangedLines {
		if line < 0 {
			return fmt.Errorf("%w: negative line number %d", ErrInvalidPayload, line)
		}
	}

	return nil
}

// LineLockPayload targets one line for auto-lock or auto-unlock.
type LineLockPayload struct {
	DocID      string `json:"docId"`
	LineNumber int    `json:"lineNumber"`
}

func (p LineLockPayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrInvalidPayload)
	}

	if p.LineNumber < 0 {
		return fmt.Errorf("%w: negative line number %d", ErrInvalidPayload, p.LineNumber)
	}

	return nil
}

// CursorPositionPayload shares a caret/selection with room peers.
type CursorPositionPayload struct {
	DocID     string `json:"docId"`
	Position  int    `json:"position"`
	Selection any    `json:"selection,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
}

func (p CursorPositionPayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrInvalidPayload)
	}

	return nil
}

// CreateVersionPayload requests an immutable snapshot of the buffer.
type CreateVersionPayload struct {
	DocID           string `json:"docId"`
	Content         string `json:"content"`
	PreviousContent string `json:"previousContent,omitempty"`
	Description     string `json:"description,omitempty"`
}

func (p CreateVersionPayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrInvalidPayload)
	}

	return nil
}

// RestoreVersionPayload requests restoring a stored snapshot.
type RestoreVersionPayload struct {
	DocID         string `json:"docId"`
	VersionNumber int    `json:"versionNumber"`
}

func (p RestoreVersionPayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrInvalidPayload)
	}

	if p.VersionNumber < 1 {
		return fmt.Errorf("%w: versionNumber must be >= 1", ErrInvalidPayload)
	}

	return nil
}

// DocumentStatePayload is sent to a joining client: the current lock set and
// edit provenance for the document.
type DocumentStatePayload struct {
	LockedLines []document.LineLock `json:"lockedLines"`
	LineEdits   []document.LineEdit `json:"lineEdits"`
}

// DocumentUpdatePayload relays a peer's edit to the rest of the room.
type DocumentUpdatePayload struct {
	Content        string `json:"content"`
	ChangedLines   []int  `json:"changedLines"`
	CursorPosition int    `json:"cursorPosition"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
}

// LineLockedPayload announces a newly acquired line lock.
type LineLockedPayload struct {
	DocID string            `json:"docId"`
	Lock  document.LineLock `json:"lock"`
}

// LineUnlockedPayload announces a released line lock. Reason is set to
// "user_disconnected" for the disconnect cascade.
type LineUnlockedPayload struct {
	DocID      string `json:"docId"`
	LineNumber int    `json:"lineNumber"`
	Reason     string `json:"reason,omitempty"`
}

// LineLockedErrorPayload reports a lock conflict to the requester only.
type LineLockedErrorPayload struct {
	LineNumber int    `json:"lineNumber"`
	Message    string `json:"message"`
}

// LineEditsUpdatedPayload pushes the full provenance map so authorship
// coloring stays in sync for every room member.
type LineEditsUpdatedPayload struct {
	DocID     string              `json:"docId"`
	LineEdits []document.LineEdit `json:"lineEdits"`
}

// ContentDiffPayload carries a live, non-persisted diff of a peer's edit.
type ContentDiffPayload struct {
	Diff     []diff.Op `json:"diff"`
	Summary  string    `json:"summary"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
}

// UserRef identifies the user behind a version event.
type UserRef struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// VersionCreatedPayload announces a new version snapshot to the room.
type VersionCreatedPayload struct {
	DocID       string           `json:"docId"`
	Version     int              `json:"version"`
	VersionData document.Version `json:"versionData"`
	Summary     string           `json:"summary"`
	CreatedBy   UserRef          `json:"createdBy"`
}

// VersionRestoredPayload announces a snapshot restore to the room.
type VersionRestoredPayload struct {
	DocID           string  `json:"docId"`
	Content         string  `json:"content"`
	RestoredVersion int     `json:"restoredVersion"`
	RestoredBy      UserRef `json:"restoredBy"`
}

// VersionErrorPayload reports a version operation failure to the requester.
type VersionErrorPayload struct {
	Message string `json:"message"`
}

// PresencePayload announces a user joining or leaving a room.
type PresencePayload struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a transport-level error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInternalError  = "internal_error"
)
