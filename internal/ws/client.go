package ws

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Client represents one connected user session. A session may be subscribed
// to several document rooms at once.
type Client struct {
	ID            string
	UserID        string
	UserName      string
	Authenticated bool

	conn Conn

	mu   sync.Mutex
	docs map[string]struct{}
}

// NewClient creates a new client wrapper. Unauthenticated sessions carry an
// empty UserID.
func NewClient(id, userID, userName string, authenticated bool, conn Conn) *Client {
	return &Client{
		ID:            id,
		UserID:        userID,
		UserName:      userName,
		Authenticated: authenticated,
		conn:          conn,
		docs:          make(map[string]struct{}),
	}
}

// Send sends a message to the client.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteJSON(msg)
}

// SendError sends a transport-level error message to the client.
func (c *Client) SendError(code, message string) error {
	return c.Send(Message{
		Type: MessageTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Receive reads and validates one message from the client. Payloads are
// decoded by message type; required fields are checked here so handlers
// never see a half-formed event.
func (c *Client) Receive() (Message, error) {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := c.conn.ReadJSON(&raw); err != nil {
		return Message{}, err
	}

	payload, err := decodePayload(raw.Type, raw.Payload)
	if err != nil {
		return Message{}, err
	}

	return Message{Type: raw.Type, Payload: payload}, nil
}

// decodePayload maps a client message type to its payload struct and
// validates it.
func decodePayload(t MessageType, raw json.RawMessage) (any, error) {
	var payload interface{ Validate() error }

	switch t {
	case MessageTypeJoinDocument:
		payload = &JoinDocumentPayload{}
	case MessageTypeLeaveDocument:
		payload = &LeaveDocumentPayload{}
	case MessageTypeDocumentChange:
		payload = &DocumentChangePayload{}
	case MessageTypeAutoLockLine, MessageTypeAutoUnlockLine:
		payload = &LineLockPayload{}
	case MessageTypeCursorPosition:
		payload = &CursorPositionPayload{}
	case MessageTypeCreateVersion:
		payload = &CreateVersionPayload{}
	case MessageTypeRestoreVersion:
		payload = &RestoreVersionPayload{}
	default:
		return nil, fmt.Errorf("%w: unexpected message type %q", ErrInvalidPayload, t)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return payload, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// JoinDoc records membership in a document room.
func (c *Client) JoinDoc(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs[docID] = struct{}{}
}

// LeaveDoc removes membership in a document room.
func (c *Client) LeaveDoc(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.docs, docID)
}

// InDoc reports whether the client is subscribed to the document.
func (c *Client) InDoc(docID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.docs[docID]

	return ok
}

// ActiveDocuments returns the rooms the client is currently subscribed to.
func (c *Client) ActiveDocuments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.docs))
	for docID := range c.docs {
		out = append(out, docID)
	}

	return out
}
