package ws_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/serroba/line-docs/internal/ws"
)

const testDocID = "doc1"

// mockConn is a test double for ws.Conn.
type mockConn struct {
	mu       sync.Mutex
	messages []ws.Message
	closed   bool

	// For ReadJSON simulation
	incoming chan any
}

func newMockConn() *mockConn {
	return &mockConn{
		messages: make([]ws.Message, 0),
		incoming: make(chan any, 10),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Convert to Message
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var msg ws.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	m.messages = append(m.messages, msg)

	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	msg := <-m.incoming

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *mockConn) Messages() []ws.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ws.Message, len(m.messages))
	copy(result, m.messages)

	return result
}

// waitForMessages polls until the conn has at least n messages or the
// timeout expires. Broadcasts are delivered on goroutines.
func waitForMessages(t *testing.T, conn *mockConn, n int) []ws.Message {
	t.Helper()

	deadline := time.Now().Add(time.Second)

	for time.Now().Before(deadline) {
		if msgs := conn.Messages(); len(msgs) >= n {
			return msgs
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %d messages, have %d", n, len(conn.Messages()))

	return nil
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	connA := newMockConn()
	connB := newMockConn()

	clientA := ws.NewClient("a", "user-a", "Ada", true, connA)
	clientB := ws.NewClient("b", "user-b", "Bob", true, connB)

	hub.Register(clientA)
	hub.Register(clientB)
	hub.Subscribe(clientA, testDocID)
	hub.Subscribe(clientB, testDocID)

	hub.Broadcast(testDocID, ws.Message{Type: ws.MessageTypeUserJoined}, clientA.ID)

	msgs := waitForMessages(t, connB, 1)

	if msgs[0].Type != ws.MessageTypeUserJoined {
		t.Errorf("expected user-joined, got %s", msgs[0].Type)
	}

	// The excluded sender receives nothing.
	time.Sleep(20 * time.Millisecond)

	if got := len(connA.Messages()); got != 0 {
		t.Errorf("sender should be excluded, got %d messages", got)
	}
}

func TestHub_BroadcastWholeRoom(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	connA := newMockConn()
	connB := newMockConn()

	clientA := ws.NewClient("a", "user-a", "Ada", true, connA)
	clientB := ws.NewClient("b", "user-b", "Bob", true, connB)

	hub.Register(clientA)
	hub.Register(clientB)
	hub.Subscribe(clientA, testDocID)
	hub.Subscribe(clientB, testDocID)

	hub.Broadcast(testDocID, ws.Message{Type: ws.MessageTypeLineEditsUpdated}, "")

	waitForMessages(t, connA, 1)
	waitForMessages(t, connB, 1)
}

func TestHub_BroadcastScopedToRoom(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	connA := newMockConn()
	connB := newMockConn()

	clientA := ws.NewClient("a", "user-a", "Ada", true, connA)
	clientB := ws.NewClient("b", "user-b", "Bob", true, connB)

	hub.Register(clientA)
	hub.Register(clientB)
	hub.Subscribe(clientA, "doc-a")
	hub.Subscribe(clientB, "doc-b")

	hub.Broadcast("doc-a", ws.Message{Type: ws.MessageTypeDocumentUpdate}, "")

	waitForMessages(t, connA, 1)

	time.Sleep(20 * time.Millisecond)

	if got := len(connB.Messages()); got != 0 {
		t.Errorf("client in another room must not receive the broadcast, got %d", got)
	}
}

func TestHub_MultiRoomMembership(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("a", "user-a", "Ada", true, conn)

	hub.Register(client)
	hub.Subscribe(client, "doc-a")
	hub.Subscribe(client, "doc-b")

	if !client.InDoc("doc-a") || !client.InDoc("doc-b") {
		t.Error("client should be in both rooms")
	}

	if hub.ClientCount("doc-a") != 1 || hub.ClientCount("doc-b") != 1 {
		t.Error("expected one subscriber in each room")
	}

	hub.Broadcast("doc-a", ws.Message{Type: ws.MessageTypeDocumentUpdate}, "")
	hub.Broadcast("doc-b", ws.Message{Type: ws.MessageTypeDocumentUpdate}, "")

	waitForMessages(t, conn, 2)
}

func TestHub_UnregisterLeavesAllRooms(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("a", "user-a", "Ada", true, conn)

	hub.Register(client)
	hub.Subscribe(client, "doc-a")
	hub.Subscribe(client, "doc-b")

	hub.Unregister(client)

	if hub.ClientCount("doc-a") != 0 || hub.ClientCount("doc-b") != 0 {
		t.Error("unregister must remove the client from every room")
	}

	if hub.TotalClients() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.TotalClients())
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("a", "user-a", "Ada", true, conn)

	hub.Register(client)
	hub.Subscribe(client, testDocID)
	hub.Unsubscribe(client, testDocID)

	if client.InDoc(testDocID) {
		t.Error("client should no longer be in the room")
	}

	hub.Broadcast(testDocID, ws.Message{Type: ws.MessageTypeDocumentUpdate}, "")

	time.Sleep(20 * time.Millisecond)

	if got := len(conn.Messages()); got != 0 {
		t.Errorf("unsubscribed client must not receive broadcasts, got %d", got)
	}
}
