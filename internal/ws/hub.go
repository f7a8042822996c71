package ws

import (
	"sync"
)

// Hub is the room registry: it maps each document to the set of live
// sessions subscribed to it. Subscribe and Unsubscribe are the only
// mutators of room membership; all broadcasts go through the hub.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// rooms maps document ID to set of client IDs
	rooms map[string]map[string]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
}

// Unregister removes a client from the hub and every room it joined.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, docID := range client.ActiveDocuments() {
		h.removeFromRoom(docID, client.ID)
	}

	delete(h.clients, client.ID)
}

// Subscribe adds a client to a document's broadcast list.
func (h *Hub) Subscribe(client *Client, docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[string]struct{})
	}

	h.rooms[docID][client.ID] = struct{}{}
	client.JoinDoc(docID)
}

// Unsubscribe removes a client from a document's broadcast list.
func (h *Hub) Unsubscribe(client *Client, docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(docID, client.ID)
	client.LeaveDoc(docID)
}

func (h *Hub) removeFromRoom(docID, clientID string) {
	if clients, ok := h.rooms[docID]; ok {
		delete(clients, clientID)

		if len(clients) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// Broadcast sends a message to all clients subscribed to a document,
// except the sender (identified by excludeClientID; pass "" to reach the
// whole room).
func (h *Hub) Broadcast(docID string, msg Message, excludeClientID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientIDs, ok := h.rooms[docID]
	if !ok {
		return
	}

	for clientID := range clientIDs {
		if clientID == excludeClientID {
			continue
		}

		client, ok := h.clients[clientID]
		if !ok {
			continue
		}

		// Send in goroutine to avoid blocking on slow clients
		go func(c *Client) {
			_ = c.Send(msg)
		}(client)
	}
}

// ClientCount returns the number of clients subscribed to a document.
func (h *Hub) ClientCount(docID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.rooms[docID]; ok {
		return len(clients)
	}

	return 0
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
