package websocket

import (
	"encoding/json"
	"sync"

	"leadmarket/internal/models"
)

// Hub fans notifications out to the live connections of each contractor.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	origins []string
}

// NewHub accepts browser connections from the given origins. No origins, or
// "*", allows any.
func NewHub(origins ...string) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		origins: origins,
	}
}

func (h *Hub) allowOrigin(origin string) bool {
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Hub) Register(contractorID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[contractorID] == nil {
		h.clients[contractorID] = make(map[*Client]struct{})
	}
	h.clients[contractorID][client] = struct{}{}
}

func (h *Hub) Unregister(contractorID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[contractorID] == nil {
		return
	}
	delete(h.clients[contractorID], client)
	if len(h.clients[contractorID]) == 0 {
		delete(h.clients, contractorID)
	}
}

// Broadcast never blocks; a client whose buffer is full misses the message.
func (h *Hub) Broadcast(contractorID string, notification models.Notification) {
	payload, err := json.Marshal(notification)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[contractorID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) Connections(contractorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[contractorID])
}
