package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"inkgate/internal/access"
	"inkgate/internal/models"
)

// Event is the wire envelope pushed to subscribed clients.
type Event struct {
	Type  string            `json:"type"`
	Posts []access.PostView `json:"posts,omitempty"`
	Data  json.RawMessage   `json:"data,omitempty"`
}

// MessageToSend defines the structure for sending a message to a specific viewer.
type MessageToSend struct {
	TargetViewerID string
	Payload        []byte
}

// Hub maintains the set of active clients and pushes gated listing snapshots.
//
// Every snapshot is re-gated per recipient: the same collection change
// produces different payloads for paid and unpaid viewers, and a viewer
// whose payment lands mid-session gets unlocked content on the next push
// without reconnecting.
type Hub struct {
	// Registered clients. Maps viewer ID to a set of active connections.
	Clients map[string]map[*Client]bool

	// Full listing snapshots from the change-stream subscription.
	Snapshot chan []*models.BlogPost

	// Channel for sending messages to specific viewers.
	SendDirect chan *MessageToSend

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Mutex to protect concurrent access to the clients map.
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Snapshot:   make(chan []*models.BlogPost, 1),
		SendDirect: make(chan *MessageToSend),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	log.Println("WebSocket Hub started.")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.ViewerID]; !ok {
				h.Clients[client.ViewerID] = make(map[*Client]bool)
			}
			h.Clients[client.ViewerID][client] = true
			log.Printf("WebSocket client registered for viewer %s (%d connections)", client.ViewerID, len(h.Clients[client.ViewerID]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if viewerClients, ok := h.Clients[client.ViewerID]; ok {
				if _, clientOk := viewerClients[client]; clientOk {
					delete(viewerClients, client)
					if len(viewerClients) == 0 {
						delete(h.Clients, client.ViewerID)
					}
					log.Printf("WebSocket client unregistered for viewer %s", client.ViewerID)
				}
			}
			h.mu.Unlock()

		case posts := <-h.Snapshot:
			h.mu.RLock()
			for viewerID, viewerClients := range h.Clients {
				payload, err := snapshotPayload(posts, viewerID)
				if err != nil {
					log.Printf("Failed to encode snapshot for viewer %s: %v", viewerID, err)
					continue
				}
				for client := range viewerClients {
					select {
					case client.Send <- payload:
					default:
						log.Printf("Snapshot send buffer full for a client of viewer %s", viewerID)
					}
				}
			}
			h.mu.RUnlock()

		case directMessage := <-h.SendDirect:
			h.mu.RLock()
			if viewerClients, ok := h.Clients[directMessage.TargetViewerID]; ok {
				for client := range viewerClients {
					select {
					case client.Send <- directMessage.Payload:
					default:
						log.Printf("Send channel full for a client of viewer %s. Message dropped.", directMessage.TargetViewerID)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// snapshotPayload gates and encodes one listing snapshot for one viewer.
func snapshotPayload(posts []*models.BlogPost, viewerID string) ([]byte, error) {
	return json.Marshal(Event{
		Type:  "blogs.snapshot",
		Posts: access.ViewsFor(posts, viewerID),
	})
}

// BroadcastSnapshot queues a fresh listing for fanout. Called by the
// change-stream subscription; drops the snapshot if the hub is wedged
// rather than blocking the stream reader.
func (h *Hub) BroadcastSnapshot(posts []*models.BlogPost) {
	select {
	case h.Snapshot <- posts:
	case <-time.After(1 * time.Second):
		log.Println("Timeout queuing listing snapshot; hub busy, snapshot dropped.")
	}
}

// SendDirectMessage pushes a payload to every connection of one viewer, e.g.
// the payment-finalized notice after a completed purchase.
func (h *Hub) SendDirectMessage(targetViewerID string, payload []byte) {
	message := &MessageToSend{
		TargetViewerID: targetViewerID,
		Payload:        payload,
	}
	select {
	case h.SendDirect <- message:
	case <-time.After(1 * time.Second):
		log.Printf("Timeout queuing direct message for viewer %s. Hub might be busy or blocked.", targetViewerID)
	}
}
