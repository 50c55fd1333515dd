package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/multision/SupaConsole/internal/domain"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans configuration events out to subscribers by project ID.
type Hub struct {
	logger    *slog.Logger
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	done      chan struct{}
	stopOnce  sync.Once
	countReq  chan countRequest
}

type message struct {
	projectID string
	payload   []byte
}

type subscription struct {
	projectID string
	client    Subscriber
}

type countRequest struct {
	projectID string
	reply     chan int
}

// NewHub starts a hub bound to ctx. The hub stops when ctx is done or
// Stop is called.
func NewHub(ctx context.Context, logger *slog.Logger) *Hub {
	h := &Hub{
		logger:    logger,
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		done:      make(chan struct{}),
		countReq:  make(chan countRequest),
	}
	go h.run(ctx)
	return h
}

func (h *Hub) run(ctx context.Context) {
	defer func() {
		h.Stop()
		h.closeAll()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case sub := <-h.register:
			if _, ok := h.clients[sub.projectID]; !ok {
				h.clients[sub.projectID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.projectID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			h.remove(sub.projectID, sub.client)
		case req := <-h.countReq:
			req.reply <- len(h.clients[req.projectID])
		case msg := <-h.broadcast:
			for c := range h.clients[msg.projectID] {
				if err := c.Send(msg.payload); err != nil {
					c.Close()
					h.remove(msg.projectID, c)
				}
			}
		}
	}
}

func (h *Hub) remove(projectID string, client Subscriber) {
	clients, ok := h.clients[projectID]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, projectID)
	}
}

func (h *Hub) closeAll() {
	for projectID, clients := range h.clients {
		for c := range clients {
			c.Close()
		}
		delete(h.clients, projectID)
	}
}

// Register adds a client to a project stream.
func (h *Hub) Register(projectID string, client Subscriber) {
	select {
	case h.register <- subscription{projectID: projectID, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(projectID string, client Subscriber) {
	select {
	case h.unreg <- subscription{projectID: projectID, client: client}:
	case <-h.done:
	}
}

// Subscribers reports how many clients follow a project.
func (h *Hub) Subscribers(projectID string) int {
	reply := make(chan int, 1)
	select {
	case h.countReq <- countRequest{projectID: projectID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Broadcast sends payload to all project clients.
func (h *Hub) Broadcast(projectID string, payload []byte) {
	select {
	case h.broadcast <- message{projectID: projectID, payload: payload}:
	case <-h.done:
	}
}

// PublishConfig encodes a configuration event and broadcasts it.
func (h *Hub) PublishConfig(event domain.ConfigEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode config event failed", "project_id", event.ProjectID, "error", err)
		return
	}
	h.Broadcast(event.ProjectID, payload)
}

// Stop terminates the hub and closes every subscriber.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
