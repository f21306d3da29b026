package devserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sitesentry/livesync/internal/events"
	"github.com/sitesentry/livesync/internal/logger"
)

const (
	clientBufferSize = 16
	writeTimeout     = 5 * time.Second
)

// Hub fans out server events to every connected websocket client. Slow
// clients are dropped rather than allowed to stall the broadcast.
type Hub struct {
	log logger.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	send chan events.Envelope
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		log:     log,
		clients: make(map[*hubClient]struct{}),
	}
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(env events.Envelope) {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- env:
		default:
			h.log.Warn("client buffer full, dropping connection",
				logger.String("event", string(env.Event)),
			)
			h.remove(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and pumps events to the client until it
// disconnects. Incoming messages are read and discarded; the simulation has
// no client-originated events to act on.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("websocket accept failed", logger.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c := &hubClient{
		send: make(chan events.Envelope, clientBufferSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer h.remove(c)

	h.log.Debug("websocket client connected")

	ctx := r.Context()
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case env := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, env)
			cancel()
			if err != nil {
				h.log.Debug("websocket write failed", logger.Error(err))
				return
			}
		}
	}
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		close(c.done)
		h.log.Debug("websocket client disconnected")
	}
}
