// Package progress fans out structured JSON training-progress events to
// connected websocket clients. It is a plain event bus, not a GUI or
// plotting surface, which is out of scope here, and is
// entirely optional: an Executor with no Broadcaster attached runs
// identically, just without the side-channel.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is one lifecycle notification: an epoch-end loss report or a
// lifecycle action. No checkpoint or batch-level events are published.
type Event struct {
	Kind  string  `json:"kind"`
	Epoch int     `json:"epoch,omitempty"`
	Split string  `json:"split,omitempty"`
	Loss  float64 `json:"loss,omitempty"`
}

const (
	writeTimeout  = 5 * time.Second
	clientBufSize = 32
)

// Broadcaster holds a registry of live websocket connections and
// fans out every Publish call to all of them, dropping (and closing) any
// client whose outbound buffer is full rather than blocking the
// training loop on a slow reader.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

type client struct {
	conn *websocket.Conn
	out  chan Event
}

func New(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handler upgrades incoming HTTP connections to websockets and registers
// them as progress subscribers. Mount it at e.g. "/progress".
func (b *Broadcaster) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, out: make(chan Event, clientBufSize)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	go b.serve(c)
}

func (b *Broadcaster) serve(c *client) {
	defer func() {
		b.mu.Lock()
		delete(b.clients, c)
		b.mu.Unlock()
		c.conn.Close()
	}()

	// Drain and discard inbound frames; this is a publish-only channel,
	// but the read loop is required to surface client disconnects.
	go func() {
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				c.conn.Close()
				return
			}
		}
	}()

	for evt := range c.out {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(evt); err != nil {
			return
		}
	}
}

// Publish fans evt out to every connected client. Never blocks: a
// client whose buffer is full is dropped.
func (b *Broadcaster) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.out <- evt:
		default:
			b.logger.Warn("dropping slow progress client")
		}
	}
}

// MarshalJSON round-trips Event for test helpers that want the raw wire
// form without going through a real socket.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(alias(e))
}

// NumClients reports the current subscriber count.
func (b *Broadcaster) NumClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
