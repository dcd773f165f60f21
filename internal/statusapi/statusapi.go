// Package statusapi is an optional live status stream: it fans out all six
// of the event bus's events to connected WebSocket clients so a dashboard
// can watch the monitor without polling the CLI. Grounded directly on the
// teacher's internal/ws.Broadcaster (client/writePump/broadcast), narrowed
// from session snapshots to one JSON event per published
// internal/events.Event; a message for a client whose send buffer is full
// is dropped for that client rather than disconnecting it.
package statusapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ielts-monitor/monitor/internal/events"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 32)}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() { close(c.send) }

// Broadcaster pushes bus events to every connected WebSocket client.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
}

// New subscribes to every named event on bus and returns a Broadcaster
// ready to accept WebSocket connections via ServeHTTP.
func New(bus *events.Bus) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	for _, name := range []events.Name{
		events.StatusChanged, events.AppointmentStatusChanged, events.CheckCompleted,
		events.NewAppointments, events.Error, events.NotificationSent,
	} {
		bus.Subscribe(name, b.broadcast)
	}
	return b
}

type wireEvent struct {
	Name events.Name `json:"name"`
	Data any         `json:"data"`
}

func (b *Broadcaster) broadcast(ev events.Event) {
	payload, err := json.Marshal(wireEvent{Name: ev.Name, Data: ev.Data})
	if err != nil {
		log.Printf("statusapi: marshaling event %s: %v", ev.Name, err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			// slow client: drop the message rather than block the publisher
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers
// it as a broadcast target until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(conn)
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, c)
		b.mu.Unlock()
		c.close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
