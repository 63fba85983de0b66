package websocket

import "sync"

// Hub fans a message out to many independently-driven connections. It is
// the one place in this package that uses goroutines and locks: each
// registered Conn is still only ever touched from the single goroutine
// that owns it (its own read loop), so Hub never multiplexes access to
// one Conn — it only coordinates handing work to many of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Conn]chan BroadcastMessage

	register   chan *registration
	unregister chan *Conn
	broadcast  chan BroadcastMessage
	done       chan struct{}
}

type BroadcastMessage struct {
	Kind    MessageKind
	Payload []byte
}

type registration struct {
	conn   *Conn
	outbox chan BroadcastMessage
}

// NewHub creates an empty Hub. Call Run in its own goroutine before
// registering any connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Conn]chan BroadcastMessage),
		register:   make(chan *registration),
		unregister: make(chan *Conn),
		broadcast:  make(chan BroadcastMessage, 16),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Close is called. It is
// meant to be started with `go hub.Run()`.
func (h *Hub) Run() {
	for {
		select {
		case reg := <-h.register:
			h.mu.Lock()
			h.clients[reg.conn] = reg.outbox
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if outbox, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(outbox)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, outbox := range h.clients {
				select {
				case outbox <- msg:
				default:
					// slow consumer: drop rather than block the whole hub
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Register adds conn to the hub and returns a channel of messages queued
// for it by Broadcast. The caller owns conn exclusively from this point:
// it must drain the returned channel (typically from a dedicated writer
// goroutine) and call Unregister when conn's read loop exits.
func (h *Hub) Register(conn *Conn) <-chan BroadcastMessage {
	outbox := make(chan BroadcastMessage, 16)
	h.register <- &registration{conn: conn, outbox: outbox}
	return outbox
}

// Unregister removes conn from the hub and closes its outbox channel.
func (h *Hub) Unregister(conn *Conn) {
	h.unregister <- conn
}

// Broadcast queues kind/payload for delivery to every currently registered
// connection. Slow consumers have the message dropped rather than
// blocking the broadcaster.
func (h *Hub) Broadcast(kind MessageKind, payload []byte) {
	h.broadcast <- BroadcastMessage{Kind: kind, Payload: payload}
}

// Close stops Run. It does not unregister or close any client connection.
func (h *Hub) Close() {
	close(h.done)
}
