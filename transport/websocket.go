package transport

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport is the production Transport: one gorilla/websocket
// connection per Connect call, read in a dedicated goroutine that feeds a
// buffered event channel, mirroring the dial-then-read-loop shape used
// elsewhere in this stack's WebSocket clients.
type WebSocketTransport struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	connID   int
	nextID   int
	events   chan Event
	dialer   *websocket.Dialer
	closedBy int // connectionId most recently closed locally, to swallow its own read error
}

// NewWebSocketTransport returns a WebSocketTransport with a buffered event
// channel sized to absorb a burst of snapshots between Update() polls.
func NewWebSocketTransport(eventBuffer int) *WebSocketTransport {
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	return &WebSocketTransport{
		events: make(chan Event, eventBuffer),
		dialer: websocket.DefaultDialer,
	}
}

// Connect dials host[:port] as ws://host[:port]/, per §6's host endpoint
// syntax (a real deployment would pass a full ws:// or wss:// URL; bare
// host[:port] is expanded here for callers that only have a bare address).
func (t *WebSocketTransport) Connect(host string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wsURL := host
	if u, err := url.Parse(host); err != nil || u.Scheme == "" {
		wsURL = "ws://" + host + "/"
	}

	conn, _, err := t.dialer.Dial(wsURL, nil)
	if err != nil {
		return 0, fmt.Errorf("transport: dial %s: %w", host, err)
	}

	t.nextID++
	id := t.nextID
	t.conn = conn
	t.connID = id

	go t.readLoop(id, conn)

	return id, nil
}

func (t *WebSocketTransport) readLoop(id int, conn *websocket.Conn) {
	t.events <- Event{Kind: EventConnect, ConnectionID: id}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			suppress := t.closedBy == id
			t.closedBy = 0
			t.mu.Unlock()
			if !suppress {
				t.events <- Event{Kind: EventDisconnect, ConnectionID: id, Err: err}
			} else {
				t.events <- Event{Kind: EventDisconnect, ConnectionID: id}
			}
			return
		}
		t.events <- Event{Kind: EventData, ConnectionID: id, Data: data}
	}
}

// Disconnect closes the connection if id is the live one. Idempotent.
func (t *WebSocketTransport) Disconnect(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.connID != id {
		return
	}
	t.closedBy = id
	t.conn.Close()
	t.conn = nil
}

// Update is a no-op: the read goroutine already pushed everything it has
// into the event channel.
func (t *WebSocketTransport) Update() {}

// NextEvent drains one buffered event, non-blocking.
func (t *WebSocketTransport) NextEvent() (Event, bool) {
	select {
	case ev := <-t.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Send writes one binary frame on the connection named by id.
func (t *WebSocketTransport) Send(id int, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	live := t.connID == id
	t.mu.Unlock()
	if conn == nil || !live {
		return fmt.Errorf("transport: send on closed connection %d", id)
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}
