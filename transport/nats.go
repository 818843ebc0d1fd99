package transport

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSTransport is a Transport backed by NATS subjects instead of a real
// socket: useful for local simulation and integration tests that want a
// reorderable, droppable channel without standing up actual UDP. It mirrors
// gate-to-client RPC the way the teacher repo's session package already
// depends on nats.go, just repurposed here as a datagram carrier rather
// than an RPC transport.
//
// The wire convention is a pair of subjects per connection: "<prefix>.c2s"
// for client-to-server and "<prefix>.s2c" for the reply direction. Connect
// subscribes to s2c and reports EventConnect at once; every inbound message
// on s2c becomes an EventData.
type NATSTransport struct {
	mu     sync.Mutex
	nc     *nats.Conn
	sub    *nats.Subscription
	connID int
	nextID int
	events chan Event

	subjectPrefix string
}

// NewNATSTransport returns a NATSTransport bound to an already-connected
// *nats.Conn (tests typically use an embedded nats-server/v2 instance).
// subjectPrefix names the connection's subject pair.
func NewNATSTransport(nc *nats.Conn, subjectPrefix string, eventBuffer int) *NATSTransport {
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	return &NATSTransport{
		nc:            nc,
		subjectPrefix: subjectPrefix,
		events:        make(chan Event, eventBuffer),
	}
}

func (t *NATSTransport) s2c() string { return t.subjectPrefix + ".s2c" }
func (t *NATSTransport) c2s() string { return t.subjectPrefix + ".c2s" }

// Connect subscribes to the reply subject and immediately reports an
// EventConnect — unlike a real socket, a NATS subscription has no dial
// handshake of its own, so the transport supplies one synchronously rather
// than waiting on a peer ack the peer side may not send. host is unused
// (the subject prefix fully addresses the peer) but kept to satisfy the
// Transport contract.
func (t *NATSTransport) Connect(host string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, err := t.nc.Subscribe(t.s2c(), func(msg *nats.Msg) {
		t.events <- Event{Kind: EventData, ConnectionID: t.connID, Data: msg.Data}
	})
	if err != nil {
		return 0, fmt.Errorf("transport: subscribe %s: %w", t.s2c(), err)
	}

	t.nextID++
	id := t.nextID
	t.connID = id
	t.sub = sub

	t.events <- Event{Kind: EventConnect, ConnectionID: id}
	return id, nil
}

// Disconnect unsubscribes and reports EventDisconnect. Idempotent.
func (t *NATSTransport) Disconnect(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub == nil || t.connID != id {
		return
	}
	t.sub.Unsubscribe()
	t.sub = nil
	t.events <- Event{Kind: EventDisconnect, ConnectionID: id}
}

// Update is a no-op: nats.Conn.Subscribe already delivers asynchronously
// on its own goroutine into the event channel.
func (t *NATSTransport) Update() {}

// NextEvent drains one buffered event, non-blocking.
func (t *NATSTransport) NextEvent() (Event, bool) {
	select {
	case ev := <-t.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Send publishes one datagram on the client-to-server subject.
func (t *NATSTransport) Send(id int, data []byte) error {
	t.mu.Lock()
	live := t.connID == id && t.sub != nil
	t.mu.Unlock()
	if !live {
		return fmt.Errorf("transport: send on closed connection %d", id)
	}
	return t.nc.Publish(t.c2s(), data)
}
