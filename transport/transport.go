// Package transport implements the engine's external transport contract
// (§6) plus two concrete adapters: a production WebSocket transport and a
// NATS-backed transport used for local simulation and integration tests.
// Both adapters isolate their own I/O in a goroutine and hand finished
// events to the protocol layer through a buffered channel, preserving the
// single-threaded contract §5 requires of everything above this package.
package transport

// EventKind distinguishes the three events a Transport can report.
type EventKind int

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventData
)

// Event is one transport occurrence, drained by client.Facade.Update via
// NextEvent. Data carries the received datagram for EventData; it is
// otherwise nil.
type Event struct {
	Kind         EventKind
	ConnectionID int
	Data         []byte
	Err          error
}

// Transport is the engine's one external network collaborator. A
// connectionId is opaque to the transport's caller; the engine treats any
// event whose ConnectionID doesn't match the one Connect returned as
// foreign and ignores it, per §6.
type Transport interface {
	// Connect dials host (syntax host[:port]; default port if omitted) and
	// returns a connectionId the caller threads through Disconnect and uses
	// to filter NextEvent results.
	Connect(host string) (connectionID int, err error)

	// Disconnect closes the connection named by connectionId. Idempotent.
	Disconnect(connectionID int)

	// Update lets the transport do any non-blocking bookkeeping it needs
	// before NextEvent is polled; both concrete adapters use it only to
	// drain nothing (the real work already happened on the adapter's own
	// goroutine) but it's part of the contract so a future adapter that
	// does need a polled step has somewhere to put it.
	Update()

	// NextEvent returns the next queued event and true, or (Event{},
	// false) if nothing is pending. Never blocks.
	NextEvent() (Event, bool)

	// Send writes one datagram on the given connection.
	Send(connectionID int, data []byte) error
}
