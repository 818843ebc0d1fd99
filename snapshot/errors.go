package snapshot

import "fmt"

// ProtocolError is the fatal-assertion error kind raised for every
// "semantic mismatch" condition the error handling design calls out as
// fatal: a missing baseline, an unknown spawn type, a duplicate despawn, a
// snapshot entity-count mismatch, or a consumer that left its lists
// non-empty on re-entry. These conditions mean the wire stream and this
// decoder's state have already diverged, so continuing would silently
// desync the game; the caller is expected to tear down the session.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return e.Msg
}

func fail(format string, args ...interface{}) {
	panic(&ProtocolError{Msg: fmt.Sprintf(format, args...)})
}
