package framing

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/tutumagi/snapnet/seqbuf"
)

// ReliableEvent is an opaque reliable artifact an OutstandingPackage can
// carry — queued events that need re-queuing on loss. The framing layer
// never looks inside; it only moves references between "in flight" and
// "back in the outbound queue".
type ReliableEvent interface{}

// OutstandingPackage is the bookkeeping record kept per outbound sequence
// until NotifyDelivered resolves it: what content it carried, the command
// sequence/time it shipped (so a client-side success can advance the
// command ack watermark), and any reliable events it's holding.
type OutstandingPackage struct {
	Content         Content
	CommandSequence int64
	CommandTime     int32
	Events          []ReliableEvent
	// SentAtMs is the wall-clock time this package was handed to the
	// transport, set by the caller right after NextSequence returns. It is
	// the RTT measurement's start point once the ack resolves this entry.
	SentAtMs int64
}

// DeliveryCallback is invoked exactly once per outstanding entry as the ack
// bitfield resolves it, either because it fell within an acked position
// (madeIt=true) or because it aged out of the ack window unacked
// (madeIt=false).
type DeliveryCallback func(seq int64, info *OutstandingPackage, madeIt bool)

// Outbound tracks the send side of framing: the strictly-monotonic
// outSequence, the outstanding-package table used to resolve acks, and the
// token-bucket limiter that throttles sends to serverUpdateSendRate
// packages/second.
type Outbound struct {
	sequence    int64
	outstanding *seqbuf.Dense[OutstandingPackage]
	limiter     *rate.Limiter
}

// NewOutbound returns an Outbound with an outstanding-package table sized
// to hold capacity in-flight packages — must be at least AckWindowBits so
// every package the ack bitfield could possibly cover still has a live
// slot to resolve — and a send limiter allowing ratePerSecond
// packages/second with a one-package burst.
func NewOutbound(capacity int, ratePerSecond float64) *Outbound {
	return &Outbound{
		sequence:    0,
		outstanding: seqbuf.NewDense[OutstandingPackage](capacity, func() OutstandingPackage { return OutstandingPackage{} }),
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

// Allow reports whether the outbound rate limiter currently has a token
// available, without consuming one — callers check this before deciding
// there's anything to send, per §4.J's "skipped without consuming a token"
// gating rule.
func (ob *Outbound) Allow() bool {
	return ob.limiter.TokensAt(time.Now()) >= 1
}

// NextSequence allocates and returns the next outbound sequence number,
// along with the OutstandingPackage slot callers should populate as they
// build the package body. It consumes one rate-limiter token; callers must
// have already checked Allow().
func (ob *Outbound) NextSequence() (int64, *OutstandingPackage) {
	ob.limiter.Allow()
	ob.sequence++
	return ob.sequence, ob.outstanding.Acquire(ob.sequence)
}

// Sequence returns the last allocated outbound sequence.
func (ob *Outbound) Sequence() int64 {
	return ob.sequence
}

// ProcessAck walks the outstanding table against a received header's
// AckSequence/AckBits and invokes notify exactly once per outstanding
// entry the ack bitfield can speak to: the acked sequence itself, each of
// the AckWindowBits preceding it (acked per bit, else lost), and — for
// completeness — any outstanding entry old enough to have aged out of the
// window entirely.
func (ob *Outbound) ProcessAck(ackSeq int64, ackBits uint32, notify DeliveryCallback) {
	resolve := func(seq int64, madeIt bool) {
		info, ok := ob.outstanding.TryGet(seq)
		if !ok {
			return
		}
		if notify != nil {
			notify(seq, info, madeIt)
		}
		ob.outstanding.RemoveWithCleanup(seq, nil)
	}

	resolve(ackSeq, true)
	for i := 1; i <= AckWindowBits; i++ {
		seq := ackSeq - int64(i)
		if seq <= 0 {
			break
		}
		acked := ackBits&(1<<uint(i-1)) != 0
		resolve(seq, acked)
	}

	oldest := ackSeq - AckWindowBits - 1
	ob.outstanding.ForEach(func(seq int64, info *OutstandingPackage) {
		if seq <= oldest {
			if notify != nil {
				notify(seq, info, false)
			}
			ob.outstanding.RemoveWithCleanup(seq, nil)
		}
	})
}

// DefaultNotifyDelivered is the framing layer's base NotifyDelivered
// behaviour: release an outstanding package's reliable events on success,
// re-queue them on failure. Callers (the client session) wrap this to add
// command-ack and client-config-resend bookkeeping on top.
func DefaultNotifyDelivered(seq int64, info *OutstandingPackage, madeIt bool, requeue func(ReliableEvent)) {
	if madeIt {
		return
	}
	for _, ev := range info.Events {
		if requeue != nil {
			requeue(ev)
		}
	}
}
