// Package uplink implements the command side of the protocol: a 3-slot
// ring of recent outbound commands, delta-chained against each other the
// same way snapshot updates delta-chain against a baseline, so a lost
// package can be recovered from whichever of the last three commands does
// make it through.
package uplink

import (
	"github.com/tutumagi/snapnet/bitio"
	"github.com/tutumagi/snapnet/delta"
	"github.com/tutumagi/snapnet/seqbuf"
	"github.com/tutumagi/snapnet/wire"
)

// ringCapacity is fixed at 3: only three unacked commands are ever in
// flight, and the server depends on a client re-sending exactly this many
// per package, so it isn't a tunable.
const ringCapacity = 3

// Command is one queued tick of player input.
type Command struct {
	Time int32
	Data []byte
}

// Uploader owns the outbound command ring and the commandSequence /
// commandSequenceAck watermarks. It is not safe for concurrent use.
type Uploader struct {
	Schema wire.Schema

	commands *seqbuf.Dense[Command]

	commandSequence    int64
	commandSequenceAck int64

	zero []byte
}

// NewUploader returns an Uploader whose command bodies are schema bytes
// long. schema is the game-defined command layout, analogous to an
// entity's replication schema.
func NewUploader(schema wire.Schema) *Uploader {
	size := schema.ByteSize()
	return &Uploader{
		Schema: schema,
		commands: seqbuf.NewDense[Command](ringCapacity, func() Command {
			return Command{Data: make([]byte, size)}
		}),
		zero: make([]byte, size),
	}
}

// Queue appends a new outbound command at the next commandSequence,
// overwriting the ring's oldest entry if all three slots are still
// occupied. data must be exactly Schema.ByteSize() bytes.
func (u *Uploader) Queue(time int32, data []byte) int64 {
	u.commandSequence++
	rec := u.commands.Acquire(u.commandSequence)
	rec.Time = time
	copy(rec.Data, data)
	return u.commandSequence
}

// CommandSequence returns the most recently queued command's sequence.
func (u *Uploader) CommandSequence() int64 { return u.commandSequence }

// CommandSequenceAck returns the last sequence the server has confirmed.
func (u *Uploader) CommandSequenceAck() int64 { return u.commandSequenceAck }

// Ack advances commandSequenceAck. Per invariant 6, it never moves
// backwards; the ring itself needs no explicit trim on ack since its fixed
// 3-slot capacity already overwrites anything older.
func (u *Uploader) Ack(commandSequence int64) {
	if commandSequence > u.commandSequenceAck {
		u.commandSequenceAck = commandSequence
	}
}

// HasPending reports whether any command newer than lastSentCommandSeq is
// queued, one of the three conditions client.Facade's send gate checks.
func (u *Uploader) HasPending(lastSentCommandSeq int64) bool {
	return u.commandSequence > lastSentCommandSeq
}

// Write encodes the ring per the component design: an includeSchema bit
// (set whenever the server hasn't yet acked a command, so it keeps
// receiving the layout until it proves it has one), the current
// commandSequence, then each resident command from commandSequence
// downward — continuation bit, packedIntDelta time against the
// previously-written (newer) command, and a delta-write of the body
// against that same newer command's data — terminating in a 0 bit. The
// very first command written deltas against the zero command, per spec.
//
// It returns the commandSequence and the time of the newest command
// actually written, for the caller's OutstandingPackage bookkeeping.
func (u *Uploader) Write(output bitio.Stream) (commandSequence int64, commandTime int32) {
	includeSchema := u.commandSequenceAck == 0
	if includeSchema {
		output.WriteRawBits(1, 1)
		wire.WriteSchema(output, u.Schema)
	} else {
		output.WriteRawBits(0, 1)
	}
	output.WriteRawBits(uint32(u.commandSequence), 16)

	prevTime := int32(0)
	prevData := u.zero
	seq := u.commandSequence
	newest := true
	for {
		rec, ok := u.commands.TryGet(seq)
		if !ok {
			break
		}
		output.WriteRawBits(1, 1)
		output.WritePackedIntDelta(rec.Time, prevTime, "cmd.time")
		delta.Write(output, u.Schema, prevData, rec.Data, 0xFF, false)

		if newest {
			commandTime = rec.Time
			newest = false
		}
		prevTime, prevData = rec.Time, rec.Data
		seq--
	}
	output.WriteRawBits(0, 1)

	return u.commandSequence, commandTime
}
