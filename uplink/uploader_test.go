package uplink

import (
	"testing"

	"github.com/tutumagi/snapnet/bitio"
	"github.com/tutumagi/snapnet/delta"
	"github.com/tutumagi/snapnet/wire"
)

func testCommandSchema() wire.Schema {
	return wire.Schema{Fields: []wire.Field{
		{Kind: wire.FieldRaw, BitCount: 8, DeltaCtx: 1, Mask: 0xFF},
		{Kind: wire.FieldRaw, BitCount: 16, DeltaCtx: 2, Mask: 0xFF},
	}}
}

func flushed(w *bitio.RawStream) []byte {
	n := w.Flush()
	return w.Bytes()[:n]
}

func TestWriteIncludesSchemaUntilAcked(t *testing.T) {
	u := NewUploader(testCommandSchema())
	u.Queue(100, []byte{7, 0, 1})

	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)
	seq, cmdTime := u.Write(w)
	if seq != 1 || cmdTime != 100 {
		t.Fatalf("seq=%d cmdTime=%d, want 1,100", seq, cmdTime)
	}
	body := flushed(w)

	r := bitio.NewRawStream()
	r.Init(nil, body, 0)

	if r.ReadRawBits(1) != 1 {
		t.Fatal("expected includeSchema=1 when commandSequenceAck is 0")
	}
	schema := wire.ReadSchema(r)
	if len(schema.Fields) != 2 {
		t.Fatalf("schema round-trip: got %d fields, want 2", len(schema.Fields))
	}
	if got := r.ReadRawBits(16); got != 1 {
		t.Fatalf("commandSequence: got %d, want 1", got)
	}

	if r.ReadRawBits(1) != 1 {
		t.Fatal("expected a continuation bit for the one queued command")
	}
	gotTime := r.ReadPackedIntDelta(0, "cmd.time")
	if gotTime != 100 {
		t.Fatalf("command time: got %d, want 100", gotTime)
	}
	image, _, _ := delta.Read(r, schema, make([]byte, schema.ByteSize()), 0xFF)
	if image[0] != 7 || image[1] != 0 || image[2] != 1 {
		t.Fatalf("command body: got %v, want [7 0 1]", image)
	}
	if r.ReadRawBits(1) != 0 {
		t.Fatal("expected terminating 0 bit after the only command")
	}
}

func TestWriteOmitsSchemaOnceAcked(t *testing.T) {
	u := NewUploader(testCommandSchema())
	u.Queue(100, []byte{1, 0, 0})
	u.Ack(1)

	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)
	u.Write(w)
	body := flushed(w)

	r := bitio.NewRawStream()
	r.Init(nil, body, 0)
	if r.ReadRawBits(1) != 0 {
		t.Fatal("expected includeSchema=0 once the server has acked a command")
	}
}

func TestWriteChainsAllThreeRingSlots(t *testing.T) {
	u := NewUploader(testCommandSchema())
	u.Queue(10, []byte{1, 0, 0})
	u.Queue(20, []byte{2, 0, 0})
	u.Queue(30, []byte{3, 0, 0})

	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)
	seq, cmdTime := u.Write(w)
	if seq != 3 || cmdTime != 30 {
		t.Fatalf("seq=%d cmdTime=%d, want 3,30", seq, cmdTime)
	}
	body := flushed(w)

	r := bitio.NewRawStream()
	r.Init(nil, body, 0)
	r.ReadRawBits(1) // includeSchema
	schema := wire.ReadSchema(r)
	r.ReadRawBits(16) // commandSequence

	zero := make([]byte, schema.ByteSize())
	wantTimes := []int32{30, 20, 10}
	wantFirstByte := []byte{3, 2, 1}
	prevTime := int32(0)
	prevData := zero
	for i := 0; i < 3; i++ {
		if r.ReadRawBits(1) != 1 {
			t.Fatalf("command %d: expected continuation bit", i)
		}
		ct := r.ReadPackedIntDelta(prevTime, "cmd.time")
		if ct != wantTimes[i] {
			t.Fatalf("command %d time: got %d, want %d", i, ct, wantTimes[i])
		}
		image, _, _ := delta.Read(r, schema, prevData, 0xFF)
		if image[0] != wantFirstByte[i] {
			t.Fatalf("command %d body[0]: got %d, want %d", i, image[0], wantFirstByte[i])
		}
		prevTime, prevData = ct, image
	}
	if r.ReadRawBits(1) != 0 {
		t.Fatal("expected terminating 0 bit after three commands")
	}
}

func TestQueueBeyondRingCapacityOverwritesOldest(t *testing.T) {
	u := NewUploader(testCommandSchema())
	u.Queue(10, []byte{1, 0, 0})
	u.Queue(20, []byte{2, 0, 0})
	u.Queue(30, []byte{3, 0, 0})
	u.Queue(40, []byte{4, 0, 0}) // overwrites sequence 1's ring slot

	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)
	u.Write(w)
	body := flushed(w)

	r := bitio.NewRawStream()
	r.Init(nil, body, 0)
	r.ReadRawBits(1)
	schema := wire.ReadSchema(r)
	r.ReadRawBits(16)

	zero := make([]byte, schema.ByteSize())
	prevTime := int32(0)
	prevData := zero
	count := 0
	for r.ReadRawBits(1) == 1 {
		ct := r.ReadPackedIntDelta(prevTime, "cmd.time")
		image, _, _ := delta.Read(r, schema, prevData, 0xFF)
		prevTime, prevData = ct, image
		count++
	}
	if count != ringCapacity {
		t.Fatalf("expected exactly %d chained commands after overwrite, got %d", ringCapacity, count)
	}
}

func TestHasPending(t *testing.T) {
	u := NewUploader(testCommandSchema())
	if u.HasPending(0) {
		t.Fatal("expected no pending commands before any Queue")
	}
	seq := u.Queue(10, []byte{1, 0, 0})
	if !u.HasPending(0) {
		t.Fatal("expected a pending command after Queue")
	}
	if u.HasPending(seq) {
		t.Fatal("expected no pending commands once lastSentCommandSeq catches up")
	}
}

func TestAckNeverMovesBackwards(t *testing.T) {
	u := NewUploader(testCommandSchema())
	u.Ack(5)
	u.Ack(3)
	if u.CommandSequenceAck() != 5 {
		t.Fatalf("commandSequenceAck regressed: got %d, want 5", u.CommandSequenceAck())
	}
}
