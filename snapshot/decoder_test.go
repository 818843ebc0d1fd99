package snapshot

import (
	"testing"

	"github.com/tutumagi/snapnet/bitio"
	"github.com/tutumagi/snapnet/delta"
	"github.com/tutumagi/snapnet/wire"
)

func testEntitySchema() wire.Schema {
	return wire.Schema{Fields: []wire.Field{
		{Kind: wire.FieldRaw, BitCount: 8, DeltaCtx: 1, Mask: 0xFF},
		{Kind: wire.FieldRaw, BitCount: 8, DeltaCtx: 2, Mask: 0xFF},
	}}
}

type recordingConsumer struct {
	spawns   []EntityID
	despawns []EntityID
	updates  map[EntityID][]byte
	done     []int32
}

func newRecordingConsumer() *recordingConsumer {
	return &recordingConsumer{updates: make(map[EntityID][]byte)}
}

func (c *recordingConsumer) ProcessEntitySpawn(serverTime int32, id EntityID, typeID uint16) {
	c.spawns = append(c.spawns, id)
}
func (c *recordingConsumer) ProcessEntityUpdate(serverTime int32, id EntityID, image, fieldsChanged []byte) {
	c.updates[id] = append([]byte(nil), image...)
}
func (c *recordingConsumer) ProcessEntityDespawn(serverTime int32, id EntityID) {
	c.despawns = append(c.despawns, id)
}
func (c *recordingConsumer) ProcessSnapshot(serverTime int32) {
	c.done = append(c.done, serverTime)
}

// writeFullSnapshotSeq10 encodes scenario seed 3's first package: one new
// schema, one spawn, one update setting both fields.
func writeFullSnapshotSeq10(t *testing.T) []byte {
	t.Helper()
	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)

	w.WritePackedIntDelta(0, int32(10-1), "snap.base") // baseSequence = 0
	w.WriteRawBits(0, 1)                               // enableNetworkPrediction = false
	w.WriteRawBits(0, 1)                               // enableHashing = false
	w.WritePackedIntDelta(1000, 0, "snap.time")        // serverTime = 1000
	w.WriteRawBits(50, 8)                              // serverSimTime raw

	schema := testEntitySchema()
	w.WriteRawBits(1, 8) // schemaCount
	wire.WriteEntityType(w, &wire.EntityType{TypeID: 5, Schema: schema, Baseline: []byte{0, 0}})

	w.WriteRawBits(1, 16)                          // spawnCount
	w.WritePackedIntDelta(3, 1, "snap.id")          // id=3, previousId starts at 1
	w.WriteRawBits(5, 16)                           // typeId
	w.WriteRawBits(0xFF, 8)                         // fieldMask

	w.WriteRawBits(0, 16) // despawnCount

	w.WriteRawBits(1, 16)                  // updateCount
	w.WritePackedIntDelta(3, 1, "snap.id") // id=3, previousId reset to 1 before updates
	delta.Write(w, schema, []byte{0, 0}, []byte{7, 9}, 0xFF, false)

	n := w.Flush()
	return w.Bytes()[:n]
}

// writeDeltaSnapshotSeq11 encodes scenario seed 3's second package: a pure
// delta against seq 10, changing only field 0.
func writeDeltaSnapshotSeq11(t *testing.T) []byte {
	t.Helper()
	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)

	w.WritePackedIntDelta(10, int32(11-1), "snap.base") // baseSequence = 10
	w.WriteRawBits(0, 1)
	w.WriteRawBits(0, 1)
	w.WritePackedIntDelta(1100, 1000, "snap.time") // serverTime = 1100, refTime from seq10 = 1000
	w.WriteRawBits(50, 8)

	w.WriteRawBits(0, 8)  // schemaCount
	w.WriteRawBits(0, 16) // spawnCount
	w.WriteRawBits(0, 16) // despawnCount

	schema := testEntitySchema()
	w.WriteRawBits(1, 16)
	w.WritePackedIntDelta(3, 1, "snap.id")
	delta.Write(w, schema, []byte{7, 9}, []byte{8, 9}, 0xFF, false)

	n := w.Flush()
	return w.Bytes()[:n]
}

func decodeInto(t *testing.T, body []byte) *bitio.RawStream {
	t.Helper()
	r := bitio.NewRawStream()
	r.Init(nil, body, 0)
	return r
}

func TestDecodeFullSnapshotThenDelta(t *testing.T) {
	d := NewDecoder(32, 64, nil, nil, false)

	body10 := writeFullSnapshotSeq10(t)
	newTime, advanced, _ := d.Decode(decodeInto(t, body10), 10, 0, 111)
	if !advanced || newTime != 1000 {
		t.Fatalf("seq10: newTime=%d advanced=%v", newTime, advanced)
	}

	consumer := newRecordingConsumer()
	d.ProcessSnapshot(consumer, newTime)

	if len(consumer.spawns) != 1 || consumer.spawns[0] != 3 {
		t.Fatalf("expected spawn(3), got %v", consumer.spawns)
	}
	if got := consumer.updates[3]; len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Fatalf("expected update(3)=[7 9], got %v", got)
	}

	body11 := writeDeltaSnapshotSeq11(t)
	newTime2, advanced2, _ := d.Decode(decodeInto(t, body11), 11, newTime, 222)
	if !advanced2 || newTime2 != 1100 {
		t.Fatalf("seq11: newTime=%d advanced=%v", newTime2, advanced2)
	}

	consumer2 := newRecordingConsumer()
	d.ProcessSnapshot(consumer2, newTime2)
	if got := consumer2.updates[3]; len(got) != 2 || got[0] != 8 || got[1] != 9 {
		t.Fatalf("expected update(3)=[8 9], got %v", got)
	}
	if len(consumer2.spawns) != 0 {
		t.Fatalf("expected no spawns on the delta package, got %v", consumer2.spawns)
	}
}

func TestDecodeOutOfOrderSnapshotDoesNotAdvanceTime(t *testing.T) {
	d := NewDecoder(32, 64, nil, nil, false)

	body10 := writeFullSnapshotSeq10(t)
	newTime, _, _ := d.Decode(decodeInto(t, body10), 10, 0, 100)
	d.ProcessSnapshot(newRecordingConsumer(), newTime) // drain so the next Decode is legal

	// Seq 41-style out-of-order package: a delta against the seq10 baseline
	// (still the only valid reference for a live, already-spawned entity)
	// but carrying an earlier serverTime than what was already accepted.
	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)
	w.WritePackedIntDelta(10, int32(11-1), "snap.base") // baseSequence = 10
	w.WriteRawBits(0, 1)
	w.WriteRawBits(0, 1)
	w.WritePackedIntDelta(900, 1000, "snap.time") // earlier than current serverTime (1000)
	w.WriteRawBits(50, 8)
	w.WriteRawBits(0, 8)  // schemaCount
	w.WriteRawBits(0, 16) // spawnCount
	w.WriteRawBits(0, 16) // despawnCount
	w.WriteRawBits(0, 16) // updateCount
	n := w.Flush()

	newTime2, advanced2, _ := d.Decode(decodeInto(t, w.Bytes()[:n]), 11, newTime, 200)
	if advanced2 {
		t.Fatal("expected out-of-order snapshot to not advance time")
	}
	if newTime2 != newTime {
		t.Fatalf("serverTime changed: got %d want %d", newTime2, newTime)
	}
}

// packedFieldEntitySchema has one FieldPacked field, whose baseline image
// must round-trip through the schema's own field codec (ReadEntityType/
// WriteEntityType calling CopyFieldsToBuffer/WriteFieldsFromBuffer) rather
// than a raw-byte shortcut, since the packed encoding picks its own size
// class per value instead of occupying a fixed bit width.
func packedFieldEntitySchema() wire.Schema {
	return wire.Schema{Fields: []wire.Field{
		{Kind: wire.FieldPacked, BitCount: 32, DeltaCtx: 3, Mask: 0xFF},
	}}
}

// canonicalFieldBytes is the little-endian canonical byte layout
// CopyFieldsToBuffer/WriteFieldsFromBuffer agree on for a single field of
// value v, independent of that field's wire Kind.
func canonicalFieldBytes(width int, v uint32) []byte {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

// writeFullSnapshotSeq10WithHashing is writeFullSnapshotSeq10 but with
// enableHashing set, so the per-entity delta hash (P7) and the step-13
// entity-count check both have something to verify. transmittedHash lets
// the caller poison the per-entity hash to exercise the mismatch path.
func writeFullSnapshotSeq10WithHashing(t *testing.T, transmittedHash *uint32) []byte {
	t.Helper()
	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)

	w.WritePackedIntDelta(0, int32(10-1), "snap.base")
	w.WriteRawBits(0, 1) // enableNetworkPrediction = false
	w.WriteRawBits(1, 1) // enableHashing = true
	w.WritePackedIntDelta(1000, 0, "snap.time")
	w.WriteRawBits(50, 8)

	schema := testEntitySchema()
	w.WriteRawBits(1, 8) // schemaCount
	wire.WriteEntityType(w, &wire.EntityType{TypeID: 5, Schema: schema, Baseline: []byte{0, 0}})

	w.WriteRawBits(1, 16)                  // spawnCount
	w.WritePackedIntDelta(3, 1, "snap.id") // id=3
	w.WriteRawBits(5, 16)                  // typeId
	w.WriteRawBits(0xFF, 8)                // fieldMask

	w.WriteRawBits(0, 16) // despawnCount

	w.WriteRawBits(1, 16)                  // updateCount
	w.WritePackedIntDelta(3, 1, "snap.id") // id=3, previousId reset to 1 before updates
	hash := delta.Write(w, schema, []byte{0, 0}, []byte{7, 9}, 0xFF, true)
	if transmittedHash != nil {
		hash = *transmittedHash
	}
	w.WriteRawBits(hash, 32)

	w.WriteRawBits(1, 32) // numEntsCheck: one live, non-pending entity

	n := w.Flush()
	return w.Bytes()[:n]
}

func TestDecodeHashAgreementDoesNotPanic(t *testing.T) {
	d := NewDecoder(32, 64, nil, nil, true)
	body := writeFullSnapshotSeq10WithHashing(t, nil)
	newTime, advanced, _ := d.Decode(decodeInto(t, body), 10, 0, 111)
	if !advanced || newTime != 1000 {
		t.Fatalf("newTime=%d advanced=%v", newTime, advanced)
	}
}

func TestDecodeHashMismatchAssertsInDebug(t *testing.T) {
	d := NewDecoder(32, 64, nil, nil, true)
	poisoned := uint32(0xDEADBEEF)
	body := writeFullSnapshotSeq10WithHashing(t, &poisoned)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Decode to panic on a hash mismatch with debug enabled")
		}
		if _, ok := r.(*ProtocolError); !ok {
			t.Fatalf("expected *ProtocolError, got %T: %v", r, r)
		}
	}()
	d.Decode(decodeInto(t, body), 10, 0, 111)
}

func TestDecodeHashMismatchOnlyWarnsWithoutDebug(t *testing.T) {
	d := NewDecoder(32, 64, nil, nil, false)
	poisoned := uint32(0xDEADBEEF)
	body := writeFullSnapshotSeq10WithHashing(t, &poisoned)

	newTime, advanced, _ := d.Decode(decodeInto(t, body), 10, 0, 111)
	if !advanced || newTime != 1000 {
		t.Fatalf("newTime=%d advanced=%v", newTime, advanced)
	}
}

func TestDecodeSchemaTableCarriesPackedFieldBaseline(t *testing.T) {
	d := NewDecoder(32, 64, nil, nil, false)

	schema := packedFieldEntitySchema()
	baseline := canonicalFieldBytes(schema.ByteSize(), 1<<20+3) // forces the packed field's widest size class

	w := bitio.NewRawStream()
	w.Init(nil, make([]byte, 0, 64), 0)
	w.WritePackedIntDelta(0, int32(10-1), "snap.base")
	w.WriteRawBits(0, 1)
	w.WriteRawBits(0, 1)
	w.WritePackedIntDelta(500, 0, "snap.time")
	w.WriteRawBits(0, 8)

	w.WriteRawBits(1, 8) // schemaCount
	wire.WriteEntityType(w, &wire.EntityType{TypeID: 8, Schema: schema, Baseline: baseline})

	w.WriteRawBits(0, 16) // spawnCount
	w.WriteRawBits(0, 16) // despawnCount
	w.WriteRawBits(0, 16) // updateCount
	n := w.Flush()

	d.Decode(decodeInto(t, w.Bytes()[:n]), 10, 0, 1)

	et := d.Registry.Lookup(8)
	if et == nil {
		t.Fatal("typeId 8 not interned")
	}
	for i := range baseline {
		if et.Baseline[i] != baseline[i] {
			t.Fatalf("baseline byte %d: got %#x want %#x", i, et.Baseline[i], baseline[i])
		}
	}
}
