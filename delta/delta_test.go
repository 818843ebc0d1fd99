package delta

import (
	"testing"

	"github.com/tutumagi/snapnet/bitio"
	"github.com/tutumagi/snapnet/wire"
)

func testSchema() wire.Schema {
	return wire.Schema{Fields: []wire.Field{
		{BitCount: 8, DeltaCtx: 1, Mask: 0x01},
		{BitCount: 16, DeltaCtx: 2, Mask: 0x02},
		{BitCount: 8, DeltaCtx: 3, Mask: 0x04},
	}}
}

func encodeDecode(t *testing.T, schema wire.Schema, baseline, current []byte, fieldMask byte, hashing bool) ([]byte, []byte, uint32, uint32) {
	t.Helper()
	buf := make([]byte, 0, 32)
	w := bitio.NewRawStream()
	w.Init(nil, buf, 0)
	writeHash := Write(w, schema, baseline, current, fieldMask, hashing)
	n := w.Flush()

	r := bitio.NewRawStream()
	r.Init(nil, w.Bytes()[:n], 0)
	image, changed, readHash := Read(r, schema, baseline, fieldMask)
	return image, changed, writeHash, readHash
}

func TestDeltaRoundTripNoMasking(t *testing.T) {
	schema := testSchema()
	baseline := []byte{5, 0x34, 0x12, 9}
	current := []byte{5, 0x78, 0x56, 200}

	image, changed, wHash, rHash := encodeDecode(t, schema, baseline, current, 0xFF, true)

	for i, want := range current {
		if image[i] != want {
			t.Fatalf("byte %d: got %v want %v", i, image[i], want)
		}
	}
	if wHash != rHash {
		t.Fatalf("hash mismatch: write=%d read=%d", wHash, rHash)
	}
	// field 0 unchanged (5==5), fields 1 and 2 changed.
	if FieldsChangedAt(changed, 0) {
		t.Fatal("field 0 should be unchanged")
	}
	if !FieldsChangedAt(changed, 1) || !FieldsChangedAt(changed, 2) {
		t.Fatal("fields 1 and 2 should be changed")
	}
}

func TestDeltaFieldMaskForcesBaseline(t *testing.T) {
	schema := testSchema()
	baseline := []byte{5, 0x34, 0x12, 9}
	current := []byte{77, 0x34, 0x12, 250} // field 0 and field 2 would differ

	// fieldMask excludes bit 0x01 (field 0) and 0x04 (field 2): only field 1 is live.
	image, changed, _, _ := encodeDecode(t, schema, baseline, current, 0x02, false)

	if image[0] != baseline[0] {
		t.Fatalf("masked field 0: got %v want baseline %v", image[0], baseline[0])
	}
	if image[3] != baseline[3] {
		t.Fatalf("masked field 2: got %v want baseline %v", image[3], baseline[3])
	}
	if FieldsChangedAt(changed, 0) || FieldsChangedAt(changed, 2) {
		t.Fatal("masked fields must never be reported as changed")
	}
}

func TestDeltaIdenticalImageProducesNoChanges(t *testing.T) {
	schema := testSchema()
	baseline := []byte{5, 0x34, 0x12, 9}
	current := append([]byte{}, baseline...)

	_, changed, _, _ := encodeDecode(t, schema, baseline, current, 0xFF, false)

	for i := range schema.Fields {
		if FieldsChangedAt(changed, i) {
			t.Fatalf("field %d: expected no change on identical image", i)
		}
	}
}
