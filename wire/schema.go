// Package wire implements the schema registry and the two field-codec
// primitives every snapshot and command body is built from: copying a full
// field image off an entropy stream into its canonical byte layout, and
// skipping the same bits without storing them.
package wire

import "github.com/tutumagi/snapnet/bitio"

// FieldKind selects how a field's value is represented on the wire. Raw
// fields are a fixed bit width read/written verbatim; Packed fields go
// through the stream's entropy-coded PackedUint path, which self-describes
// its width via a size class.
type FieldKind uint8

const (
	FieldRaw FieldKind = iota
	FieldPacked
)

// Field describes one slot of an entity's (or command's) field image: how
// many bits it occupies canonically, which named delta context its deltas
// are coded against, and whether it participates in client-side network
// prediction.
type Field struct {
	Kind      FieldKind
	BitCount  int // canonical width; also the Raw wire width
	DeltaCtx  uint16
	Predicted bool
	Mask      byte // single set bit selecting this field's entry in an entity's 8-bit fieldMask
}

// byteWidth is the canonical per-field storage width: enough bytes to hold
// BitCount bits, rounded up, minimum 1 so zero-width fields still occupy a
// distinguishable slot.
func (f Field) byteWidth() int {
	w := (f.BitCount + 7) / 8
	if w == 0 {
		w = 1
	}
	return w
}

// Schema is the ordered field list an EntityType replicates, interned once
// per typeId and immutable thereafter.
type Schema struct {
	Fields []Field
}

// ByteSize is the fixed size of the canonical image CopyFieldsToBuffer
// produces: the sum of each field's byte width, in field order.
func (s Schema) ByteSize() int {
	n := 0
	for _, f := range s.Fields {
		n += f.byteWidth()
	}
	return n
}

// offsets returns each field's starting byte offset into the canonical
// image, in field order.
func (s Schema) offsets() []int {
	offs := make([]int, len(s.Fields))
	n := 0
	for i, f := range s.Fields {
		offs[i] = n
		n += f.byteWidth()
	}
	return offs
}

// ctxName turns a wire-level numeric delta context id into the string
// entropy-stream context name; contexts are per (typeId, field) in
// practice, but the codec only needs them to be stable between encoder and
// decoder, so the numeric id round-tripped through a fixed prefix suffices.
func ctxName(id uint16) string {
	const hex = "0123456789abcdef"
	b := [6]byte{'f', hex[(id>>12)&0xf], hex[(id>>8)&0xf], hex[(id>>4)&0xf], hex[id&0xf]}
	return string(b[:5])
}

// CopyFieldsToBuffer reads one complete, non-delta field image off input
// according to schema and writes each field's canonical bytes into dst,
// which must be at least schema.ByteSize() long.
func CopyFieldsToBuffer(schema Schema, input bitio.Stream, dst []byte) {
	offs := schema.offsets()
	for i, f := range schema.Fields {
		v := readField(input, f)
		putField(dst[offs[i]:offs[i]+f.byteWidth()], v)
	}
}

// SkipFields consumes exactly the bits CopyFieldsToBuffer would have
// consumed, without storing them. The snapshot decoder does not call it; it
// always stores a spawned type's baseline via CopyFieldsToBuffer.
func SkipFields(schema Schema, input bitio.Stream) {
	for _, f := range schema.Fields {
		readField(input, f)
	}
}

func readField(input bitio.Stream, f Field) uint32 {
	switch f.Kind {
	case FieldRaw:
		return input.ReadRawBits(f.BitCount)
	case FieldPacked:
		return input.ReadPackedUint(ctxName(f.DeltaCtx))
	default:
		panic("wire: readField: unknown field kind")
	}
}

func writeField(output bitio.Stream, f Field, v uint32) {
	switch f.Kind {
	case FieldRaw:
		output.WriteRawBits(v, f.BitCount)
	case FieldPacked:
		output.WritePackedUint(v, ctxName(f.DeltaCtx))
	default:
		panic("wire: writeField: unknown field kind")
	}
}

// WriteFieldsFromBuffer is CopyFieldsToBuffer's inverse, used by the server
// side of tests: it reads each field's canonical
// bytes out of src and writes the non-delta image to output.
func WriteFieldsFromBuffer(schema Schema, output bitio.Stream, src []byte) {
	offs := schema.offsets()
	for i, f := range schema.Fields {
		v := getField(src[offs[i] : offs[i]+f.byteWidth()])
		writeField(output, f, v)
	}
}

func putField(dst []byte, v uint32) {
	for i := range dst {
		dst[i] = byte(v >> (8 * i))
	}
}

func getField(src []byte) uint32 {
	var v uint32
	for i, b := range src {
		v |= uint32(b) << (8 * i)
	}
	return v
}
