// Package delta implements the per-field delta codec every snapshot body
// and command body is built from: a changed bit per field, the new value
// coded against a per-field delta context relative to the baseline, a
// fields-changed bitmask the caller uses to know what moved, and an
// optional order-sensitive running hash both sides can compare to catch
// encoder/decoder drift early instead of silently desyncing.
package delta

import (
	"github.com/tutumagi/snapnet/bitio"
	"github.com/tutumagi/snapnet/wire"
)

// maskBytes is the byte length of a fieldsChanged bitmask for a schema with
// n fields: ceil(n/8).
func maskBytes(n int) int {
	return (n + 7) / 8
}

func setBit(mask []byte, i int) {
	mask[i/8] |= 1 << uint(i%8)
}

func bitSet(mask []byte, i int) bool {
	return mask[i/8]&(1<<uint(i%8)) != 0
}

func getField(buf []byte, off, width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		v |= uint32(buf[off+i]) << (8 * i)
	}
	return v
}

func putField(buf []byte, off, width int, v uint32) {
	for i := 0; i < width; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

func offsets(schema wire.Schema) []int {
	offs := make([]int, len(schema.Fields))
	n := 0
	for i, f := range schema.Fields {
		offs[i] = n
		w := (f.BitCount + 7) / 8
		if w == 0 {
			w = 1
		}
		n += w
	}
	return offs
}

func fieldWidth(f wire.Field) int {
	w := (f.BitCount + 7) / 8
	if w == 0 {
		w = 1
	}
	return w
}

// mixHash folds one decoded field value into the running hash. The mix is
// order-sensitive (position in the field list matters, via repeated
// multiplication) and needs no particular cryptographic property — both
// sides just need to compute the same thing over the same sequence of
// values.
func mixHash(hash uint32, v uint32) uint32 {
	hash ^= v
	hash *= 16777619 // FNV-1a prime, reused here purely as a decent mixing constant
	return hash
}

// Write emits current against baseline per schema: one changed bit and,
// where changed, a packedIntDelta against the field's delta context. A
// field whose schema.Fields[i].Mask bit is clear in fieldMask is forced to
// the baseline value and its changed bit is written as 0, regardless of
// what current actually holds — the field simply doesn't exist for this
// entity's current replication set.
//
// If enableHashing, the running hash over the fields actually written
// (post field-mask) is returned and the caller is responsible for
// appending it to the stream; Write itself never writes the hash, since
// some callers (command bodies) don't have a hash footer at all.
func Write(output bitio.Stream, schema wire.Schema, baseline, current []byte, fieldMask byte, enableHashing bool) (hash uint32) {
	offs := offsets(schema)
	for i, f := range schema.Fields {
		off := offs[i]
		width := fieldWidth(f)
		baseVal := getField(baseline, off, width)

		if f.Mask != 0 && fieldMask&f.Mask == 0 {
			output.WriteRawBits(0, 1)
			if enableHashing {
				hash = mixHash(hash, baseVal)
			}
			continue
		}

		curVal := getField(current, off, width)
		if curVal == baseVal {
			output.WriteRawBits(0, 1)
			if enableHashing {
				hash = mixHash(hash, baseVal)
			}
			continue
		}

		output.WriteRawBits(1, 1)
		output.WritePackedIntDelta(int32(curVal), int32(baseVal), deltaCtxName(f.DeltaCtx))
		if enableHashing {
			hash = mixHash(hash, curVal)
		}
	}
	return hash
}

// Read is Write's inverse. It produces the fully decoded image (forced
// fields take the baseline value, unchanged fields copy it, changed fields
// decode the packedIntDelta), a fieldsChanged bitmask with one bit per
// field in schema order, and the running hash over the same value sequence
// Write computed it over.
func Read(input bitio.Stream, schema wire.Schema, baseline []byte, fieldMask byte) (image []byte, fieldsChanged []byte, hash uint32) {
	offs := offsets(schema)
	size := 0
	if len(offs) > 0 {
		last := schema.Fields[len(schema.Fields)-1]
		size = offs[len(offs)-1] + fieldWidth(last)
	}
	image = make([]byte, size)
	fieldsChanged = make([]byte, maskBytes(len(schema.Fields)))

	for i, f := range schema.Fields {
		off := offs[i]
		width := fieldWidth(f)
		baseVal := getField(baseline, off, width)

		changed := input.ReadRawBits(1) != 0
		if !changed {
			putField(image, off, width, baseVal)
			hash = mixHash(hash, baseVal)
			continue
		}

		v := uint32(input.ReadPackedIntDelta(int32(baseVal), deltaCtxName(f.DeltaCtx)))
		putField(image, off, width, v)
		setBit(fieldsChanged, i)
		hash = mixHash(hash, v)
	}
	return image, fieldsChanged, hash
}

// FieldsChangedAt reports whether field i's bit is set in a mask produced
// by Read, for callers that want the per-field view rather than the raw
// bitmask bytes.
func FieldsChangedAt(mask []byte, i int) bool {
	return bitSet(mask, i)
}

func deltaCtxName(id uint16) string {
	const hex = "0123456789abcdef"
	b := [6]byte{'d', hex[(id>>12)&0xf], hex[(id>>8)&0xf], hex[(id>>4)&0xf], hex[id&0xf]}
	return string(b[:5])
}
