package wire

import "github.com/tutumagi/snapnet/bitio"

// EntityType is the immutable, interned record for one typeId: its schema
// and the "schema zero" baseline image used as the delta reference for
// entities the decoder has never acked a prior snapshot for.
type EntityType struct {
	TypeID   uint16
	Schema   Schema
	Baseline []byte
}

// Registry interns EntityType records by typeId. Once inserted, an entry is
// immutable; a duplicate insert of an already-known typeId is ignored, per
// the snapshot decoder's schema-intern step.
type Registry struct {
	byTypeID map[uint16]*EntityType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTypeID: make(map[uint16]*EntityType)}
}

// Lookup returns the interned type for typeId, or nil if unknown.
func (r *Registry) Lookup(typeID uint16) *EntityType {
	return r.byTypeID[typeID]
}

// Intern inserts et if typeId isn't already known and returns the resident
// entry either way (the new one, or the one that was already there).
func (r *Registry) Intern(et *EntityType) *EntityType {
	if existing, ok := r.byTypeID[et.TypeID]; ok {
		return existing
	}
	r.byTypeID[et.TypeID] = et
	return et
}

// ReadSchema reads one length-prefixed list of (fieldType, bitCount,
// deltaContext, predictedFlag, mask) tuples off input.
func ReadSchema(input bitio.Stream) Schema {
	count := input.ReadRawBits(8)
	fields := make([]Field, count)
	for i := range fields {
		kind := FieldKind(input.ReadRawBits(1))
		bitCount := int(input.ReadRawBits(8))
		deltaCtx := uint16(input.ReadRawBits(16))
		predicted := input.ReadRawBits(1) != 0
		mask := byte(input.ReadRawBits(8))
		fields[i] = Field{Kind: kind, BitCount: bitCount, DeltaCtx: deltaCtx, Predicted: predicted, Mask: mask}
	}
	return Schema{Fields: fields}
}

// WriteSchema is ReadSchema's inverse.
func WriteSchema(output bitio.Stream, s Schema) {
	output.WriteRawBits(uint32(len(s.Fields)), 8)
	for _, f := range s.Fields {
		output.WriteRawBits(uint32(f.Kind), 1)
		output.WriteRawBits(uint32(f.BitCount), 8)
		output.WriteRawBits(uint32(f.DeltaCtx), 16)
		v := uint32(0)
		if f.Predicted {
			v = 1
		}
		output.WriteRawBits(v, 1)
		output.WriteRawBits(uint32(f.Mask), 8)
	}
}

// ReadEntityType reads a (typeId, schema, baseline) triple as the snapshot
// decoder's "Schemas" step does: the schema itself followed by its
// baseline image, read field-by-field through the schema's own codec
// (CopyFieldsToBuffer) rather than as raw aligned bytes — a FieldPacked
// field or a FieldRaw field whose BitCount isn't a multiple of 8 would
// otherwise desync the stream.
func ReadEntityType(input bitio.Stream) *EntityType {
	typeID := uint16(input.ReadRawBits(16))
	schema := ReadSchema(input)
	baseline := make([]byte, schema.ByteSize())
	CopyFieldsToBuffer(schema, input, baseline)
	return &EntityType{TypeID: typeID, Schema: schema, Baseline: baseline}
}

// WriteEntityType is ReadEntityType's inverse.
func WriteEntityType(output bitio.Stream, et *EntityType) {
	output.WriteRawBits(uint32(et.TypeID), 16)
	WriteSchema(output, et.Schema)
	WriteFieldsFromBuffer(et.Schema, output, et.Baseline)
}
