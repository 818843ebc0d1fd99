package bitio

// RawStream is the "no entropy coder" variant: Packed operations use a
// fixed, context-independent bit-length class instead of per-context
// statistics. It needs no Model and is always available, which makes it the
// default for tooling and tests that don't want to stand up a trained
// compression model.
//
// All Raw operations are, by construction, identical between the read and
// write side and between RawStream and the Raw half of every other variant
// (every variant's raw bit/byte operations delegate straight to Cursor).
type RawStream struct {
	Cursor
}

var _ Stream = (*RawStream)(nil)

// NewRawStream returns a RawStream ready for Init.
func NewRawStream() *RawStream {
	return &RawStream{}
}

// Init ignores model; Raw needs none.
func (s *RawStream) Init(model Model, buf []byte, bitOffset int) {
	s.Cursor.Reset(buf, bitOffset)
}

func (s *RawStream) ReadRawBits(n int) uint32   { return s.Cursor.ReadBits(n) }
func (s *RawStream) WriteRawBits(v uint32, n int) { s.Cursor.WriteBits(v, n) }
func (s *RawStream) ReadRawBytes(dst []byte)     { s.Cursor.ReadBytes(dst) }
func (s *RawStream) WriteRawBytes(src []byte)    { s.Cursor.WriteBytes(src) }

// packedClassBits are the four size classes the raw packed encoding can
// select between: a 2-bit class selector followed by that many value bits.
// This keeps small, common values (entity ids, field deltas) cheap without
// needing any adaptive state.
var packedClassBits = [4]int{4, 8, 16, 32}

func (s *RawStream) ReadPackedUint(ctx string) uint32 {
	class := s.Cursor.ReadBits(2)
	return s.Cursor.ReadBits(packedClassBits[class])
}

func (s *RawStream) WritePackedUint(v uint32, ctx string) {
	class := packedClassFor(v)
	s.Cursor.WriteBits(uint32(class), 2)
	s.Cursor.WriteBits(v, packedClassBits[class])
}

func packedClassFor(v uint32) int {
	switch {
	case v < 1<<4:
		return 0
	case v < 1<<8:
		return 1
	case v < 1<<16:
		return 2
	default:
		return 3
	}
}

func (s *RawStream) ReadPackedIntDelta(prev int32, ctx string) int32 {
	return prev + Unzigzag(s.ReadPackedUint(ctx))
}

func (s *RawStream) WritePackedIntDelta(v int32, prev int32, ctx string) {
	s.WritePackedUint(Zigzag(v-prev), ctx)
}
