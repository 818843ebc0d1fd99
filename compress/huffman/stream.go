// Package huffman adapts an externally supplied Huffman value coder into
// the engine's bitio.Stream shape. The coder itself — building and walking
// the Huffman tree for each named field context — is the "compression
// model" the protocol spec treats as an out-of-scope external collaborator,
// instantiated once from the opaque model blob the server sends in
// ClientInfo; this package only wires that coder's ReadValue/WriteValue
// calls into the same Raw/Packed split every Stream variant shares.
package huffman

import "github.com/tutumagi/snapnet/bitio"

// Stream is the Huffman-backed bitio.Stream. Raw bit/byte operations are
// identical to every other variant (they delegate to the shared Cursor);
// only the Packed operations consult the bound coder.
type Stream struct {
	bitio.Cursor
	coder bitio.ValueCoder
}

var _ bitio.Stream = (*Stream)(nil)

// New returns a Stream ready for Init.
func New() *Stream {
	return &Stream{}
}

// Init binds model, which must implement bitio.ValueCoder — the concrete
// Huffman tables the server trained and shipped in ClientInfo. Passing a
// model that doesn't implement ValueCoder is a programmer error: the
// session layer picked Huffman as the negotiated stream type but wired the
// wrong model type, so this panics rather than silently falling back.
func (s *Stream) Init(model bitio.Model, buf []byte, bitOffset int) {
	coder, ok := model.(bitio.ValueCoder)
	if !ok {
		panic("huffman: Init: model does not implement bitio.ValueCoder")
	}
	s.Cursor.Reset(buf, bitOffset)
	s.coder = coder
}

func (s *Stream) ReadRawBits(n int) uint32        { return s.Cursor.ReadBits(n) }
func (s *Stream) WriteRawBits(v uint32, n int)    { s.Cursor.WriteBits(v, n) }
func (s *Stream) ReadRawBytes(dst []byte)         { s.Cursor.ReadBytes(dst) }
func (s *Stream) WriteRawBytes(src []byte)        { s.Cursor.WriteBytes(src) }

func (s *Stream) ReadPackedUint(ctx string) uint32 {
	return s.coder.ReadValue(&s.Cursor, ctx)
}

func (s *Stream) WritePackedUint(v uint32, ctx string) {
	s.coder.WriteValue(&s.Cursor, v, ctx)
}

func (s *Stream) ReadPackedIntDelta(prev int32, ctx string) int32 {
	return prev + bitio.Unzigzag(s.ReadPackedUint(ctx))
}

func (s *Stream) WritePackedIntDelta(v int32, prev int32, ctx string) {
	s.WritePackedUint(bitio.Zigzag(v-prev), ctx)
}
