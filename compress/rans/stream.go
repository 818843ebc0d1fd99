// Package rans adapts an externally supplied rANS value coder into the
// engine's bitio.Stream shape, the same way compress/huffman adapts a
// Huffman coder. The rANS state machine itself — renormalization, the
// per-context frequency tables trained and shipped by the server — is the
// out-of-scope "compression model" collaborator; this package only handles
// the Raw/Packed split every Stream variant shares.
package rans

import "github.com/tutumagi/snapnet/bitio"

// Stream is the rANS-backed bitio.Stream.
type Stream struct {
	bitio.Cursor
	coder bitio.ValueCoder
}

var _ bitio.Stream = (*Stream)(nil)

// New returns a Stream ready for Init.
func New() *Stream {
	return &Stream{}
}

// Init binds model, which must implement bitio.ValueCoder.
func (s *Stream) Init(model bitio.Model, buf []byte, bitOffset int) {
	coder, ok := model.(bitio.ValueCoder)
	if !ok {
		panic("rans: Init: model does not implement bitio.ValueCoder")
	}
	s.Cursor.Reset(buf, bitOffset)
	s.coder = coder
}

func (s *Stream) ReadRawBits(n int) uint32     { return s.Cursor.ReadBits(n) }
func (s *Stream) WriteRawBits(v uint32, n int) { s.Cursor.WriteBits(v, n) }
func (s *Stream) ReadRawBytes(dst []byte)      { s.Cursor.ReadBytes(dst) }
func (s *Stream) WriteRawBytes(src []byte)     { s.Cursor.WriteBytes(src) }

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
