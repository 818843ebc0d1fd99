package bitio

// Model is the opaque compression model blob the server hands the client in
// ClientInfo. The engine never inspects it directly — it is constructed once
// by whichever entropy coder package (compress/huffman, compress/rans) the
// process is configured to use, and handed back in to every Stream.Init call
// for the life of the session. The Raw variant needs none and accepts nil.
type Model interface{}

// ValueCoder is the contract a non-trivial Model must satisfy: given a named
// per-field context, encode or decode one unsigned value against whatever
// statistics that context has accumulated. This is the actual entropy coder
// primitive (Huffman tree walk, rANS state update, ...) and is treated as an
// external collaborator by this engine — compress/huffman and compress/rans
// only adapt a supplied ValueCoder into the Stream shape below, they do not
// reimplement the coding math themselves.
type ValueCoder interface {
	ReadValue(c *Cursor, ctx string) uint32
	WriteValue(c *Cursor, v uint32, ctx string)
}

// Stream is the single abstraction every entropy coder variant (Raw,
// Huffman, rANS) satisfies. The engine picks one implementation process-wide
// at connect time and never branches on variant again; read and write sides
// must agree on which one is in use.
type Stream interface {
	// Init binds the stream to model and buf, starting at bitOffset.
	Init(model Model, buf []byte, bitOffset int)

	ReadRawBits(n int) uint32
	WriteRawBits(v uint32, n int)

	ReadPackedUint(ctx string) uint32
	WritePackedUint(v uint32, ctx string)

	ReadPackedIntDelta(prev int32, ctx string) int32
	WritePackedIntDelta(v int32, prev int32, ctx string)

	ReadRawBytes(dst []byte)
	WriteRawBytes(src []byte)

	// Flush aligns to a byte boundary and returns the total bytes written.
	Flush() int
	// BitPosition reports the current absolute bit offset.
	BitPosition() int
	// Bytes returns the buffer currently bound to the stream. Callers that
	// want exactly what was written should slice it to Flush()'s return
	// value first.
	Bytes() []byte
}

// Zigzag and Unzigzag map signed deltas onto the unsigned packed-int wire
// representation shared by all three stream variants: small deltas in
// either direction cost the same number of bits.
func Zigzag(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func Unzigzag(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}
