package bitio

import "testing"

func TestRawStreamRawBitsRoundTrip(t *testing.T) {
	buf := make([]byte, 0, 8)
	w := NewRawStream()
	w.Init(nil, buf, 0)
	w.WriteRawBits(0b101, 3)
	w.WriteRawBits(0xABCD, 16)
	n := w.Flush()

	r := NewRawStream()
	r.Init(nil, w.Cursor.buf[:n], 0)
	if got := r.ReadRawBits(3); got != 0b101 {
		t.Fatalf("bits: got %v want 5", got)
	}
	if got := r.ReadRawBits(16); got != 0xABCD {
		t.Fatalf("bits: got %#x want 0xabcd", got)
	}
}

func TestRawStreamPackedUintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 15, 16, 255, 256, 65535, 65536, 1 << 30}
	buf := make([]byte, 0, 64)
	w := NewRawStream()
	w.Init(nil, buf, 0)
	for _, v := range values {
		w.WritePackedUint(v, "ctx")
	}
	n := w.Flush()

	r := NewRawStream()
	r.Init(nil, w.Cursor.buf[:n], 0)
	for _, want := range values {
		if got := r.ReadPackedUint("ctx"); got != want {
			t.Fatalf("packed uint: got %v want %v", got, want)
		}
	}
}

func TestRawStreamPackedIntDeltaRoundTrip(t *testing.T) {
	deltas := []int32{0, 1, -1, 100, -100, 1 << 20, -(1 << 20)}
	buf := make([]byte, 0, 64)
	w := NewRawStream()
	w.Init(nil, buf, 0)
	prev := int32(1000)
	for _, d := range deltas {
		w.WritePackedIntDelta(prev+d, prev, "ctx")
	}
	n := w.Flush()

	r := NewRawStream()
	r.Init(nil, w.Cursor.buf[:n], 0)
	for _, d := range deltas {
		got := r.ReadPackedIntDelta(prev, "ctx")
		if got != prev+d {
			t.Fatalf("packed delta: got %v want %v", got, prev+d)
		}
	}
}

func TestRawStreamBytesRoundTrip(t *testing.T) {
	src := []byte{1, 2, 3, 255, 0, 128}
	buf := make([]byte, 0, 8)
	w := NewRawStream()
	w.Init(nil, buf, 0)
	w.WriteRawBytes(src)
	n := w.Flush()

	r := NewRawStream()
	r.Init(nil, w.Cursor.buf[:n], 0)
	dst := make([]byte, len(src))
	r.ReadRawBytes(dst)
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: got %v want %v", i, dst[i], src[i])
		}
	}
}

func TestRawStreamUnalignedOffset(t *testing.T) {
	buf := make([]byte, 4)
	w := NewRawStream()
	w.Init(nil, buf, 3)
	w.WriteRawBits(0x7, 3)

	r := NewRawStream()
	r.Init(nil, buf, 3)
	if got := r.ReadRawBits(3); got != 0x7 {
		t.Fatalf("unaligned: got %v want 7", got)
	}
}
