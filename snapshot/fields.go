package snapshot

import "github.com/tutumagi/snapnet/wire"

func maskBytes(n int) int {
	return (n + 7) / 8
}

func setMaskBit(mask []byte, i int) {
	mask[i/8] |= 1 << uint(i%8)
}

func fieldByteWidth(f wire.Field) int {
	w := (f.BitCount + 7) / 8
	if w == 0 {
		w = 1
	}
	return w
}

func fieldOffsets(schema wire.Schema) []int {
	offs := make([]int, len(schema.Fields))
	n := 0
	for i, f := range schema.Fields {
		offs[i] = n
		n += fieldByteWidth(f)
	}
	return offs
}

func getFieldBytes(buf []byte, off, width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		v |= uint32(buf[off+i]) << (8 * i)
	}
	return v
}

func putFieldBytes(buf []byte, off, width int, v uint32) {
	for i := 0; i < width; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}
