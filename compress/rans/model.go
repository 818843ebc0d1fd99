package rans

import "github.com/tutumagi/snapnet/bitio"

// RangeModel is the reference bitio.ValueCoder this package ships for tests
// and the demo client, standing in for a real rANS table the server would
// train and ship as the ClientInfo model blob (§1 treats that coder as an
// external collaborator). Where huffman.AdaptiveModel adapts to empirical
// per-context frequency, RangeModel uses a static universal code (Elias
// gamma over the value's size class) so the two reference models are not
// simply the same thing wearing two names.
type RangeModel struct{}

// NewRangeModel constructs a model. blob is accepted for interface symmetry
// with a real trained-table deployment; this reference model needs no
// state derived from it.
func NewRangeModel(blob []byte) *RangeModel {
	return &RangeModel{}
}

var _ bitio.ValueCoder = (*RangeModel)(nil)

var classBits = [4]int{4, 8, 16, 32}

func classFor(v uint32) int {
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

// writeEliasGamma writes the universal Elias gamma code for x (x >= 1):
// (bitlen(x)-1) zeros, then the bitlen(x) bits of x itself, MSB first.
func writeEliasGamma(c *bitio.Cursor, x uint32) {
	n := bitLen(x)
	for i := 0; i < n-1; i++ {
		c.WriteBits(0, 1)
	}
	c.WriteBits(x, n)
}

func readEliasGamma(c *bitio.Cursor) uint32 {
	zeros := 0
	for c.ReadBits(1) == 0 {
		zeros++
	}
	if zeros == 0 {
		return 1
	}
	rest := c.ReadBits(zeros)
	return (1 << uint(zeros)) | rest
}

func bitLen(x uint32) int {
	n := 0
	for x > 0 {
		n++
		x >>= 1
	}
	if n == 0 {
		n = 1
	}
	return n
}

func (m *RangeModel) WriteValue(c *bitio.Cursor, v uint32, ctx string) {
	class := classFor(v)
	writeEliasGamma(c, uint32(class+1))
	c.WriteBits(v, classBits[class])
}

func (m *RangeModel) ReadValue(c *bitio.Cursor, ctx string) uint32 {
	class := int(readEliasGamma(c)) - 1
	return c.ReadBits(classBits[class])
}
