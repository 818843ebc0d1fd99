package huffman

import "github.com/tutumagi/snapnet/bitio"

// AdaptiveModel is the reference bitio.ValueCoder this package ships for
// tests and the demo client. A real deployment's server trains proper
// Huffman tables offline and ships them as the ClientInfo model blob; this
// engine never needs to know how that happens (§1 treats the compression
// model as an external collaborator). AdaptiveModel exists so the Huffman
// Stream is exercisable without a real trained model: it adapts a small
// per-context rank code to the empirical frequency of each value's size
// class, which is a legitimate (if modest) entropy coder in its own right.
type AdaptiveModel struct {
	contexts map[string]*contextStats
}

type contextStats struct {
	counts [4]uint32
	rank   [4]int // rank[i] = class currently ranked i-th most frequent
}

func newContextStats() *contextStats {
	return &contextStats{rank: [4]int{0, 1, 2, 3}}
}

// NewAdaptiveModel constructs a model. blob is accepted for interface
// symmetry with a real trained-table deployment and is otherwise unused:
// this reference model adapts from scratch as values are read/written.
func NewAdaptiveModel(blob []byte) *AdaptiveModel {
	return &AdaptiveModel{contexts: make(map[string]*contextStats)}
}

var _ bitio.ValueCoder = (*AdaptiveModel)(nil)

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

// writeRankCode emits the prefix code for rank (0..3): "0", "10", "110",
// "111" — a comma-free code that always resolves in at most 3 bits.
func writeRankCode(c *bitio.Cursor, rank int) {
	for i := 0; i < rank && i < 3; i++ {
		c.WriteBits(1, 1)
	}
	if rank < 3 {
		c.WriteBits(0, 1)
	}
}

func readRankCode(c *bitio.Cursor) int {
	for i := 0; i < 3; i++ {
		if c.ReadBits(1) == 0 {
			return i
		}
	}
	return 3
}

func (m *AdaptiveModel) stats(ctx string) *contextStats {
	st, ok := m.contexts[ctx]
	if !ok {
		st = newContextStats()
		m.contexts[ctx] = st
	}
	return st
}

func (m *AdaptiveModel) rankOf(st *contextStats, class int) int {
	for r, c := range st.rank {
		if c == class {
			return r
		}
	}
	return 3
}

func (m *AdaptiveModel) update(st *contextStats, class int) {
	st.counts[class]++
	// Re-sort the four classes by descending count. Four elements, so a
	// simple insertion sort is both correct and cheap enough to run on
	// every symbol.
	for i := 1; i < 4; i++ {
		for j := i; j > 0 && st.counts[st.rank[j]] > st.counts[st.rank[j-1]]; j-- {
			st.rank[j], st.rank[j-1] = st.rank[j-1], st.rank[j]
		}
	}
}

func (m *AdaptiveModel) WriteValue(c *bitio.Cursor, v uint32, ctx string) {
	st := m.stats(ctx)
	class := classFor(v)
	writeRankCode(c, m.rankOf(st, class))
	c.WriteBits(v, classBits[class])
	m.update(st, class)
}

func (m *AdaptiveModel) ReadValue(c *bitio.Cursor, ctx string) uint32 {
	st := m.stats(ctx)
	rank := readRankCode(c)
	class := st.rank[rank]
	v := c.ReadBits(classBits[class])
	m.update(st, class)
	return v
}
