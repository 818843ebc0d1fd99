package seqbuf

// Sparse is the entity-baseline ring: a fixed number of byte payload slots
// keyed by sequence, with eviction of the oldest resident entry when full
// and a FindMax query for "the baseline the sender actually used" — the
// greatest resident key <= a requested sequence.
type Sparse struct {
	capacity     int
	payloadBytes int
	tags         []int64 // -1 = empty
	payloads     [][]byte
	order        []int64 // resident tags in insertion order, oldest first
}

// NewSparse returns a Sparse ring with the given slot capacity, each slot
// holding payloadBytes bytes.
func NewSparse(capacity, payloadBytes int) *Sparse {
	if capacity <= 0 {
		panic("seqbuf: NewSparse: capacity must be positive")
	}
	s := &Sparse{
		capacity:     capacity,
		payloadBytes: payloadBytes,
		tags:         make([]int64, capacity),
		payloads:     make([][]byte, capacity),
	}
	for i := range s.tags {
		s.tags[i] = -1
		s.payloads[i] = make([]byte, payloadBytes)
	}
	return s
}

func (s *Sparse) slotOf(seq int64) int {
	for i, t := range s.tags {
		if t == seq {
			return i
		}
	}
	return -1
}

func (s *Sparse) freeSlot() int {
	for i, t := range s.tags {
		if t == -1 {
			return i
		}
	}
	return -1
}

// Insert allocates (or reuses, if seq is already resident) a zeroed payload
// slot for seq, evicting the oldest resident entry if the ring is full, and
// returns the payload buffer for the caller to fill in.
func (s *Sparse) Insert(seq int64) []byte {
	if i := s.slotOf(seq); i >= 0 {
		for j := range s.payloads[i] {
			s.payloads[i][j] = 0
		}
		s.touch(seq)
		return s.payloads[i]
	}
	i := s.freeSlot()
	if i < 0 {
		oldest := s.order[0]
		i = s.slotOf(oldest)
		s.order = s.order[1:]
	}
	s.tags[i] = seq
	for j := range s.payloads[i] {
		s.payloads[i][j] = 0
	}
	s.order = append(s.order, seq)
	return s.payloads[i]
}

func (s *Sparse) touch(seq int64) {
	for i, t := range s.order {
		if t == seq {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, seq)
}

// Get returns the payload stored at seq, if resident.
func (s *Sparse) Get(seq int64) ([]byte, bool) {
	i := s.slotOf(seq)
	if i < 0 {
		return nil, false
	}
	return s.payloads[i], true
}

// FindMax returns the payload keyed by the greatest resident sequence
// <= seq, and that sequence, or (nil, 0, false) if no such entry is
// resident. Baseline 0 is never resident — it names "the schema baseline",
// not an entry in this ring — so callers handle seq == 0 themselves before
// calling FindMax.
func (s *Sparse) FindMax(seq int64) ([]byte, int64, bool) {
	best := int64(-1)
	bestIdx := -1
	for i, t := range s.tags {
		if t != -1 && t <= seq && t > best {
			best = t
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, 0, false
	}
	return s.payloads[bestIdx], best, true
}

// Empty reports whether no sequence is currently resident.
func (s *Sparse) Empty() bool {
	return len(s.order) == 0
}

// Reset clears every slot, returning the ring to its post-construction
// state. Used when an entity slot is finalised and its baseline history no
// longer applies to anything the server will ever reference again.
func (s *Sparse) Reset() {
	for i := range s.tags {
		s.tags[i] = -1
	}
	s.order = s.order[:0]
}
