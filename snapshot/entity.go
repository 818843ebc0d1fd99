package snapshot

import (
	"github.com/tutumagi/snapnet/seqbuf"
	"github.com/tutumagi/snapnet/wire"
)

// EntityID is a small, dense, server-assigned identifier. Entities live in
// a growable array indexed by EntityID rather than a map, per the design
// notes: ids are small and dense, so direct indexing amortises to O(1) and
// never hashes on the hot decode path.
type EntityID int

// Slot is one entity table entry. A free slot has Type == nil.
type Slot struct {
	Type      *wire.EntityType
	FieldMask byte

	LastUpdate              []byte
	LastUpdateFieldsChanged []byte
	LastUpdateSequence      int64

	// DespawnSequence is 0 while live; once a despawn arrives it holds the
	// package sequence the despawn came in on, and the slot is only freed
	// once a later snapshot's baseSequence reaches or passes it.
	DespawnSequence int64

	Prediction              []byte
	FieldsChangedPrediction []byte

	Baselines *seqbuf.Sparse
}

// Live reports whether the slot currently holds a spawned entity (whether
// or not it's pending despawn).
func (s *Slot) Live() bool {
	return s.Type != nil
}

// Pending reports whether the slot is live but has a despawn queued.
func (s *Slot) Pending() bool {
	return s.Type != nil && s.DespawnSequence > 0
}

// Reset frees the slot, dropping its type, field mask and baseline history.
// Called when a despawn is finalised (the server has confirmed it will
// never reference this slot's baselines again) or when the whole table is
// cleared on a map reset.
func (s *Slot) Reset() {
	s.Type = nil
	s.FieldMask = 0
	s.LastUpdateSequence = 0
	s.DespawnSequence = 0
	if s.Baselines != nil {
		s.Baselines.Reset()
	}
}

// Table is the full entity array for one session's current map.
type Table struct {
	slots          []*Slot
	baselineCache  int // snapshotDeltaCacheSize: baseline ring capacity per entity
	maxEntityBytes int // maxEntitySnapshotDataSize: scratch buffer size per entity
}

// NewTable returns an empty table. baselineCacheSize and maxEntityBytes are
// process-wide constants shared with the server (snapshotDeltaCacheSize and
// maxEntitySnapshotDataSize in the data model).
func NewTable(baselineCacheSize, maxEntityBytes int) *Table {
	return &Table{baselineCache: baselineCacheSize, maxEntityBytes: maxEntityBytes}
}

// Len returns the current table length (the highest grown index + 1).
func (t *Table) Len() int {
	return len(t.slots)
}

// Grow extends the table so id is a valid index, allocating fresh free
// slots (with their own baseline ring and scratch buffers, eagerly, so
// steady-state decoding never allocates) for every newly created index.
func (t *Table) Grow(id EntityID) {
	for EntityID(len(t.slots)) <= id {
		t.slots = append(t.slots, &Slot{
			Prediction:              make([]byte, t.maxEntityBytes),
			FieldsChangedPrediction: make([]byte, (t.maxEntityBytes+7)/8),
			LastUpdate:              make([]byte, t.maxEntityBytes),
			LastUpdateFieldsChanged: make([]byte, (t.maxEntityBytes+7)/8),
			Baselines:               seqbuf.NewSparse(t.baselineCache, t.maxEntityBytes),
		})
	}
}

// Slot returns the slot at id; callers must Grow first if id may be beyond
// the current length.
func (t *Table) Slot(id EntityID) *Slot {
	return t.slots[id]
}

// SlotOrNil returns the slot at id, or nil if id has never been grown to.
func (t *Table) SlotOrNil(id EntityID) *Slot {
	if id < 0 || int(id) >= len(t.slots) {
		return nil
	}
	return t.slots[id]
}

// Reset clears every slot in the table, used on a MapInfo-driven map reset.
func (t *Table) Reset() {
	for _, s := range t.slots {
		s.Reset()
	}
}

// ForEachLive calls fn for every currently-live slot, in id order.
func (t *Table) ForEachLive(fn func(id EntityID, s *Slot)) {
	for i, s := range t.slots {
		if s.Live() {
			fn(EntityID(i), s)
		}
	}
}
