// Package seqbuf implements the two sequence-keyed ring buffers the engine
// uses to remember recent packages, snapshots and baselines without ever
// hashing on the hot path: a dense ring for fixed-layout records (snapshot
// metadata, outstanding packages, commands) and a sparse ring for
// variable-use byte payloads (entity baselines) that additionally supports
// "greatest key <= seq" lookup.
//
// Neither has a natural home in any third-party library in this stack —
// they are small, allocation-free, and specific to the packed-sequence wire
// format — so both are hand-rolled here rather than reached for off the
// shelf; see DESIGN.md.
package seqbuf

// Dense is a fixed-capacity ring of T indexed by sequence number, slot
// i = seq % capacity. Each slot remembers the sequence it currently holds
// (-1 when empty) so a stale read after wraparound is detected instead of
// silently returning someone else's record.
type Dense[T any] struct {
	capacity int
	tags     []int64
	slots    []T
	factory  func() T
}

// NewDense returns a Dense ring of the given capacity. factory, if non-nil,
// is called once per slot up front so steady-state Acquire never allocates;
// if nil, slots start at T's zero value.
func NewDense[T any](capacity int, factory func() T) *Dense[T] {
	if capacity <= 0 {
		panic("seqbuf: NewDense: capacity must be positive")
	}
	d := &Dense[T]{
		capacity: capacity,
		tags:     make([]int64, capacity),
		slots:    make([]T, capacity),
		factory:  factory,
	}
	for i := range d.tags {
		d.tags[i] = -1
	}
	if factory != nil {
		for i := range d.slots {
			d.slots[i] = factory()
		}
	}
	return d
}

func (d *Dense[T]) index(seq int64) int {
	i := seq % int64(d.capacity)
	if i < 0 {
		i += int64(d.capacity)
	}
	return int(i)
}

// Acquire claims the slot for seq, resetting it to the factory's zero value
// (or T's zero value) and tagging it, then returns a pointer to it. Any
// record previously held at the same slot index is overwritten.
func (d *Dense[T]) Acquire(seq int64) *T {
	i := d.index(seq)
	if d.factory != nil {
		d.slots[i] = d.factory()
	} else {
		var zero T
		d.slots[i] = zero
	}
	d.tags[i] = seq
	return &d.slots[i]
}

// TryGet returns the slot for seq and true iff that slot's tag still
// matches seq (i.e. it hasn't been overwritten by a later sequence sharing
// the same ring position).
func (d *Dense[T]) TryGet(seq int64) (*T, bool) {
	i := d.index(seq)
	if d.tags[i] != seq {
		return nil, false
	}
	return &d.slots[i], true
}

// Exists reports whether seq currently has a live, correctly-tagged slot.
func (d *Dense[T]) Exists(seq int64) bool {
	_, ok := d.TryGet(seq)
	return ok
}

// RemoveWithCleanup clears the slot for seq if its tag still matches,
// invoking cleanup on the stored record first so callers can release
// references it holds (e.g. queued reliable events).
func (d *Dense[T]) RemoveWithCleanup(seq int64, cleanup func(*T)) {
	i := d.index(seq)
	if d.tags[i] != seq {
		return
	}
	if cleanup != nil {
		cleanup(&d.slots[i])
	}
	d.tags[i] = -1
	if d.factory != nil {
		d.slots[i] = d.factory()
	} else {
		var zero T
		d.slots[i] = zero
	}
}

// Capacity returns the ring's fixed size.
func (d *Dense[T]) Capacity() int {
	return d.capacity
}

// ForEach calls fn once per currently-resident slot, in ring index order.
func (d *Dense[T]) ForEach(fn func(seq int64, v *T)) {
	for i, tag := range d.tags {
		if tag != -1 {
			fn(tag, &d.slots[i])
		}
	}
}
