// Package snapshot implements the delta-compressed snapshot decoder: the
// entity table, per-entity baseline history, and the normative 13-step
// read of one snapshot body described by the component design this engine
// implements. It is the heart of the engine — everything else (framing,
// session, uplink) exists to get bytes to this decoder in the right order.
package snapshot

import (
	"bytes"

	"github.com/tutumagi/snapnet/bitio"
	"github.com/tutumagi/snapnet/delta"
	"github.com/tutumagi/snapnet/logger"
	"github.com/tutumagi/snapnet/seqbuf"
	"github.com/tutumagi/snapnet/wire"
)

// SnapshotRecord is the per-sequence metadata the decoder keeps so a later
// delta can look up "what serverTime did baseline b have".
type SnapshotRecord struct {
	ServerTime int32
}

// Decoder owns the entity table, the schema registry, the recent-snapshot
// ring and the pending spawn/despawn/update lists for one session's
// current map. It is not safe for concurrent use — like the rest of this
// engine, it's driven from one owner thread.
type Decoder struct {
	Registry  *wire.Registry
	Entities  *Table
	Predictor Predictor

	snapshots *seqbuf.Dense[SnapshotRecord]

	spawns        []EntityID
	despawns      []EntityID
	updates       []EntityID
	tempSpawnList []EntityID

	log   *logger.Logger
	debug bool
}

// NewDecoder returns a Decoder. snapshotDeltaCacheSize bounds both the
// snapshot metadata ring and, transitively, every entity's baseline ring;
// maxEntitySnapshotDataSize bounds each entity's scratch buffers. debug
// mirrors config.Config.Debug: with it set, a per-entity delta hash
// mismatch raises a fatal assertion instead of just being logged.
func NewDecoder(snapshotDeltaCacheSize, maxEntitySnapshotDataSize int, predictor Predictor, log *logger.Logger, debug bool) *Decoder {
	if predictor == nil {
		predictor = NoPredictor{}
	}
	return &Decoder{
		Registry:  wire.NewRegistry(),
		Entities:  NewTable(snapshotDeltaCacheSize, maxEntitySnapshotDataSize),
		Predictor: predictor,
		snapshots: seqbuf.NewDense[SnapshotRecord](snapshotDeltaCacheSize, func() SnapshotRecord { return SnapshotRecord{} }),
		log:       log,
		debug:     debug,
	}
}

// Reset clears the entity table and every pending list, used when a new
// MapInfo is adopted.
func (d *Decoder) Reset() {
	d.Entities.Reset()
	d.spawns = d.spawns[:0]
	d.despawns = d.despawns[:0]
	d.updates = d.updates[:0]
	d.tempSpawnList = d.tempSpawnList[:0]
}

// Spawns, Despawns, Updates expose the pending lists ProcessSnapshot drains.
func (d *Decoder) Spawns() []EntityID   { return d.spawns }
func (d *Decoder) Despawns() []EntityID { return d.despawns }
func (d *Decoder) Updates() []EntityID  { return d.updates }

// ProcessSnapshot replays the decoder's pending lists into consumer exactly
// once, then drains them, so re-entering Decode is legal. Each spawn's
// typeId is read from the slot's Type, which Decode already installed.
func (d *Decoder) ProcessSnapshot(consumer Consumer, serverTime int32) {
	for _, id := range d.spawns {
		s := d.Entities.SlotOrNil(id)
		if s == nil || s.Type == nil {
			continue
		}
		consumer.ProcessEntitySpawn(serverTime, id, s.Type.TypeID)
	}
	for _, id := range d.updates {
		s := d.Entities.SlotOrNil(id)
		if s == nil || s.Type == nil {
			continue
		}
		size := s.Type.Schema.ByteSize()
		consumer.ProcessEntityUpdate(serverTime, id, s.LastUpdate[:size], s.LastUpdateFieldsChanged)
	}
	for _, id := range d.despawns {
		consumer.ProcessEntityDespawn(serverTime, id)
	}
	consumer.ProcessSnapshot(serverTime)

	d.spawns = d.spawns[:0]
	d.despawns = d.despawns[:0]
	d.updates = d.updates[:0]
}

func containsID(list []EntityID, id EntityID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// Decode reads one snapshot body from input per the decoder's normative
// 13 steps. sequence is the package sequence this snapshot arrived in;
// currentServerTime is the session's serverTime going in. It returns the
// (possibly unchanged) new serverTime and whether this snapshot advanced
// it — the caller threads both back into session.Session.AdvanceServerTime
// — plus the wire-reported serverSimTime, which the caller threads into
// session.Session.SetServerSimTime.
//
// Decode panics with *ProtocolError on any of the fatal-assertion
// conditions: a consumer that left lists non-empty, a missing baseline, an
// unknown spawn type, a duplicate despawn, or an entity-count mismatch.
// Callers recover at one boundary (client.Facade.Update) rather than
// checking an error return on every call, matching the rest of the
// engine's fatal-assertion policy.
func (d *Decoder) Decode(input bitio.Stream, sequence int64, currentServerTime int32, nowMs int64) (newServerTime int32, advanced bool, serverSimTime float64) {
	if len(d.spawns) != 0 || len(d.despawns) != 0 || len(d.updates) != 0 {
		fail("snapshot decode re-entered with non-empty consumer lists (spawns=%d despawns=%d updates=%d)",
			len(d.spawns), len(d.despawns), len(d.updates))
	}
	d.tempSpawnList = d.tempSpawnList[:0]

	// Step 1: base sequence.
	baseSequence := int64(input.ReadPackedIntDelta(int32(sequence-1), "snap.base"))

	// Step 2: mode bits.
	enableNetworkPrediction := input.ReadRawBits(1) != 0
	enableHashing := input.ReadRawBits(1) != 0

	// Step 3: prediction baselines.
	var baseSequence1, baseSequence2 int64
	if enableNetworkPrediction {
		baseSequence1 = int64(input.ReadPackedIntDelta(int32(baseSequence-1), "snap.base1"))
		baseSequence2 = int64(input.ReadPackedIntDelta(int32(baseSequence1-1), "snap.base2"))
	}

	// Step 4: snapshot record + serverTime delta.
	var refTime int32
	if baseSequence != 0 {
		ref, ok := d.snapshots.TryGet(baseSequence)
		if !ok {
			fail("snapshot %d: missing snapshot record for baseSequence %d", sequence, baseSequence)
		}
		refTime = ref.ServerTime
	}
	rec := d.snapshots.Acquire(sequence)
	rec.ServerTime = input.ReadPackedIntDelta(refTime, "snap.time")

	// Step 5: server sim time, returned to the caller for
	// session.Session.SetServerSimTime.
	serverSimTime = float64(input.ReadRawBits(8)) * 0.1

	// Step 6: advance serverTime only if strictly newer.
	newServerTime = currentServerTime
	advanced = false
	if rec.ServerTime > currentServerTime {
		newServerTime = rec.ServerTime
		advanced = true
	} else {
		d.log.Warnf("snapshot %d: out-of-order (serverTime=%d <= current=%d), decoding and caching baseline without advancing time",
			sequence, rec.ServerTime, currentServerTime)
	}

	// Step 7: schemas.
	schemaCount := input.ReadRawBits(8)
	for i := uint32(0); i < schemaCount; i++ {
		et := wire.ReadEntityType(input)
		d.Registry.Intern(et)
	}

	// Step 8: prune despawn-pending entities the server has confirmed
	// final.
	d.Entities.ForEachLive(func(id EntityID, s *Slot) {
		if s.DespawnSequence > 0 && s.DespawnSequence <= baseSequence {
			s.Reset()
		}
	})

	// Step 9: spawns.
	previousID := EntityID(1)
	spawnCount := input.ReadRawBits(16)
	for i := uint32(0); i < spawnCount; i++ {
		id := EntityID(input.ReadPackedIntDelta(int32(previousID), "snap.id"))
		previousID = id
		typeID := uint16(input.ReadRawBits(16))
		fieldMask := byte(input.ReadRawBits(8))

		d.Entities.Grow(id)
		s := d.Entities.Slot(id)
		if !s.Live() {
			et := d.Registry.Lookup(typeID)
			if et == nil {
				fail("snapshot %d: spawn of entity %d references unknown typeId %d", sequence, id, typeID)
			}
			s.Type = et
			s.FieldMask = fieldMask
			d.spawns = append(d.spawns, id)
		}
		d.tempSpawnList = append(d.tempSpawnList, id)
	}

	// Step 10: despawns, continuing the same id delta chain.
	despawnCount := input.ReadRawBits(16)
	for i := uint32(0); i < despawnCount; i++ {
		id := EntityID(input.ReadPackedIntDelta(int32(previousID), "snap.id"))
		previousID = id

		if containsID(d.despawns, id) {
			fail("snapshot %d: entity %d despawned twice in one snapshot", sequence, id)
		}
		s := d.Entities.SlotOrNil(id)
		if s == nil || !s.Live() || s.Pending() {
			continue
		}
		if containsID(d.tempSpawnList, id) {
			s.DespawnSequence = sequence
		} else {
			s.Reset()
		}
		d.despawns = append(d.despawns, id)
	}

	// Step 11: predict all live entities.
	d.Entities.ForEachLive(func(id EntityID, s *Slot) {
		schema := s.Type.Schema
		size := schema.ByteSize()

		var baselines []Baseline
		if baseSequence == 0 || containsID(d.tempSpawnList, id) {
			baselines = append(baselines, Baseline{Time: 0, Image: s.Type.Baseline})
		} else {
			img, key, ok := s.Baselines.FindMax(baseSequence)
			if !ok {
				fail("snapshot %d: entity %d has no baseline at or before %d", sequence, id, baseSequence)
			}
			baseRec, _ := d.snapshots.TryGet(key)
			baselines = append(baselines, Baseline{Time: baseRec.ServerTime, Image: img[:size]})
		}

		if enableNetworkPrediction {
			if baseSequence1 != 0 {
				if img, key, ok := s.Baselines.FindMax(baseSequence1); ok {
					baseRec, _ := d.snapshots.TryGet(key)
					baselines = append(baselines, Baseline{Time: baseRec.ServerTime, Image: img[:size]})
				}
			}
			if baseSequence2 != 0 {
				if img, key, ok := s.Baselines.FindMax(baseSequence2); ok {
					baseRec, _ := d.snapshots.TryGet(key)
					baselines = append(baselines, Baseline{Time: baseRec.ServerTime, Image: img[:size]})
				}
			}
		}

		var prediction, fieldsChangedPrediction []byte
		if enableNetworkPrediction {
			prediction, fieldsChangedPrediction = d.Predictor.Predict(schema, baselines, newServerTime, s.FieldMask)
		} else {
			prediction = append([]byte(nil), baselines[0].Image...)
			fieldsChangedPrediction = make([]byte, maskBytes(len(schema.Fields)))
		}
		copy(s.Prediction, prediction)
		copy(s.FieldsChangedPrediction, fieldsChangedPrediction)
	})

	// Step 12: updates, decoded against the prediction buffer.
	previousID = EntityID(1)
	updateCount := input.ReadRawBits(16)
	for i := uint32(0); i < updateCount; i++ {
		id := EntityID(input.ReadPackedIntDelta(int32(previousID), "snap.id"))
		previousID = id

		s := d.Entities.SlotOrNil(id)
		if s == nil || !s.Live() {
			fail("snapshot %d: update references non-live entity %d", sequence, id)
		}
		schema := s.Type.Schema
		size := schema.ByteSize()

		image, fieldsChanged, hash := delta.Read(input, schema, s.Prediction[:size], s.FieldMask)
		copy(s.Prediction, image)
		copy(s.FieldsChangedPrediction, fieldsChanged)

		if enableHashing {
			transmitted := input.ReadRawBits(32)
			if transmitted != hash {
				d.log.Warnf("snapshot %d: entity %d delta hash mismatch (got %#x want %#x)", sequence, id, hash, transmitted)
				if d.debug {
					fail("snapshot %d: entity %d delta hash mismatch (got %#x want %#x)", sequence, id, hash, transmitted)
				}
			}
		}
	}

	// Step 13: commit.
	var snapshotHash uint32
	var numEnts uint32
	d.Entities.ForEachLive(func(id EntityID, s *Slot) {
		if s.Pending() && s.DespawnSequence != sequence {
			return
		}
		schema := s.Type.Schema
		size := schema.ByteSize()

		wasEmpty := s.Baselines.Empty()
		buf := s.Baselines.Insert(sequence)
		copy(buf, s.Prediction[:size])

		if sequence > s.LastUpdateSequence {
			differs := wasEmpty || !bytes.Equal(s.LastUpdate[:size], s.Prediction[:size])
			_ = differs // not a gate: every entity whose sequence advances is queued as an update below
			copy(s.LastUpdate, s.Prediction[:size])
			s.LastUpdateFieldsChanged = append(s.LastUpdateFieldsChanged[:0], s.FieldsChangedPrediction...)
			s.LastUpdateSequence = sequence
			if !containsID(d.updates, id) {
				d.updates = append(d.updates, id)
			}
		}

		if enableHashing {
			snapshotHash = mixSnapshotHash(snapshotHash, s.Prediction[:size])
			numEnts++
		}
	})

	if enableHashing {
		numEntsCheck := input.ReadRawBits(32)
		if numEntsCheck != numEnts {
			fail("snapshot %d: entity count mismatch (decoded %d, stream says %d)", sequence, numEnts, numEntsCheck)
		}
		_ = snapshotHash
	}

	return newServerTime, advanced, serverSimTime
}

func mixSnapshotHash(hash uint32, buf []byte) uint32 {
	for _, b := range buf {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return hash
}
