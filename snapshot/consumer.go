package snapshot

// Consumer is the game-side sink the decoder replays its pending lists
// into via ProcessSnapshot. ProcessEntityUpdate hands back the fully
// decoded field image plus a fieldsChanged bitmask rather than a bound
// reader, since the image is already fully materialised by the time the
// decoder gets here — there's nothing left to stream.
type Consumer interface {
	ProcessEntitySpawn(serverTime int32, id EntityID, typeID uint16)
	ProcessEntityUpdate(serverTime int32, id EntityID, image []byte, fieldsChanged []byte)
	ProcessEntityDespawn(serverTime int32, id EntityID)
	ProcessSnapshot(serverTime int32)
}
