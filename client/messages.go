package client

import (
	"encoding/binary"

	"github.com/tutumagi/snapnet/bitio"
)

// clientInfo is ClientInfo's wire shape, per §4.G: clientId:u8,
// serverTickRate:u8, protocolIdLen:u8, protocolId:bytes, modelSize:u16,
// modelData:bytes.
type clientInfo struct {
	ClientID       uint8
	ServerTickRate uint8
	ProtocolID     string
	ModelData      []byte
}

func readClientInfo(r bitio.Stream) clientInfo {
	id := uint8(r.ReadRawBits(8))
	tickRate := uint8(r.ReadRawBits(8))
	idLen := int(r.ReadRawBits(8))
	idBytes := make([]byte, idLen)
	r.ReadRawBytes(idBytes)
	modelSize := int(r.ReadRawBits(16))
	model := make([]byte, modelSize)
	r.ReadRawBytes(model)
	return clientInfo{ClientID: id, ServerTickRate: tickRate, ProtocolID: string(idBytes), ModelData: model}
}

func writeClientInfo(w bitio.Stream, ci clientInfo) {
	w.WriteRawBits(uint32(ci.ClientID), 8)
	w.WriteRawBits(uint32(ci.ServerTickRate), 8)
	w.WriteRawBits(uint32(len(ci.ProtocolID)), 8)
	w.WriteRawBytes([]byte(ci.ProtocolID))
	w.WriteRawBits(uint32(len(ci.ModelData)), 16)
	w.WriteRawBytes(ci.ModelData)
}

// mapInfo is MapInfo's wire shape: mapSequence:u16, schemaIncluded:1bit,
// [schemaLen:u32, schema bytes], mapPayloadLen:u32, mapPayload bytes. Both
// the schema and the map payload are opaque byte blobs at this layer — the
// map consumer interprets them, this engine never looks inside.
type mapInfo struct {
	MapSequence uint16
	SchemaBlob  []byte // nil if not included
	Payload     []byte
}

func readMapInfo(r bitio.Stream) mapInfo {
	seq := uint16(r.ReadRawBits(16))
	included := r.ReadRawBits(1) != 0
	var schema []byte
	if included {
		n := int(r.ReadRawBits(32))
		schema = make([]byte, n)
		r.ReadRawBytes(schema)
	}
	payloadLen := int(r.ReadRawBits(32))
	payload := make([]byte, payloadLen)
	r.ReadRawBytes(payload)
	return mapInfo{MapSequence: seq, SchemaBlob: schema, Payload: payload}
}

func writeMapInfo(w bitio.Stream, mi mapInfo) {
	w.WriteRawBits(uint32(mi.MapSequence), 16)
	if mi.SchemaBlob != nil {
		w.WriteRawBits(1, 1)
		w.WriteRawBits(uint32(len(mi.SchemaBlob)), 32)
		w.WriteRawBytes(mi.SchemaBlob)
	} else {
		w.WriteRawBits(0, 1)
	}
	w.WriteRawBits(uint32(len(mi.Payload)), 32)
	w.WriteRawBytes(mi.Payload)
}

// readEventsBlob / writeEventsBlob carry the Events content segment as a
// single length-prefixed opaque byte blob — application-level event kinds
// are a matter for the consumer, per §4.G; this engine never inspects them.
func readEventsBlob(r bitio.Stream) []byte {
	n := int(r.ReadRawBits(32))
	buf := make([]byte, n)
	r.ReadRawBytes(buf)
	return buf
}

func writeEventsBlob(w bitio.Stream, data []byte) {
	w.WriteRawBits(uint32(len(data)), 32)
	w.WriteRawBytes(data)
}

// encodeEventList packs a list of opaque event payloads into one blob, each
// prefixed with its own length so the peer can split them back apart
// without knowing anything about what's inside.
func encodeEventList(events [][]byte) []byte {
	var buf []byte
	var lenBuf [4]byte
	for _, ev := range events {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(ev)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, ev...)
	}
	return buf
}

// decodeEventList is encodeEventList's inverse.
func decodeEventList(blob []byte) [][]byte {
	var events [][]byte
	for len(blob) >= 4 {
		n := binary.BigEndian.Uint32(blob[:4])
		blob = blob[4:]
		if uint32(len(blob)) < n {
			break
		}
		events = append(events, blob[:n])
		blob = blob[n:]
	}
	return events
}

// clientConfig is the client->server ClientConfig segment: 32-bit
// serverUpdateRate, 16-bit serverUpdateSendRate.
type clientConfig struct {
	ServerUpdateRate     uint32
	ServerUpdateSendRate uint16
}

func writeClientConfig(w bitio.Stream, cc clientConfig) {
	w.WriteRawBits(cc.ServerUpdateRate, 32)
	w.WriteRawBits(uint32(cc.ServerUpdateSendRate), 16)
}
