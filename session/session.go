// Copyright (c) nano Author and TFG Co. All Rights Reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package session implements the client-side connection state machine:
// ClientInfo/MapInfo handshake handling and the Disconnected/Connecting/
// Connected lifecycle every other component hangs off of.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tutumagi/snapnet/logger"
	"github.com/tutumagi/snapnet/snapshot"
)

// State is the client session's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// MapInfo is the per-map handshake record carried by the MapInfo message.
// A new MapInfo with a greater mapSequence resets all snapshot state: the
// entity table, the pending spawn/despawn/update lists and serverTime.
type MapInfo struct {
	MapSequence  uint16
	AckSequence  int64
	Processed    bool
	SchemaBlob   []byte // present only if the message carried a schema
	Payload      []byte
}

// Session holds everything the handshake and framing layers need to know
// about one connection: its state, the identifiers the server assigned it,
// and the most recently adopted MapInfo.
type Session struct {
	mu sync.RWMutex

	state State

	clientID        uint8
	serverTickRate  uint8
	protocolVersion string
	verifyProtocol  bool

	serverTime         int32
	serverSimTime      float64
	snapshotReceivedMs int64

	mapInfo MapInfo

	onDisconnect func(reason string)

	log *logger.Logger
}

// New returns a Session in the Disconnected state. log may be nil, in
// which case logging is a no-op (logger.Logger's methods are nil-safe).
func New(protocolVersion string, verifyProtocol bool, log *logger.Logger) *Session {
	return &Session{
		state:           Disconnected,
		protocolVersion: protocolVersion,
		verifyProtocol:  verifyProtocol,
		log:             log,
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// BeginConnecting transitions Disconnected -> Connecting; a no-op if
// already Connecting or Connected.
func (s *Session) BeginConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disconnected {
		s.state = Connecting
	}
}

// ClientID returns the id the server assigned on handshake, valid only
// once State() == Connected.
func (s *Session) ClientID() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// ServerTickRate returns the server's declared simulation tick rate.
func (s *Session) ServerTickRate() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverTickRate
}

// protocolSuffix returns the last '.'-delimited segment of a dotted
// protocol id string, the only part that's actually compared.
func protocolSuffix(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[i+1:]
	}
	return id
}

// HandleClientInfo applies a ClientInfo message per the handshake rules:
// a repeat while already Connected is ignored if clientID matches what
// was already adopted, and a fatal assertion if it doesn't — the server
// is not allowed to hand the same session a different identity mid-
// connection. On a protocol mismatch with verification enabled the
// session drops to Disconnected; otherwise the client id is adopted and
// the session becomes Connected.
//
// buildModel is invoked with modelData to construct the compression model
// exactly once, only on a successful handshake; its result is opaque to
// Session (the caller — client.Facade — plugs it into the selected
// bitio.Stream variant).
func (s *Session) HandleClientInfo(clientID, serverTickRate uint8, protocolID string, modelData []byte, buildModel func(modelData []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Connected {
		if clientID != s.clientID {
			panic(&snapshot.ProtocolError{Msg: fmt.Sprintf("repeat ClientInfo with different clientId: have %d, got %d", s.clientID, clientID)})
		}
		return
	}

	if protocolSuffix(protocolID) != protocolSuffix(s.protocolVersion) {
		if s.verifyProtocol {
			s.state = Disconnected
			s.log.Errorf("protocol mismatch: server %q local %q, disconnecting", protocolID, s.protocolVersion)
			return
		}
		s.log.Warnf("protocol mismatch: server %q local %q, continuing (verification disabled)", protocolID, s.protocolVersion)
	}

	if buildModel != nil {
		buildModel(modelData)
	}
	s.clientID = clientID
	s.serverTickRate = serverTickRate
	s.state = Connected
}

// HandleMapInfo applies a MapInfo message. resetSnapshotState is invoked
// exactly once, only when a genuinely new map (greater mapSequence) is
// adopted, so the caller can clear its entity table and pending lists.
func (s *Session) HandleMapInfo(mapSequence uint16, ackSequence int64, schemaBlob, payload []byte, resetSnapshotState func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mapSequence <= s.mapInfo.MapSequence && s.mapInfo.MapSequence != 0 {
		return false
	}
	s.mapInfo = MapInfo{
		MapSequence: mapSequence,
		AckSequence: ackSequence,
		Processed:   false,
		SchemaBlob:  schemaBlob,
		Payload:     payload,
	}
	s.serverTime = 0
	if resetSnapshotState != nil {
		resetSnapshotState()
	}
	return true
}

// MapInfo returns a copy of the currently adopted map handshake record.
func (s *Session) MapInfo() MapInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapInfo
}

// MarkMapProcessed flags the current MapInfo as delivered to onMapUpdate,
// so the facade only invokes the consumer once per adopted map.
func (s *Session) MarkMapProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapInfo.Processed = true
}

// AdvanceServerTime advances serverTime and records the wall-clock arrival
// time, but only if newTime is actually newer — callers use the bool to
// decide whether this snapshot counted as in-order.
func (s *Session) AdvanceServerTime(newTime int32, nowMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newTime <= s.serverTime {
		return false
	}
	s.serverTime = newTime
	s.snapshotReceivedMs = nowMs
	return true
}

// ServerTime returns the last accepted snapshot's server time.
func (s *Session) ServerTime() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverTime
}

// SetServerSimTime records the server-reported simulation duration for the
// most recently decoded snapshot (0.1ms units, per the wire format).
func (s *Session) SetServerSimTime(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverSimTime = t
}

// ServerSimTime returns the last recorded server simulation duration.
func (s *Session) ServerSimTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverSimTime
}

// Disconnect drops the session to Disconnected, e.g. on a transport
// Disconnect event, and invokes any registered OnDisconnect callback.
func (s *Session) Disconnect(reason string) {
	s.mu.Lock()
	cb := s.onDisconnect
	s.state = Disconnected
	s.mu.Unlock()
	if cb != nil {
		cb(reason)
	}
}

// OnDisconnect registers a callback invoked once per Disconnect call.
func (s *Session) OnDisconnect(f func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = f
}
