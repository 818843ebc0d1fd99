// Copyright (c) TFG Co. All Rights Reserved.
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

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandshakeProtocolMatch(t *testing.T) {
	s := New("build.42.a", true, nil)
	s.BeginConnecting()

	var modelBytes []byte
	s.HandleClientInfo(7, 60, "build.42.a", []byte{1, 2, 3}, func(data []byte) { modelBytes = data })

	assert.Equal(t, Connected, s.State())
	assert.EqualValues(t, 7, s.ClientID())
	assert.EqualValues(t, 60, s.ServerTickRate())
	assert.Equal(t, []byte{1, 2, 3}, modelBytes)
}

func TestHandshakeProtocolMismatchVerifyOn(t *testing.T) {
	s := New("build.42.a", true, nil)
	s.BeginConnecting()

	called := false
	s.HandleClientInfo(7, 60, "build.42.b", nil, func(data []byte) { called = true })

	assert.Equal(t, Disconnected, s.State())
	assert.False(t, called, "compression model must not be built on a rejected handshake")
	assert.EqualValues(t, 0, s.ClientID())
}

func TestHandshakeProtocolMismatchVerifyOff(t *testing.T) {
	s := New("build.42.a", false, nil)
	s.BeginConnecting()

	s.HandleClientInfo(9, 30, "build.42.b", nil, nil)

	assert.Equal(t, Connected, s.State(), "verification disabled should still connect on mismatch")
	assert.EqualValues(t, 9, s.ClientID())
}

func TestHandshakeRepeatedWithSameClientIDIsIgnored(t *testing.T) {
	s := New("build.42.a", true, nil)
	s.BeginConnecting()
	s.HandleClientInfo(7, 60, "build.42.a", nil, nil)

	s.HandleClientInfo(7, 10, "build.42.a", nil, nil)

	assert.EqualValues(t, 7, s.ClientID(), "a repeat ClientInfo with the same clientId while Connected must be ignored")
}

func TestHandshakeRepeatedWithDifferentClientIDPanics(t *testing.T) {
	s := New("build.42.a", true, nil)
	s.BeginConnecting()
	s.HandleClientInfo(7, 60, "build.42.a", nil, nil)

	assert.PanicsWithError(t, "repeat ClientInfo with different clientId: have 7, got 99", func() {
		s.HandleClientInfo(99, 10, "build.42.a", nil, nil)
	})
}

func TestMapInfoAdoptsOnlyStrictlyGreaterSequence(t *testing.T) {
	s := New("build.1", false, nil)

	resets := 0
	adopted := s.HandleMapInfo(5, 10, nil, []byte("payload-a"), func() { resets++ })
	assert.True(t, adopted)
	assert.Equal(t, 1, resets)

	adopted = s.HandleMapInfo(5, 10, nil, []byte("payload-b"), func() { resets++ })
	assert.False(t, adopted, "same or older mapSequence must be skipped")
	assert.Equal(t, 1, resets)

	adopted = s.HandleMapInfo(6, 11, nil, []byte("payload-c"), func() { resets++ })
	assert.True(t, adopted)
	assert.Equal(t, 2, resets)
	assert.Equal(t, []byte("payload-c"), s.MapInfo().Payload)
}

func TestAdvanceServerTimeRejectsOutOfOrder(t *testing.T) {
	s := New("build.1", false, nil)
	s.AdvanceServerTime(4000, 1000)

	advanced := s.AdvanceServerTime(3900, 2000)
	assert.False(t, advanced)
	assert.EqualValues(t, 4000, s.ServerTime())

	advanced = s.AdvanceServerTime(4100, 3000)
	assert.True(t, advanced)
	assert.EqualValues(t, 4100, s.ServerTime())
}

func TestDisconnectInvokesCallback(t *testing.T) {
	s := New("build.1", false, nil)
	s.BeginConnecting()
	s.HandleClientInfo(1, 60, "build.1", nil, nil)

	var reason string
	s.OnDisconnect(func(r string) { reason = r })
	s.Disconnect("transport closed")

	assert.Equal(t, Disconnected, s.State())
	assert.Equal(t, "transport closed", reason)
}
