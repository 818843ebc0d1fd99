// Package framing implements the package-level header, ack tracking and
// outstanding-package bookkeeping every outbound and inbound package goes
// through before session-level messages (ClientInfo, MapInfo, Snapshot,
// ClientConfig, Commands, Events) are even looked at.
package framing

import "github.com/tutumagi/snapnet/bitio"

// Content is the set of payload segments a package declares it carries.
type Content uint8

const (
	ContentClientConfig Content = 1 << 0
	ContentCommands     Content = 1 << 1
	ContentEvents       Content = 1 << 2
	ContentClientInfo   Content = 1 << 3
	ContentMapInfo      Content = 1 << 4
	ContentSnapshot     Content = 1 << 5
	ContentFragment     Content = 1 << 6
)

// AckWindowBits is the number of preceding packages the ack bitfield
// covers, the "N" in "the preceding N packages" from the framing spec.
const AckWindowBits = 32

// Header is the fixed per-package framing record: the sender's own
// sequence, the sequence it's acking from the peer, and a bitfield over
// the AckWindowBits packages immediately preceding that ack.
type Header struct {
	Sequence    int64
	AckSequence int64
	AckBits     uint32
	Content     Content
}

// WriteHeader writes h's sequence as a packed delta from lastSent (so a
// strictly-monotonic, usually-small stream of sequence numbers costs only a
// few bits per package), AckSequence as a packed delta from h.Sequence, and
// the ack bits and content mask as raw bits.
func WriteHeader(output bitio.Stream, h Header, lastSent int64) {
	output.WritePackedIntDelta(int32(h.Sequence), int32(lastSent), "hdr.seq")
	output.WritePackedIntDelta(int32(h.AckSequence), int32(h.Sequence), "hdr.ack")
	output.WriteRawBits(h.AckBits, AckWindowBits)
	output.WriteRawBits(uint32(h.Content), 7)
}

// ReadHeader is WriteHeader's inverse.
func ReadHeader(input bitio.Stream, lastReceived int64) Header {
	seq := input.ReadPackedIntDelta(int32(lastReceived), "hdr.seq")
	ack := input.ReadPackedIntDelta(seq, "hdr.ack")
	bits := input.ReadRawBits(AckWindowBits)
	content := input.ReadRawBits(7)
	return Header{
		Sequence:    int64(seq),
		AckSequence: int64(ack),
		AckBits:     bits,
		Content:     Content(content),
	}
}

// HasContent reports whether flag is set in c.
func (c Content) HasContent(flag Content) bool {
	return c&flag != 0
}
