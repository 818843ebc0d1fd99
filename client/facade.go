// Package client implements the engine's single orchestration point:
// Facade ties session, snapshot, uplink and framing to a transport.Transport
// and a bitio.Stream variant, and is the only thing an embedding game loop
// has to drive — one Update() per frame, one SendPackage() per frame (or on
// whatever cadence the caller likes; the outbound rate limiter is what
// actually paces the wire).
package client

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tutumagi/snapnet/bitio"
	"github.com/tutumagi/snapnet/compress/huffman"
	"github.com/tutumagi/snapnet/compress/rans"
	"github.com/tutumagi/snapnet/config"
	"github.com/tutumagi/snapnet/framing"
	"github.com/tutumagi/snapnet/logger"
	"github.com/tutumagi/snapnet/netmetrics"
	"github.com/tutumagi/snapnet/session"
	"github.com/tutumagi/snapnet/snapshot"
	"github.com/tutumagi/snapnet/transport"
	"github.com/tutumagi/snapnet/uplink"
	"github.com/tutumagi/snapnet/wire"
)

// maxPackageSize bounds the scratch buffer SendPackage writes into. It is
// generous relative to any single package this protocol produces (a
// handful of entity deltas and a couple of commands), comfortably under a
// typical path MTU.
const maxPackageSize = 1400

// snapshotDeltaCacheSize and maxEntitySnapshotDataSize size the decoder's
// baseline history. Neither is exposed as a tunable: 32 past snapshots is
// far more than the 3-deep network prediction chain ever needs, and 256
// bytes comfortably covers any schema this engine has seen in practice.
const (
	snapshotDeltaCacheSize    = 32
	maxEntitySnapshotDataSize = 256
)

// outstandingCapacity sizes the outbound package's in-flight table. It must
// exceed the ack bitfield's window so ProcessAck can always resolve
// whatever the window could possibly describe.
const outstandingCapacity = framing.AckWindowBits * 2

// Facade is the component an embedding game loop drives. It owns the
// session state machine, the snapshot decoder, the command uploader, both
// halves of framing, and builds whichever bitio.Stream variant
// cfg.IOStreamType names for each package it reads or writes.
type Facade struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *netmetrics.Sink

	transport transport.Transport
	connID    int

	// corrID is a fresh identifier minted on every Connect call, the same
	// role uuid.New().String() plays for the teacher's per-call request and
	// server-registration IDs: it has nothing to do with the wire protocol,
	// it just gives one connection attempt's log lines something to group
	// on across reconnects.
	corrID string

	session  *session.Session
	decoder  *snapshot.Decoder
	uploader *uplink.Uploader

	inbound  *framing.Inbound
	outbound *framing.Outbound

	model bitio.Model

	lastSentCommandSeq int64
	sendClientConfig   bool

	pendingEvents []framing.ReliableEvent

	onMapUpdate func(payload []byte)
	onEvents    func(events [][]byte)

	nowMs func() int64
}

// NewFacade returns a Facade in the Disconnected state. commandSchema
// describes one tick of outbound player input. predictor may be nil, which
// selects snapshot.NoPredictor. metrics may be nil, which is a documented
// no-op. nowMs may be nil, which defaults to the wall clock; tests pass a
// deterministic clock instead.
func NewFacade(cfg config.Config, tr transport.Transport, commandSchema wire.Schema, predictor snapshot.Predictor, log *logger.Logger, metrics *netmetrics.Sink, nowMs func() int64) *Facade {
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	f := &Facade{
		cfg:              cfg,
		log:              log,
		metrics:          metrics,
		transport:        tr,
		session:          session.New(cfg.ProtocolVersion, cfg.VerifyProtocol, log),
		decoder:          snapshot.NewDecoder(snapshotDeltaCacheSize, maxEntitySnapshotDataSize, predictor, log, cfg.Debug),
		uploader:         uplink.NewUploader(commandSchema),
		inbound:          framing.NewInbound(),
		outbound:         framing.NewOutbound(outstandingCapacity, float64(cfg.ServerUpdateSendRate)),
		sendClientConfig: true,
		nowMs:            nowMs,
	}
	return f
}

// Session, Decoder and Uploader expose the owned components read-only
// access for callers that want to inspect connection state, entity data or
// command watermarks directly.
func (f *Facade) Session() *session.Session { return f.session }
func (f *Facade) Decoder() *snapshot.Decoder { return f.decoder }
func (f *Facade) Uploader() *uplink.Uploader { return f.uploader }

// OnMapUpdate registers the callback Update invokes exactly once per newly
// adopted MapInfo, with the map's opaque payload.
func (f *Facade) OnMapUpdate(cb func(payload []byte)) { f.onMapUpdate = cb }

// OnEvents registers the callback Update invokes with every events blob a
// package carries, already split back into individual opaque payloads.
func (f *Facade) OnEvents(cb func(events [][]byte)) { f.onEvents = cb }

// Connect opens the transport connection and begins the handshake.
func (f *Facade) Connect(host string) error {
	f.corrID = uuid.New().String()
	id, err := f.transport.Connect(host)
	if err != nil {
		f.log.Errorf("connect %s failed: %v", f.corrID, err)
		return fmt.Errorf("client: connect: %w", err)
	}
	f.connID = id
	f.session.BeginConnecting()
	f.log.Infof("connecting %s to %s (connId=%d)", f.corrID, host, id)
	return nil
}

// Disconnect tears down the transport connection and drops the session.
func (f *Facade) Disconnect(reason string) {
	f.transport.Disconnect(f.connID)
	f.session.Disconnect(reason)
	f.log.Infof("disconnected %s: %s", f.corrID, reason)
}

// QueueCommand appends one tick of input to the outbound command ring.
func (f *Facade) QueueCommand(time int32, data []byte) int64 {
	return f.uploader.Queue(time, data)
}

// QueueEvent appends one opaque reliable event to the next outbound
// package; it is re-queued automatically if that package is lost.
func (f *Facade) QueueEvent(data []byte) {
	f.pendingEvents = append(f.pendingEvents, data)
}

// newStream constructs the bitio.Stream variant the negotiated config
// selects. It switches on cfg.IOStreamType on every call; streams are cheap
// enough to build fresh per package rather than pool.
func (f *Facade) newStream() bitio.Stream {
	switch f.cfg.IOStreamType {
	case config.StreamHuffman:
		return huffman.New()
	case config.StreamRans:
		return rans.New()
	default:
		return bitio.NewRawStream()
	}
}

// buildModel constructs the compression model matching the negotiated
// stream variant from the server-supplied blob. It is wired into
// session.Session.HandleClientInfo, which calls it exactly once, only on a
// successful handshake.
func (f *Facade) buildModel(modelData []byte) {
	switch f.cfg.IOStreamType {
	case config.StreamHuffman:
		f.model = huffman.NewAdaptiveModel(modelData)
	case config.StreamRans:
		f.model = rans.NewRangeModel(modelData)
	default:
		f.model = nil
	}
}

// Update pumps the transport, decodes whatever arrived, and delivers the
// map-update callback on a newly adopted map. It recovers from
// *snapshot.ProtocolError — the engine's fatal-assertion type — logging it
// and disconnecting rather than letting a malformed package bring down the
// caller's frame loop, mirroring the teacher's CatchPanic/RunPanicless
// pattern. Any other panic is not ours to interpret and is re-raised.
func (f *Facade) Update() (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if pe, ok := r.(*snapshot.ProtocolError); ok {
			f.log.Errorf("protocol error, disconnecting: %v", pe)
			f.Disconnect("protocol error")
			err = pe
			return
		}
		panic(r)
	}()

	f.transport.Update()

	for {
		ev, ok := f.transport.NextEvent()
		if !ok {
			break
		}
		if ev.ConnectionID != f.connID {
			continue
		}
		switch ev.Kind {
		case transport.EventConnect:
			// Nothing to do until the handshake messages arrive; the
			// session is already in Connecting from Connect().
		case transport.EventDisconnect:
			f.session.Disconnect("transport disconnected")
		case transport.EventData:
			f.handleData(ev.Data)
		}
	}

	if mi := f.session.MapInfo(); mi.MapSequence != 0 && !mi.Processed {
		if f.onMapUpdate != nil {
			f.onMapUpdate(mi.Payload)
		}
		f.session.MarkMapProcessed()
	}
	return nil
}

func (f *Facade) handleData(data []byte) {
	if f.cfg.BlockIn {
		return
	}

	r := f.newStream()
	r.Init(f.model, data, 0)

	hdr := framing.ReadHeader(r, f.inbound.Sequence())
	if f.inbound.Accept(hdr.Sequence, f.nowMs()) == 0 {
		return
	}
	f.metrics.PackageReceived(len(data))

	f.outbound.ProcessAck(hdr.AckSequence, hdr.AckBits, f.notifyDelivered)

	if hdr.Content.HasContent(framing.ContentClientInfo) {
		ci := readClientInfo(r)
		f.session.HandleClientInfo(ci.ClientID, ci.ServerTickRate, ci.ProtocolID, ci.ModelData, f.buildModel)
	}
	if hdr.Content.HasContent(framing.ContentMapInfo) {
		mi := readMapInfo(r)
		f.session.HandleMapInfo(mi.MapSequence, hdr.Sequence, mi.SchemaBlob, mi.Payload, f.decoder.Reset)
	}
	if hdr.Content.HasContent(framing.ContentSnapshot) {
		start := time.Now()
		newTime, advanced, serverSimTime := f.decoder.Decode(r, hdr.Sequence, f.session.ServerTime(), f.nowMs())
		if advanced {
			f.session.AdvanceServerTime(newTime, f.nowMs())
		}
		f.session.SetServerSimTime(serverSimTime)
		f.metrics.SnapshotDecoded(len(data), time.Since(start))
	}
	if hdr.Content.HasContent(framing.ContentEvents) {
		blob := readEventsBlob(r)
		if f.onEvents != nil {
			f.onEvents(decodeEventList(blob))
		}
	}
}

// notifyDelivered is the client-side NotifyDelivered override layered on
// top of framing.DefaultNotifyDelivered: on success it advances
// commandSequenceAck and records the round trip; on failure, losing a
// package that carried the client config means the server never saw the
// update, so it's marked to resend.
func (f *Facade) notifyDelivered(seq int64, info *framing.OutstandingPackage, madeIt bool) {
	if madeIt {
		if info.CommandSequence > f.uploader.CommandSequenceAck() {
			f.uploader.Ack(info.CommandSequence)
		}
		if info.SentAtMs > 0 {
			f.metrics.RecordRTT(time.Duration(time.Now().UnixMilli()-info.SentAtMs) * time.Millisecond)
		}
	} else {
		f.metrics.PackageLost()
		if info.Content.HasContent(framing.ContentClientConfig) {
			f.sendClientConfig = true
		}
	}
	framing.DefaultNotifyDelivered(seq, info, madeIt, f.requeueEvent)
}

func (f *Facade) requeueEvent(ev framing.ReliableEvent) {
	f.pendingEvents = append(f.pendingEvents, ev)
}

// SendPackage builds and sends one outbound package if there is anything
// to say: it is a no-op before the first inbound package has been accepted
// (there is no AckSequence to reference yet), if nothing has changed since
// the last send, and — without consuming a rate-limiter token — if the
// outbound limiter has none available.
func (f *Facade) SendPackage() error {
	if f.cfg.BlockOut {
		return nil
	}
	if f.inbound.Sequence() <= 0 {
		return nil
	}

	hasCommands := f.uploader.HasPending(f.lastSentCommandSeq)
	hasEvents := len(f.pendingEvents) > 0
	sendingClientConfig := f.sendClientConfig
	if !sendingClientConfig && !hasCommands && !hasEvents {
		return nil
	}
	if !f.outbound.Allow() {
		return nil
	}

	seq, info := f.outbound.NextSequence()
	info.SentAtMs = time.Now().UnixMilli()

	var content framing.Content
	if sendingClientConfig {
		content |= framing.ContentClientConfig
		// Optimistically consider it sent; notifyDelivered flips this back
		// to true if this exact package turns out to be lost.
		f.sendClientConfig = false
	}
	if hasCommands {
		content |= framing.ContentCommands
	}
	if hasEvents {
		content |= framing.ContentEvents
	}
	info.Content = content

	w := f.newStream()
	buf := make([]byte, maxPackageSize)
	w.Init(f.model, buf, 0)

	hdr := framing.Header{
		Sequence:    seq,
		AckSequence: f.inbound.Sequence(),
		AckBits:     f.inbound.AckBits(),
		Content:     content,
	}
	framing.WriteHeader(w, hdr, seq-1)

	if sendingClientConfig {
		writeClientConfig(w, clientConfig{
			ServerUpdateRate:     f.cfg.ServerUpdateRate,
			ServerUpdateSendRate: f.cfg.ServerUpdateSendRate,
		})
	}
	if hasCommands {
		commandSeq, commandTime := f.uploader.Write(w)
		info.CommandSequence = commandSeq
		info.CommandTime = commandTime
		f.lastSentCommandSeq = commandSeq
	}
	if hasEvents {
		events := f.pendingEvents
		f.pendingEvents = nil
		info.Events = events
		writeEventsBlob(w, encodeEventList(rawEventBytes(events)))
	}

	n := w.Flush()
	out := append([]byte(nil), w.Bytes()[:n]...)

	f.metrics.PackageSent(n)
	return f.transport.Send(f.connID, out)
}

// rawEventBytes narrows a []framing.ReliableEvent queued through QueueEvent
// (which only ever stores []byte) back to [][]byte for wire encoding.
func rawEventBytes(events []framing.ReliableEvent) [][]byte {
	out := make([][]byte, 0, len(events))
	for _, ev := range events {
		if b, ok := ev.([]byte); ok {
			out = append(out, b)
		}
	}
	return out
}
