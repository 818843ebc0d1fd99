// Package netmetrics implements the engine's telemetry: push-model
// counters over DataDog's statsd client and latency/decode-duration
// histograms over HdrHistogram. It mirrors the teacher's config-gated
// "construct the reporter only if enabled, and always behind an interface
// the rest of the app never nil-checks" shape (app.configureMetrics /
// metrics.NewStatsdReporter), generalised so a nil *Sink is itself a safe,
// fully functional no-op rather than requiring a separate reporter
// interface and a conditional AddMetricsReporter call at every use site.
package netmetrics

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	histogramMinValue = 1
	histogramMaxValue = 60_000 // 60s for RTT (recorded in ms), 60ms for decode time (recorded in µs)
	histogramSigFigs  = 3
)

// Sink is the process-lifetime telemetry aggregate. A nil *Sink is a
// documented no-op for every method, so the engine never has to carry its
// own "is metrics enabled" branch — callers just always call through Sink.
type Sink struct {
	client *statsd.Client
	tags   []string

	rtt      *hdrhistogram.Histogram
	decodeUs *hdrhistogram.Histogram
}

// New returns a Sink pushing to a DataDog statsd agent at addr (host:port,
// typically "127.0.0.1:8125"). constTags are attached to every metric, the
// same role the teacher's config.GetStringMapString("pitaya.metrics.constTags")
// plays for its reporters.
func New(addr string, constTags map[string]string) (*Sink, error) {
	client, err := statsd.New(addr)
	if err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(constTags))
	for k, v := range constTags {
		tags = append(tags, k+":"+v)
	}
	return &Sink{
		client:   client,
		tags:     tags,
		rtt:      hdrhistogram.New(histogramMinValue, histogramMaxValue, histogramSigFigs),
		decodeUs: hdrhistogram.New(histogramMinValue, histogramMaxValue, histogramSigFigs),
	}, nil
}

// Close flushes and closes the underlying statsd client.
func (s *Sink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// PackageSent increments the packages-sent counter and records bytes sent.
func (s *Sink) PackageSent(bytes int) {
	if s == nil || s.client == nil {
		return
	}
	s.client.Incr("snapnet.packages.sent", s.tags, 1)
	s.client.Count("snapnet.bytes.sent", int64(bytes), s.tags, 1)
}

// PackageReceived increments the packages-received counter and records
// bytes received.
func (s *Sink) PackageReceived(bytes int) {
	if s == nil || s.client == nil {
		return
	}
	s.client.Incr("snapnet.packages.received", s.tags, 1)
	s.client.Count("snapnet.bytes.received", int64(bytes), s.tags, 1)
}

// PackageLost increments the packet-loss counter, called from
// NotifyDelivered on every madeIt=false resolution.
func (s *Sink) PackageLost() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Incr("snapnet.packages.lost", s.tags, 1)
}

// SnapshotDecoded increments the snapshots-decoded counter, records a
// snapshot-bytes gauge sample, and records decode into the decode-duration
// histogram.
func (s *Sink) SnapshotDecoded(bytes int, decode time.Duration) {
	if s == nil {
		return
	}
	if s.client != nil {
		s.client.Incr("snapnet.snapshots.decoded", s.tags, 1)
		s.client.Gauge("snapnet.snapshots.bytes", float64(bytes), s.tags, 1)
	}
	if s.decodeUs != nil {
		s.decodeUs.RecordValue(decode.Microseconds())
	}
}

// RecordRTT records a round-trip sample (outbound send time to inbound ack
// time), the histogram NotifyDelivered feeds on every madeIt=true
// resolution.
func (s *Sink) RecordRTT(d time.Duration) {
	if s == nil || s.rtt == nil {
		return
	}
	s.rtt.RecordValue(d.Milliseconds())
}

// RTTPercentile returns the p-th percentile (0-100) round-trip time in
// milliseconds observed so far, for a host game's debug overlay.
func (s *Sink) RTTPercentile(p float64) int64 {
	if s == nil || s.rtt == nil {
		return 0
	}
	return s.rtt.ValueAtPercentile(p)
}

// RTTMean returns the mean round-trip time in milliseconds observed so far.
func (s *Sink) RTTMean() float64 {
	if s == nil || s.rtt == nil {
		return 0
	}
	return s.rtt.Mean()
}

// DecodePercentile returns the p-th percentile decode duration in
// microseconds observed so far.
func (s *Sink) DecodePercentile(p float64) int64 {
	if s == nil || s.decodeUs == nil {
		return 0
	}
	return s.decodeUs.ValueAtPercentile(p)
}
