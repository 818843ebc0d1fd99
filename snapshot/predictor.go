package snapshot

import "github.com/tutumagi/snapnet/wire"

// Baseline is one of up to three historical field images the predictor may
// draw from, each tagged with the server time it was captured at.
type Baseline struct {
	Time  int32
	Image []byte
}

// Predictor extrapolates an entity's field image forward to newTime from
// between one and three historical baselines. Like the compression model,
// the actual prediction math a real deployment uses is trained/tuned
// server-side knowledge external to this engine; Predictor is the seam
// that external collaborator plugs into. This package ships one small,
// honestly-labelled reference implementation (LinearPredictor) rather than
// pretending to reproduce a production predictor.
type Predictor interface {
	Predict(schema wire.Schema, baselines []Baseline, newTime int32, fieldMask byte) (prediction []byte, fieldsChangedPrediction []byte)
}

// NoPredictor copies the nearest baseline verbatim and reports no
// predicted changes — the "network prediction disabled" behaviour the
// decoder falls back to directly, exposed here as a Predictor so both
// paths can share the same call site if a caller wants to toggle
// prediction without branching.
type NoPredictor struct{}

func (NoPredictor) Predict(schema wire.Schema, baselines []Baseline, newTime int32, fieldMask byte) ([]byte, []byte) {
	prediction := append([]byte(nil), baselines[0].Image...)
	changed := make([]byte, maskBytes(len(schema.Fields)))
	return prediction, changed
}

// LinearPredictor extrapolates each field independently: given the two
// most recent baselines (b0 newer, b1 older), it projects the per-field
// value forward linearly against elapsed server time. With only one
// baseline available it degrades to NoPredictor's verbatim copy.
type LinearPredictor struct{}

func (LinearPredictor) Predict(schema wire.Schema, baselines []Baseline, newTime int32, fieldMask byte) ([]byte, []byte) {
	b0 := baselines[0]
	prediction := append([]byte(nil), b0.Image...)
	changed := make([]byte, maskBytes(len(schema.Fields)))

	if len(baselines) < 2 || baselines[1].Time == b0.Time {
		return prediction, changed
	}
	b1 := baselines[1]
	dt := newTime - b0.Time
	span := b0.Time - b1.Time

	offs := fieldOffsets(schema)
	for i, f := range schema.Fields {
		if !f.Predicted {
			continue
		}
		if f.Mask != 0 && fieldMask&f.Mask == 0 {
			continue
		}
		off := offs[i]
		width := fieldByteWidth(f)
		v0 := int64(getFieldBytes(b0.Image, off, width))
		v1 := int64(getFieldBytes(b1.Image, off, width))
		extrapolated := v0 + (v0-v1)*int64(dt)/int64(span)
		if extrapolated != v0 {
			setMaskBit(changed, i)
		}
		putFieldBytes(prediction, off, width, uint32(extrapolated))
	}
	return prediction, changed
}
