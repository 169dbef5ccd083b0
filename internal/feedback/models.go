// Package feedback records post-hoc optimization outcomes and maintains
// the rolling accuracy that feeds confidence estimation.
package feedback

import (
	"errors"
	"math"
	"time"
)

// Repository errors.
var (
	// ErrResultNotFound indicates no pending prediction exists for a result ID.
	ErrResultNotFound = errors.New("optimization result not found")
)

// PendingPrediction is a completed prediction awaiting its observed
// outcome. The normalized feature vector is retained so the client's
// model can be fine-tuned once the actual factor arrives.
type PendingPrediction struct {
	ResultID  string
	ClientID  string
	Predicted float64
	Features  []float64
	CreatedAt time.Time
}

// Record is an observed outcome. Records are append-only; the pending
// prediction they resolve is consumed when the record is written, which is
// the only state transition a result goes through.
type Record struct {
	ResultID  string
	ClientID  string
	Predicted float64
	Actual    float64
	AbsError  float64
	Features  []float64
	CreatedAt time.Time
}

// NewRecord builds a record from a resolved pending prediction.
func NewRecord(p *PendingPrediction, actual float64) *Record {
	return &Record{
		ResultID:  p.ResultID,
		ClientID:  p.ClientID,
		Predicted: p.Predicted,
		Actual:    actual,
		AbsError:  math.Abs(p.Predicted - actual),
		Features:  p.Features,
		CreatedAt: time.Now(),
	}
}
