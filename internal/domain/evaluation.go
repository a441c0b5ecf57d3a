package domain

import (
	"fmt"
	"strings"
	"time"
)

// MeasurementInput is the transport form of a measurement. Either BiomarkerID
// or Biomarker (registry code) identifies the analyte. When Range is absent and
// Classify is requested, the value is classified from reference intervals.
//
// A BiomarkerID of 0 means no id was supplied, so 0 is never a valid
// identifier on its own. Any other id, negative ones included, is accepted
// and ignored by the rules when it is not in the registry.
type MeasurementInput struct {
	BiomarkerID BiomarkerID   `json:"biomarker_id,omitempty"`
	Biomarker   string        `json:"biomarker,omitempty"`
	Value       float64       `json:"value"`
	Range       OptionalRange `json:"range"`
}

// EvaluationRequest carries one batch of measurements.
type EvaluationRequest struct {
	Measurements []MeasurementInput `json:"measurements"`
	// Classify fills absent ranges from the reference intervals.
	Classify  bool   `json:"classify,omitempty"`
	RequestID string `json:"-"`
}

// Evaluation is the outcome of one request.
type Evaluation struct {
	ID           string        `json:"id"`
	Measurements []Measurement `json:"measurements"`
	Outputs      []Output      `json:"outputs"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
	Cached       bool          `json:"cached"`
}

// Resolve converts the input to a Measurement. Unknown numeric ids are kept
// (they are inert in the engine); unknown codes are rejected.
func (in MeasurementInput) Resolve() (Measurement, error) {
	id := in.BiomarkerID
	code := strings.TrimSpace(in.Biomarker)
	if code != "" {
		b, err := LookupBiomarkerByCode(code)
		if err != nil {
			return Measurement{}, err
		}
		if id != 0 && id != b.ID {
			return Measurement{}, NewValidationError("biomarker",
				fmt.Sprintf("code %q does not match id %d", code, int(id)), in.Biomarker)
		}
		id = b.ID
	}
	if id == 0 {
		return Measurement{}, NewValidationError("biomarker_id", "biomarker_id or biomarker is required", nil)
	}
	return Measurement{BiomarkerID: id, Value: in.Value, Range: in.Range}, nil
}

// HighestImportance returns the largest importance among outputs, or 0.
func (e *Evaluation) HighestImportance() int {
	highest := 0
	for _, o := range e.Outputs {
		if o.Importance > highest {
			highest = o.Importance
		}
	}
	return highest
}
