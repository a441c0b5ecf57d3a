package domain

// Measurement is one classified lab value. Range is absent when the
// upstream classifier could not place the value (e.g. no reference interval).
type Measurement struct {
	BiomarkerID BiomarkerID   `json:"biomarker_id"`
	Value       float64       `json:"value"`
	Range       OptionalRange `json:"range"`
}

// NewMeasurement builds a measurement with a present classification.
func NewMeasurement(id BiomarkerID, value float64, r RangeClassification) Measurement {
	return Measurement{BiomarkerID: id, Value: value, Range: Present(r)}
}

// Unclassified builds a measurement whose classification is absent.
func Unclassified(id BiomarkerID, value float64) Measurement {
	return Measurement{BiomarkerID: id, Value: value, Range: Absent()}
}

// Is applies cond to the measurement's classification; absent ranges never satisfy.
func (m Measurement) Is(cond func(RangeClassification) bool) bool {
	return m.Range.Satisfies(cond)
}

// FindMeasurement returns the first measurement for id in ms.
func FindMeasurement(ms []Measurement, id BiomarkerID) (Measurement, bool) {
	for _, m := range ms {
		if m.BiomarkerID == id {
			return m, true
		}
	}
	return Measurement{}, false
}
