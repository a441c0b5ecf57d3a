package classifier

import (
	"fmt"

	"github.com/biomarker-advisor/internal/domain"
)

// Interval holds reference, optimal and critical bounds for one biomarker.
// Any bound may be nil.
type Interval struct {
	BiomarkerID  domain.BiomarkerID `json:"biomarker_id"`
	ReferenceMin *float64           `json:"reference_min,omitempty"`
	ReferenceMax *float64           `json:"reference_max,omitempty"`
	OptimalMin   *float64           `json:"optimal_min,omitempty"`
	OptimalMax   *float64           `json:"optimal_max,omitempty"`
	CriticalLow  *float64           `json:"critical_low,omitempty"`
	CriticalHigh *float64           `json:"critical_high,omitempty"`
}

// OptimalBounds returns the optimal range with missing bounds filled in from
// the reference range. hasOptimal is false when neither optimal bound is set.
func (iv Interval) OptimalBounds() (optMin, optMax *float64, hasOptimal bool) {
	if iv.OptimalMin == nil && iv.OptimalMax == nil {
		return nil, nil, false
	}

	optMin = iv.OptimalMin
	if optMin == nil {
		optMin = iv.ReferenceMin
	}

	optMax = iv.OptimalMax
	if optMax == nil {
		optMax = iv.ReferenceMax
	}

	return optMin, optMax, true
}

// Validate checks that each pair of bounds is ordered and that critical
// bounds lie outside the reference range.
func (iv Interval) Validate() error {
	if iv.ReferenceMin == nil && iv.ReferenceMax == nil {
		return fmt.Errorf("interval for %s has no reference bounds", iv.BiomarkerID)
	}
	if err := ordered("reference", iv.ReferenceMin, iv.ReferenceMax); err != nil {
		return fmt.Errorf("interval for %s: %w", iv.BiomarkerID, err)
	}
	if err := ordered("optimal", iv.OptimalMin, iv.OptimalMax); err != nil {
		return fmt.Errorf("interval for %s: %w", iv.BiomarkerID, err)
	}
	if err := ordered("critical-low/reference-min", iv.CriticalLow, iv.ReferenceMin); err != nil {
		return fmt.Errorf("interval for %s: %w", iv.BiomarkerID, err)
	}
	if err := ordered("reference-max/critical-high", iv.ReferenceMax, iv.CriticalHigh); err != nil {
		return fmt.Errorf("interval for %s: %w", iv.BiomarkerID, err)
	}
	return nil
}

func ordered(name string, lo, hi *float64) error {
	if lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("%s bounds out of order: %g > %g", name, *lo, *hi)
	}
	return nil
}

func bound(v float64) *float64 {
	return &v
}
