package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RangeClassification places a measured value relative to its reference interval.
// The variants are ordered by severity direction (high to low), not by numeric code.
type RangeClassification string

const (
	CRITICAL_ABUNDANCE  RangeClassification = "CRITICAL_ABUNDANCE"
	ELEVATED            RangeClassification = "ELEVATED"
	NORMAL_ZONE         RangeClassification = "NORMAL_ZONE"
	OPTIMAL_ZONE        RangeClassification = "OPTIMAL_ZONE"
	DEFICIENT           RangeClassification = "DEFICIENT"
	CRITICAL_DEFICIENCY RangeClassification = "CRITICAL_DEFICIENCY"
)

// RangeClassifications returns every variant in severity-direction order.
func RangeClassifications() []RangeClassification {
	return []RangeClassification{
		CRITICAL_ABUNDANCE,
		ELEVATED,
		NORMAL_ZONE,
		OPTIMAL_ZONE,
		DEFICIENT,
		CRITICAL_DEFICIENCY,
	}
}

// IsValid reports whether r is one of the six known variants.
func (r RangeClassification) IsValid() bool {
	switch r {
	case CRITICAL_ABUNDANCE, ELEVATED, NORMAL_ZONE, OPTIMAL_ZONE, DEFICIENT, CRITICAL_DEFICIENCY:
		return true
	default:
		return false
	}
}

// IsCritical is true for the two critical extremes.
func (r RangeClassification) IsCritical() bool {
	switch r {
	case CRITICAL_ABUNDANCE, CRITICAL_DEFICIENCY:
		return true
	default:
		return false
	}
}

// IsAbnormal is true for out-of-range values that are not critical.
func (r RangeClassification) IsAbnormal() bool {
	switch r {
	case ELEVATED, DEFICIENT:
		return true
	default:
		return false
	}
}

// IsNormal is true for values inside the reference interval.
func (r RangeClassification) IsNormal() bool {
	switch r {
	case NORMAL_ZONE, OPTIMAL_ZONE:
		return true
	default:
		return false
	}
}

// IsAbnormalOrCritical is the condition most rules are written against.
func (r RangeClassification) IsAbnormalOrCritical() bool {
	return r.IsAbnormal() || r.IsCritical()
}

// IsHigh is true for ELEVATED and CRITICAL_ABUNDANCE.
func (r RangeClassification) IsHigh() bool {
	return r == ELEVATED || r == CRITICAL_ABUNDANCE
}

// IsLow is true for DEFICIENT and CRITICAL_DEFICIENCY.
func (r RangeClassification) IsLow() bool {
	return r == DEFICIENT || r == CRITICAL_DEFICIENCY
}

func (r RangeClassification) String() string {
	return string(r)
}

// ParseRangeClassification accepts the canonical names case-insensitively.
func ParseRangeClassification(s string) (RangeClassification, error) {
	r := RangeClassification(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return r, nil
}

// OptionalRange is either a present RangeClassification or absent, for
// values whose classification could not be computed upstream.
// The zero value is absent.
type OptionalRange struct {
	value   RangeClassification
	present bool
}

// Present wraps a known classification.
func Present(r RangeClassification) OptionalRange {
	return OptionalRange{value: r, present: true}
}

// Absent returns the missing classification.
func Absent() OptionalRange {
	return OptionalRange{}
}

// Get returns the classification and whether it is present.
func (o OptionalRange) Get() (RangeClassification, bool) {
	return o.value, o.present
}

// IsPresent reports whether a classification is available.
func (o OptionalRange) IsPresent() bool {
	return o.present
}

// Satisfies applies cond to the classification. Absent never satisfies.
func (o OptionalRange) Satisfies(cond func(RangeClassification) bool) bool {
	if !o.present {
		return false
	}
	return cond(o.value)
}

func (o OptionalRange) String() string {
	if !o.present {
		return "ABSENT"
	}
	return o.value.String()
}

// MarshalJSON encodes absent as null.
func (o OptionalRange) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(string(o.value))
}

// UnmarshalJSON decodes null or an empty string as absent and rejects unknown names.
func (o *OptionalRange) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Absent()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("range must be a string or null: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*o = Absent()
		return nil
	}
	r, err := ParseRangeClassification(s)
	if err != nil {
		return err
	}
	*o = Present(r)
	return nil
}
