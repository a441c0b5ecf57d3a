// Package classifier places raw lab values into range classifications using
// per-biomarker reference intervals.
package classifier

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/domain"
)

// Classifier maps (biomarker, value) to an OptionalRange. It is read-only
// after construction and safe for concurrent use.
type Classifier struct {
	logger    *logrus.Logger
	intervals map[domain.BiomarkerID]Interval
}

// New builds a classifier from the given intervals. Each biomarker may
// appear at most once and every interval must validate.
func New(logger *logrus.Logger, intervals []Interval) (*Classifier, error) {
	if logger == nil {
		logger = logrus.New()
	}

	byID := make(map[domain.BiomarkerID]Interval, len(intervals))
	for _, iv := range intervals {
		if err := iv.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[iv.BiomarkerID]; dup {
			return nil, fmt.Errorf("duplicate interval for %s", iv.BiomarkerID)
		}
		byID[iv.BiomarkerID] = iv
	}

	return &Classifier{logger: logger, intervals: byID}, nil
}

// NewDefault builds a classifier over DefaultIntervals.
func NewDefault(logger *logrus.Logger) *Classifier {
	c, err := New(logger, DefaultIntervals())
	if err != nil {
		panic(fmt.Sprintf("default intervals: %v", err))
	}
	return c
}

// Classify returns Absent when no interval is known for id or the value is
// not finite.
func (c *Classifier) Classify(id domain.BiomarkerID, value float64) domain.OptionalRange {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return domain.Absent()
	}

	iv, ok := c.intervals[id]
	if !ok {
		c.logger.WithField("biomarker", id.Code()).Debug("No reference interval, leaving range absent")
		return domain.Absent()
	}

	return domain.Present(classify(iv, value))
}

func classify(iv Interval, value float64) domain.RangeClassification {
	switch {
	case iv.CriticalHigh != nil && value >= *iv.CriticalHigh:
		return domain.CRITICAL_ABUNDANCE
	case iv.CriticalLow != nil && value <= *iv.CriticalLow:
		return domain.CRITICAL_DEFICIENCY
	case iv.ReferenceMax != nil && value > *iv.ReferenceMax:
		return domain.ELEVATED
	case iv.ReferenceMin != nil && value < *iv.ReferenceMin:
		return domain.DEFICIENT
	}

	optMin, optMax, hasOptimal := iv.OptimalBounds()
	if hasOptimal && (optMin == nil || value >= *optMin) && (optMax == nil || value <= *optMax) {
		return domain.OPTIMAL_ZONE
	}
	return domain.NORMAL_ZONE
}

// Fill classifies measurements whose range is absent and returns a new slice.
// Present ranges are left as given.
func (c *Classifier) Fill(ms []domain.Measurement) []domain.Measurement {
	out := make([]domain.Measurement, len(ms))
	for i, m := range ms {
		if !m.Range.IsPresent() {
			m.Range = c.Classify(m.BiomarkerID, m.Value)
		}
		out[i] = m
	}
	return out
}

// Interval returns the interval configured for id.
func (c *Classifier) Interval(id domain.BiomarkerID) (Interval, bool) {
	iv, ok := c.intervals[id]
	return iv, ok
}
