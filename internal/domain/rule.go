package domain

import (
	"fmt"
)

// Predicate decides whether a rule fires. It only ever receives the
// measurements matching the rule's required biomarkers.
type Predicate func(measurements []Measurement) bool

// Rule is an immutable advisory rule over a fixed set of biomarkers.
type Rule struct {
	id          int
	name        string
	required    []BiomarkerID
	requiredSet map[BiomarkerID]struct{}
	predicate   Predicate
	message     string
	importance  int
}

// NewRule validates and builds a rule. Duplicate required ids are collapsed
// since the requirement is a set.
func NewRule(id int, name string, required []BiomarkerID, predicate Predicate, message string, importance int) (Rule, error) {
	if predicate == nil {
		return Rule{}, fmt.Errorf("%w: rule %d has no predicate", ErrInvalidRule, id)
	}
	if message == "" {
		return Rule{}, fmt.Errorf("%w: rule %d has no message", ErrInvalidRule, id)
	}

	set := make(map[BiomarkerID]struct{}, len(required))
	ids := make([]BiomarkerID, 0, len(required))
	for _, b := range required {
		if _, dup := set[b]; dup {
			continue
		}
		set[b] = struct{}{}
		ids = append(ids, b)
	}
	if len(ids) == 0 {
		return Rule{}, fmt.Errorf("%w: rule %d requires no biomarkers", ErrInvalidRule, id)
	}

	return Rule{
		id:          id,
		name:        name,
		required:    ids,
		requiredSet: set,
		predicate:   predicate,
		message:     message,
		importance:  importance,
	}, nil
}

func (r Rule) ID() int         { return r.id }
func (r Rule) Name() string    { return r.name }
func (r Rule) Message() string { return r.message }
func (r Rule) Importance() int { return r.importance }

// RequiredBiomarkers returns a copy of the required ids in declaration order.
func (r Rule) RequiredBiomarkers() []BiomarkerID {
	out := make([]BiomarkerID, len(r.required))
	copy(out, r.required)
	return out
}

// RequiredCount is the size of the required set.
func (r Rule) RequiredCount() int {
	return len(r.required)
}

// Requires reports whether id is in the required set.
func (r Rule) Requires(id BiomarkerID) bool {
	_, ok := r.requiredSet[id]
	return ok
}

// Evaluate runs the predicate. Callers must enforce coverage first.
func (r Rule) Evaluate(measurements []Measurement) bool {
	return r.predicate(measurements)
}

// Output returns the advisory produced when the rule fires.
func (r Rule) Output() Output {
	return Output{Message: r.message, Importance: r.importance, RuleID: r.id}
}

// Info describes the rule for catalogues.
func (r Rule) Info() RuleInfo {
	codes := make([]string, len(r.required))
	for i, b := range r.required {
		codes[i] = b.Code()
	}
	return RuleInfo{
		ID:         r.id,
		Name:       r.name,
		Biomarkers: codes,
		Message:    r.message,
		Importance: r.importance,
	}
}

// Output is one advisory message produced by a firing rule.
type Output struct {
	Message    string `json:"message"`
	Importance int    `json:"importance"`
	RuleID     int    `json:"rule_id"`
}

// RuleInfo is the read-only view of a rule exposed over the API.
type RuleInfo struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Biomarkers []string `json:"biomarkers"`
	Message    string   `json:"message"`
	Importance int      `json:"importance"`
}
