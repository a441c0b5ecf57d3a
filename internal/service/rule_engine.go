package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/domain"
)

// RuleEngine evaluates measurements against an ordered, immutable rule table.
// It holds no mutable state, so one engine can serve any number of goroutines.
type RuleEngine struct {
	logger *logrus.Logger
	rules  []domain.Rule
	byID   map[int]int
}

// NewRuleEngine creates an engine over rules, keeping their order.
// Rule ids must be unique.
func NewRuleEngine(logger *logrus.Logger, rules []domain.Rule) (*RuleEngine, error) {
	if logger == nil {
		logger = logrus.New()
	}

	engine := &RuleEngine{
		logger: logger,
		rules:  make([]domain.Rule, 0, len(rules)),
		byID:   make(map[int]int, len(rules)),
	}

	for _, rule := range rules {
		if rule.RequiredCount() == 0 {
			return nil, fmt.Errorf("%w: rule %d was not built with NewRule", domain.ErrInvalidRule, rule.ID())
		}
		if _, exists := engine.byID[rule.ID()]; exists {
			return nil, fmt.Errorf("%w: %d", domain.ErrDuplicateRule, rule.ID())
		}
		engine.byID[rule.ID()] = len(engine.rules)
		engine.rules = append(engine.rules, rule)
	}

	return engine, nil
}

// NewStandardRuleEngine creates an engine over the canonical rule table.
func NewStandardRuleEngine(logger *logrus.Logger) *RuleEngine {
	engine, err := NewRuleEngine(logger, StandardRules())
	if err != nil {
		// The canonical table is static; failing here is a programming error.
		panic(fmt.Sprintf("standard rule table is invalid: %v", err))
	}
	return engine
}

// Process returns one output per firing rule, in table order.
//
// For each rule the input is filtered to the measurements whose biomarker is
// required by the rule, keeping input order. The rule is skipped unless the
// filtered subset has exactly as many entries as the rule has required
// biomarkers. This is a count check, not a set check: duplicates of one
// biomarker can stand in for a missing one, and predicates that look
// biomarkers up by id then fail on the missing one.
func (e *RuleEngine) Process(measurements []domain.Measurement) []domain.Output {
	outputs := make([]domain.Output, 0)

	for _, rule := range e.rules {
		subset := coverage(rule, measurements)
		if len(subset) != rule.RequiredCount() {
			continue
		}
		if rule.Evaluate(subset) {
			outputs = append(outputs, rule.Output())
		}
	}

	e.logger.WithFields(logrus.Fields{
		"measurement_count": len(measurements),
		"total_rules":       len(e.rules),
		"fired_rules":       len(outputs),
	}).Debug("Completed biomarker rule evaluation")

	return outputs
}

// Rules returns rule metadata in table order.
func (e *RuleEngine) Rules() []domain.RuleInfo {
	infos := make([]domain.RuleInfo, len(e.rules))
	for i, rule := range e.rules {
		infos[i] = rule.Info()
	}
	return infos
}

// Rule looks up a rule by id.
func (e *RuleEngine) Rule(id int) (domain.Rule, bool) {
	idx, ok := e.byID[id]
	if !ok {
		return domain.Rule{}, false
	}
	return e.rules[idx], true
}

// coverage filters measurements to the biomarkers rule requires.
func coverage(rule domain.Rule, measurements []domain.Measurement) []domain.Measurement {
	var subset []domain.Measurement
	for _, m := range measurements {
		if rule.Requires(m.BiomarkerID) {
			subset = append(subset, m)
		}
	}
	return subset
}
