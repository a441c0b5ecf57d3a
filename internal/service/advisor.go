package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/cache"
	"github.com/biomarker-advisor/internal/classifier"
	"github.com/biomarker-advisor/internal/domain"
	"github.com/biomarker-advisor/internal/history"
)

// MaxMeasurements bounds a single request.
const MaxMeasurements = 500

// Advisor runs an evaluation request end to end: resolve inputs, optionally
// classify raw values, evaluate the rule table, then cache and record the
// result. Cache and history failures are logged and never fail a request.
type Advisor struct {
	engine     domain.RuleEvaluator
	classifier domain.RangeClassifier
	cache      cache.Cache
	history    history.Store
	logger     *logrus.Logger
	now        func() time.Time
	newID      func() string
}

// AdvisorOption configures optional collaborators.
type AdvisorOption func(*Advisor)

func WithClassifier(c domain.RangeClassifier) AdvisorOption {
	return func(a *Advisor) { a.classifier = c }
}

func WithCache(c cache.Cache) AdvisorOption {
	return func(a *Advisor) { a.cache = c }
}

func WithHistory(s history.Store) AdvisorOption {
	return func(a *Advisor) { a.history = s }
}

// WithClock overrides time and id generation, for tests.
func WithClock(now func() time.Time, newID func() string) AdvisorOption {
	return func(a *Advisor) {
		if now != nil {
			a.now = now
		}
		if newID != nil {
			a.newID = newID
		}
	}
}

func NewAdvisor(engine domain.RuleEvaluator, logger *logrus.Logger, opts ...AdvisorOption) *Advisor {
	if logger == nil {
		logger = logrus.New()
	}
	a := &Advisor{
		engine: engine,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve converts transport inputs into measurements, classifying absent
// ranges when classify is set and a classifier is configured.
func (a *Advisor) Resolve(inputs []domain.MeasurementInput, classify bool) ([]domain.Measurement, error) {
	if len(inputs) > MaxMeasurements {
		return nil, domain.NewValidationError("measurements",
			fmt.Sprintf("at most %d measurements per request", MaxMeasurements), len(inputs))
	}

	ms := make([]domain.Measurement, 0, len(inputs))
	for i, in := range inputs {
		m, err := in.Resolve()
		if err != nil {
			return nil, fmt.Errorf("measurements[%d]: %w", i, err)
		}
		ms = append(ms, m)
	}

	if classify && a.classifier != nil {
		ms = a.classifier.Fill(ms)
	}
	return ms, nil
}

func (a *Advisor) Evaluate(ctx context.Context, req *domain.EvaluationRequest) (*domain.Evaluation, error) {
	if req == nil {
		return nil, domain.NewValidationError("request", "request body is required", nil)
	}

	ms, err := a.Resolve(req.Measurements, req.Classify)
	if err != nil {
		return nil, err
	}

	outputs, cached := a.process(ctx, ms)

	eval := &domain.Evaluation{
		ID:           a.newID(),
		Measurements: ms,
		Outputs:      outputs,
		EvaluatedAt:  a.now().UTC(),
		Cached:       cached,
	}

	if a.history != nil {
		if err := a.history.Save(ctx, history.NewRecord(eval, req.RequestID)); err != nil {
			a.logger.WithError(err).WithField("evaluation_id", eval.ID).Warn("Failed to record evaluation history")
		}
	}

	a.logger.WithFields(logrus.Fields{
		"evaluation_id":      eval.ID,
		"request_id":         req.RequestID,
		"measurement_count":  len(ms),
		"output_count":       len(outputs),
		"highest_importance": eval.HighestImportance(),
		"cached":             cached,
	}).Info("Evaluation completed")

	return eval, nil
}

func (a *Advisor) process(ctx context.Context, ms []domain.Measurement) ([]domain.Output, bool) {
	if a.cache == nil {
		return a.engine.Process(ms), false
	}

	key := cache.Key(ms)
	outputs, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WithError(err).Warn("Cache lookup failed")
	}
	if ok {
		if outputs == nil {
			outputs = []domain.Output{}
		}
		return outputs, true
	}

	outputs = a.engine.Process(ms)
	if err := a.cache.Set(ctx, key, outputs); err != nil {
		a.logger.WithError(err).Warn("Failed to cache outputs")
	}
	return outputs, false
}

// GetEvaluation returns a recorded evaluation. Without a history store every
// id is reported as not found.
func (a *Advisor) GetEvaluation(ctx context.Context, id string) (*domain.Evaluation, error) {
	if a.history == nil {
		return nil, fmt.Errorf("evaluation %s: history disabled: %w", id, domain.ErrNotFound)
	}
	record, err := a.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return record.Evaluation(), nil
}

// DeleteEvaluation removes a recorded evaluation. Unknown ids report
// domain.ErrNotFound.
func (a *Advisor) DeleteEvaluation(ctx context.Context, id string) error {
	if a.history == nil {
		return fmt.Errorf("evaluation %s: history disabled: %w", id, domain.ErrNotFound)
	}
	if _, err := a.history.Get(ctx, id); err != nil {
		return err
	}
	if err := a.history.Delete(ctx, id); err != nil {
		return err
	}

	a.logger.WithField("evaluation_id", id).Info("Evaluation deleted")
	return nil
}

// ListEvaluations returns recorded evaluations newest first with the total count.
func (a *Advisor) ListEvaluations(ctx context.Context, limit, offset int) ([]*domain.Evaluation, int64, error) {
	if a.history == nil {
		return []*domain.Evaluation{}, 0, nil
	}

	records, err := a.history.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := a.history.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*domain.Evaluation, len(records))
	for i, r := range records {
		out[i] = r.Evaluation()
	}
	return out, total, nil
}

func (a *Advisor) Rules() []domain.RuleInfo {
	return a.engine.Rules()
}

func (a *Advisor) Rule(id int) (*domain.RuleInfo, error) {
	rule, ok := a.engine.Rule(id)
	if !ok {
		return nil, fmt.Errorf("rule %d: %w", id, domain.ErrNotFound)
	}
	info := rule.Info()
	return &info, nil
}

type intervalSource interface {
	Interval(id domain.BiomarkerID) (classifier.Interval, bool)
}

// ReferenceInterval returns the bounds the configured classifier uses for id.
func (a *Advisor) ReferenceInterval(id domain.BiomarkerID) (classifier.Interval, bool) {
	src, ok := a.classifier.(intervalSource)
	if !ok {
		return classifier.Interval{}, false
	}
	return src.Interval(id)
}

// CacheStats reports the cache counters, or false when caching is disabled.
func (a *Advisor) CacheStats() (cache.Stats, bool) {
	if a.cache == nil {
		return cache.Stats{}, false
	}
	return a.cache.Stats(), true
}
