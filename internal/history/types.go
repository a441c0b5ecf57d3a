// Package history records completed evaluations so they can be retrieved,
// listed and exported later.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/biomarker-advisor/internal/domain"
)

// Record is one stored evaluation.
type Record struct {
	ID                string               `json:"id"`
	RequestID         string               `json:"request_id,omitempty"`
	Measurements      []domain.Measurement `json:"measurements"`
	Outputs           []domain.Output      `json:"outputs"`
	HighestImportance int                  `json:"highest_importance"`
	CreatedAt         time.Time            `json:"created_at"`
}

// NewRecord builds a record from a finished evaluation.
func NewRecord(e *domain.Evaluation, requestID string) *Record {
	return &Record{
		ID:                e.ID,
		RequestID:         requestID,
		Measurements:      e.Measurements,
		Outputs:           e.Outputs,
		HighestImportance: e.HighestImportance(),
		CreatedAt:         e.EvaluatedAt,
	}
}

// Evaluation converts the record back to the service representation.
func (r *Record) Evaluation() *domain.Evaluation {
	outputs := r.Outputs
	if outputs == nil {
		outputs = []domain.Output{}
	}
	return &domain.Evaluation{
		ID:           r.ID,
		Measurements: r.Measurements,
		Outputs:      outputs,
		EvaluatedAt:  r.CreatedAt,
	}
}

// Store defines the interface for evaluation history storage.
type Store interface {
	// Save inserts a new record. Records are immutable; saving an existing id fails.
	Save(ctx context.Context, record *Record) error

	// Get returns the record with the given id, or an error wrapping
	// domain.ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	Count(ctx context.Context) (int64, error)

	Delete(ctx context.Context, id string) error

	// ExportJSON writes every record to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads an export and saves records whose id is not yet stored.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version     string    `json:"version"`
	ExportedAt  time.Time `json:"exported_at"`
	Count       int       `json:"count"`
	Evaluations []*Record `json:"evaluations"`
}

const (
	exportVersion = "1.0"
	// maxExportLimit is the maximum number of entries to export at once.
	maxExportLimit = 1000000
)

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	r := &Record{}
	var measurements, outputs []byte

	if err := s.Scan(&r.ID, &r.RequestID, &measurements, &outputs, &r.HighestImportance, &r.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(measurements, &r.Measurements); err != nil {
		return nil, fmt.Errorf("failed to decode measurements of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(outputs, &r.Outputs); err != nil {
		return nil, fmt.Errorf("failed to decode outputs of %s: %w", r.ID, err)
	}
	return r, nil
}

func encodeRecord(r *Record) (measurements, outputs []byte, err error) {
	ms := r.Measurements
	if ms == nil {
		ms = []domain.Measurement{}
	}
	measurements, err = json.Marshal(ms)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode measurements: %w", err)
	}

	out := r.Outputs
	if out == nil {
		out = []domain.Output{}
	}
	outputs, err = json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode outputs: %w", err)
	}
	return measurements, outputs, nil
}

func validateRecord(r *Record) error {
	if r == nil {
		return domain.NewValidationError("record", "record is required", nil)
	}
	if r.ID == "" {
		return domain.NewValidationError("id", "record id is required", nil)
	}
	return nil
}

func exportRecords(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list evaluations: %w", err)
	}

	export := &Export{
		Version:     exportVersion,
		ExportedAt:  time.Now().UTC(),
		Count:       len(all),
		Evaluations: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importRecords(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, r := range export.Evaluations {
		if err := validateRecord(r); err != nil {
			return imported, skipped, err
		}

		_, err := s.Get(ctx, r.ID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if err := s.Save(ctx, r); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

func notFound(id string) error {
	return fmt.Errorf("evaluation %s: %w", id, domain.ErrNotFound)
}
