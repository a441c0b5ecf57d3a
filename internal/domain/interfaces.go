package domain

import (
	"context"
)

// RuleEvaluator maps classified measurements to advisory outputs.
type RuleEvaluator interface {
	Process(measurements []Measurement) []Output
	Rules() []RuleInfo
	Rule(id int) (Rule, bool)
}

// RangeClassifier resolves raw values into range classifications upstream of the engine.
type RangeClassifier interface {
	Classify(id BiomarkerID, value float64) OptionalRange
	// Fill classifies the measurements whose range is absent.
	Fill(ms []Measurement) []Measurement
}

// EvaluationService runs one advisory request end to end.
type EvaluationService interface {
	Evaluate(ctx context.Context, req *EvaluationRequest) (*Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	ListEvaluations(ctx context.Context, limit, offset int) ([]*Evaluation, int64, error)
	DeleteEvaluation(ctx context.Context, id string) error
	// Resolve converts inputs to measurements, classifying absent ranges when classify is set.
	Resolve(inputs []MeasurementInput, classify bool) ([]Measurement, error)
	Rules() []RuleInfo
	Rule(id int) (*RuleInfo, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
