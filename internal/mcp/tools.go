package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/biomarker-advisor/internal/domain"
)

// Tool names
const (
	ToolEvaluateBiomarkers   = "evaluate_biomarkers"
	ToolClassifyMeasurements = "classify_measurements"
	ToolListRules            = "list_rules"
	ToolListBiomarkers       = "list_biomarkers"
	ToolGetEvaluation        = "get_evaluation"
	ToolListEvaluations      = "list_evaluations"
)

const defaultListLimit = 20

// MeasurementParams is one measurement as supplied by an MCP client.
type MeasurementParams struct {
	BiomarkerID int     `json:"biomarker_id,omitempty" jsonschema:"registry id of the biomarker (1-37)"`
	Biomarker   string  `json:"biomarker,omitempty" jsonschema:"registry code of the biomarker, e.g. alt, hba1c, d_dimer"`
	Value       float64 `json:"value" jsonschema:"measured value in the registry unit"`
	Range       string  `json:"range,omitempty" jsonschema:"range classification (CRITICAL_ABUNDANCE, ELEVATED, NORMAL_ZONE, OPTIMAL_ZONE, DEFICIENT, CRITICAL_DEFICIENCY); omit when unknown"`
}

// MeasurementResult is a resolved measurement. Range is empty when absent.
type MeasurementResult struct {
	BiomarkerID int     `json:"biomarker_id" jsonschema:"registry id"`
	Biomarker   string  `json:"biomarker" jsonschema:"registry code"`
	Value       float64 `json:"value" jsonschema:"measured value"`
	Range       string  `json:"range,omitempty" jsonschema:"range classification, empty when it could not be determined"`
}

// OutputResult is one advisory output.
type OutputResult struct {
	RuleID     int    `json:"rule_id" jsonschema:"id of the rule that fired"`
	Importance int    `json:"importance" jsonschema:"importance of the advice, higher is more urgent"`
	Message    string `json:"message" jsonschema:"advisory message"`
}

// EvaluateBiomarkersParams defines parameters for evaluate_biomarkers tool
type EvaluateBiomarkersParams struct {
	Measurements []MeasurementParams `json:"measurements" jsonschema:"measurements to evaluate"`
	Classify     bool                `json:"classify,omitempty" jsonschema:"classify measurements without a range from reference intervals"`
}

// EvaluationResult defines the result structure for evaluate_biomarkers and get_evaluation tools
type EvaluationResult struct {
	EvaluationID      string              `json:"evaluation_id" jsonschema:"id to retrieve this evaluation later"`
	EvaluatedAt       string              `json:"evaluated_at" jsonschema:"RFC 3339 evaluation time"`
	Cached            bool                `json:"cached" jsonschema:"whether the outputs came from the result cache"`
	HighestImportance int                 `json:"highest_importance" jsonschema:"largest importance among outputs, 0 when none fired"`
	Measurements      []MeasurementResult `json:"measurements" jsonschema:"measurements as evaluated"`
	Outputs           []OutputResult      `json:"outputs" jsonschema:"advisory outputs in rule order"`
}

// ClassifyMeasurementsParams defines parameters for classify_measurements tool
type ClassifyMeasurementsParams struct {
	Measurements []MeasurementParams `json:"measurements" jsonschema:"raw measurements to classify"`
}

// ClassifyMeasurementsResult defines the result structure for classify_measurements tool
type ClassifyMeasurementsResult struct {
	Measurements []MeasurementResult `json:"measurements" jsonschema:"classified measurements in input order"`
}

type ListRulesParams struct{}

type ListRulesResult struct {
	Rules []domain.RuleInfo `json:"rules" jsonschema:"rule catalogue in evaluation order"`
}

type ListBiomarkersParams struct{}

type ListBiomarkersResult struct {
	Biomarkers []domain.Biomarker `json:"biomarkers" jsonschema:"biomarker registry ordered by id"`
}

// GetEvaluationParams defines parameters for get_evaluation tool
type GetEvaluationParams struct {
	EvaluationID string `json:"evaluation_id" jsonschema:"id returned by evaluate_biomarkers"`
}

// ListEvaluationsParams defines parameters for list_evaluations tool
type ListEvaluationsParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size, default 20, at most 200"`
	Offset int `json:"offset,omitempty" jsonschema:"number of evaluations to skip"`
}

// ListEvaluationsResult defines the result structure for list_evaluations tool
type ListEvaluationsResult struct {
	Total       int64              `json:"total" jsonschema:"number of recorded evaluations"`
	Evaluations []EvaluationResult `json:"evaluations" jsonschema:"recorded evaluations, newest first"`
}

func evaluateBiomarkersTool() *mcp.Tool {
	return &mcp.Tool{
		Name: ToolEvaluateBiomarkers,
		Description: "Evaluate lab biomarker measurements against the advisory rule table and return the advice " +
			"of every rule that fires. Identify each biomarker by id or code; set classify to derive missing " +
			"ranges from reference intervals.",
	}
}

func classifyMeasurementsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolClassifyMeasurements,
		Description: "Classify raw biomarker values against adult reference intervals without evaluating rules",
	}
}

func listRulesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolListRules,
		Description: "List the advisory rules with their required biomarkers and importance",
	}
}

func listBiomarkersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolListBiomarkers,
		Description: "List the supported biomarkers with their ids, codes and units",
	}
}

func getEvaluationTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolGetEvaluation,
		Description: "Retrieve a previously recorded evaluation by id",
	}
}

func listEvaluationsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolListEvaluations,
		Description: "List recorded evaluations, newest first",
	}
}

func (s *Server) evaluateBiomarkers(ctx context.Context, _ *mcp.CallToolRequest, params EvaluateBiomarkersParams) (*mcp.CallToolResult, EvaluationResult, error) {
	inputs, err := toInputs(params.Measurements)
	if err != nil {
		return nil, EvaluationResult{}, err
	}

	eval, err := s.service.Evaluate(ctx, &domain.EvaluationRequest{
		Measurements: inputs,
		Classify:     params.Classify,
		RequestID:    "mcp-" + s.newRequestID(),
	})
	if err != nil {
		return nil, EvaluationResult{}, fmt.Errorf("evaluate biomarkers: %w", err)
	}
	return nil, toEvaluationResult(eval), nil
}

func (s *Server) classifyMeasurements(_ context.Context, _ *mcp.CallToolRequest, params ClassifyMeasurementsParams) (*mcp.CallToolResult, ClassifyMeasurementsResult, error) {
	inputs, err := toInputs(params.Measurements)
	if err != nil {
		return nil, ClassifyMeasurementsResult{}, err
	}

	ms, err := s.service.Resolve(inputs, true)
	if err != nil {
		return nil, ClassifyMeasurementsResult{}, fmt.Errorf("classify measurements: %w", err)
	}
	return nil, ClassifyMeasurementsResult{Measurements: toMeasurementResults(ms)}, nil
}

func (s *Server) listRules(_ context.Context, _ *mcp.CallToolRequest, _ ListRulesParams) (*mcp.CallToolResult, ListRulesResult, error) {
	return nil, ListRulesResult{Rules: s.service.Rules()}, nil
}

func (s *Server) listBiomarkers(_ context.Context, _ *mcp.CallToolRequest, _ ListBiomarkersParams) (*mcp.CallToolResult, ListBiomarkersResult, error) {
	return nil, ListBiomarkersResult{Biomarkers: domain.Biomarkers()}, nil
}

func (s *Server) getEvaluation(ctx context.Context, _ *mcp.CallToolRequest, params GetEvaluationParams) (*mcp.CallToolResult, EvaluationResult, error) {
	id := strings.TrimSpace(params.EvaluationID)
	if id == "" {
		return nil, EvaluationResult{}, fmt.Errorf("evaluation_id is required")
	}

	eval, err := s.service.GetEvaluation(ctx, id)
	if err != nil {
		return nil, EvaluationResult{}, fmt.Errorf("get evaluation: %w", err)
	}
	return nil, toEvaluationResult(eval), nil
}

func (s *Server) listEvaluations(ctx context.Context, _ *mcp.CallToolRequest, params ListEvaluationsParams) (*mcp.CallToolResult, ListEvaluationsResult, error) {
	limit := params.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 0 || limit > 200 || params.Offset < 0 {
		return nil, ListEvaluationsResult{}, fmt.Errorf("limit must be between 1 and 200 and offset non-negative")
	}

	evals, total, err := s.service.ListEvaluations(ctx, limit, params.Offset)
	if err != nil {
		return nil, ListEvaluationsResult{}, fmt.Errorf("list evaluations: %w", err)
	}

	out := ListEvaluationsResult{Total: total, Evaluations: make([]EvaluationResult, 0, len(evals))}
	for _, e := range evals {
		out.Evaluations = append(out.Evaluations, toEvaluationResult(e))
	}
	return nil, out, nil
}

func toInputs(params []MeasurementParams) ([]domain.MeasurementInput, error) {
	inputs := make([]domain.MeasurementInput, 0, len(params))
	for i, p := range params {
		in := domain.MeasurementInput{
			BiomarkerID: domain.BiomarkerID(p.BiomarkerID),
			Biomarker:   p.Biomarker,
			Value:       p.Value,
		}
		if strings.TrimSpace(p.Range) != "" {
			r, err := domain.ParseRangeClassification(p.Range)
			if err != nil {
				return nil, fmt.Errorf("measurements[%d]: %w", i, err)
			}
			in.Range = domain.Present(r)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func toMeasurementResults(ms []domain.Measurement) []MeasurementResult {
	out := make([]MeasurementResult, 0, len(ms))
	for _, m := range ms {
		r, _ := m.Range.Get()
		out = append(out, MeasurementResult{
			BiomarkerID: int(m.BiomarkerID),
			Biomarker:   m.BiomarkerID.Code(),
			Value:       m.Value,
			Range:       string(r),
		})
	}
	return out
}

func toEvaluationResult(e *domain.Evaluation) EvaluationResult {
	outputs := make([]OutputResult, 0, len(e.Outputs))
	for _, o := range e.Outputs {
		outputs = append(outputs, OutputResult{RuleID: o.RuleID, Importance: o.Importance, Message: o.Message})
	}
	return EvaluationResult{
		EvaluationID:      e.ID,
		EvaluatedAt:       e.EvaluatedAt.UTC().Format(time.RFC3339),
		Cached:            e.Cached,
		HighestImportance: e.HighestImportance(),
		Measurements:      toMeasurementResults(e.Measurements),
		Outputs:           outputs,
	}
}
