package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-advisor/internal/cache"
	"github.com/biomarker-advisor/internal/classifier"
	"github.com/biomarker-advisor/internal/domain"
	"github.com/biomarker-advisor/internal/history"
	"github.com/biomarker-advisor/internal/middleware"
	"github.com/biomarker-advisor/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	advisor := service.NewAdvisor(
		service.NewStandardRuleEngine(logger),
		logger,
		service.WithClassifier(classifier.NewDefault(logger)),
		service.WithCache(cache.NewMemoryCache(100, time.Minute)),
		service.WithHistory(store),
	)
	return NewServer(advisor, domain.MCPConfig{ServerName: "test-advisor", ServerVersion: "0.0.1"}, logger)
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestListTools(t *testing.T) {
	session := connect(t, newTestServer(t))

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		ToolClassifyMeasurements,
		ToolEvaluateBiomarkers,
		ToolGetEvaluation,
		ToolListBiomarkers,
		ToolListEvaluations,
		ToolListRules,
	}, names)
}

func TestEvaluateBiomarkers(t *testing.T) {
	session := connect(t, newTestServer(t))

	result := call(t, session, ToolEvaluateBiomarkers, map[string]any{
		"measurements": []map[string]any{
			{"biomarker": "pt", "value": 18, "range": "ELEVATED"},
			{"biomarker": "aptt", "value": 45, "range": "CRITICAL_ABUNDANCE"},
		},
	})
	require.False(t, result.IsError)

	out := decodeStructuredContent[EvaluationResult](t, result.StructuredContent)
	assert.NotEmpty(t, out.EvaluationID)
	require.Len(t, out.Outputs, 1)
	assert.Equal(t, 15, out.Outputs[0].RuleID)
	assert.Equal(t, 3, out.HighestImportance)
	require.Len(t, out.Measurements, 2)
	assert.Equal(t, "pt", out.Measurements[0].Biomarker)

	fetched := call(t, session, ToolGetEvaluation, map[string]any{"evaluation_id": out.EvaluationID})
	require.False(t, fetched.IsError)
	got := decodeStructuredContent[EvaluationResult](t, fetched.StructuredContent)
	assert.Equal(t, out.EvaluationID, got.EvaluationID)
	assert.Equal(t, out.Outputs, got.Outputs)

	listed := call(t, session, ToolListEvaluations, map[string]any{})
	require.False(t, listed.IsError)
	list := decodeStructuredContent[ListEvaluationsResult](t, listed.StructuredContent)
	assert.EqualValues(t, 1, list.Total)
	require.Len(t, list.Evaluations, 1)
}

func TestEvaluateBiomarkers_Classify(t *testing.T) {
	session := connect(t, newTestServer(t))

	result := call(t, session, ToolEvaluateBiomarkers, map[string]any{
		"classify": true,
		"measurements": []map[string]any{
			{"biomarker": "glucose", "value": 92},
			{"biomarker": "hba1c", "value": 12},
		},
	})
	require.False(t, result.IsError)

	out := decodeStructuredContent[EvaluationResult](t, result.StructuredContent)
	require.Len(t, out.Measurements, 2)
	assert.Equal(t, string(domain.NORMAL_ZONE), out.Measurements[0].Range)
	assert.Equal(t, string(domain.CRITICAL_ABUNDANCE), out.Measurements[1].Range)

	var fired []int
	for _, o := range out.Outputs {
		fired = append(fired, o.RuleID)
	}
	assert.Contains(t, fired, 2)
}

func TestEvaluateBiomarkers_NothingFires(t *testing.T) {
	session := connect(t, newTestServer(t))

	result := call(t, session, ToolEvaluateBiomarkers, map[string]any{
		"measurements": []map[string]any{
			{"biomarker_id": 1, "value": 85, "range": "OPTIMAL_ZONE"},
		},
	})
	require.False(t, result.IsError)

	out := decodeStructuredContent[EvaluationResult](t, result.StructuredContent)
	assert.NotNil(t, out.Outputs)
	assert.Empty(t, out.Outputs)
	assert.Equal(t, 0, out.HighestImportance)
}

func TestToolErrors(t *testing.T) {
	session := connect(t, newTestServer(t))

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"bad range", ToolEvaluateBiomarkers, map[string]any{
			"measurements": []map[string]any{{"biomarker": "alt", "value": 1, "range": "HIGH"}},
		}},
		{"unknown code", ToolClassifyMeasurements, map[string]any{
			"measurements": []map[string]any{{"biomarker": "unobtainium", "value": 1}},
		}},
		{"missing id", ToolGetEvaluation, map[string]any{"evaluation_id": ""}},
		{"unknown evaluation", ToolGetEvaluation, map[string]any{"evaluation_id": "nope"}},
		{"bad limit", ToolListEvaluations, map[string]any{"limit": 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, session, tt.tool, tt.args)
			assert.True(t, result.IsError)
		})
	}
}

func TestClassifyMeasurements(t *testing.T) {
	session := connect(t, newTestServer(t))

	result := call(t, session, ToolClassifyMeasurements, map[string]any{
		"measurements": []map[string]any{
			{"biomarker": "glucose", "value": 30},
			{"biomarker": "tsh", "value": 2},
			{"biomarker_id": 99, "value": 1},
		},
	})
	require.False(t, result.IsError)

	out := decodeStructuredContent[ClassifyMeasurementsResult](t, result.StructuredContent)
	require.Len(t, out.Measurements, 3)
	assert.Equal(t, string(domain.CRITICAL_DEFICIENCY), out.Measurements[0].Range)
	assert.NotEmpty(t, out.Measurements[1].Range)
	assert.Empty(t, out.Measurements[2].Range)
	assert.Equal(t, "unknown_99", out.Measurements[2].Biomarker)
}

func TestListRulesAndBiomarkers(t *testing.T) {
	session := connect(t, newTestServer(t))

	rules := decodeStructuredContent[ListRulesResult](t, call(t, session, ToolListRules, map[string]any{}).StructuredContent)
	require.Len(t, rules.Rules, 19)
	assert.Equal(t, 1, rules.Rules[0].ID)
	assert.Equal(t, []string{"alt", "ast"}, rules.Rules[0].Biomarkers)

	biomarkers := decodeStructuredContent[ListBiomarkersResult](t, call(t, session, ToolListBiomarkers, map[string]any{}).StructuredContent)
	require.Len(t, biomarkers.Biomarkers, 37)
	assert.Equal(t, domain.DDimer, biomarkers.Biomarkers[36].ID)
}

func TestRun_UnsupportedTransport(t *testing.T) {
	s := NewServer(nil, domain.MCPConfig{TransportType: "websocket"}, nil)
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestRouter(t *testing.T) {
	router := newTestServer(t).Router()

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(middleware.CorrelationIDHeader, "corr-42")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "corr-42", w.Header().Get(middleware.CorrelationIDHeader))

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "biomarker-advisor", body["server"])
	})

	t.Run("health is GET only", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("mcp endpoint is mounted", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp", nil))
		assert.NotEqual(t, http.StatusNotFound, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.CorrelationIDHeader))
	})
}
