package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-advisor/internal/cache"
	"github.com/biomarker-advisor/internal/classifier"
	"github.com/biomarker-advisor/internal/domain"
	"github.com/biomarker-advisor/internal/history"
	"github.com/biomarker-advisor/internal/service"
)

func testConfig() *domain.Config {
	return &domain.Config{
		Server:  domain.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging: domain.LoggingConfig{Level: "warn", Format: "json"},
	}
}

func newTestServer(t *testing.T, cfg *domain.Config) *Server {
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
		service.WithCache(cache.NewMemoryCache(100, 0)),
		service.WithHistory(store),
	)
	return NewServer(cfg, advisor, logger)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 19, body["rules"])
	assert.EqualValues(t, 37, body["biomarkers"])
	assert.Contains(t, body, "cache")
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := map[string]interface{}{
		"measurements": []map[string]interface{}{
			{"biomarker": "alt", "value": 120, "range": "ELEVATED"},
			{"biomarker_id": 27, "value": 110, "range": "ELEVATED"},
		},
	}
	w := do(t, s, http.MethodPost, "/api/v1/evaluate", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var eval domain.Evaluation
	decode(t, w, &eval)
	assert.NotEmpty(t, eval.ID)
	require.Len(t, eval.Outputs, 1)
	assert.Equal(t, 1, eval.Outputs[0].RuleID)
	assert.Equal(t, 3, eval.Outputs[0].Importance)
	assert.False(t, eval.Cached)

	w = do(t, s, http.MethodPost, "/api/v1/evaluate", req)
	require.Equal(t, http.StatusOK, w.Code)
	var again domain.Evaluation
	decode(t, w, &again)
	assert.True(t, again.Cached)
	assert.Equal(t, eval.Outputs, again.Outputs)
	assert.NotEqual(t, eval.ID, again.ID)
}

func TestEvaluate_Classify(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := map[string]interface{}{
		"classify": true,
		"measurements": []map[string]interface{}{
			{"biomarker": "glucose", "value": 450},
			{"biomarker": "hba1c", "value": 5.0},
		},
	}
	w := do(t, s, http.MethodPost, "/api/v1/evaluate", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var eval domain.Evaluation
	decode(t, w, &eval)
	require.Len(t, eval.Measurements, 2)
	r, ok := eval.Measurements[0].Range.Get()
	require.True(t, ok)
	assert.Equal(t, domain.CRITICAL_ABUNDANCE, r)

	var fired []int
	for _, o := range eval.Outputs {
		fired = append(fired, o.RuleID)
	}
	assert.Contains(t, fired, 2)
}

func TestEvaluate_EmptyInput(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := do(t, s, http.MethodPost, "/api/v1/evaluate", map[string]interface{}{"measurements": []interface{}{}})
	require.Equal(t, http.StatusOK, w.Code)

	var eval domain.Evaluation
	decode(t, w, &eval)
	assert.NotNil(t, eval.Outputs)
	assert.Empty(t, eval.Outputs)
}

func TestEvaluate_Errors(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"malformed json", "{", http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"unknown range", `{"measurements":[{"biomarker_id":1,"value":90,"range":"HIGH"}]}`, http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"unknown code", `{"measurements":[{"biomarker":"unobtainium","value":1}]}`, http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"missing biomarker", `{"measurements":[{"value":1}]}`, http.StatusBadRequest, domain.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/evaluate", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			var apiErr domain.APIError
			decode(t, w, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.NotEmpty(t, apiErr.RequestID)
		})
	}
}

func TestClassify(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := ClassifyRequest{Measurements: []domain.MeasurementInput{
		{Biomarker: "glucose", Value: 80},
		{Biomarker: "alt", Value: 70},
		{BiomarkerID: domain.TSH, Value: 2, Range: domain.Present(domain.DEFICIENT)},
	}}
	w := do(t, s, http.MethodPost, "/api/v1/classify", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ClassifyResponse
	decode(t, w, &resp)
	require.Len(t, resp.Measurements, 3)

	got := make([]domain.RangeClassification, 0, 3)
	for _, m := range resp.Measurements {
		r, ok := m.Range.Get()
		require.True(t, ok)
		got = append(got, r)
	}
	assert.Equal(t, []domain.RangeClassification{domain.OPTIMAL_ZONE, domain.ELEVATED, domain.DEFICIENT}, got)
}

func TestListRulesAndBiomarkers(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := do(t, s, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rules struct {
		Rules []domain.RuleInfo `json:"rules"`
	}
	decode(t, w, &rules)
	require.Len(t, rules.Rules, 19)
	for i, r := range rules.Rules {
		assert.Equal(t, i+1, r.ID)
	}

	w = do(t, s, http.MethodGet, "/api/v1/biomarkers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var biomarkers struct {
		Biomarkers []domain.Biomarker `json:"biomarkers"`
	}
	decode(t, w, &biomarkers)
	require.Len(t, biomarkers.Biomarkers, 37)
	assert.Equal(t, "glucose", biomarkers.Biomarkers[0].Code)
}

func TestEvaluationHistory(t *testing.T) {
	s := newTestServer(t, testConfig())

	body := map[string]interface{}{
		"measurements": []map[string]interface{}{
			{"biomarker": "d_dimer", "value": 1.2, "range": "ELEVATED"},
		},
	}
	w := do(t, s, http.MethodPost, "/api/v1/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code)
	var created domain.Evaluation
	decode(t, w, &created)

	w = do(t, s, http.MethodGet, "/api/v1/evaluations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fetched domain.Evaluation
	decode(t, w, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	require.Len(t, fetched.Outputs, 1)
	assert.Equal(t, 12, fetched.Outputs[0].RuleID)

	w = do(t, s, http.MethodGet, "/api/v1/evaluations?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list EvaluationList
	decode(t, w, &list)
	assert.EqualValues(t, 1, list.Total)
	require.Len(t, list.Evaluations, 1)
	assert.Equal(t, created.ID, list.Evaluations[0].ID)

	w = do(t, s, http.MethodGet, "/api/v1/evaluations/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var apiErr domain.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, domain.ErrCodeNotFound, apiErr.Code)
}

func TestDeleteEvaluation(t *testing.T) {
	s := newTestServer(t, testConfig())

	body := map[string]interface{}{
		"measurements": []map[string]interface{}{
			{"biomarker": "d_dimer", "value": 1.2, "range": "ELEVATED"},
		},
	}
	w := do(t, s, http.MethodPost, "/api/v1/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code)
	var created domain.Evaluation
	decode(t, w, &created)

	w = do(t, s, http.MethodDelete, "/api/v1/evaluations/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/evaluations/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodDelete, "/api/v1/evaluations/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/evaluations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list EvaluationList
	decode(t, w, &list)
	assert.Zero(t, list.Total)
}

func TestGetRule(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := do(t, s, http.MethodGet, "/api/v1/rules/12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rule domain.RuleInfo
	decode(t, w, &rule)
	assert.Equal(t, 12, rule.ID)
	assert.Equal(t, []string{"d_dimer"}, rule.Biomarkers)

	w = do(t, s, http.MethodGet, "/api/v1/rules/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/rules/twelve", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBiomarker(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, ref := range []string{"glucose", "GLUCOSE", "1"} {
		t.Run(ref, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/v1/biomarkers/"+ref, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var detail BiomarkerDetail
			decode(t, w, &detail)
			assert.Equal(t, domain.Glucose, detail.Biomarker.ID)
			require.NotNil(t, detail.ReferenceInterval)
			require.NotNil(t, detail.ReferenceInterval.ReferenceMax)
			assert.Equal(t, 99.0, *detail.ReferenceInterval.ReferenceMax)
			require.NotNil(t, detail.ReferenceInterval.CriticalHigh)
			assert.Equal(t, 400.0, *detail.ReferenceInterval.CriticalHigh)
		})
	}

	for _, ref := range []string{"unobtainium", "999"} {
		w := do(t, s, http.MethodGet, "/api/v1/biomarkers/"+ref, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, ref)
	}
}

func TestListEvaluations_BadPaging(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, q := range []string{"limit=0", "limit=abc", "limit=1000", "offset=-1"} {
		t.Run(q, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/v1/evaluations?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	s := newTestServer(t, cfg)

	w := do(t, s, http.MethodGet, "/api/v1/rules", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/rules", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health is outside the limited group
	w = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := do(t, s, http.MethodOptions, "/api/v1/evaluate", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestMount(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := do(t, s, http.MethodPost, "/mcp", "{}")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestMount_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	s := newTestServer(t, cfg)
	s.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := do(t, s, http.MethodPost, "/mcp", "{}")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, s, http.MethodPost, "/mcp", "{}")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
