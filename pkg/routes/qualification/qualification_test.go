package qualification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/qualification"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	result    models.QualificationResult
	explained bool
	kind      models.EntityKind
	tenantID  string
	record    map[string]any
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (models.Outcome, error) {
	f.tenantID, f.kind = tenantID, kind
	f.record, _ = qualification.ContextRecords{}.GetRecord(ctx, tenantID, kind, entityID)
	return models.Outcome{TenantID: tenantID, EntityKind: kind, EntityID: entityID, Result: f.result, EvaluatedRules: 1}, nil
}

func (f *fakeEvaluator) Explain(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (models.Outcome, error) {
	f.explained = true
	outcome, err := f.Evaluate(ctx, tenantID, kind, entityID)
	outcome.Rules = []models.RuleResult{{RuleID: "r1", Passed: f.result == models.ResultQualified}}
	return outcome, err
}

func evaluate(t *testing.T, evaluator Evaluator, target string) (int, Response) {
	t.Helper()
	return send(t, evaluator, http.MethodGet, target, "")
}

func send(t *testing.T, evaluator Evaluator, method, target, body string) (int, Response) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	e.Use(middleware.Context("pt-BR"))
	NewHandler(evaluator).Register(e.Group("/api/v1"))

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, "tenant-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var response Response
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	}
	return rec.Code, response
}

func TestEvaluate_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		result   models.QualificationResult
		query    string
		expected models.Transition
	}{
		{name: "no flag given", result: models.ResultQualified, query: "", expected: ""},
		{name: "becomes qualified", result: models.ResultQualified, query: "?previously_qualified=false", expected: models.TransitionQualified},
		{name: "loses qualification", result: models.ResultNotQualified, query: "?previously_qualified=true", expected: models.TransitionDisqualified},
		{name: "not applicable keeps flag", result: models.ResultNotApplicable, query: "?previously_qualified=true", expected: models.TransitionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator := &fakeEvaluator{result: tt.result}
			code, response := evaluate(t, evaluator, "/api/v1/oportunidade/records/o1/qualification"+tt.query)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.result, response.Outcome.Result)
			assert.Equal(t, tt.expected, response.Transition)
			assert.Equal(t, "tenant-1", evaluator.tenantID)
			assert.Equal(t, models.EntityKindOpportunity, evaluator.kind)
			assert.False(t, evaluator.explained)
		})
	}
}

func TestEvaluate_Explain(t *testing.T) {
	evaluator := &fakeEvaluator{result: models.ResultQualified}
	code, response := evaluate(t, evaluator, "/api/v1/contato/records/c1/qualification?explain=true")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, evaluator.explained)
	assert.Len(t, response.Outcome.Rules, 1)
}

func TestEvaluate_BadRequest(t *testing.T) {
	code, _ := evaluate(t, &fakeEvaluator{}, "/api/v1/contato/records/c1/qualification?previously_qualified=perhaps")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = evaluate(t, &fakeEvaluator{}, "/api/v1/invoice/records/c1/qualification")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEvaluateRecord(t *testing.T) {
	evaluator := &fakeEvaluator{result: models.ResultNotQualified}
	code, response := send(t, evaluator, http.MethodPost, "/api/v1/contato/records/c1/qualification",
		`{"record":{"email":"ana@gmail.com"},"previously_qualified":true,"explain":true}`)
	require.Equal(t, http.StatusOK, code)

	assert.True(t, evaluator.explained)
	assert.Equal(t, "ana@gmail.com", evaluator.record["email"])
	assert.Equal(t, models.TransitionDisqualified, response.Transition)

	evaluator = &fakeEvaluator{result: models.ResultQualified}
	code, _ = evaluate(t, evaluator, "/api/v1/contato/records/c1/qualification")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, evaluator.record)
}
