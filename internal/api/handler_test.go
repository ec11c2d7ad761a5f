package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/schema"
)

type stubRunner struct {
	state *pipeline.State
	err   error

	question string
}

func (s *stubRunner) Run(_ context.Context, question string) (*pipeline.State, error) {
	s.question = question
	return s.state, s.err
}

type stubSchemaProvider struct {
	desc schema.Description
	err  error
}

func (s *stubSchemaProvider) Extract(context.Context) (schema.Description, error) {
	return s.desc, s.err
}

func testConfig() config.Config {
	cfg, err := config.Load("querypilot-api", func(string) (string, bool) { return "", false })
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" || payload["service"] != "querypilot-api" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestReadyWithoutCheckReportsReady(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestReadyFailingCheck(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{
		Readiness: func(context.Context) error { return errors.New("database unreachable") },
	})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", recorder.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error_code"] != "NOT_READY" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestTraceHeaderIsSet(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if recorder.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestSchemaEndpoint(t *testing.T) {
	provider := &stubSchemaProvider{desc: schema.Description{Tables: []schema.Table{
		{
			Name: "film",
			Columns: []schema.Column{
				{Name: "film_id", Type: "INTEGER", NotNull: true},
				{Name: "title", Type: "TEXT", NotNull: true},
			},
			PrimaryKey: []string{"film_id"},
		},
	}}}
	handler := NewHandler(testConfig(), Dependencies{Schema: provider})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	var payload schemaResponse
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(payload.DDL, `CREATE TABLE "film"`) {
		t.Fatalf("DDL = %q", payload.DDL)
	}
	if len(payload.Tables) != 1 || payload.Tables[0].Name != "film" {
		t.Fatalf("Tables = %v", payload.Tables)
	}
	if len(payload.Tables[0].Columns) != 2 {
		t.Fatalf("Columns = %v", payload.Tables[0].Columns)
	}
}

func TestSchemaEndpointExtractionFailure(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{
		Schema: &stubSchemaProvider{err: errors.New("connection refused")},
	})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", recorder.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error_code"] != "SCHEMA_EXTRACTION_FAILED" {
		t.Fatalf("payload = %v", payload)
	}
}
