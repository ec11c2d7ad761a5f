package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/querypilot/querypilot/internal/pipeline"
)

type askRequest struct {
	Question string `json:"question"`
	// IncludeRows defaults to true; clients that only want the final SQL can
	// opt out of the result payload.
	IncludeRows *bool `json:"include_rows"`
}

type askResponse struct {
	SQL      string   `json:"sql"`
	Attempts int      `json:"attempts"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "pipeline is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	state, err := deps.Pipeline.Run(r.Context(), request.Question)
	if err != nil {
		var exhausted *pipeline.BudgetExhaustedError
		switch {
		case errors.As(err, &exhausted):
			writeError(r.Context(), w, http.StatusUnprocessableEntity, "CORRECTION_BUDGET_EXHAUSTED", "no valid query within the correction budget", false, map[string]any{
				"attempts":   exhausted.Attempts,
				"last_sql":   exhausted.LastSQL,
				"last_error": exhausted.LastDetail,
			})
		case errors.Is(err, pipeline.ErrSchemaExtraction):
			writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_EXTRACTION_FAILED", "failed to extract the database schema", true, map[string]any{"details": err.Error()})
		case errors.Is(err, pipeline.ErrGeneration):
			writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", "sql generation failed", true, map[string]any{"details": err.Error()})
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "PIPELINE_ERROR", "pipeline failed", true, map[string]any{"details": err.Error()})
		}
		return
	}

	response := askResponse{
		SQL:      state.FinalSQL,
		Attempts: state.Attempts,
		Columns:  []string{},
		Rows:     [][]any{},
	}
	includeRows := request.IncludeRows == nil || *request.IncludeRows
	if includeRows && state.Execution != nil {
		if state.Execution.Columns != nil {
			response.Columns = state.Execution.Columns
		}
		if state.Execution.Rows != nil {
			response.Rows = state.Execution.Rows
		}
	}
	writeJSON(w, http.StatusOK, response)
}
