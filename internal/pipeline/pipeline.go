// Package pipeline turns a natural-language question into an executable SQL
// query. It owns the validate, execute, correct cycle and the retry budget;
// generation, validation, and execution are collaborators behind interfaces.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/schema"
)

type ValidationError struct {
	Message string `json:"message"`
	// Offset is the byte offset of the offending token, -1 when unknown.
	Offset int `json:"offset"`
}

type ValidationOutcome struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func (o ValidationOutcome) Detail() string {
	messages := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		messages = append(messages, e.Message)
	}
	return strings.Join(messages, "; ")
}

type ExecutionOutcome struct {
	OK      bool     `json:"ok"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Err     string   `json:"error,omitempty"`
	// Skipped marks candidates that never reached the database because
	// validation rejected them.
	Skipped bool `json:"skipped,omitempty"`
}

// Validator is a pure function of its inputs; it must not touch the database.
type Validator interface {
	Validate(sqlText string, desc schema.Description) ValidationOutcome
}

// Executor runs a candidate read-only. Engine rejections come back as a
// failed outcome, not a Go error.
type Executor interface {
	Execute(ctx context.Context, sqlText string) ExecutionOutcome
}

// State is the per-request record shared by the pipeline stages. One instance
// per question; never reused and never shared across requests.
type State struct {
	Question   string
	Schema     schema.Description
	SchemaDDL  string
	CurrentSQL string
	Validation *ValidationOutcome
	Execution  *ExecutionOutcome
	FinalSQL   string
	// Attempts counts corrective regenerations; the initial candidate is not
	// an attempt. Never exceeds MaxCorrectionAttempts.
	Attempts int
}

// lastErrorDetail returns the failure evidence from the most recent attempt
// only. An execution failure implies validation passed for that candidate, so
// whichever outcome failed is the latest.
func (s *State) lastErrorDetail() string {
	if s.Execution != nil && !s.Execution.OK && !s.Execution.Skipped {
		return s.Execution.Err
	}
	if s.Validation != nil && !s.Validation.Valid {
		return s.Validation.Detail()
	}
	return ""
}

type loopState string

const (
	stateValidating loopState = "validating"
	stateExecuting  loopState = "executing"
	stateCorrecting loopState = "correcting"
	stateSucceeded  loopState = "succeeded"
	stateExhausted  loopState = "budget_exhausted"
)

type Pipeline struct {
	Schema                schema.Provider
	Generator             nl2sql.Generator
	Validator             Validator
	Executor              Executor
	MaxCorrectionAttempts int
	Logger                *slog.Logger
}

// Run processes one question end to end and returns the terminal state. A
// fresh State is constructed per call; concurrent Run calls share only the
// read-only collaborators.
func (p *Pipeline) Run(ctx context.Context, question string) (*State, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	if p.Schema == nil || p.Generator == nil || p.Validator == nil || p.Executor == nil {
		return nil, fmt.Errorf("pipeline collaborators are not fully configured")
	}

	start := time.Now()
	state := &State{Question: question}

	desc, err := p.Schema.Extract(ctx)
	if err != nil {
		observability.ObservePipelineRun("schema_error", 0, time.Since(start))
		return state, fmt.Errorf("%w: %v", ErrSchemaExtraction, err)
	}
	state.Schema = desc
	state.SchemaDDL = desc.DDL()

	generated, err := p.Generator.Generate(ctx, nl2sql.GenerateRequest{
		Question:  question,
		SchemaDDL: state.SchemaDDL,
	})
	if err != nil {
		observability.ObservePipelineRun("generation_error", 0, time.Since(start))
		return state, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	state.CurrentSQL = generated.SQL
	p.logDebug(ctx, "sql_generated", slog.String("sql", state.CurrentSQL))

	err = p.runLoop(ctx, state)
	candidates := state.Attempts + 1
	switch {
	case err == nil:
		observability.ObservePipelineRun("success", candidates, time.Since(start))
	case IsBudgetExhausted(err):
		observability.ObservePipelineRun("budget_exhausted", candidates, time.Since(start))
	default:
		observability.ObservePipelineRun("generation_error", candidates, time.Since(start))
	}
	return state, err
}

// runLoop drives the correction state machine:
//
//	validating -> executing -> succeeded
//	validating -> correcting (invalid candidate, never executed)
//	executing  -> correcting (engine rejected the candidate)
//	correcting -> validating (new candidate) or budget_exhausted
func (p *Pipeline) runLoop(ctx context.Context, state *State) error {
	current := stateValidating
	for {
		switch current {
		case stateValidating:
			outcome := p.Validator.Validate(state.CurrentSQL, state.Schema)
			state.Validation = &outcome
			if outcome.Valid {
				current = stateExecuting
				continue
			}
			observability.RecordValidationFailure()
			state.Execution = &ExecutionOutcome{Skipped: true, Err: "execution skipped: validation failed"}
			p.logDebug(ctx, "validation_failed",
				slog.Int("attempt", state.Attempts),
				slog.String("errors", outcome.Detail()),
			)
			current = stateCorrecting

		case stateExecuting:
			outcome := p.Executor.Execute(ctx, state.CurrentSQL)
			state.Execution = &outcome
			if outcome.OK {
				current = stateSucceeded
				continue
			}
			observability.RecordExecutionFailure()
			p.logDebug(ctx, "execution_failed",
				slog.Int("attempt", state.Attempts),
				slog.String("error", outcome.Err),
			)
			current = stateCorrecting

		case stateCorrecting:
			if state.Attempts >= p.MaxCorrectionAttempts {
				current = stateExhausted
				continue
			}
			state.Attempts++
			observability.RecordCorrectionCall()
			corrected, err := p.Generator.Correct(ctx, nl2sql.CorrectRequest{
				Question:    state.Question,
				SchemaDDL:   state.SchemaDDL,
				FailingSQL:  state.CurrentSQL,
				ErrorDetail: state.lastErrorDetail(),
			})
			if err != nil {
				return fmt.Errorf("%w: correction attempt %d: %v", ErrGeneration, state.Attempts, err)
			}
			state.CurrentSQL = corrected.SQL
			state.Validation = nil
			state.Execution = nil
			p.logDebug(ctx, "sql_corrected",
				slog.Int("attempt", state.Attempts),
				slog.String("sql", state.CurrentSQL),
			)
			current = stateValidating

		case stateSucceeded:
			state.FinalSQL = state.CurrentSQL
			return nil

		case stateExhausted:
			return &BudgetExhaustedError{
				Attempts:   state.Attempts,
				LastSQL:    state.CurrentSQL,
				LastDetail: state.lastErrorDetail(),
			}
		}
	}
}

func (p *Pipeline) logDebug(ctx context.Context, msg string, attrs ...slog.Attr) {
	if p.Logger == nil {
		return
	}
	p.Logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}
