package nl2sql

import "context"

type GenerateRequest struct {
	Question  string `json:"question"`
	SchemaDDL string `json:"schema_ddl"`
}

type CorrectRequest struct {
	Question    string `json:"question"`
	SchemaDDL   string `json:"schema_ddl"`
	FailingSQL  string `json:"failing_sql"`
	ErrorDetail string `json:"error_detail"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Generator produces SQL candidates from natural language. Output is
// untrusted: callers must validate before execution.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Result, error)
	Correct(ctx context.Context, req CorrectRequest) (Result, error)
}
