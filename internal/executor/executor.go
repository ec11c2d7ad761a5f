// Package executor runs validated SQL candidates against the live database.
// Engine rejections are part of the correction loop's normal diet, so they
// come back inside the outcome rather than as Go errors; only the loop
// decides whether a failure is worth another attempt.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/internal/pipeline"
)

// Runner executes candidates read-only against a database/sql handle. A
// positive RowLimit caps the result set by wrapping the statement in an
// outer LIMIT; zero disables the cap.
type Runner struct {
	DB       *sql.DB
	RowLimit int
}

func NewRunner(db *sql.DB, rowLimit int) *Runner {
	return &Runner{DB: db, RowLimit: rowLimit}
}

func (r *Runner) Execute(ctx context.Context, sqlText string) pipeline.ExecutionOutcome {
	statement := stripTrailingSemicolons(sqlText)
	if statement == "" {
		return failed("empty statement")
	}
	if !isReadOnly(statement) {
		return failed("only SELECT statements are executed")
	}

	if r.RowLimit > 0 {
		statement = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", statement, r.RowLimit)
	}

	rows, err := r.DB.QueryContext(ctx, statement)
	if err != nil {
		return failed(fmt.Sprintf("execute query: %v", err))
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return failed(fmt.Sprintf("query columns: %v", err))
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return failed(fmt.Sprintf("scan row: %v", err))
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return failed(fmt.Sprintf("iterate rows: %v", err))
	}

	return pipeline.ExecutionOutcome{OK: true, Columns: columns, Rows: resultRows}
}

func failed(detail string) pipeline.ExecutionOutcome {
	return pipeline.ExecutionOutcome{OK: false, Err: detail}
}

// isReadOnly is a coarse guard on the statement verb. The validator has
// already vetted the candidate; this is the last check before the engine.
func isReadOnly(statement string) bool {
	fields := strings.Fields(strings.ToLower(statement))
	if len(fields) == 0 {
		return false
	}
	return fields[0] == "select" || fields[0] == "with"
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
