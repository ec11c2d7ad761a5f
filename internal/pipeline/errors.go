package pipeline

import (
	"errors"
	"fmt"
)

// Fatal kinds abort the pipeline immediately. Validation and execution
// failures are consumed by the correction loop and never surface on their
// own; after the budget is spent the loop returns BudgetExhaustedError
// carrying the last concrete failure.
var (
	ErrSchemaExtraction = errors.New("schema extraction failed")
	ErrGeneration       = errors.New("sql generation failed")
)

type BudgetExhaustedError struct {
	Attempts   int
	LastSQL    string
	LastDetail string
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("correction budget exhausted after %d attempt(s): %s", e.Attempts, e.LastDetail)
}

func IsBudgetExhausted(err error) bool {
	var exhausted *BudgetExhaustedError
	return errors.As(err, &exhausted)
}
