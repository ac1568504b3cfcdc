package prompt

import "errors"

var (
	// ErrCounterRequired is returned when a token counter is not provided.
	ErrCounterRequired = errors.New("token counter required")

	// ErrInvalidMode is returned when the request mode is not recognized.
	ErrInvalidMode = errors.New("invalid assembly mode")

	// ErrInvalidBudget is returned when the token budget is not positive.
	ErrInvalidBudget = errors.New("token budget must be positive")

	// ErrEmptyQuestion is returned when the request has no user input.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrContextOverflow is returned when even the minimal required content
	// (system instruction plus the newest user turn) exceeds the budget.
	// Fatal for the single request, never retried automatically.
	ErrContextOverflow = errors.New("required content exceeds token budget")
)
