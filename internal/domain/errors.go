package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation malformed or missing command argument, nothing is fetched
	ErrValidation = errors.New("invalid wallet command")
	// ErrFetch covers bad status, transport failure and missing data envelope alike
	ErrFetch = errors.New("failed to fetch swaps")
	// ErrRateLimited caller used up its request bucket
	ErrRateLimited = errors.New("too many requests")
)

// ParseError swap record with a missing or non-numeric field. Aborts the whole report.
type ParseError struct {
	Index int    // position of the record in the response
	Field string // wire field name, e.g. amountUSD
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("swap[%d].%s=%q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// OutcomeOf classifies a pipeline error for metrics and audit
func OutcomeOf(err error) Outcome {
	var pe *ParseError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, ErrRateLimited):
		return OutcomeLimited
	case errors.As(err, &pe):
		return OutcomeParseFailed
	default:
		return OutcomeFetchFailed
	}
}
