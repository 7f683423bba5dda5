package framework

import "strings"

// AggregatedError collects the errors of multiple runners.
type AggregatedError struct {
	Errors []error
}

// Error implements error.
func (e *AggregatedError) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}
	msg := make([]string, len(e.Errors)+1)
	msg[0] = "multiple errors:"
	for n, err := range e.Errors {
		msg[n+1] = err.Error()
	}
	return strings.Join(msg, "\n")
}

// Add appends non-nil errors.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns the collected error, or nil if none happened.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
