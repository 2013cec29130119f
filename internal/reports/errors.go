package reports

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilter is matched by every filter validation failure.
	ErrInvalidFilter = errors.New("reports: invalid filter")
	// ErrDataSourceUnavailable wraps failures of the billing data source.
	ErrDataSourceUnavailable = errors.New("reports: data source unavailable")
)

// FilterError describes the rejected filter field.
type FilterError struct {
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("reports: invalid filter %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidFilter) match.
func (e *FilterError) Is(target error) bool {
	return target == ErrInvalidFilter
}

func invalidFilter(field, reason string) error {
	return &FilterError{Field: field, Reason: reason}
}

func sourceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDataSourceUnavailable, op, err)
}
