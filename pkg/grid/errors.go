package grid

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is. Each typed error below unwraps to one of them.
var (
	ErrMissingField          = errors.New("field missing from history schema")
	ErrInsufficientData      = errors.New("insufficient history")
	ErrInvalidRangeFormat    = errors.New("invalid range format")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrInvalidWindow         = errors.New("invalid aggregation window")
	ErrMalformedRecord       = errors.New("malformed history record")
)

// MissingFieldError reports a field that no history row carries at all.
// A field present with only null values is not an error.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("field %q not present in history", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// InsufficientDataError is returned when fewer samples than required are available.
type InsufficientDataError struct {
	Field string
	Need  int
	Have  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("field %q: need %d samples, have %d", e.Field, e.Need, e.Have)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// InvalidRangeFormatError means a display range does not match any known shape.
// It indicates a labelling table and metric policy mismatch.
type InvalidRangeFormatError struct {
	Range string
}

func (e *InvalidRangeFormatError) Error() string {
	return fmt.Sprintf("invalid range format %q", e.Range)
}

func (e *InvalidRangeFormatError) Unwrap() error { return ErrInvalidRangeFormat }

// ClassifierUnavailableError wraps a failure to load or reach a classifier.
type ClassifierUnavailableError struct {
	Metric string
	Err    error
}

func (e *ClassifierUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("classifier for %s unavailable", e.Metric)
	}
	return fmt.Sprintf("classifier for %s unavailable: %v", e.Metric, e.Err)
}

func (e *ClassifierUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrClassifierUnavailable}
	}
	return []error{ErrClassifierUnavailable, e.Err}
}

// InvalidWindowError is returned for aggregation windows outside the supported set.
type InvalidWindowError struct {
	Hours int
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("window of %d hours not supported (must be one of 1, 3, 6, 12, 24)", e.Hours)
}

func (e *InvalidWindowError) Unwrap() error { return ErrInvalidWindow }

// MalformedRecordError reports a row whose field has an unexpected JSON type.
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("history[%d].%s: %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }
