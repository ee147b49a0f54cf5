package traits

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory marks a categorical value that the trained model
	// never saw.
	ErrUnknownCategory = errors.New("unknown category value")

	// ErrOutOfRange marks a numeric value outside its declared domain.
	ErrOutOfRange = errors.New("value outside declared range")
)

// UnknownCategoryError names the offending field and value when known.
type UnknownCategoryError struct {
	Field  string
	Value  string
	Detail string
}

func (e *UnknownCategoryError) Error() string {
	msg := ErrUnknownCategory.Error()
	switch {
	case e.Field != "":
		msg = fmt.Sprintf("%s: field %s has value %q not seen in training", msg, e.Field, e.Value)
	case e.Value != "":
		msg = fmt.Sprintf("%s: %q not seen in training", msg, e.Value)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

// RangeError reports a numeric field outside [Min, Max].
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: field %s value %g outside [%g, %g]", ErrOutOfRange, e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }
