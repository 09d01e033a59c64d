package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch without parsing text.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "INVALID_INPUT"
	KindPredictionFailed ErrorKind = "PREDICTION_FAILED"
	KindStartupFailure   ErrorKind = "STARTUP_FAILURE"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrPredictionFailed = &Error{Kind: KindPredictionFailed}
	ErrStartupFailure   = &Error{Kind: KindStartupFailure}
)

// Error is a classified failure. Step names the derivation or pipeline step
// that failed (e.g. "house_age", "transform", "load_model").
type Error struct {
	Kind ErrorKind
	Step string
	Err  error
}

func (e *Error) Error() string {
	var prefix string
	switch e.Kind {
	case KindInvalidInput:
		prefix = "invalid input"
	case KindPredictionFailed:
		prefix = "prediction failed"
	case KindStartupFailure:
		prefix = "startup failure"
	default:
		prefix = string(e.Kind)
	}
	if e.Step != "" {
		prefix += ": " + e.Step
	}
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	return prefix
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Step == "" || t.Step == e.Step)
}

// InvalidInput builds an INVALID_INPUT error for the given step.
func InvalidInput(step, format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidInput, Step: step, Err: fmt.Errorf(format, args...)}
}

// PredictionFailed wraps cause as a PREDICTION_FAILED error.
func PredictionFailed(step string, cause error) error {
	return &Error{Kind: KindPredictionFailed, Step: step, Err: cause}
}

// StartupFailure wraps cause as a STARTUP_FAILURE error.
func StartupFailure(step string, cause error) error {
	return &Error{Kind: KindStartupFailure, Step: step, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StepOf returns the failing step recorded on err, or "" if none.
func StepOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}
