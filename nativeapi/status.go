package nativeapi

import (
	stderrors "errors"

	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/errors"
)

// Status is returned by every entry point. The numeric values are part of
// the C ABI and must not be reordered.
type Status int32

const (
	StatusOK Status = iota
	StatusStringExpected
	StatusNumberExpected
	StatusBooleanExpected
	StatusArrayExpected
	StatusGenericFailure
	StatusPendingException
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusStringExpected:
		return "string_expected"
	case StatusNumberExpected:
		return "number_expected"
	case StatusBooleanExpected:
		return "boolean_expected"
	case StatusArrayExpected:
		return "array_expected"
	case StatusGenericFailure:
		return "generic_failure"
	case StatusPendingException:
		return "pending_exception"
	default:
		return "unknown"
	}
}

// classify maps a failure to the status reported for it.
func classify(err error) Status {
	var ex *engine.Exception
	if stderrors.As(err, &ex) {
		return StatusPendingException
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		switch e.Kind {
		case errors.KindArrayExpected:
			return StatusArrayExpected
		case errors.KindStringExpected:
			return StatusStringExpected
		case errors.KindNumberExpected:
			return StatusNumberExpected
		case errors.KindBooleanExpected:
			return StatusBooleanExpected
		}
	}
	return StatusGenericFailure
}
