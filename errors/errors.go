package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which layer of the boundary raised the error
type Phase string

const (
	PhaseHandle    Phase = "handle"    // handle decoding and resolution
	PhaseScope     Phase = "scope"     // frame push/pop
	PhaseReference Phase = "reference" // persistent table
	PhaseEngine    Phase = "engine"    // engine lifecycle
	PhaseContext   Phase = "context"   // context lifecycle and evaluation
	PhaseValue     Phase = "value"     // value access and coercion
	PhaseCallback  Phase = "callback"  // native callback re-entry
	PhaseBoundary  Phase = "boundary"  // entry point plumbing
	PhaseConfig    Phase = "config"    // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidHandle   Kind = "invalid_handle"
	KindNoScope         Kind = "no_scope"
	KindTypeMismatch    Kind = "type_mismatch"
	KindArrayExpected   Kind = "array_expected"
	KindStringExpected  Kind = "string_expected"
	KindNumberExpected  Kind = "number_expected"
	KindBooleanExpected Kind = "boolean_expected"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindOverflow        Kind = "overflow"
	KindClosed          Kind = "closed"
	KindIllegalState    Kind = "illegal_state"
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindUnsupported     Kind = "unsupported"
	KindNilPointer      Kind = "nil_pointer"
	KindPanic           Kind = "panic"
)

// Error is the structured error type used throughout the boundary
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	MetaType string
	Detail   string
	Path     []string
	Handle   uint64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Handle != 0 {
		fmt.Fprintf(&b, " (handle %#x)", e.Handle)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.MetaType != "" {
		b.WriteString(": ")
		b.WriteString(e.MetaType)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Message returns the human readable part of the error, without the
// phase and kind prefix. Native callers see this in the error info.
func (e *Error) Message() string {
	msg := e.Detail
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// MetaType sets the meta-object name of the offending value
func (b *Builder) MetaType(t string) *Builder {
	b.err.MetaType = t
	return b
}

// Handle records the raw handle involved
func (b *Builder) Handle(h uint64) *Builder {
	b.err.Handle = h
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidHandle reports a handle that is out of range, stale or freed
func InvalidHandle(phase Phase, h uint64, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Handle: h,
		Detail: detail,
	}
}

// NoScope reports an allocation attempted with no open frame
func NoScope() *Error {
	return &Error{
		Phase:  PhaseScope,
		Kind:   KindNoScope,
		Detail: "no handle scope is open on this thread",
	}
}

var expectedNames = map[Kind]string{
	KindArrayExpected:   "Array",
	KindStringExpected:  "String",
	KindNumberExpected:  "Number",
	KindBooleanExpected: "Boolean",
}

// Expected reports a value of the wrong shape for the operation.
// kind must be one of the *Expected kinds.
func Expected(kind Kind, metaType string) *Error {
	name, ok := expectedNames[kind]
	if !ok {
		name = "Value"
	}
	return New(PhaseValue, kind).
		MetaType(metaType).
		Detail("%s expected but got %s", name, metaType).
		Build()
}

// TypeMismatch creates a generic type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		MetaType: got,
		Detail:   fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NilPointer creates a nil pointer error for a required out parameter
func NilPointer(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   []string{name},
		Detail: "nil pointer",
	}
}

// Overflow reports a value that does not fit the requested type
func Overflow(phase Phase, value any, targetType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindOverflow,
		MetaType: targetType,
		Detail:   fmt.Sprintf("Value %v does not fit in %s", value, targetType),
		Value:    value,
	}
}

// Closed reports use of a closed object
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// IllegalState reports an operation invalid in the current state
func IllegalState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIllegalState,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return New(phase, kind).Cause(cause).Detail("%s", detail).Build()
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Panic converts a recovered panic into an error
func Panic(phase Phase, recovered any, stack string) *Error {
	err := &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Detail: fmt.Sprintf("panic: %v", recovered),
		Value:  stack,
	}
	if cause, ok := recovered.(error); ok {
		err.Cause = cause
	}
	return err
}
