package engine

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
)

// StackFrame is one frame of a polyglot stack trace.
type StackFrame struct {
	Language string
	Name     string
	Source   string
	Line     int
	Host     bool
}

func (f StackFrame) String() string {
	var b strings.Builder
	if f.Host {
		b.WriteString("<host> ")
	} else {
		b.WriteByte('<')
		b.WriteString(f.Language)
		b.WriteString("> ")
	}
	b.WriteString(f.Name)
	if f.Source != "" {
		b.WriteByte('(')
		b.WriteString(f.Source)
		if f.Line > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(f.Line))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Exception is a failure raised while executing guest code, including
// failures of host functions called from guest code.
type Exception struct {
	Message       string
	SyntaxError   bool
	Cancelled     bool
	InternalError bool
	HostException bool
	Guest         *Value
	Frames        []StackFrame
	Cause         error
}

func (e *Exception) Error() string {
	return e.Message
}

func (e *Exception) Unwrap() error {
	return e.Cause
}

// HasGuestObject reports whether the exception carries a guest value.
func (e *Exception) HasGuestObject() bool {
	return e.Guest != nil
}

// StackTrace renders every frame, host frames included.
func (e *Exception) StackTrace() string {
	return renderFrames(e.Frames, false)
}

// GuestStackTrace renders guest frames only.
func (e *Exception) GuestStackTrace() string {
	return renderFrames(e.Frames, true)
}

func renderFrames(frames []StackFrame, guestOnly bool) string {
	var b strings.Builder
	for _, f := range frames {
		if guestOnly && f.Host {
			continue
		}
		b.WriteString("\tat ")
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// asException converts any failure of guest execution into an *Exception
// and appends the frame it passed through.
func asException(err error, lang, name string) *Exception {
	var ex *Exception
	switch {
	case stderrors.As(err, &ex):
	case stderrors.Is(err, context.Canceled):
		ex = &Exception{Message: "execution was cancelled", Cancelled: true, Cause: err}
	case stderrors.Is(err, context.DeadlineExceeded):
		ex = &Exception{Message: "execution timed out", Cancelled: true, Cause: err}
	default:
		ex = &Exception{Message: err.Error(), Cause: err}
	}
	if name != "" {
		ex.Frames = append(ex.Frames, StackFrame{Language: lang, Name: name, Host: lang == ""})
	}
	return ex
}

// NewHostException wraps an error raised by host code so it travels through
// guest code as an exception.
func NewHostException(message string, cause error) *Exception {
	return &Exception{
		Message:       message,
		HostException: true,
		Cause:         cause,
	}
}
