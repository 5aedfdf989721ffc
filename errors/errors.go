package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBoundary Phase = "boundary" // isolation substrate delivery
	PhaseDispatch Phase = "dispatch" // operation lookup and signature checks
	PhaseInit     Phase = "init"     // script compilation
	PhaseExec     Phase = "exec"     // script instantiation and run
	PhaseEncode   Phase = "encode"   // Go to envelope
	PhaseDecode   Phase = "decode"   // envelope to Go
	PhaseShim     Phase = "shim"     // fake OS services
	PhaseLoad     Phase = "load"     // guest image loading
	PhaseConfig   Phase = "config"   // limits and options
)

// Kind categorizes the error
type Kind string

const (
	KindFunctionNotFound Kind = "function_not_found"
	KindArity            Kind = "arity"
	KindTypeMismatch     Kind = "type_mismatch"
	KindInvalidData      Kind = "invalid_data"
	KindInvalidInput     Kind = "invalid_input"
	KindUnsupported      Kind = "unsupported"
	KindAllocation       Kind = "allocation"
	KindNotInitialized   Kind = "not_initialized"
	KindEngineInit       Kind = "engine_init"
	KindCompile          Kind = "compile"
	KindInstantiation    Kind = "instantiation"
	KindExecution        Kind = "execution"
	KindResultType       Kind = "result_type"
	KindExited           Kind = "exited"
	KindPanic            Kind = "panic"
	KindCrashed          Kind = "crashed"
	KindClosed           Kind = "closed"
	KindMissingExport    Kind = "missing_export"
	KindNoSuchProcess    Kind = "no_such_process"
)

// Error is the structured error type used throughout the sandbox
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
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

// Message returns the error text without the phase and kind prefix.
// This is what crosses the boundary in a response envelope.
func (e *Error) Message() string {
	msg := e.Detail
	if e.Cause != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Cause.Error()
	}
	return msg
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

// Op sets the operation name
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
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

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Classification

// IsBoundary reports whether err is a boundary failure.
func IsBoundary(err error) bool {
	return phaseOf(err) == PhaseBoundary
}

// IsDispatch reports whether err is a dispatch failure.
func IsDispatch(err error) bool {
	return phaseOf(err) == PhaseDispatch
}

// IsGuest reports whether err was raised by a guest operation.
func IsGuest(err error) bool {
	p := phaseOf(err)
	return p == PhaseInit || p == PhaseExec
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func phaseOf(err error) Phase {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}

// FromWire rebuilds an error received in a response envelope.
func FromWire(phase, kind, op, message string) *Error {
	return &Error{
		Phase:  Phase(phase),
		Kind:   Kind(kind),
		Op:     op,
		Detail: message,
	}
}

// Convenience constructors for common error patterns

// FunctionNotFound creates a dispatch error echoing the requested name
func FunctionNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindFunctionNotFound,
		Op:     name,
		Value:  name,
		Detail: fmt.Sprintf("no guest function named %q", name),
	}
}

// ArityMismatch creates a parameter count error
func ArityMismatch(op string, want, got int) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindArity,
		Op:     op,
		Detail: fmt.Sprintf("want %d parameter(s), got %d", want, got),
		Value:  got,
	}
}

// TypeMismatch creates a parameter type error
func TypeMismatch(phase Phase, op string, index int, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Op:     op,
		Detail: fmt.Sprintf("parameter %d: want %s, got %s", index, want, got),
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Exited creates an error for a guest call that terminated through exit
func Exited(phase Phase, status int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExited,
		Detail: fmt.Sprintf("exit status %d", status),
		Value:  status,
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

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Boundary creates a boundary error
func Boundary(kind Kind, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseBoundary,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a guest image loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
