package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBuffer  Phase = "buffer"  // array buffer construction and access
	PhaseView    Phase = "view"    // typed view construction and access
	PhaseHandle  Phase = "handle"  // resource handle registry
	PhaseSweep   Phase = "sweep"   // shutdown sweep
	PhaseEngine  Phase = "engine"  // wazero calls
	PhaseLoad    Phase = "load"    // module loading
	PhaseRuntime Phase = "runtime" // host object layer
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation    Kind = "allocation"
	KindRange         Kind = "range"
	KindInvalidKind   Kind = "invalid_kind"
	KindIndex         Kind = "index"
	KindStaleHandle   Kind = "stale_handle"
	KindKindMismatch  Kind = "kind_mismatch"
	KindDetached      Kind = "detached"
	KindClosed        Kind = "closed"
	KindNotFound      Kind = "not_found"
	KindInvalidInput  Kind = "invalid_input"
	KindInstantiation Kind = "instantiation"
	KindTeardown      Kind = "teardown"
	KindTrap          Kind = "trap"
)

// Sentinels for errors.Is. They carry no phase and therefore match an error
// of the same kind raised in any phase.
var (
	ErrAllocation   = &Error{Kind: KindAllocation}
	ErrRange        = &Error{Kind: KindRange}
	ErrInvalidKind  = &Error{Kind: KindInvalidKind}
	ErrIndex        = &Error{Kind: KindIndex}
	ErrStaleHandle  = &Error{Kind: KindStaleHandle}
	ErrKindMismatch = &Error{Kind: KindKindMismatch}
	ErrDetached     = &Error{Kind: KindDetached}
	ErrClosed       = &Error{Kind: KindClosed}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrTeardown     = &Error{Kind: KindTeardown}
	ErrTrap         = &Error{Kind: KindTrap}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
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

// Is reports whether target matches this error. A target with an empty
// Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
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

// Path sets the object path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// Convenience constructors for the taxonomy

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint64, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
		Cause:  cause,
	}
}

// RangeExceeded creates an error for a byte range that does not fit a buffer
func RangeExceeded(phase Phase, byteOffset, byteLength, bufferLength uint64) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindRange,
		Detail: fmt.Sprintf("byte range [%d, %d) exceeds buffer length %d",
			byteOffset, byteOffset+byteLength, bufferLength),
		Value: byteOffset + byteLength,
	}
}

// InvalidKind creates an error for an unrecognized view or resource kind
func InvalidKind(phase Phase, kind any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidKind,
		Detail: fmt.Sprintf("unsupported kind %v", kind),
		Value:  kind,
	}
}

// IndexOutOfBounds creates an out of bounds element access error
func IndexOutOfBounds(phase Phase, path []string, index, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIndex,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// StaleHandle creates an error for use of a destroyed or unknown handle
func StaleHandle(handle uint64) *Error {
	return &Error{
		Phase:  PhaseHandle,
		Kind:   KindStaleHandle,
		Detail: fmt.Sprintf("handle %#x is destroyed or was never issued", handle),
		Value:  handle,
	}
}

// KindMismatch creates an error for a handle extracted as the wrong kind
func KindMismatch(handle uint64, want, got string) *Error {
	return &Error{
		Phase:  PhaseHandle,
		Kind:   KindKindMismatch,
		Detail: fmt.Sprintf("handle %#x is a %s, not a %s", handle, got, want),
		Value:  handle,
	}
}

// Detached creates an error for access through a detached borrowed region
func Detached(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDetached,
		Detail: fmt.Sprintf("%s is detached from its memory", what),
	}
}

// Closed creates an error for use of an object after Close
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Teardown creates an error reported by a native destructor
func Teardown(phase Phase, handle uint64, kind string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTeardown,
		Detail: fmt.Sprintf("destroy %s handle %#x", kind, handle),
		Value:  handle,
		Cause:  cause,
	}
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

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
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

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
