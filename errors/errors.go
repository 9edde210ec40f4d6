package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates which lifecycle step produced the error
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // control block creation
	PhaseRelease  Phase = "release"  // strong/weak count decrement
	PhaseUpgrade  Phase = "upgrade"  // weak to strong promotion
	PhaseWrap     Phase = "wrap"     // wrapper creation
	PhaseTrace    Phase = "trace"    // mark pass
	PhaseFinalize Phase = "finalize" // wrapper finalization
	PhaseTeardown Phase = "teardown" // payload destruction
	PhaseCollect  Phase = "collect"  // collection pass scheduling
	PhaseHost     Phase = "host"     // host heap operations
	PhaseScript   Phase = "script"   // script realm
)

// Kind categorizes the error
type Kind string

const (
	KindDoubleRelease    Kind = "double_release"
	KindUseAfterRelease  Kind = "use_after_release"
	KindDoubleFinalize   Kind = "double_finalize"
	KindCountUnderflow   Kind = "count_underflow"
	KindTeardownFailed   Kind = "teardown_failed"
	KindCrossContext     Kind = "cross_context"
	KindNotLocked        Kind = "not_locked"
	KindReentrant        Kind = "reentrant"
	KindClosed           Kind = "closed"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindTypeMismatch     Kind = "type_mismatch"
	KindDeadPayload      Kind = "dead_payload"
	KindRegistration     Kind = "registration"
	KindScriptFailed     Kind = "script_failed"
	KindPassLimitReached Kind = "pass_limit_reached"
)

// Error is the structured error type used throughout refbridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Resource string
	Detail   string
	ID       uint64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Resource != "" || e.ID != 0 {
		b.WriteString(" on ")
		if e.Resource != "" {
			b.WriteString(e.Resource)
		} else {
			b.WriteString("resource")
		}
		if e.ID != 0 {
			b.WriteByte('#')
			b.WriteString(strconv.FormatUint(e.ID, 10))
		}
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

// Resource sets the resource name and control block ID
func (b *Builder) Resource(name string, id uint64) *Builder {
	b.err.Resource = name
	b.err.ID = id
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

// Fatal panics with err. Used for invariant violations that indicate
// memory-safety corruption and must never be recovered by callers.
func Fatal(err *Error) {
	panic(err)
}

// Convenience constructors for common error patterns

// DoubleRelease creates an error for releasing an already released handle
func DoubleRelease(phase Phase, resource string, id uint64) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindDoubleRelease,
		Resource: resource,
		ID:       id,
		Detail:   "handle already released",
	}
}

// UseAfterRelease creates an error for dereferencing a released handle
func UseAfterRelease(phase Phase, resource string, id uint64) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUseAfterRelease,
		Resource: resource,
		ID:       id,
		Detail:   "handle used after release",
	}
}

// CountUnderflow creates an error for a count decrement below zero
func CountUnderflow(phase Phase, resource string, id uint64, which string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindCountUnderflow,
		Resource: resource,
		ID:       id,
		Detail:   fmt.Sprintf("%s count already zero", which),
	}
}

// DoubleFinalize creates an error for finalizing a wrapper twice
func DoubleFinalize(resource string, id uint64) *Error {
	return &Error{
		Phase:    PhaseFinalize,
		Kind:     KindDoubleFinalize,
		Resource: resource,
		ID:       id,
		Detail:   "wrapper already finalized",
	}
}

// TeardownFailed wraps a failure raised by a resource's teardown hook
func TeardownFailed(resource string, id uint64, cause error) *Error {
	return &Error{
		Phase:    PhaseTeardown,
		Kind:     KindTeardownFailed,
		Resource: resource,
		ID:       id,
		Detail:   "teardown hook failed",
		Cause:    cause,
	}
}

// DeadPayload creates an error for operating on a destroyed payload
func DeadPayload(phase Phase, resource string, id uint64) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindDeadPayload,
		Resource: resource,
		ID:       id,
		Detail:   "payload already destroyed",
	}
}

// CrossContext creates an error for wrapping a resource owned by another host
func CrossContext(resource string, id uint64) *Error {
	return &Error{
		Phase:    PhaseWrap,
		Kind:     KindCrossContext,
		Resource: resource,
		ID:       id,
		Detail:   "resource is wrapped by a different host",
	}
}

// NotLocked creates an error for using an engine lock outside its scope
func NotLocked(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotLocked,
		Detail: "engine lock is not held",
	}
}

// Reentrant creates an error for a collection requested during a collection
func Reentrant() *Error {
	return &Error{
		Phase:  PhaseCollect,
		Kind:   KindReentrant,
		Detail: "collection requested while a pass is running",
	}
}

// Closed creates an error for operations on a closed host
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
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

// TypeMismatch creates an error for a payload of an unexpected type
func TypeMismatch(phase Phase, resource string, id uint64, want string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Resource: resource,
		ID:       id,
		Detail:   fmt.Sprintf("payload is not %s", want),
	}
}

// Registration creates a host registration error
func Registration(resource string, id uint64, cause error) *Error {
	return &Error{
		Phase:    PhaseHost,
		Kind:     KindRegistration,
		Resource: resource,
		ID:       id,
		Detail:   "register wrapper",
		Cause:    cause,
	}
}

// Script wraps a failure raised while evaluating script source
func Script(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseScript,
		Kind:   KindScriptFailed,
		Detail: detail,
		Cause:  cause,
	}
}
