package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSchema   Phase = "schema"   // schema declaration
	PhaseUnpack   Phase = "unpack"   // bytes to tree
	PhaseRelayout Phase = "relayout" // offset and size negotiation
	PhasePack     Phase = "pack"     // tree to bytes
	PhaseResolve  Phase = "resolve"  // dependency expression walk
	PhaseValidate Phase = "validate" // post-unpack validation hooks
	PhaseLoad     Phase = "load"     // file and DSL loading
)

// Kind categorizes the error
type Kind string

const (
	KindTruncated        Kind = "truncated"
	KindMagic            Kind = "magic"
	KindInvalidEnum      Kind = "invalid_enum"
	KindUnresolved       Kind = "unresolved_dependency"
	KindUnrecoverable    Kind = "unrecoverable"
	KindSizeMismatch     Kind = "size_mismatch"
	KindInvalidVariant   Kind = "invalid_variant"
	KindOffsetUnresolved Kind = "offset_unresolved"
	KindInvalidInput     Kind = "invalid_input"
	KindSchema           Kind = "schema"
)

// Error is the structured error type used by every abstruct package.
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

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
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

// Is reports whether target matches this error. An empty Phase or Kind
// on the target matches any value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

// Recoverable reports whether lenient compliance may downgrade the error
// to a warning. Only magic and enum violations qualify.
func (e *Error) Recoverable() bool {
	return e.Kind == KindMagic || e.Kind == KindInvalidEnum
}

// FieldPath returns the dotted field chain, or "" for the root.
func (e *Error) FieldPath() string {
	return strings.Join(e.Path, ".")
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

// Path sets the field path
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

// Prepend adds name at the front of the field path carried by err.
// Errors that are not *Error are wrapped into an unpack-phase error first.
func Prepend(err error, name string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !stderrors.As(err, &e) {
		e = &Error{Phase: PhaseUnpack, Kind: KindInvalidInput, Cause: err}
		e.Path = []string{name}
		return e
	}
	e.Path = append([]string{name}, e.Path...)
	return err
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PathOf returns the field path of the first *Error in err's chain.
func PathOf(err error) []string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Path
	}
	return nil
}

// IsRecoverable reports whether err is a magic or enum violation.
func IsRecoverable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}

// Convenience constructors for common error patterns

// Truncated creates an error for a read that ran past the end of input
func Truncated(phase Phase, want, got int, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTruncated,
		Detail: fmt.Sprintf("need %d bytes, %d available", want, got),
		Cause:  cause,
	}
}

// Magic creates a magic mismatch error
func Magic(phase Phase, want, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMagic,
		Detail: fmt.Sprintf("expected %v, got %v", want, got),
		Value:  got,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Detail: fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:  value,
	}
}

// Unresolved creates an error for a dependency expression that cannot be walked
func Unresolved(expr, detail string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolved,
		Detail: fmt.Sprintf("%q: %s", expr, detail),
		Value:  expr,
	}
}

// Unrecoverable creates an error for a tree whose shape cannot be determined
func Unrecoverable(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnrecoverable,
		Detail: detail,
	}
}

// SizeMismatch creates an error for a value whose length disagrees with its declared size
func SizeMismatch(phase Phase, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSizeMismatch,
		Detail: fmt.Sprintf("expected %d bytes, got %d", want, got),
		Value:  got,
	}
}

// InvalidDiscriminant creates an error for a select key with no table entry
func InvalidDiscriminant(phase Phase, disc any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Detail: fmt.Sprintf("no variant for discriminant %v", disc),
		Value:  disc,
	}
}

// OffsetUnresolved creates an error for a field packed before its offset is known
func OffsetUnresolved(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOffsetUnresolved,
		Detail: "offset not resolved",
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

// Schema creates a schema declaration error
func Schema(detail string) *Error {
	return &Error{
		Phase:  PhaseSchema,
		Kind:   KindSchema,
		Detail: detail,
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

// Load creates a file or DSL loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}
