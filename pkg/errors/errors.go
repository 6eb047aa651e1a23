// Package errors provides the structured error taxonomy shared by the
// declaration pass, the emitters and the reference runtime.
//
// Errors carry a Phase (where they happened) and a Kind (what went wrong).
// Marshaling kinds form a small hierarchy: a type tag mismatch, an arity
// error and an invalid enum value are all marshal errors, so
//
//	errors.Is(err, errors.ErrMarshal)
//
// holds for each of them.
package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where the error occurred.
type Phase string

const (
	PhaseDeclare Phase = "declare" // building the registry
	PhaseLoad    Phase = "load"    // reading declaration files
	PhaseEmit    Phase = "emit"    // generating artifacts
	PhaseUnwrap  Phase = "unwrap"  // host to native
	PhaseWrap    Phase = "wrap"    // native to host
	PhaseCall    Phase = "call"    // dispatching a native entry
)

// Kind categorizes the error.
type Kind string

const (
	KindDeclaration      Kind = "declaration"
	KindMarshal          Kind = "marshal"
	KindTypeTagMismatch  Kind = "type_tag_mismatch"
	KindArity            Kind = "arity"
	KindInvalidEnum      Kind = "invalid_enum"
	KindUnresolvedSymbol Kind = "unresolved_symbol"
	KindEmission         Kind = "emission"
)

// parent returns the kind a kind specializes, or "".
func (k Kind) parent() Kind {
	switch k {
	case KindTypeTagMismatch, KindArity, KindInvalidEnum:
		return KindMarshal
	}
	return ""
}

// Error is the structured error type.
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Subject string // qualified name of the entity involved
	Detail  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Subject != "" {
		b.WriteString(" at ")
		b.WriteString(e.Subject)
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

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a sentinel for this error's kind or one of
// its parent kinds. Phase is ignored unless the target sets it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	for k := e.Kind; k != ""; k = k.parent() {
		if k == t.Kind {
			return true
		}
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrDeclaration      = &Error{Kind: KindDeclaration}
	ErrMarshal          = &Error{Kind: KindMarshal}
	ErrTypeTagMismatch  = &Error{Kind: KindTypeTagMismatch}
	ErrArity            = &Error{Kind: KindArity}
	ErrInvalidEnumValue = &Error{Kind: KindInvalidEnum}
	ErrUnresolvedSymbol = &Error{Kind: KindUnresolvedSymbol}
	ErrEmission         = &Error{Kind: KindEmission}
)

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

// Subject sets the qualified name of the entity involved
func (b *Builder) Subject(name string) *Builder {
	b.err.Subject = name
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

// Declaration creates a declaration-time error.
func Declaration(subject, format string, args ...any) *Error {
	return New(PhaseDeclare, KindDeclaration).Subject(subject).Detail(format, args...).Build()
}

// Marshal creates a generic marshaling error.
func Marshal(phase Phase, subject, format string, args ...any) *Error {
	return New(phase, KindMarshal).Subject(subject).Detail(format, args...).Build()
}

// TypeTagMismatch creates a capsule identity error.
func TypeTagMismatch(subject, want, got string) *Error {
	return &Error{
		Phase:   PhaseUnwrap,
		Kind:    KindTypeTagMismatch,
		Subject: subject,
		Detail:  fmt.Sprintf("expected capsule %q, got %q", want, got),
	}
}

// Arity creates an error for a call no overload accepts.
func Arity(subject string, got int) *Error {
	return &Error{
		Phase:   PhaseCall,
		Kind:    KindArity,
		Subject: subject,
		Detail:  fmt.Sprintf("invalid number of args: %d", got),
	}
}

// InvalidEnumValue creates an error for an unknown enum value.
func InvalidEnumValue(phase Phase, subject string, value any) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindInvalidEnum,
		Subject: subject,
		Detail:  fmt.Sprintf("invalid enum %v", value),
	}
}

// UnresolvedSymbol creates an error for a native symbol the library lacks.
func UnresolvedSymbol(symbol string) *Error {
	return &Error{
		Phase:   PhaseCall,
		Kind:    KindUnresolvedSymbol,
		Subject: symbol,
		Detail:  "native symbol not found",
	}
}

// Emission creates an error raised while generating an artifact.
func Emission(subject, format string, args ...any) *Error {
	return New(PhaseEmit, KindEmission).Subject(subject).Detail(format, args...).Build()
}
