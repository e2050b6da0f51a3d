// Package modelerr defines the failure taxonomy shared by the registries,
// the value conversion framework and the source backends.
package modelerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes model errors.
type Code string

const (
	// CodeUnknownClass indicates no class or annotation type has the name.
	CodeUnknownClass Code = "UNKNOWN_CLASS"

	// CodeUnknownAttribute indicates an annotation type declares no such attribute.
	CodeUnknownAttribute Code = "UNKNOWN_ATTRIBUTE"

	// CodeMissingAttribute indicates a usage omits an attribute that has no default.
	CodeMissingAttribute Code = "MISSING_ATTRIBUTE"

	// CodeInvalidValue indicates a raw value cannot be converted to the
	// attribute's declared kind.
	CodeInvalidValue Code = "INVALID_VALUE"

	// CodeIllegalCast indicates a narrowing request to a capability the
	// target does not have.
	CodeIllegalCast Code = "ILLEGAL_CAST"

	// CodeRepeatableMisuse indicates a repeatable annotation was attached
	// directly instead of through its container.
	CodeRepeatableMisuse Code = "REPEATABLE_MISUSE"

	// CodeDynamicClass indicates a program unit was requested for a class
	// that has none.
	CodeDynamicClass Code = "DYNAMIC_CLASS_RESOLUTION"

	// CodeBackendIO indicates a backend failed reading bytes or metadata.
	CodeBackendIO Code = "BACKEND_IO"

	// CodeCycle indicates resolution re-entered a name already being resolved.
	CodeCycle Code = "RESOLUTION_CYCLE"
)

// Error is a model failure carrying the identities involved.
// Errors compare equal under errors.Is when their codes match, so callers
// test with the sentinels below: errors.Is(err, modelerr.ErrUnknownClass).
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Class names the class or annotation type involved.
	Class string

	// Attribute names the attribute involved.
	Attribute string

	// Target describes the annotation target involved.
	Target string

	// Container names the container annotation of a repeatable.
	Container string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is matching.
var (
	ErrUnknownClass     = &Error{Code: CodeUnknownClass}
	ErrUnknownAttribute = &Error{Code: CodeUnknownAttribute}
	ErrMissingAttribute = &Error{Code: CodeMissingAttribute}
	ErrInvalidValue     = &Error{Code: CodeInvalidValue}
	ErrIllegalCast      = &Error{Code: CodeIllegalCast}
	ErrRepeatableMisuse = &Error{Code: CodeRepeatableMisuse}
	ErrDynamicClass     = &Error{Code: CodeDynamicClass}
	ErrBackendIO        = &Error{Code: CodeBackendIO}
	ErrCycle            = &Error{Code: CodeCycle}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}

	var ids []string
	if e.Class != "" {
		ids = append(ids, "class="+e.Class)
	}
	if e.Attribute != "" {
		ids = append(ids, "attribute="+e.Attribute)
	}
	if e.Target != "" {
		ids = append(ids, "target="+e.Target)
	}
	if e.Container != "" {
		ids = append(ids, "container="+e.Container)
	}
	if len(ids) > 0 {
		b.WriteString(" (" + strings.Join(ids, ", ") + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// UnknownClass reports that name does not resolve.
func UnknownClass(name string, cause error) *Error {
	return &Error{Code: CodeUnknownClass, Message: "class not found", Class: name, Err: cause}
}

// UnknownAttribute reports that annotation declares no attribute named attr.
func UnknownAttribute(annotation, attr string) *Error {
	return &Error{Code: CodeUnknownAttribute, Message: "attribute not declared", Class: annotation, Attribute: attr}
}

// MissingAttribute reports a usage of annotation omitting attr, which has no default.
func MissingAttribute(annotation, attr string) *Error {
	return &Error{Code: CodeMissingAttribute, Message: "attribute has no default and no value", Class: annotation, Attribute: attr}
}

// InvalidValue reports a raw value unusable for attr.
func InvalidValue(annotation, attr string, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidValue, Message: fmt.Sprintf(format, args...), Class: annotation, Attribute: attr}
}

// IllegalCast reports that target cannot be viewed as want.
func IllegalCast(target, want string) *Error {
	return &Error{Code: CodeIllegalCast, Message: "not a " + want, Target: target}
}

// RepeatableMisuse reports a direct attachment of a repeatable annotation.
func RepeatableMisuse(annotation, target, container string) *Error {
	return &Error{
		Code:      CodeRepeatableMisuse,
		Message:   fmt.Sprintf("repeatable annotation %s must be attached through its container %s", annotation, container),
		Class:     annotation,
		Target:    target,
		Container: container,
	}
}

// DynamicClass reports that class has no backing program unit.
func DynamicClass(name string) *Error {
	return &Error{Code: CodeDynamicClass, Message: "dynamic class has no program unit", Class: name}
}

// BackendIO reports a backend read failure with its cause.
func BackendIO(name string, cause error) *Error {
	return &Error{Code: CodeBackendIO, Message: "backend read failed", Class: name, Err: cause}
}

// Cycle reports that resolving name re-entered itself through chain.
func Cycle(name string, chain []string) *Error {
	return &Error{
		Code:    CodeCycle,
		Message: "resolution cycle: " + strings.Join(append(append([]string{}, chain...), name), " -> "),
		Class:   name,
	}
}
