// Package errors provides the error types shared by every arbor package.
//
// Errors are built on github.com/cockroachdb/errors so that wrapping keeps
// stack traces (printed with %+v) while remaining compatible with the
// standard errors.Is / errors.As / errors.Unwrap functions.
//
// The taxonomy follows the training engine:
//
//   - ValidationError: a configuration parameter is unusable. Detected when a
//     session, response or sampler is constructed, never during a tree.
//   - ValueError / DimensionError: malformed numeric input.
//   - NotInitializedError / InvariantError: a component was used outside its
//     lifecycle or an internal invariant broke. These are programmer errors.
//   - ModelError: a failure inside a training operation, wrapping its cause.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. Typed errors unwrap to one of these so callers can match
// on the category with errors.Is.
var (
	ErrEmptyData      = errors.New("empty data")
	ErrConfig         = errors.New("invalid configuration")
	ErrNotInitialized = errors.New("not initialized")
	ErrInvariant      = errors.New("invariant violation")
)

// Re-exported helpers so packages only import this one errors package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// New creates an error carrying a stack trace.
func New(msg string) error {
	return errors.NewWithDepth(1, msg)
}

// Newf creates a formatted error carrying a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.NewWithDepthf(1, format, args...)
}

// Wrap annotates err with msg. Returns nil when err is nil.
func Wrap(err error, msg string) error {
	return errors.WrapWithDepth(1, err, msg)
}

// Wrapf annotates err with a formatted message. Returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.WrapWithDepthf(1, err, format, args...)
}

// DimensionError reports mismatched lengths along an axis.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("arbor: %s: dimension mismatch on axis %d: expected %d, got %d",
		e.Op, e.Axis, e.Expected, e.Got)
}

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStackDepth(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}, 1)
}

// ValueError reports an unusable input value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("arbor: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return errors.WithStackDepth(&ValueError{Op: op, Message: message}, 1)
}

// ValidationError reports an invalid configuration parameter.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("arbor: invalid %s (%v): %s", e.ParamName, e.Value, e.Reason)
}

// Unwrap lets errors.Is(err, ErrConfig) match every ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrConfig
}

// NewValidationError creates a ValidationError.
func NewValidationError(paramName, reason string, value interface{}) error {
	return errors.WithStackDepth(&ValidationError{ParamName: paramName, Reason: reason, Value: value}, 1)
}

// NotFittedError reports a query against state that has not been produced
// yet, e.g. a score descriptor requested before the base estimate.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("arbor: %s is not fitted; call its initializer before %s", e.ModelName, e.Method)
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStackDepth(&NotFittedError{ModelName: modelName, Method: method}, 1)
}

// NotInitializedError reports use of a session component before its init or
// after its deinit.
type NotInitializedError struct {
	Component string
	Method    string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("arbor: %s.%s: %v", e.Component, e.Method, ErrNotInitialized)
}

func (e *NotInitializedError) Unwrap() error {
	return ErrNotInitialized
}

// NewNotInitializedError creates a NotInitializedError.
func NewNotInitializedError(component, method string) error {
	return errors.WithStackDepth(&NotInitializedError{Component: component, Method: method}, 1)
}

// InvariantError reports a broken internal invariant.
type InvariantError struct {
	Op      string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("arbor: %s: %v: %s", e.Op, ErrInvariant, e.Message)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

// NewInvariantError creates an InvariantError.
func NewInvariantError(op, message string) error {
	return errors.WithStackDepth(&InvariantError{Op: op, Message: message}, 1)
}

// ModelError wraps a failure inside a training operation.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("arbor: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("arbor: %s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError wrapping err.
func NewModelError(op, message string, err error) error {
	return errors.WithStackDepth(&ModelError{Op: op, Message: message, Err: err}, 1)
}

// Recover converts a panic into an error assigned to *err. It must be
// deferred directly by the public entry point:
//
//	func (g *Grower) Grow(...) (t *Tree, err error) {
//		defer errors.Recover(&err, "Grower.Grow")
//		...
//	}
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = errors.Wrapf(e, "%s: recovered panic", op)
		return
	}
	*err = errors.Newf("%s: recovered panic: %v", op, r)
}
