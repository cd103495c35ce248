package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass partitions engine errors by the stage that raised them, which
// determines how callers react: validation and policy errors mean no plan
// was produced, execution errors mean a plan was partially applied.
type ErrorClass string

const (
	// ErrorClassValidation covers malformed or inconsistent inputs,
	// raised before any diffing begins.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassPolicy covers operator-safety rules that reject an
	// otherwise well-formed plan, raised after diffing but before the
	// plan is returned.
	ErrorClassPolicy ErrorClass = "policy"

	// ErrorClassExecution covers failures applying plan actions through
	// the provisioning backend.
	ErrorClassExecution ErrorClass = "execution"
)

// EngineError is a classified error with planning or execution context.
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// Code is an optional code for programmatic handling.
	Code string

	// Service is the service the error relates to, if any.
	Service string

	// Node is the node the error relates to, if any.
	Node string

	// Services lists every offending service for aggregate policy
	// errors.
	Services []string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)
	if len(e.Services) > 0 {
		fmt.Fprintf(&b, " (services: %s)", strings.Join(e.Services, ", "))
	} else if e.Service != "" && e.Node != "" {
		fmt.Fprintf(&b, " (service=%s, node=%s)", e.Service, e.Node)
	} else if e.Service != "" {
		fmt.Fprintf(&b, " (service=%s)", e.Service)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is: two engine errors match when
// their class and code agree.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassValidation, Message: message, Err: err}
}

// NewPolicyError creates a new policy error.
func NewPolicyError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassPolicy, Message: message, Err: err}
}

// NewExecutionError creates a new execution error.
func NewExecutionError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassExecution, Message: message, Err: err}
}

// WithCode adds an error code.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithService adds service context.
func (e *EngineError) WithService(service string) *EngineError {
	e.Service = service
	return e
}

// WithNode adds node context.
func (e *EngineError) WithNode(node string) *EngineError {
	e.Node = node
	return e
}

// WithServices records the full offending-service list of an aggregate
// error.
func (e *EngineError) WithServices(services []string) *EngineError {
	e.Services = services
	return e
}

// IsValidation reports whether err is classified as a validation error.
func IsValidation(err error) bool {
	return hasClass(err, ErrorClassValidation)
}

// IsPolicy reports whether err is classified as a policy error.
func IsPolicy(err error) bool {
	return hasClass(err, ErrorClassPolicy)
}

// IsExecution reports whether err is classified as an execution error.
func IsExecution(err error) bool {
	return hasClass(err, ErrorClassExecution)
}

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// Error codes.
const (
	ErrCodeUnknownService = "UNKNOWN_SERVICE"
	ErrCodeMixedTopology  = "MIXED_TOPOLOGY"
	ErrCodeExperimental   = "EXPERIMENTAL_OPT_IN_REQUIRED"
	ErrCodeAlreadyBuilt   = "ALREADY_BUILT"
	ErrCodeExecutorState  = "EXECUTOR_STATE"
	ErrCodeInventorySkew  = "INVENTORY_SKEW"
	ErrCodeBackendFailed  = "BACKEND_FAILED"
)
