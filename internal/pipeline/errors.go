package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// OperationError wraps the failure of one stage
type OperationError struct {
	Type    ErrorType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewStageError classifies a stage failure
func NewStageError(stage string, cause error) *OperationError {
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return &OperationError{Type: ErrorTypeTimeout, Stage: stage, Message: "stage timed out", Cause: cause}
	case errors.Is(cause, context.Canceled):
		return &OperationError{Type: ErrorTypeCancellation, Stage: stage, Message: "run was cancelled", Cause: cause}
	default:
		return &OperationError{Type: ErrorTypeExecution, Stage: stage, Message: "stage failed", Cause: cause}
	}
}

// NewInvalidStateError reports a stage that ran without its input
func NewInvalidStateError(stage, message string) *OperationError {
	return &OperationError{Type: ErrorTypeInvalidState, Stage: stage, Message: message}
}

// GetErrorType returns the type of the error, or "" when err is not an
// OperationError
func GetErrorType(err error) ErrorType {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ""
}

// FailedStage returns the stage an error came from
func FailedStage(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Stage
	}
	return ""
}
