// Package errors provides the standardized error taxonomy of the generation pipeline
// and its conversion to BPMN errors for workflow-triggered runs.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeGenerationInProgress  ErrorCode = "GENERATION_IN_PROGRESS"
	ErrCodeDataAccessFailed      ErrorCode = "DATA_ACCESS_FAILED"
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeQueueFull             ErrorCode = "QUEUE_FULL"
	ErrCodeJobStale              ErrorCode = "JOB_STALE"
	ErrCodeSpecificationSaveFail ErrorCode = "SPECIFICATION_SAVE_FAILED"

	ErrCodeGenerationTransport ErrorCode = "GENERATION_TRANSPORT_FAILED"
	ErrCodeGenerationService   ErrorCode = "GENERATION_SERVICE_ERROR"
	ErrCodeGenerationMalformed ErrorCode = "GENERATION_MALFORMED_RESPONSE"
	ErrCodeGenerationEmpty     ErrorCode = "GENERATION_EMPTY_RESULT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		se.Details = cause.Error()
	}
	return se
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError reports malformed trigger input or an unparseable scenario.
func NewValidationError(details string) *StandardError {
	se := newError(ErrCodeValidationFailed, "Validation failed", nil, false)
	se.Details = details
	return se
}

// NewGenerationInProgressError reports a trigger rejected by the per-project guard.
func NewGenerationInProgressError(projectID, jobID string) *StandardError {
	se := newError(ErrCodeGenerationInProgress, "Specification generation already in progress", nil, false)
	se.Details = fmt.Sprintf("projectId: %s, jobId: %s", projectID, jobID)
	se.Metadata = map[string]interface{}{"projectId": projectID, "jobId": jobID}
	return se
}

// NewDataAccessError wraps any collaborator-store fetch or write failure.
func NewDataAccessError(operation string, err error) *StandardError {
	return newError(ErrCodeDataAccessFailed, fmt.Sprintf("Data access failed during %s", operation), err, true)
}

// NewNotFoundError reports a missing job or specification.
func NewNotFoundError(resource, id string) *StandardError {
	se := newError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), nil, false)
	se.Details = fmt.Sprintf("id: %s", id)
	return se
}

// NewQueueFullError reports a trigger the dispatcher could not accept.
func NewQueueFullError(jobID string) *StandardError {
	se := newError(ErrCodeQueueFull, "Generation queue is full", nil, true)
	se.Details = fmt.Sprintf("jobId: %s", jobID)
	return se
}

// NewSpecificationSaveError distinguishes a persistence failure after a successful generation.
func NewSpecificationSaveError(err error) *StandardError {
	return newError(ErrCodeSpecificationSaveFail, "Generation succeeded but saving the specification failed", err, true)
}

// NewGenerationError wraps a classified generation failure under its code.
func NewGenerationError(code ErrorCode, err error) *StandardError {
	return newError(code, "Specification generation failed", err, code == ErrCodeGenerationTransport)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// ==========================
// 4. Classification
// ==========================

// CodeOf returns the ErrorCode carried anywhere in err's chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	var coder interface{ ErrorCode() ErrorCode }
	if stderrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ErrCodeInternal
}

// IsValidation reports whether err rejects the trigger synchronously.
func IsValidation(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeValidationFailed || code == ErrCodeGenerationInProgress
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// Normalize ensures a StandardError is always available for logging and BPMN mapping.
func Normalize(err error) *StandardError {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se
	}
	if code := CodeOf(err); code != ErrCodeInternal {
		return newError(code, "Specification generation failed", err, false)
	}
	return NewInternalError(err)
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the number of workflow retries a code deserves.
// The pipeline itself never retries; this only governs workflow-level redelivery.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDataAccessFailed, ErrCodeQueueFull:
		return 3
	case ErrCodeGenerationTransport:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "GENERATION_IN_PROGRESS"), strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.HasPrefix(codeStr, "GENERATION"):
		return "GENERATION"
	case strings.Contains(codeStr, "DATA_ACCESS"), strings.Contains(codeStr, "SAVE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "QUEUE"), strings.Contains(codeStr, "STALE"):
		return "SCHEDULING"
	default:
		return "OTHER"
	}
}
