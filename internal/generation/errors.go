package generation

import (
	"fmt"
	"unicode/utf8"

	apperrors "specgen/internal/common/errors"
)

// Kind classifies a generation failure.
type Kind string

const (
	TransportFailure  Kind = "transport_failure"
	ServiceError      Kind = "service_error"
	MalformedResponse Kind = "malformed_response"
	EmptyResult       Kind = "empty_result"
)

// maxErrorBody bounds how much of a service error body appears in Error().
const maxErrorBody = 512

// GenerationError is the only error type Generate returns.
type GenerationError struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case TransportFailure:
		return fmt.Sprintf("generation service unreachable: %v", e.Err)
	case ServiceError:
		return fmt.Sprintf("generation service returned status %d: %s", e.StatusCode, truncate(e.Body, maxErrorBody))
	case MalformedResponse:
		return fmt.Sprintf("generation response could not be decoded: %v", e.Err)
	case EmptyResult:
		return "generation response contained no text"
	default:
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ErrorCode maps the kind onto the shared error taxonomy.
func (e *GenerationError) ErrorCode() apperrors.ErrorCode {
	switch e.Kind {
	case TransportFailure:
		return apperrors.ErrCodeGenerationTransport
	case ServiceError:
		return apperrors.ErrCodeGenerationService
	case MalformedResponse:
		return apperrors.ErrCodeGenerationMalformed
	case EmptyResult:
		return apperrors.ErrCodeGenerationEmpty
	default:
		return apperrors.ErrCodeInternal
	}
}
