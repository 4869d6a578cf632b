/**
 * Custom error types for the identity verification worker
 *
 * Design Pattern: Factory Pattern for error creation
 * SOLID Principle: Single Responsibility (each error type has one purpose)
 */

package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors - fail fast, no partial result
	ErrorDecodeFailed      ErrorCode = "DECODE_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Extraction errors
	ErrorNoUsablePass ErrorCode = "NO_USABLE_PASS"
	ErrorPassTimeout  ErrorCode = "PASS_TIMEOUT"

	// Identity errors - always surfaced distinctly, never a low-confidence verdict
	ErrorNoFaceDetected ErrorCode = "NO_FACE_DETECTED"

	// Engine errors - recovered per pass
	ErrorEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorEngineTimeout     ErrorCode = "ENGINE_TIMEOUT"

	// Request-level errors
	ErrorRequestTimeout ErrorCode = "REQUEST_TIMEOUT"

	// Storage errors
	ErrorStorageFailed  ErrorCode = "STORAGE_FAILED"
	ErrorDatabaseFailed ErrorCode = "DATABASE_FAILED"
)

// VerificationError represents a structured verification error
type VerificationError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *VerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err (or anything it wraps) is a VerificationError
// with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

// Factory functions for common errors

func NewDecodeError(jobID string, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorDecodeFailed,
		Message:   "Failed to decode input image",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewUnsupportedFormatError(jobID string, size int64, maxSize int64) *VerificationError {
	return &VerificationError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Document image rejected: %d bytes exceeds limit of %d", size, maxSize),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"size_bytes": size,
			"max_bytes":  maxSize,
		},
	}
}

func NewNoUsablePassError(jobID string, passCount int) *VerificationError {
	return &VerificationError{
		Code:      ErrorNoUsablePass,
		Message:   fmt.Sprintf("All %d OCR passes failed", passCount),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"pass_count": passCount,
		},
	}
}

func NewPassTimeoutError(jobID string, variant string, mode string, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorPassTimeout,
		Message:   fmt.Sprintf("OCR pass %s/%s exceeded its time budget", variant, mode),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"variant":  variant,
			"ocr_mode": mode,
		},
		Cause: cause,
	}
}

func NewNoFaceDetectedError(jobID string, source string, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorNoFaceDetected,
		Message:   fmt.Sprintf("No face detected in %s image", source),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_source": source,
		},
		Cause: cause,
	}
}

func NewRequestTimeoutError(jobID string, duration time.Duration, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorRequestTimeout,
		Message:   fmt.Sprintf("Request timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewEngineUnavailableError(jobID string, mode string, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorEngineUnavailable,
		Message:   fmt.Sprintf("OCR engine unavailable for mode: %s", mode),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_mode": mode,
		},
		Cause: cause,
	}
}

func NewEngineTimeoutError(mode string, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorEngineTimeout,
		Message:   fmt.Sprintf("OCR engine interrupted during mode: %s", mode),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_mode": mode,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store verification results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewDatabaseFailedError(jobID string, operation string, cause error) *VerificationError {
	return &VerificationError{
		Code:      ErrorDatabaseFailed,
		Message:   fmt.Sprintf("Database operation failed: %s", operation),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

// ToMap converts error to map for database storage
func (e *VerificationError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
