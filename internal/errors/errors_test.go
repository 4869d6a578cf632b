package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestHasCode(t *testing.T) {
	base := NewNoUsablePassError("job-1", 50)

	if !HasCode(base, ErrorNoUsablePass) {
		t.Error("direct error must match its own code")
	}
	if HasCode(base, ErrorDecodeFailed) {
		t.Error("code mismatch must not match")
	}

	wrapped := fmt.Errorf("pipeline failed: %w", base)
	if !HasCode(wrapped, ErrorNoUsablePass) {
		t.Error("wrapped error must still match")
	}

	if HasCode(errors.New("plain"), ErrorNoUsablePass) {
		t.Error("plain error must not match any code")
	}
	if HasCode(nil, ErrorNoUsablePass) {
		t.Error("nil error must not match")
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewEngineUnavailableError("job-2", "sparse_text", cause)

	if !errors.Is(err, cause) {
		t.Error("cause must be reachable through Unwrap")
	}
}

func TestFactoryCodes(t *testing.T) {
	cause := errors.New("underlying")
	tests := []struct {
		name string
		err  *VerificationError
		code ErrorCode
	}{
		{"unsupported format", NewUnsupportedFormatError("job-a", 2048, 1024), ErrorUnsupportedFormat},
		{"pass timeout", NewPassTimeoutError("job-b", "otsu", "single_line", cause), ErrorPassTimeout},
		{"engine timeout", NewEngineTimeoutError("sparse_text", cause), ErrorEngineTimeout},
		{"database failed", NewDatabaseFailedError("job-c", "update job status", cause), ErrorDatabaseFailed},
		{"storage failed", NewStorageFailedError("job-d", cause), ErrorStorageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !HasCode(tt.err, tt.code) {
				t.Errorf("HasCode(%v, %s) = false", tt.err, tt.code)
			}
			if tt.err.Cause != nil && !errors.Is(tt.err, cause) {
				t.Error("cause must be reachable through Unwrap")
			}
		})
	}
}

func TestToMap(t *testing.T) {
	err := NewNoFaceDetectedError("job-3", "document", errors.New("empty detection set"))
	m := err.ToMap()

	if m["error_code"] != "NO_FACE_DETECTED" {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["image_source"] != "document" {
		t.Errorf("image_source = %v", m["image_source"])
	}
	if m["cause"] != "empty detection set" {
		t.Errorf("cause = %v", m["cause"])
	}
}

func TestErrorString(t *testing.T) {
	err := NewDecodeError("job-4", errors.New("png: invalid format"))
	got := err.Error()
	want := "DECODE_FAILED: Failed to decode input image (caused by: png: invalid format)"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
