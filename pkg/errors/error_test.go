package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "olymp/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{InvalidParams, "Invalid parameters"},
		{UnsupportedExecutable, "No known way to execute the solution"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{ValidationFailed, 400},
		{RunNotFound, 404},
		{JudgeQueueFull, 429},
		{JudgeSystemError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNewAndWrap(t *testing.T) {
	err := New(ProcessStartFailed)
	if err.Code != ProcessStartFailed {
		t.Fatalf("Code = %v, want %v", err.Code, ProcessStartFailed)
	}
	if err.Error() != ProcessStartFailed.Message() {
		t.Fatalf("Error() = %v", err.Error())
	}

	originalErr := errors.New("exec format error")
	wrapped := Wrapf(originalErr, ProcessStartFailed, "start %s", "sol_a")
	if wrapped.Unwrap() != originalErr {
		t.Fatal("Unwrap() should return original error")
	}
	if wrapped.Error() != "start sol_a: exec format error" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
	if Wrap(nil, CheckerFailed) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestGetCodeThroughChain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(CheckerFailed), want: CheckerFailed},
		{name: "wrapped by fmt", err: fmt.Errorf("outer: %w", New(RunNotFound)), want: RunNotFound},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(New(UnsupportedExecutable)) {
		t.Fatal("unsupported executable must be fatal")
	}
	if !IsFatal(fmt.Errorf("load: %w", ConfigError("negative time limit"))) {
		t.Fatal("config error must be fatal through wrapping")
	}
	if IsFatal(New(ProcessStatFailed)) {
		t.Fatal("stat failure must not be fatal")
	}
	if IsFatal(errors.New("plain")) {
		t.Fatal("plain errors are not fatal")
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("solution", "required")
	if err.Code != ValidationFailed {
		t.Fatal("ValidationError should use ValidationFailed code")
	}
	if err.Details["field"] != "solution" {
		t.Fatal("Field detail not set")
	}
	if !Is(err, ValidationFailed) || Is(err, NotFound) {
		t.Fatal("Is() mismatch")
	}
}
