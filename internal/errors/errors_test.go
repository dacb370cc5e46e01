package errors

import (
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// PipelineError Tests
// -----------------------------------------------------------------------------

func TestPipelineError_Error(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  *PipelineError
		want string
	}{
		{
			name: "stage only",
			err:  NewPipelineError("execute", cause),
			want: "pipeline error [stage=execute]: boom",
		},
		{
			name: "with pipeline id",
			err:  NewPipelineError("execute", cause).WithPipelineID("p-1"),
			want: "pipeline error [pipeline=p-1, stage=execute]: boom",
		},
		{
			name: "no cause",
			err:  NewPipelineError("", nil),
			want: "pipeline error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	err := NewPipelineError("execute", ErrCanceled)
	if !errors.Is(err, ErrCanceled) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

// -----------------------------------------------------------------------------
// RuntimeError Tests
// -----------------------------------------------------------------------------

func TestRuntimeError_Error(t *testing.T) {
	err := NewRuntimeError("TaskReport", errors.New("refused")).
		WithTaskID("T1").
		WithStatusCode(502)

	want := "runtime error [task=T1, status=502]: TaskReport: refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := NewRuntimeError("TaskCancel", nil)
	if got := bare.Error(); got != "runtime error: TaskCancel" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRuntimeError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{400, false},
		{404, false},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := NewRuntimeError("TaskRun", nil).WithStatusCode(tt.status)
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError_Is(t *testing.T) {
	pipelineErr := NewNotFoundError("pipeline", "p-1")
	if !Is(pipelineErr, ErrPipelineNotFound) {
		t.Error("pipeline NotFoundError should match ErrPipelineNotFound")
	}
	if Is(pipelineErr, ErrFormNotFound) {
		t.Error("pipeline NotFoundError should not match ErrFormNotFound")
	}

	formErr := NewNotFoundError("form", "f-1")
	if !Is(formErr, ErrFormNotFound) {
		t.Error("form NotFoundError should match ErrFormNotFound")
	}
	if got := formErr.Error(); got != "form not found: f-1" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("is required").WithField("x").WithValue(nil)
	if got := err.Error(); got != "x: is required" {
		t.Errorf("Error() = %q, want %q", got, "x: is required")
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if got := NewValidationError("bad").Error(); got != "bad" {
		t.Errorf("Error() = %q, want %q", got, "bad")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"report unavailable", Wrap(ErrReportUnavailable, "tick"), true},
		{"runtime transport", NewRuntimeError("TaskReport", errors.New("dial")), true},
		{"runtime 400", NewRuntimeError("TaskRun", nil).WithStatusCode(400), false},
		{"wrapped runtime 503", Wrap(NewRuntimeError("TaskRun", nil).WithStatusCode(503), "run"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if IsUserFacing(errors.New("internal")) {
		t.Error("plain errors should not be user facing")
	}
	if !IsUserFacing(Wrap(NewValidationError("bad"), "form")) {
		t.Error("wrapped ValidationError should be user facing")
	}
	if !IsUserFacing(NewNotFoundError("form", "f")) {
		t.Error("NotFoundError should be user facing")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrCanceled, "run %s", "p-1")
	if err.Error() != "run p-1: operation canceled" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !Is(err, ErrCanceled) {
		t.Error("Wrapf should preserve the chain")
	}
}
