package model

import (
	"errors"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "Graph 'g_123' not found"}
	want := "NOT_FOUND: Graph 'g_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Graph", "g_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "Graph 'g_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "Graph 'g_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("CWL validation failed",
		FieldError{Field: "cwlVersion", Message: "required"},
		FieldError{Field: "steps.align.run", Message: "missing 'run'"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestNewParseError(t *testing.T) {
	err := NewParseError(errors.New("YAML parse error: line 3"))
	if err.Code != ErrParse {
		t.Errorf("Code = %q, want %q", err.Code, ErrParse)
	}
	if err.Message != "YAML parse error: line 3" {
		t.Errorf("Message = %q", err.Message)
	}

	var apiErr *APIError
	if !errors.As(error(err), &apiErr) {
		t.Error("APIError should satisfy errors.As")
	}
}
