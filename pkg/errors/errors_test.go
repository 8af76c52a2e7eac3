package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestLedgerError_Error(t *testing.T) {
	err := New(CategoryParse, CodeBadDate, "cannot parse date")
	if err.Error() != "cannot parse date" {
		t.Errorf("Expected plain message, got %q", err.Error())
	}

	err = err.WithSuggestion("use MM/DD/YYYY")
	if !strings.Contains(err.Error(), "use MM/DD/YYYY") {
		t.Errorf("Expected suggestion in message, got %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(cause, CategoryStore, CodeStoreFailure, "query failed")

	if err.Cause != cause {
		t.Error("Expected cause to be preserved")
	}
	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
	if Wrap(nil, CategoryStore, CodeStoreFailure, "x") != nil {
		t.Error("Expected wrapping nil to return nil")
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     int
	}{
		{CategoryParse, 2},
		{CategoryValidation, 2},
		{CategoryClient, 3},
		{CategoryConfiguration, 4},
		{CategoryStore, 5},
		{CategoryInternal, 5},
	}
	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "test")
		if got := err.GetExitCode(); got != tt.want {
			t.Errorf("Expected exit code %d for %s, got %d", tt.want, tt.category, got)
		}
	}
}

func TestHasCode(t *testing.T) {
	err := NotFoundError("account", 42)
	if !HasCode(err, CodeNotFound) {
		t.Error("Expected not_found code")
	}
	if HasCode(err, CodeBadDate) {
		t.Error("Did not expect bad_date code")
	}
	if HasCode(fmt.Errorf("plain"), CodeNotFound) {
		t.Error("Did not expect a code on a plain error")
	}

	// Codes survive one level of wrapping.
	wrapped := fmt.Errorf("context: %w", err)
	if !HasCode(wrapped, CodeNotFound) {
		t.Error("Expected code to survive wrapping")
	}
}

func TestConstructors(t *testing.T) {
	err := HeaderConflictError("Posting Date", "Post Date", "posting_date")
	if err.Code != CodeHeaderConflict || err.Category != CategoryParse {
		t.Errorf("Unexpected taxonomy: %s/%s", err.Category, err.Code)
	}
	if err.Context["header_a"] != "Posting Date" {
		t.Errorf("Expected raw header in context, got %v", err.Context)
	}

	err = DateFormatError(3, "2024-01-15", fmt.Errorf("bad layout"))
	if err.Code != CodeBadDate {
		t.Errorf("Expected bad_date, got %s", err.Code)
	}
	if err.Context["line"] != 3 {
		t.Errorf("Expected line 3 in context, got %v", err.Context["line"])
	}

	err = ImmutableFieldError("amount")
	if err.Code != CodeImmutableField || err.Category != CategoryClient {
		t.Errorf("Unexpected taxonomy: %s/%s", err.Category, err.Code)
	}

	err = MissingSupercategoryError()
	if err.Code != CodeMissingSupercategory {
		t.Errorf("Expected missing_supercategory, got %s", err.Code)
	}
}

func TestWrapIfNeeded(t *testing.T) {
	original := New(CategoryClient, CodeNotFound, "missing")
	if got := WrapIfNeeded(original, CategoryInternal, CodeUnexpectedError, "x"); got != original {
		t.Error("Expected existing LedgerError to pass through unchanged")
	}

	plain := fmt.Errorf("plain")
	got := WrapIfNeeded(plain, CategoryInternal, CodeUnexpectedError, "wrapped")
	if got.Code != CodeUnexpectedError || got.Cause != plain {
		t.Errorf("Expected plain error to be wrapped, got %+v", got)
	}
}
