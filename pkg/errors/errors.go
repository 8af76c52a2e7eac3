// Package errors defines the structured error type used across the ledger
// service, with a category/code taxonomy that separates fatal import
// errors, recoverable row-level errors, client errors and store errors.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryClient        ErrorCategory = "client"
	CategoryStore         ErrorCategory = "store"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Fatal header-resolution errors: these abort the whole import.
	CodeHeaderConflict ErrorCode = "header_conflict"
	CodeMissingHeader  ErrorCode = "missing_header"

	// Recoverable row-level errors: the offending row is skipped and the
	// import continues.
	CodeBadDate   ErrorCode = "bad_date"
	CodeBadAmount ErrorCode = "bad_amount"
	CodeShortRow  ErrorCode = "short_row"
	CodeEmptyRow  ErrorCode = "empty_row"
	CodeBadRow    ErrorCode = "bad_row"

	// Client errors surfaced by the service layer.
	CodeNotFound             ErrorCode = "not_found"
	CodeImmutableField       ErrorCode = "immutable_field"
	CodeMissingSupercategory ErrorCode = "missing_supercategory"
	CodeInvalidRuleSet       ErrorCode = "invalid_rule_set"
	CodeInvalidRequest       ErrorCode = "invalid_request"

	// Store errors. Duplicate inserts are not errors: stores report them
	// as counted skips from InsertTransactions.
	CodeStoreFailure ErrorCode = "store_failure"

	// Configuration errors.
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors.
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// LedgerError is the base error type for all application errors
type LedgerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *LedgerError) GetExitCode() int {
	switch e.Category {
	case CategoryParse, CategoryValidation:
		return 2
	case CategoryClient:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryStore, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *LedgerError) WithSuggestion(suggestion string) *LedgerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LedgerError
func New(category ErrorCategory, code ErrorCode, message string) *LedgerError {
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with LedgerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// HeaderConflictError reports two raw CSV headers resolving to the same
// canonical field. This is fatal for the whole import.
func HeaderConflictError(rawA, rawB, canonical string) *LedgerError {
	return New(
		CategoryParse,
		CodeHeaderConflict,
		fmt.Sprintf("conflicting headers: %q and %q both map to %s", rawA, rawB, canonical),
	).
		WithSuggestion("remove or rename one of the duplicated columns in the export").
		WithContext("header_a", rawA).
		WithContext("header_b", rawB).
		WithContext("canonical_field", canonical)
}

// MissingHeaderError reports that the header row lacks one or more of the
// essential fields (posting date, description, amount). This is fatal for
// the whole import: every subsequent row would fail identically.
func MissingHeaderError(missing []string) *LedgerError {
	return New(
		CategoryParse,
		CodeMissingHeader,
		fmt.Sprintf("header row is missing essential columns: %s", strings.Join(missing, ", ")),
	).
		WithSuggestion("ensure the CSV has posting date, description and amount columns").
		WithContext("missing_fields", missing)
}

// DateFormatError reports an unparseable date cell on a data row.
func DateFormatError(line int, value string, err error) *LedgerError {
	return Wrap(
		err,
		CategoryParse,
		CodeBadDate,
		fmt.Sprintf("line %d: cannot parse date %q", line, value),
	).
		WithSuggestion("dates must use the MM/DD/YYYY layout").
		WithContext("line", line).
		WithContext("value", value)
}

// AmountFormatError reports an unparseable amount cell on a data row.
func AmountFormatError(line int, value string, err error) *LedgerError {
	return Wrap(
		err,
		CategoryParse,
		CodeBadAmount,
		fmt.Sprintf("line %d: cannot parse amount %q", line, value),
	).
		WithSuggestion("amounts must be signed decimals without currency symbols").
		WithContext("line", line).
		WithContext("value", value)
}

// ShortRowError reports a data row with fewer cells than the header mapping
// requires.
func ShortRowError(line, want, got int) *LedgerError {
	return New(
		CategoryParse,
		CodeShortRow,
		fmt.Sprintf("line %d: row has %d cells but column %d is required", line, got, want),
	).
		WithContext("line", line).
		WithContext("cells", got)
}

// NotFoundError reports a reference to a nonexistent entity.
func NotFoundError(entity string, id int64) *LedgerError {
	return New(
		CategoryClient,
		CodeNotFound,
		fmt.Sprintf("%s %d not found", entity, id),
	).
		WithContext("entity", entity).
		WithContext("id", id)
}

// ImmutableFieldError reports an attempt to change transaction fields other
// than category and verification.
func ImmutableFieldError(field string) *LedgerError {
	return New(
		CategoryClient,
		CodeImmutableField,
		fmt.Sprintf("cannot change transaction field %q: only category and verified_at are mutable", field),
	).
		WithContext("field", field)
}

// MissingSupercategoryError reports a new category name supplied without a
// supercategory reference.
func MissingSupercategoryError() *LedgerError {
	return New(
		CategoryClient,
		CodeMissingSupercategory,
		"must supply a supercategory id or a new supercategory name when providing a new category name",
	)
}

// StoreError wraps a failure at the persistence boundary.
func StoreError(operation string, err error) *LedgerError {
	return Wrap(
		err,
		CategoryStore,
		CodeStoreFailure,
		fmt.Sprintf("store operation %s failed", operation),
	).
		WithContext("operation", operation)
}

// ConfigurationError reports an invalid or missing configuration value.
func ConfigurationError(code ErrorCode, setting string, err error) *LedgerError {
	message := fmt.Sprintf("configuration error: %s", setting)
	if code == CodeMissingConfig {
		message = fmt.Sprintf("missing required configuration: %s", setting)
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.WithContext("setting", setting)
}

// Utility functions

// IsLedgerError checks if an error is a LedgerError
func IsLedgerError(err error) bool {
	_, ok := err.(*LedgerError)
	return ok
}

// AsLedgerError extracts a LedgerError from an error chain
func AsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given ledger error code.
func HasCode(err error, code ErrorCode) bool {
	if ledgerErr, ok := AsLedgerError(err); ok {
		return ledgerErr.Code == code
	}
	return false
}

// WrapIfNeeded wraps an error if it's not already a LedgerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	if ledgerErr, ok := AsLedgerError(err); ok {
		return ledgerErr
	}

	return Wrap(err, category, code, message)
}
