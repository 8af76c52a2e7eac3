// Package models defines the ledger's persisted entities and the helpers
// used to build them from raw CSV values.
//
// Entities are plain value structs that reference each other by foreign
// identifier only. Relationship traversal (transaction -> category ->
// supercategory) happens through explicit store lookups, never through
// embedded object references.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PostingDateLayout is the fixed date layout used by bank CSV exports
// (MM/DD/YYYY).
const PostingDateLayout = "01/02/2006"

// NoCategoryName is the sentinel category label reported for transactions
// that have no category assigned.
const NoCategoryName = "None"

// Account represents a bank account that owns transactions.
type Account struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// TransactionFile holds the raw bytes of an uploaded statement export.
// Rows are append-only: once stored a file is never mutated, so imports
// can be audited or replayed even after the parsed transactions change.
type TransactionFile struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is a single ledger entry parsed from a statement row.
//
// InitDate, CategoryID, VerifiedAt and SourceFileID are optional; a nil
// pointer means "not set". The triple (posting date, description, amount)
// is unique within an account.
type Transaction struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	SourceFileID *int64          `json:"source_file_id,omitempty"`
	InitDate     *time.Time      `json:"init_date,omitempty"`
	PostDate     time.Time       `json:"post_date"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	VerifiedAt   *time.Time      `json:"verified_at,omitempty"`
}

// DedupKey identifies a transaction for duplicate detection on insert.
// The account identifier is part of the key: two accounts may legitimately
// hold transactions with identical date, description and amount.
type DedupKey struct {
	AccountID   int64
	PostDate    string
	Description string
	Amount      string
}

// Key returns the per-account uniqueness key for this transaction.
func (t Transaction) Key() DedupKey {
	return DedupKey{
		AccountID:   t.AccountID,
		PostDate:    t.PostDate.Format("2006-01-02"),
		Description: t.Description,
		Amount:      t.Amount.String(),
	}
}

// Validate performs basic validation on a parsed Transaction.
func (t Transaction) Validate() error {
	if t.PostDate.IsZero() {
		return fmt.Errorf("posting date cannot be zero")
	}
	if t.Description == "" {
		return fmt.Errorf("description cannot be empty")
	}
	return nil
}

// String returns a compact representation used in logs and diagnostics.
func (t Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %d, Account: %d, Date: %s, Amount: %s, Desc: %q}",
		t.ID, t.AccountID, t.PostDate.Format("2006-01-02"), t.Amount.String(), t.Description)
}

// Category groups transactions under a supercategory.
type Category struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	SupercategoryID int64  `json:"supercategory_id"`
}

// Supercategory is the top-level grouping above categories.
type Supercategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Rule assigns a category to transactions whose description contains a
// substring. CategoryID may be nil while a rule set is being edited; such
// rules never match anything. AccountID, when set, limits the rule to a
// single account.
type Rule struct {
	ID            int64  `json:"id"`
	Contains      string `json:"contains"`
	CaseSensitive bool   `json:"case_sensitive"`
	CategoryID    *int64 `json:"category_id,omitempty"`
	AccountID     *int64 `json:"account_id,omitempty"`
}

// MatchesDescription reports whether the rule's substring pattern is found
// in the given description, honoring the rule's case-sensitivity flag.
func (r Rule) MatchesDescription(description string) bool {
	if r.CaseSensitive {
		return strings.Contains(description, r.Contains)
	}
	return strings.Contains(strings.ToLower(description), strings.ToLower(r.Contains))
}

// ParsePostingDate parses a date cell using the fixed MM/DD/YYYY layout.
// No alternative layouts are attempted; bank exports that deviate from the
// layout must fail loudly rather than be guessed at.
func ParsePostingDate(s string) (time.Time, error) {
	t, err := time.Parse(PostingDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected MM/DD/YYYY: %w", s, err)
	}
	return t, nil
}

// ParseAmount parses an amount cell verbatim as a signed decimal. Currency
// symbols or thousand separators are not stripped; the source value must
// already be a plain decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
