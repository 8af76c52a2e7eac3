// Package ledger orchestrates the ingestion and categorization engine over
// a persistence boundary: importing statement files, running rule sets in
// preview or commit mode, and applying the limited set of transaction
// mutations the domain allows.
package ledger

import (
	"context"

	"golang-ledger-service/internal/models"
	"golang-ledger-service/internal/rules"
)

// Store is the persistence boundary the engine runs against. A Store
// handle is constructed explicitly at startup and passed down; nothing in
// this package caches a process-wide connection.
//
// Implementations must provide durable records, per-account uniqueness on
// (posting date, description, amount) for transactions, and atomic
// multi-row updates for ApplyCategoryChanges and ReplaceCategoryRules.
type Store interface {
	// Accounts.
	CreateAccount(ctx context.Context, a models.Account) (models.Account, error)
	GetAccount(ctx context.Context, id int64) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// Transaction files are append-only: stored verbatim for audit and
	// replay, never mutated or deleted.
	SaveTransactionFile(ctx context.Context, f models.TransactionFile) (models.TransactionFile, error)

	// InsertTransactions inserts parsed rows with insert-or-skip
	// semantics: a row violating the per-account uniqueness key is
	// counted as a duplicate and skipped, not treated as a failure.
	InsertTransactions(ctx context.Context, txs []models.Transaction) (inserted, duplicates int, err error)
	GetTransaction(ctx context.Context, id int64) (models.Transaction, error)
	// ListTransactions returns all of an account's transactions ordered
	// by posting date descending, then description ascending.
	ListTransactions(ctx context.Context, accountID int64) ([]models.Transaction, error)
	// ListTransactionsPage is the paged variant used by the HTTP adapter.
	ListTransactionsPage(ctx context.Context, accountID int64, page, perPage int) ([]models.Transaction, error)
	// UpdateTransaction persists category and verification changes. The
	// service layer is responsible for rejecting changes to any other
	// field before calling this.
	UpdateTransaction(ctx context.Context, tx models.Transaction) error

	// ApplyCategoryChanges applies a categorization run's net effect as a
	// single atomic unit: all changes land or none do.
	ApplyCategoryChanges(ctx context.Context, changes []rules.CategoryChange) error

	// Categories and supercategories.
	CreateCategory(ctx context.Context, c models.Category) (models.Category, error)
	GetCategory(ctx context.Context, id int64) (models.Category, error)
	UpdateCategory(ctx context.Context, c models.Category) (models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateSupercategory(ctx context.Context, s models.Supercategory) (models.Supercategory, error)
	GetSupercategory(ctx context.Context, id int64) (models.Supercategory, error)
	ListSupercategories(ctx context.Context) ([]models.Supercategory, error)

	// ListRules returns every rule ordered by ascending id. Retrieval is
	// global, not account-filtered; per-rule account scope is applied by
	// the matcher.
	ListRules(ctx context.Context) ([]models.Rule, error)
	// ReplaceCategoryRules atomically discards a category's current rule
	// set and installs the given one.
	ReplaceCategoryRules(ctx context.Context, categoryID int64, ruleSet []models.Rule) ([]models.Rule, error)
}
