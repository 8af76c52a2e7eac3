package ledger

import (
	"bytes"
	"context"
	"time"

	"golang-ledger-service/internal/models"
	"golang-ledger-service/internal/parsers"
	"golang-ledger-service/pkg/errors"
	"golang-ledger-service/pkg/logger"

	"github.com/google/uuid"
)

// ImportSummary reports the outcome of one CSV import.
type ImportSummary struct {
	RunID      string               `json:"run_id"`
	AccountID  int64                `json:"account_id"`
	FileID     int64                `json:"file_id"`
	RowsSeen   int                  `json:"rows_seen"`
	RowsParsed int                  `json:"rows_parsed"`
	Inserted   int                  `json:"inserted"`
	Duplicates int                  `json:"duplicates"`
	Skipped    []parsers.SkippedRow `json:"skipped,omitempty"`
}

// TransactionUpdate is a request to change a transaction. Only the
// category reference and verification timestamp may change; every other
// field must match the stored transaction exactly.
//
// Category auto-creation accepts exactly three input shapes:
//
//	new category name + new supercategory name  -> create both
//	new category name + existing supercategory  -> create category
//	existing category id only                   -> link directly
//
// Any other combination is rejected as a client error.
type TransactionUpdate struct {
	Transaction          models.Transaction `json:"transaction"`
	NewCategoryName      string             `json:"new_category_name,omitempty"`
	NewSupercategoryName string             `json:"new_supercategory_name,omitempty"`
	SupercategoryID      *int64             `json:"supercategory_id,omitempty"`
}

// Service is the application-facing surface over the engine and the store.
type Service struct {
	store    Store
	pipeline *parsers.ImportPipeline
	runner   *Runner
	logger   logger.Logger
}

// NewService creates a Service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		pipeline: parsers.NewImportPipeline(),
		runner:   NewRunner(store),
		logger:   logger.GetGlobalLogger().WithComponent("ledger_service"),
	}
}

// Store exposes the underlying store for read-only adapter queries.
func (s *Service) Store() Store {
	return s.store
}

// ImportCSV ingests one statement export into an account.
//
// The raw file is persisted first so the upload survives verbatim for
// audit and replay regardless of how parsing goes. Parsing then proceeds
// with partial-success semantics; rows already present in the store are
// skipped and counted as duplicates rather than failing the import.
func (s *Service) ImportCSV(ctx context.Context, accountID int64, filename string, data []byte) (*ImportSummary, error) {
	runID := uuid.NewString()
	log := s.logger.WithFields(logger.Fields{
		"run_id":     runID,
		"account_id": accountID,
		"filename":   filename,
	})

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	file, err := s.store.SaveTransactionFile(ctx, models.TransactionFile{
		Filename:  filename,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, errors.StoreError("save_transaction_file", err)
	}

	result, err := s.pipeline.Run(bytes.NewReader(data), accountID)
	if err != nil {
		// Header-level failure: the import is rejected, but the stored
		// file row stays for diagnosis.
		log.WithError(err).Error("Import aborted")
		return nil, err
	}

	txs := make([]models.Transaction, 0, len(result.Records))
	for _, rec := range result.Records {
		tx := rec.Tx
		fileID := file.ID
		tx.SourceFileID = &fileID
		txs = append(txs, tx)
	}

	inserted, duplicates, err := s.store.InsertTransactions(ctx, txs)
	if err != nil {
		return nil, errors.StoreError("insert_transactions", err)
	}

	summary := &ImportSummary{
		RunID:      runID,
		AccountID:  accountID,
		FileID:     file.ID,
		RowsSeen:   result.Stats.RowsSeen,
		RowsParsed: result.Stats.RowsParsed,
		Inserted:   inserted,
		Duplicates: duplicates,
		Skipped:    result.Stats.Skipped,
	}

	log.WithFields(logger.Fields{
		"rows_parsed": summary.RowsParsed,
		"inserted":    summary.Inserted,
		"duplicates":  summary.Duplicates,
		"skipped":     len(summary.Skipped),
	}).Info("Import completed")

	return summary, nil
}

// ApplyRules executes a categorization run for the account, in preview or
// commit mode.
func (s *Service) ApplyRules(ctx context.Context, accountID int64, preview bool) (*RunResult, error) {
	return s.runner.Run(ctx, accountID, preview)
}

// UpdateTransaction applies a category and/or verification change to a
// transaction, creating the target category (and supercategory) first when
// the request names new ones.
func (s *Service) UpdateTransaction(ctx context.Context, upd TransactionUpdate) (models.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, upd.Transaction.ID)
	if err != nil {
		return models.Transaction{}, err
	}

	if field, ok := immutableFieldChanged(existing, upd.Transaction); ok {
		return models.Transaction{}, errors.ImmutableFieldError(field)
	}

	if upd.NewCategoryName != "" {
		category, err := s.createCategoryFor(ctx, upd)
		if err != nil {
			return models.Transaction{}, err
		}
		existing.CategoryID = &category.ID
	} else if !int64PtrEqual(upd.Transaction.CategoryID, existing.CategoryID) {
		if upd.Transaction.CategoryID != nil {
			if _, err := s.store.GetCategory(ctx, *upd.Transaction.CategoryID); err != nil {
				return models.Transaction{}, err
			}
		}
		existing.CategoryID = upd.Transaction.CategoryID
	}

	if upd.Transaction.VerifiedAt != nil {
		existing.VerifiedAt = upd.Transaction.VerifiedAt
	}

	if err := s.store.UpdateTransaction(ctx, existing); err != nil {
		return models.Transaction{}, errors.StoreError("update_transaction", err)
	}

	return existing, nil
}

// createCategoryFor resolves the category-creation state machine for an
// update that carries a new category name.
func (s *Service) createCategoryFor(ctx context.Context, upd TransactionUpdate) (models.Category, error) {
	switch {
	case upd.NewSupercategoryName != "":
		super, err := s.store.CreateSupercategory(ctx, models.Supercategory{Name: upd.NewSupercategoryName})
		if err != nil {
			return models.Category{}, errors.StoreError("create_supercategory", err)
		}
		category, err := s.store.CreateCategory(ctx, models.Category{
			Name:            upd.NewCategoryName,
			SupercategoryID: super.ID,
		})
		if err != nil {
			return models.Category{}, errors.StoreError("create_category", err)
		}
		return category, nil

	case upd.SupercategoryID != nil:
		if _, err := s.store.GetSupercategory(ctx, *upd.SupercategoryID); err != nil {
			return models.Category{}, err
		}
		category, err := s.store.CreateCategory(ctx, models.Category{
			Name:            upd.NewCategoryName,
			SupercategoryID: *upd.SupercategoryID,
		})
		if err != nil {
			return models.Category{}, errors.StoreError("create_category", err)
		}
		return category, nil

	default:
		return models.Category{}, errors.MissingSupercategoryError()
	}
}

// ReplaceRules atomically replaces a category's rule set.
func (s *Service) ReplaceRules(ctx context.Context, categoryID int64, ruleSet []models.Rule) ([]models.Rule, error) {
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	for _, r := range ruleSet {
		if r.Contains == "" {
			return nil, errors.New(
				errors.CategoryClient,
				errors.CodeInvalidRuleSet,
				"rule pattern cannot be empty",
			)
		}
	}
	replaced, err := s.store.ReplaceCategoryRules(ctx, categoryID, ruleSet)
	if err != nil {
		return nil, errors.StoreError("replace_category_rules", err)
	}
	return replaced, nil
}

// immutableFieldChanged compares the update payload against the stored
// transaction and names the first immutable field that differs.
func immutableFieldChanged(existing, updated models.Transaction) (string, bool) {
	if updated.AccountID != existing.AccountID {
		return "account_id", true
	}
	if !updated.Amount.Equal(existing.Amount) {
		return "amount", true
	}
	if updated.Description != existing.Description {
		return "description", true
	}
	if !updated.PostDate.Equal(existing.PostDate) {
		return "post_date", true
	}
	if !timePtrEqual(updated.InitDate, existing.InitDate) {
		return "init_date", true
	}
	return "", false
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
