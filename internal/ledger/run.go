package ledger

import (
	"context"

	"golang-ledger-service/internal/rules"
	"golang-ledger-service/pkg/errors"
	"golang-ledger-service/pkg/logger"

	"github.com/google/uuid"
)

// RunResult is the outcome of one categorization run. Preview and commit
// runs over the same snapshot produce identical Reassignments; only
// Applied differs.
type RunResult struct {
	RunID         string               `json:"run_id"`
	AccountID     int64                `json:"account_id"`
	Preview       bool                 `json:"preview"`
	Reassignments []rules.Reassignment `json:"reassignments"`
	SkippedRules  []rules.SkippedRule  `json:"skipped_rules,omitempty"`
	// Applied is the number of transactions durably changed; always zero
	// for preview runs.
	Applied int `json:"applied"`
}

// Runner executes categorization runs against a store.
type Runner struct {
	store   Store
	matcher *rules.Matcher
	logger  logger.Logger
}

// NewRunner creates a Runner over the given store.
func NewRunner(store Store) *Runner {
	return &Runner{
		store:   store,
		matcher: rules.NewMatcher(),
		logger:  logger.GetGlobalLogger().WithComponent("categorization_run"),
	}
}

// Run evaluates all rules against the account's transactions and either
// discards (preview) or persists (commit) the implied reassignments.
//
// Both modes compute the delta identically: the matcher works on an
// in-memory snapshot and preview simply skips the store write. There is no
// rollback path to diverge from, so the two modes cannot disagree about
// which transactions changed.
func (r *Runner) Run(ctx context.Context, accountID int64, preview bool) (*RunResult, error) {
	runID := uuid.NewString()
	log := r.logger.WithFields(logger.Fields{
		"run_id":     runID,
		"account_id": accountID,
		"preview":    preview,
	})

	if _, err := r.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	ruleSet, err := r.store.ListRules(ctx)
	if err != nil {
		return nil, errors.StoreError("list_rules", err)
	}
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return nil, errors.StoreError("list_categories", err)
	}
	transactions, err := r.store.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, errors.StoreError("list_transactions", err)
	}

	outcome := r.matcher.Apply(ruleSet, categories, accountID, transactions)

	result := &RunResult{
		RunID:         runID,
		AccountID:     accountID,
		Preview:       preview,
		Reassignments: outcome.Reassignments,
		SkippedRules:  outcome.SkippedRules,
	}

	if preview {
		log.WithField("reassignments", len(outcome.Reassignments)).Info("Preview run completed, no changes persisted")
		return result, nil
	}

	if len(outcome.Changes) > 0 {
		if err := r.store.ApplyCategoryChanges(ctx, outcome.Changes); err != nil {
			return nil, errors.StoreError("apply_category_changes", err)
		}
	}
	result.Applied = len(outcome.Changes)

	log.WithFields(logger.Fields{
		"reassignments": len(outcome.Reassignments),
		"applied":       result.Applied,
	}).Info("Commit run completed")

	return result, nil
}
