// Package rules implements the categorization rule matcher.
//
// Rules are substring patterns tied to a category. The matcher evaluates
// an ordered rule list against one account's transactions and produces the
// implied category reassignments. It is a pure function of its inputs: the
// same rule list and transaction snapshot always produce the same
// reassignment set, which is what lets preview and commit runs agree
// bit-for-bit.
package rules

import (
	"fmt"
	"sort"

	"golang-ledger-service/internal/models"
	"golang-ledger-service/pkg/logger"
)

// Reassignment is one category change implied by a matching rule. A
// transaction that matches several rules in sequence produces one
// Reassignment per match; the last one carries its final category.
type Reassignment struct {
	TransactionID int64  `json:"transaction_id"`
	OldCategory   string `json:"old_category"`
	NewCategory   string `json:"new_category"`
}

// SkippedRule records a rule that could not participate in matching.
type SkippedRule struct {
	RuleID int64  `json:"rule_id"`
	Reason string `json:"reason"`
}

// CategoryChange is the final category for one transaction after all rules
// have been applied, suitable for handing to the store as a single atomic
// update set.
type CategoryChange struct {
	TransactionID int64
	CategoryID    int64
}

// Outcome is the full result of one matcher evaluation.
type Outcome struct {
	// Reassignments traces every match in rule order.
	Reassignments []Reassignment
	// Changes holds only the net effect: transactions whose final
	// category differs from the snapshot.
	Changes []CategoryChange
	// SkippedRules lists rules that were ignored (no category assigned,
	// or unknown category reference).
	SkippedRules []SkippedRule
}

// Matcher evaluates rule sets against transaction snapshots.
type Matcher struct {
	logger logger.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		logger: logger.GetGlobalLogger().WithComponent("rule_matcher"),
	}
}

// Apply evaluates all rules, in ascending identity order, against the
// transactions of the target account.
//
// A transaction matches a rule when it belongs to the target account, its
// current category differs from the rule's category (or is unset), and the
// rule's pattern is contained in its description. Each match immediately
// reassigns the in-memory category, so when several rules match the same
// transaction the LAST rule in the order wins.
//
// The input slices are never mutated; the working category state lives in
// a local map.
func (m *Matcher) Apply(
	ruleSet []models.Rule,
	categories []models.Category,
	accountID int64,
	transactions []models.Transaction,
) *Outcome {
	outcome := &Outcome{}

	categoryNames := make(map[int64]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	// Rules arrive ordered by id from the store, but the ordering is a
	// correctness requirement (last match wins), so enforce it here too.
	ordered := make([]models.Rule, len(ruleSet))
	copy(ordered, ruleSet)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	// Working category state per transaction, seeded from the snapshot.
	current := make(map[int64]*int64, len(transactions))
	original := make(map[int64]*int64, len(transactions))
	for _, tx := range transactions {
		current[tx.ID] = tx.CategoryID
		original[tx.ID] = tx.CategoryID
	}

	for _, rule := range ordered {
		// Rules scoped to another account are silently out of play; only
		// rules that could apply here get skip diagnostics.
		if rule.AccountID != nil && *rule.AccountID != accountID {
			continue
		}

		if rule.CategoryID == nil {
			m.logger.WithFields(logger.Fields{
				"rule_id":  rule.ID,
				"contains": rule.Contains,
			}).Warn("Skipping rule with no category assigned")
			outcome.SkippedRules = append(outcome.SkippedRules, SkippedRule{
				RuleID: rule.ID,
				Reason: "no category assigned",
			})
			continue
		}

		newName, ok := categoryNames[*rule.CategoryID]
		if !ok {
			outcome.SkippedRules = append(outcome.SkippedRules, SkippedRule{
				RuleID: rule.ID,
				Reason: fmt.Sprintf("unknown category %d", *rule.CategoryID),
			})
			continue
		}

		for _, tx := range transactions {
			if tx.AccountID != accountID {
				continue
			}
			cur := current[tx.ID]
			if cur != nil && *cur == *rule.CategoryID {
				continue
			}
			if !rule.MatchesDescription(tx.Description) {
				continue
			}

			oldName := models.NoCategoryName
			if cur != nil {
				if name, ok := categoryNames[*cur]; ok {
					oldName = name
				}
			}

			outcome.Reassignments = append(outcome.Reassignments, Reassignment{
				TransactionID: tx.ID,
				OldCategory:   oldName,
				NewCategory:   newName,
			})

			assigned := *rule.CategoryID
			current[tx.ID] = &assigned
		}
	}

	// Net changes in input order, for deterministic persistence.
	for _, tx := range transactions {
		cur := current[tx.ID]
		orig := original[tx.ID]
		if cur == nil {
			continue // rules only ever assign categories, never clear them
		}
		if orig != nil && *orig == *cur {
			continue
		}
		outcome.Changes = append(outcome.Changes, CategoryChange{
			TransactionID: tx.ID,
			CategoryID:    *cur,
		})
	}

	return outcome
}
