package memory

import (
	"context"
	"testing"
	"time"

	"golang-ledger-service/internal/models"
	"golang-ledger-service/internal/rules"
	"golang-ledger-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *Store) models.Account {
	t.Helper()
	account, err := s.CreateAccount(context.Background(), models.Account{Name: "Checking"})
	require.NoError(t, err)
	return account
}

func tx(accountID int64, date, description, amount string) models.Transaction {
	postDate, _ := time.Parse("2006-01-02", date)
	return models.Transaction{
		AccountID:   accountID,
		PostDate:    postDate,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestInsertTransactions_DuplicateSkip(t *testing.T) {
	s := New()
	ctx := context.Background()
	account := seedAccount(t, s)

	inserted, duplicates, err := s.InsertTransactions(ctx, []models.Transaction{
		tx(account.ID, "2024-01-15", "COFFEE", "-4.50"),
		tx(account.ID, "2024-01-16", "GROCERIES", "-20.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Zero(t, duplicates)

	// Same rows again plus one new row.
	inserted, duplicates, err = s.InsertTransactions(ctx, []models.Transaction{
		tx(account.ID, "2024-01-15", "COFFEE", "-4.50"),
		tx(account.ID, "2024-01-16", "GROCERIES", "-20.00"),
		tx(account.ID, "2024-01-17", "PAYCHECK", "1500.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 2, duplicates)
}

func TestInsertTransactions_SameRowDifferentAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := seedAccount(t, s)
	second, err := s.CreateAccount(ctx, models.Account{Name: "Savings"})
	require.NoError(t, err)

	inserted, duplicates, err := s.InsertTransactions(ctx, []models.Transaction{
		tx(first.ID, "2024-01-15", "COFFEE", "-4.50"),
		tx(second.ID, "2024-01-15", "COFFEE", "-4.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Zero(t, duplicates)
}

func TestListTransactions_Ordering(t *testing.T) {
	s := New()
	ctx := context.Background()
	account := seedAccount(t, s)

	_, _, err := s.InsertTransactions(ctx, []models.Transaction{
		tx(account.ID, "2024-01-15", "ZEBRA", "-1.00"),
		tx(account.ID, "2024-01-17", "COFFEE", "-4.50"),
		tx(account.ID, "2024-01-15", "APPLE", "-2.00"),
	})
	require.NoError(t, err)

	txs, err := s.ListTransactions(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// Posting date descending, then description ascending.
	assert.Equal(t, "COFFEE", txs[0].Description)
	assert.Equal(t, "APPLE", txs[1].Description)
	assert.Equal(t, "ZEBRA", txs[2].Description)
}

func TestListTransactionsPage(t *testing.T) {
	s := New()
	ctx := context.Background()
	account := seedAccount(t, s)

	_, _, err := s.InsertTransactions(ctx, []models.Transaction{
		tx(account.ID, "2024-01-15", "A", "-1.00"),
		tx(account.ID, "2024-01-16", "B", "-1.00"),
		tx(account.ID, "2024-01-17", "C", "-1.00"),
	})
	require.NoError(t, err)

	page, err := s.ListTransactionsPage(ctx, account.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "C", page[0].Description)

	page, err = s.ListTransactionsPage(ctx, account.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "A", page[0].Description)

	page, err = s.ListTransactionsPage(ctx, account.ID, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestApplyCategoryChanges_Atomic(t *testing.T) {
	s := New()
	ctx := context.Background()
	account := seedAccount(t, s)

	super, err := s.CreateSupercategory(ctx, models.Supercategory{Name: "Spending"})
	require.NoError(t, err)
	category, err := s.CreateCategory(ctx, models.Category{Name: "Coffee", SupercategoryID: super.ID})
	require.NoError(t, err)

	_, _, err = s.InsertTransactions(ctx, []models.Transaction{
		tx(account.ID, "2024-01-15", "COFFEE", "-4.50"),
	})
	require.NoError(t, err)
	txs, err := s.ListTransactions(ctx, account.ID)
	require.NoError(t, err)

	// One valid change plus one referencing a missing transaction: the
	// whole batch must be rejected.
	err = s.ApplyCategoryChanges(ctx, []rules.CategoryChange{
		{TransactionID: txs[0].ID, CategoryID: category.ID},
		{TransactionID: 9999, CategoryID: category.ID},
	})
	require.Error(t, err)

	stored, err := s.GetTransaction(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CategoryID, "failed batch must not apply partially")

	// The valid change alone succeeds.
	err = s.ApplyCategoryChanges(ctx, []rules.CategoryChange{
		{TransactionID: txs[0].ID, CategoryID: category.ID},
	})
	require.NoError(t, err)

	stored, err = s.GetTransaction(ctx, txs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CategoryID)
	assert.Equal(t, category.ID, *stored.CategoryID)
}

func TestReplaceCategoryRules(t *testing.T) {
	s := New()
	ctx := context.Background()

	super, err := s.CreateSupercategory(ctx, models.Supercategory{Name: "Spending"})
	require.NoError(t, err)
	coffee, err := s.CreateCategory(ctx, models.Category{Name: "Coffee", SupercategoryID: super.ID})
	require.NoError(t, err)
	dining, err := s.CreateCategory(ctx, models.Category{Name: "Dining", SupercategoryID: super.ID})
	require.NoError(t, err)

	_, err = s.ReplaceCategoryRules(ctx, coffee.ID, []models.Rule{{Contains: "STARBUCKS"}})
	require.NoError(t, err)
	_, err = s.ReplaceCategoryRules(ctx, dining.ID, []models.Rule{{Contains: "DINER"}})
	require.NoError(t, err)

	// Replacing coffee's rules leaves dining's untouched.
	replaced, err := s.ReplaceCategoryRules(ctx, coffee.ID, []models.Rule{
		{Contains: "PEETS"},
		{Contains: "BLUE BOTTLE"},
	})
	require.NoError(t, err)
	assert.Len(t, replaced, 2)

	all, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Ordered by ascending id.
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].ID, all[i-1].ID)
	}
}

func TestNotFoundErrors(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetAccount(ctx, 1)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	_, err = s.GetTransaction(ctx, 1)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	_, err = s.GetCategory(ctx, 1)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	err = s.UpdateTransaction(ctx, models.Transaction{ID: 1})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	_, err = s.ReplaceCategoryRules(ctx, 1, nil)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}
