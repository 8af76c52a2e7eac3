// Package memory provides an in-memory Store used by tests and by the
// dev server's in-memory mode. It enforces the same uniqueness and
// ordering guarantees as the Postgres store so callers cannot tell them
// apart.
package memory

import (
	"context"
	"sort"
	"sync"

	"golang-ledger-service/internal/ledger"
	"golang-ledger-service/internal/models"
	"golang-ledger-service/internal/rules"
	"golang-ledger-service/pkg/errors"
)

// Store is a mutex-guarded in-memory implementation of ledger.Store.
type Store struct {
	mu sync.RWMutex

	seq int64

	accounts        map[int64]models.Account
	files           map[int64]models.TransactionFile
	transactions    map[int64]models.Transaction
	categories      map[int64]models.Category
	supercategories map[int64]models.Supercategory
	ruleList        map[int64]models.Rule

	// txKeys enforces the per-account uniqueness on insert.
	txKeys map[models.DedupKey]int64
}

var _ ledger.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:        make(map[int64]models.Account),
		files:           make(map[int64]models.TransactionFile),
		transactions:    make(map[int64]models.Transaction),
		categories:      make(map[int64]models.Category),
		supercategories: make(map[int64]models.Supercategory),
		ruleList:        make(map[int64]models.Rule),
		txKeys:          make(map[models.DedupKey]int64),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// CreateAccount stores a new account and assigns its id.
func (s *Store) CreateAccount(_ context.Context, a models.Account) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID()
	s.accounts[a.ID] = a
	return a, nil
}

// GetAccount returns the account with the given id.
func (s *Store) GetAccount(_ context.Context, id int64) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, errors.NotFoundError("account", id)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by id.
func (s *Store) ListAccounts(_ context.Context) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveTransactionFile stores the raw upload and assigns its id.
func (s *Store) SaveTransactionFile(_ context.Context, f models.TransactionFile) (models.TransactionFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = s.nextID()
	s.files[f.ID] = f
	return f, nil
}

// InsertTransactions inserts rows with insert-or-skip duplicate handling.
func (s *Store) InsertTransactions(_ context.Context, txs []models.Transaction) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted, duplicates := 0, 0
	for _, tx := range txs {
		key := tx.Key()
		if _, exists := s.txKeys[key]; exists {
			duplicates++
			continue
		}
		tx.ID = s.nextID()
		s.transactions[tx.ID] = tx
		s.txKeys[key] = tx.ID
		inserted++
	}
	return inserted, duplicates, nil
}

// GetTransaction returns the transaction with the given id.
func (s *Store) GetTransaction(_ context.Context, id int64) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return models.Transaction{}, errors.NotFoundError("transaction", id)
	}
	return tx, nil
}

// ListTransactions returns an account's transactions ordered by posting
// date descending, then description ascending.
func (s *Store) ListTransactions(_ context.Context, accountID int64) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listTransactionsLocked(accountID), nil
}

// ListTransactionsPage returns one page of an account's transactions in
// the same order as ListTransactions. Page numbering starts at 1.
func (s *Store) ListTransactionsPage(_ context.Context, accountID int64, page, perPage int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.listTransactionsLocked(accountID)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = len(all)
	}
	start := (page - 1) * perPage
	if start >= len(all) {
		return []models.Transaction{}, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *Store) listTransactionsLocked(accountID int64) []models.Transaction {
	out := make([]models.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PostDate.Equal(out[j].PostDate) {
			return out[i].PostDate.After(out[j].PostDate)
		}
		if out[i].Description != out[j].Description {
			return out[i].Description < out[j].Description
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateTransaction persists an updated transaction.
func (s *Store) UpdateTransaction(_ context.Context, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.transactions[tx.ID]
	if !ok {
		return errors.NotFoundError("transaction", tx.ID)
	}
	if old.Key() != tx.Key() {
		delete(s.txKeys, old.Key())
		s.txKeys[tx.Key()] = tx.ID
	}
	s.transactions[tx.ID] = tx
	return nil
}

// ApplyCategoryChanges applies all changes atomically. All referenced
// transactions are verified before any is touched.
func (s *Store) ApplyCategoryChanges(_ context.Context, changes []rules.CategoryChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range changes {
		if _, ok := s.transactions[ch.TransactionID]; !ok {
			return errors.NotFoundError("transaction", ch.TransactionID)
		}
	}
	for _, ch := range changes {
		tx := s.transactions[ch.TransactionID]
		id := ch.CategoryID
		tx.CategoryID = &id
		s.transactions[ch.TransactionID] = tx
	}
	return nil
}

// CreateCategory stores a new category and assigns its id.
func (s *Store) CreateCategory(_ context.Context, c models.Category) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextID()
	s.categories[c.ID] = c
	return c, nil
}

// GetCategory returns the category with the given id.
func (s *Store) GetCategory(_ context.Context, id int64) (models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return models.Category{}, errors.NotFoundError("category", id)
	}
	return c, nil
}

// UpdateCategory persists an updated category.
func (s *Store) UpdateCategory(_ context.Context, c models.Category) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[c.ID]; !ok {
		return models.Category{}, errors.NotFoundError("category", c.ID)
	}
	s.categories[c.ID] = c
	return c, nil
}

// ListCategories returns all categories ordered by id.
func (s *Store) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSupercategory stores a new supercategory and assigns its id.
func (s *Store) CreateSupercategory(_ context.Context, sc models.Supercategory) (models.Supercategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc.ID = s.nextID()
	s.supercategories[sc.ID] = sc
	return sc, nil
}

// GetSupercategory returns the supercategory with the given id.
func (s *Store) GetSupercategory(_ context.Context, id int64) (models.Supercategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.supercategories[id]
	if !ok {
		return models.Supercategory{}, errors.NotFoundError("supercategory", id)
	}
	return sc, nil
}

// ListSupercategories returns all supercategories ordered by id.
func (s *Store) ListSupercategories(_ context.Context) ([]models.Supercategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Supercategory, 0, len(s.supercategories))
	for _, sc := range s.supercategories {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListRules returns every rule ordered by ascending id.
func (s *Store) ListRules(_ context.Context) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rule, 0, len(s.ruleList))
	for _, r := range s.ruleList {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReplaceCategoryRules atomically swaps a category's rule set.
func (s *Store) ReplaceCategoryRules(_ context.Context, categoryID int64, ruleSet []models.Rule) ([]models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[categoryID]; !ok {
		return nil, errors.NotFoundError("category", categoryID)
	}

	for id, r := range s.ruleList {
		if r.CategoryID != nil && *r.CategoryID == categoryID {
			delete(s.ruleList, id)
		}
	}

	out := make([]models.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		r.ID = s.nextID()
		cid := categoryID
		r.CategoryID = &cid
		s.ruleList[r.ID] = r
		out = append(out, r)
	}
	return out, nil
}
