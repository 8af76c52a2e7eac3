// Package postgres implements the ledger Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"time"

	"golang-ledger-service/internal/ledger"
	"golang-ledger-service/internal/models"
	"golang-ledger-service/internal/rules"
	"golang-ledger-service/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	account_group TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS transaction_files (
	id BIGSERIAL PRIMARY KEY,
	filename TEXT NOT NULL,
	data BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS supercategories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	supercategory_id BIGINT NOT NULL REFERENCES supercategories(id)
);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	source_file_id BIGINT REFERENCES transaction_files(id),
	init_date DATE,
	post_date DATE NOT NULL,
	description TEXT NOT NULL,
	amount NUMERIC(14,2) NOT NULL,
	category_id BIGINT REFERENCES categories(id),
	verified_at TIMESTAMPTZ,
	UNIQUE (account_id, post_date, description, amount)
);

CREATE TABLE IF NOT EXISTS rules (
	id BIGSERIAL PRIMARY KEY,
	contains TEXT NOT NULL,
	case_sensitive BOOLEAN NOT NULL DEFAULT false,
	category_id BIGINT REFERENCES categories(id),
	account_id BIGINT REFERENCES accounts(id)
);
`

// Store implements ledger.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// New connects to PostgreSQL with the given DSN and verifies the
// connection before returning.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.StoreError("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.StoreError("ping", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the ledger tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errors.StoreError("ensure_schema", err)
	}
	return nil
}

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (name, account_group) VALUES ($1, $2) RETURNING id`,
		a.Name, a.Group,
	).Scan(&a.ID)
	if err != nil {
		return models.Account{}, errors.StoreError("create_account", err)
	}
	return a, nil
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, id int64) (models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, account_group FROM accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Group)
	if err == pgx.ErrNoRows {
		return models.Account{}, errors.NotFoundError("account", id)
	}
	if err != nil {
		return models.Account{}, errors.StoreError("get_account", err)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, account_group FROM accounts ORDER BY id`)
	if err != nil {
		return nil, errors.StoreError("list_accounts", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Group); err != nil {
			return nil, errors.StoreError("list_accounts", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("list_accounts", err)
	}
	return out, nil
}

// SaveTransactionFile stores the raw upload bytes.
func (s *Store) SaveTransactionFile(ctx context.Context, f models.TransactionFile) (models.TransactionFile, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO transaction_files (filename, data, created_at)
		 VALUES ($1, $2, $3) RETURNING id`,
		f.Filename, f.Data, f.CreatedAt,
	).Scan(&f.ID)
	if err != nil {
		return models.TransactionFile{}, errors.StoreError("save_transaction_file", err)
	}
	return f, nil
}

// InsertTransactions inserts all rows inside one transaction, skipping
// any row that collides on the per-account uniqueness key.
func (s *Store) InsertTransactions(ctx context.Context, txs []models.Transaction) (int, int, error) {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, errors.StoreError("insert_transactions", err)
	}
	defer dbtx.Rollback(ctx)

	inserted, duplicates := 0, 0
	for _, t := range txs {
		tag, err := dbtx.Exec(ctx,
			`INSERT INTO transactions
			   (account_id, source_file_id, init_date, post_date, description, amount, category_id, verified_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (account_id, post_date, description, amount) DO NOTHING`,
			t.AccountID, t.SourceFileID, t.InitDate, t.PostDate, t.Description, t.Amount, t.CategoryID, t.VerifiedAt,
		)
		if err != nil {
			return 0, 0, errors.StoreError("insert_transactions", err)
		}
		if tag.RowsAffected() == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return 0, 0, errors.StoreError("insert_transactions", err)
	}
	return inserted, duplicates, nil
}

const transactionColumns = `id, account_id, source_file_id, init_date, post_date, description, amount, category_id, verified_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	var amount decimal.Decimal
	var initDate, verifiedAt *time.Time
	err := row.Scan(
		&t.ID, &t.AccountID, &t.SourceFileID, &initDate,
		&t.PostDate, &t.Description, &amount, &t.CategoryID, &verifiedAt,
	)
	if err != nil {
		return models.Transaction{}, err
	}
	t.Amount = amount
	t.InitDate = initDate
	t.VerifiedAt = verifiedAt
	return t, nil
}

// GetTransaction fetches a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return models.Transaction{}, errors.NotFoundError("transaction", id)
	}
	if err != nil {
		return models.Transaction{}, errors.StoreError("get_transaction", err)
	}
	return t, nil
}

// ListTransactions returns an account's transactions ordered by posting
// date descending, then description ascending.
func (s *Store) ListTransactions(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE account_id = $1
		 ORDER BY post_date DESC, description ASC, id ASC`, accountID)
	if err != nil {
		return nil, errors.StoreError("list_transactions", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactionsPage returns one page in the same order as
// ListTransactions. Page numbering starts at 1.
func (s *Store) ListTransactionsPage(ctx context.Context, accountID int64, page, perPage int) ([]models.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return s.ListTransactions(ctx, accountID)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE account_id = $1
		 ORDER BY post_date DESC, description ASC, id ASC
		 LIMIT $2 OFFSET $3`, accountID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, errors.StoreError("list_transactions_page", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.StoreError("scan_transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("scan_transaction", err)
	}
	return out, nil
}

// UpdateTransaction persists category and verification changes.
func (s *Store) UpdateTransaction(ctx context.Context, tx models.Transaction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions SET category_id = $2, verified_at = $3 WHERE id = $1`,
		tx.ID, tx.CategoryID, tx.VerifiedAt,
	)
	if err != nil {
		return errors.StoreError("update_transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError("transaction", tx.ID)
	}
	return nil
}

// ApplyCategoryChanges applies a run's net effect in one database
// transaction.
func (s *Store) ApplyCategoryChanges(ctx context.Context, changes []rules.CategoryChange) error {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.StoreError("apply_category_changes", err)
	}
	defer dbtx.Rollback(ctx)

	for _, ch := range changes {
		tag, err := dbtx.Exec(ctx,
			`UPDATE transactions SET category_id = $2 WHERE id = $1`,
			ch.TransactionID, ch.CategoryID,
		)
		if err != nil {
			return errors.StoreError("apply_category_changes", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFoundError("transaction", ch.TransactionID)
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return errors.StoreError("apply_category_changes", err)
	}
	return nil
}

// CreateCategory inserts a new category.
func (s *Store) CreateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO categories (name, supercategory_id) VALUES ($1, $2) RETURNING id`,
		c.Name, c.SupercategoryID,
	).Scan(&c.ID)
	if err != nil {
		return models.Category{}, errors.StoreError("create_category", err)
	}
	return c, nil
}

// GetCategory fetches a category by id.
func (s *Store) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	var c models.Category
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, supercategory_id FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.SupercategoryID)
	if err == pgx.ErrNoRows {
		return models.Category{}, errors.NotFoundError("category", id)
	}
	if err != nil {
		return models.Category{}, errors.StoreError("get_category", err)
	}
	return c, nil
}

// UpdateCategory persists name and supercategory changes.
func (s *Store) UpdateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE categories SET name = $2, supercategory_id = $3 WHERE id = $1`,
		c.ID, c.Name, c.SupercategoryID,
	)
	if err != nil {
		return models.Category{}, errors.StoreError("update_category", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Category{}, errors.NotFoundError("category", c.ID)
	}
	return c, nil
}

// ListCategories returns all categories ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, supercategory_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, errors.StoreError("list_categories", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SupercategoryID); err != nil {
			return nil, errors.StoreError("list_categories", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("list_categories", err)
	}
	return out, nil
}

// CreateSupercategory inserts a new supercategory.
func (s *Store) CreateSupercategory(ctx context.Context, sc models.Supercategory) (models.Supercategory, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO supercategories (name) VALUES ($1) RETURNING id`,
		sc.Name,
	).Scan(&sc.ID)
	if err != nil {
		return models.Supercategory{}, errors.StoreError("create_supercategory", err)
	}
	return sc, nil
}

// GetSupercategory fetches a supercategory by id.
func (s *Store) GetSupercategory(ctx context.Context, id int64) (models.Supercategory, error) {
	var sc models.Supercategory
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM supercategories WHERE id = $1`, id,
	).Scan(&sc.ID, &sc.Name)
	if err == pgx.ErrNoRows {
		return models.Supercategory{}, errors.NotFoundError("supercategory", id)
	}
	if err != nil {
		return models.Supercategory{}, errors.StoreError("get_supercategory", err)
	}
	return sc, nil
}

// ListSupercategories returns all supercategories ordered by id.
func (s *Store) ListSupercategories(ctx context.Context) ([]models.Supercategory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM supercategories ORDER BY id`)
	if err != nil {
		return nil, errors.StoreError("list_supercategories", err)
	}
	defer rows.Close()

	var out []models.Supercategory
	for rows.Next() {
		var sc models.Supercategory
		if err := rows.Scan(&sc.ID, &sc.Name); err != nil {
			return nil, errors.StoreError("list_supercategories", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("list_supercategories", err)
	}
	return out, nil
}

// ListRules returns every rule ordered by ascending id.
func (s *Store) ListRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, contains, case_sensitive, category_id, account_id
		 FROM rules ORDER BY id`)
	if err != nil {
		return nil, errors.StoreError("list_rules", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		var r models.Rule
		if err := rows.Scan(&r.ID, &r.Contains, &r.CaseSensitive, &r.CategoryID, &r.AccountID); err != nil {
			return nil, errors.StoreError("list_rules", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("list_rules", err)
	}
	return out, nil
}

// ReplaceCategoryRules swaps a category's rule set in one database
// transaction.
func (s *Store) ReplaceCategoryRules(ctx context.Context, categoryID int64, ruleSet []models.Rule) ([]models.Rule, error) {
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}

	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.StoreError("replace_category_rules", err)
	}
	defer dbtx.Rollback(ctx)

	if _, err := dbtx.Exec(ctx, `DELETE FROM rules WHERE category_id = $1`, categoryID); err != nil {
		return nil, errors.StoreError("replace_category_rules", err)
	}

	out := make([]models.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		r.CategoryID = &categoryID
		err := dbtx.QueryRow(ctx,
			`INSERT INTO rules (contains, case_sensitive, category_id, account_id)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			r.Contains, r.CaseSensitive, r.CategoryID, r.AccountID,
		).Scan(&r.ID)
		if err != nil {
			return nil, errors.StoreError("replace_category_rules", err)
		}
		out = append(out, r)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, errors.StoreError("replace_category_rules", err)
	}
	return out, nil
}
