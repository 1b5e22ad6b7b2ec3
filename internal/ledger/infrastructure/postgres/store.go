package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledger "citypay/internal/ledger/domain"
)

// Schema is the DDL for the ledger tables.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id TEXT PRIMARY KEY,
	fiat_balance NUMERIC(19,2) NOT NULL DEFAULT 0 CHECK (fiat_balance >= 0),
	crypto_balance NUMERIC(19,8) NOT NULL DEFAULT 0 CHECK (crypto_balance >= 0),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	payment_type TEXT NOT NULL,
	service_type TEXT NOT NULL,
	amount NUMERIC(19,8) NOT NULL,
	status TEXT NOT NULL,
	crypto_network TEXT,
	transaction_hash TEXT,
	ts TIMESTAMPTZ NOT NULL,
	description TEXT
);

CREATE INDEX IF NOT EXISTS transactions_user_ts_idx ON transactions (user_id, ts DESC);
CREATE INDEX IF NOT EXISTS transactions_status_idx ON transactions (status);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("ledger repo: nil db")
	}
	_, err := db.ExecContext(ctx, Schema)
	return err
}

const accountColumns = `user_id, fiat_balance, crypto_balance, created_at, updated_at`

const transactionColumns = `id, user_id, payment_type, service_type, amount, status, crypto_network, transaction_hash, ts, description`

// Store is a Postgres implementation of ledger.Store.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithNow overrides the time source used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewStore constructs a store over db.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAccount loads an account.
func (s *Store) GetAccount(ctx context.Context, userID string) (*ledger.Account, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	if userID == "" {
		return nil, ledger.ErrEmptyUserID
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID)
	return scanAccount(row)
}

// SaveAccount upserts an account.
func (s *Store) SaveAccount(ctx context.Context, account *ledger.Account) error {
	if s == nil || s.db == nil {
		return errors.New("ledger repo: nil db")
	}
	if account == nil {
		return ledger.ErrNilAccount
	}
	if account.UserID == "" {
		return ledger.ErrEmptyUserID
	}
	copy := account.Clone()
	copy.Normalize()
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = s.clock()
	}
	if copy.UpdatedAt.IsZero() {
		copy.UpdatedAt = copy.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (user_id, fiat_balance, crypto_balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id)
DO UPDATE SET
	fiat_balance = EXCLUDED.fiat_balance,
	crypto_balance = EXCLUDED.crypto_balance,
	updated_at = EXCLUDED.updated_at`,
		copy.UserID,
		copy.FiatBalance,
		copy.CryptoBalance,
		copy.CreatedAt.UTC(),
		copy.UpdatedAt.UTC(),
	)
	return err
}

// EnsureAccount inserts account unless a row exists and returns the stored row.
func (s *Store) EnsureAccount(ctx context.Context, account *ledger.Account) (*ledger.Account, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	if account == nil {
		return nil, ledger.ErrNilAccount
	}
	if account.UserID == "" {
		return nil, ledger.ErrEmptyUserID
	}
	copy := account.Clone()
	copy.Normalize()
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = s.clock()
	}
	if copy.UpdatedAt.IsZero() {
		copy.UpdatedAt = copy.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (user_id, fiat_balance, crypto_balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO NOTHING`,
		copy.UserID,
		copy.FiatBalance,
		copy.CryptoBalance,
		copy.CreatedAt.UTC(),
		copy.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, copy.UserID)
}

// DebitIfSufficient runs a single conditional UPDATE. When no row is
// updated the current account is loaded to tell a short balance from a
// missing account.
func (s *Store) DebitIfSufficient(ctx context.Context, userID string, currency ledger.Currency, amount decimal.Decimal) (*ledger.Account, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, errors.New("ledger repo: nil db")
	}
	column, err := balanceColumn(currency)
	if err != nil {
		return nil, false, err
	}
	if amount.IsNegative() {
		return nil, false, ledger.ErrNegativeAmount
	}

	query := fmt.Sprintf(`
UPDATE accounts
SET %[1]s = %[1]s - $1, updated_at = $3
WHERE user_id = $2 AND %[1]s >= $1
RETURNING `+accountColumns, column)

	row := s.db.QueryRowContext(ctx, query, amount.Round(currency.Scale()), userID, s.clock())
	account, err := scanAccount(row)
	if err == nil {
		return account, true, nil
	}
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, false, err
	}
	current, err := s.GetAccount(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// Credit atomically increments a balance.
func (s *Store) Credit(ctx context.Context, userID string, currency ledger.Currency, amount decimal.Decimal) (*ledger.Account, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	column, err := balanceColumn(currency)
	if err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, ledger.ErrNegativeAmount
	}

	query := fmt.Sprintf(`
UPDATE accounts
SET %[1]s = %[1]s + $1, updated_at = $3
WHERE user_id = $2
RETURNING `+accountColumns, column)

	row := s.db.QueryRowContext(ctx, query, amount.Round(currency.Scale()), userID, s.clock())
	return scanAccount(row)
}

// SaveTransaction inserts a transaction row. An existing id is left untouched.
func (s *Store) SaveTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Transaction, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	copy := tx.Clone()
	if copy.ID == "" {
		copy.ID = uuid.NewString()
	}
	if copy.Timestamp.IsZero() {
		copy.Timestamp = s.clock()
	}

	result, err := s.db.ExecContext(ctx, `
INSERT INTO transactions (`+transactionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`,
		copy.ID,
		copy.UserID,
		string(copy.PaymentType),
		string(copy.ServiceType),
		copy.Amount,
		string(copy.Status),
		nullString(copy.CryptoNetwork),
		nullString(copy.TransactionHash),
		copy.Timestamp.UTC(),
		nullString(copy.Description),
	)
	if err != nil {
		return nil, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		return nil, ledger.ErrTransactionExists
	}
	return copy, nil
}

// GetTransaction loads a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	return tx, err
}

// ListTransactionsByUser returns a user's transactions, newest first.
func (s *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	return s.list(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY ts DESC`, userID)
}

// ListTransactionsByStatus returns transactions with a status, newest first.
func (s *Store) ListTransactionsByStatus(ctx context.Context, status ledger.Status) ([]ledger.Transaction, error) {
	return s.list(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE status = $1 ORDER BY ts DESC`, string(status))
}

func (s *Store) list(ctx context.Context, query string, arg any) ([]ledger.Transaction, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*ledger.Account, error) {
	var account ledger.Account
	if err := row.Scan(&account.UserID, &account.FiatBalance, &account.CryptoBalance, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	account.Normalize()
	return &account, nil
}

func scanTransaction(row scanner) (*ledger.Transaction, error) {
	var (
		tx          ledger.Transaction
		paymentType string
		serviceType string
		status      string
		network     sql.NullString
		hash        sql.NullString
		description sql.NullString
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &paymentType, &serviceType, &tx.Amount, &status, &network, &hash, &tx.Timestamp, &description); err != nil {
		return nil, err
	}
	tx.PaymentType = ledger.PaymentType(paymentType)
	tx.ServiceType = ledger.ServiceType(serviceType)
	tx.Status = ledger.Status(status)
	tx.CryptoNetwork = network.String
	tx.TransactionHash = hash.String
	tx.Description = description.String
	tx.Timestamp = tx.Timestamp.UTC()
	return &tx, nil
}

func balanceColumn(currency ledger.Currency) (string, error) {
	switch currency {
	case ledger.CurrencyFiat:
		return "fiat_balance", nil
	case ledger.CurrencyCrypto:
		return "crypto_balance", nil
	default:
		return "", ledger.ErrInvalidCurrency
	}
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
