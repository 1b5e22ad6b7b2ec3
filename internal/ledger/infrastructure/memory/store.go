package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledger "citypay/internal/ledger/domain"
)

// Clock provides time for account mutations.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Store is an in-memory ledger store.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*ledger.Account
	transactions map[string]*ledger.Transaction
	order        []string
	clock        Clock
}

// Option configures the store.
type Option func(*Store)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts:     make(map[string]*ledger.Account),
		transactions: make(map[string]*ledger.Transaction),
		clock:        systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAccount loads an account.
func (s *Store) GetAccount(ctx context.Context, userID string) (*ledger.Account, error) {
	_ = ctx
	s.mu.RLock()
	account := s.accounts[userID]
	s.mu.RUnlock()
	if account == nil {
		return nil, ledger.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// SaveAccount stores an account, overwriting any existing row.
func (s *Store) SaveAccount(ctx context.Context, account *ledger.Account) error {
	_ = ctx
	if account == nil {
		return ledger.ErrNilAccount
	}
	if account.UserID == "" {
		return ledger.ErrEmptyUserID
	}
	copy := account.Clone()
	copy.Normalize()
	s.mu.Lock()
	s.accounts[copy.UserID] = copy
	s.mu.Unlock()
	return nil
}

// EnsureAccount inserts account when the user has none.
func (s *Store) EnsureAccount(ctx context.Context, account *ledger.Account) (*ledger.Account, error) {
	_ = ctx
	if account == nil {
		return nil, ledger.ErrNilAccount
	}
	if account.UserID == "" {
		return nil, ledger.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.accounts[account.UserID]; existing != nil {
		return existing.Clone(), nil
	}
	copy := account.Clone()
	copy.Normalize()
	s.accounts[copy.UserID] = copy
	return copy.Clone(), nil
}

// DebitIfSufficient debits under the store lock.
func (s *Store) DebitIfSufficient(ctx context.Context, userID string, currency ledger.Currency, amount decimal.Decimal) (*ledger.Account, bool, error) {
	_ = ctx
	if !currency.Valid() {
		return nil, false, ledger.ErrInvalidCurrency
	}
	if amount.IsNegative() {
		return nil, false, ledger.ErrNegativeAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.accounts[userID]
	if account == nil {
		return nil, false, ledger.ErrAccountNotFound
	}
	if !account.CanDebit(currency, amount) {
		return account.Clone(), false, nil
	}
	if err := account.Debit(currency, amount, s.clock.Now()); err != nil {
		return nil, false, err
	}
	account.Normalize()
	return account.Clone(), true, nil
}

// Credit adds to a balance under the store lock.
func (s *Store) Credit(ctx context.Context, userID string, currency ledger.Currency, amount decimal.Decimal) (*ledger.Account, error) {
	_ = ctx
	if !currency.Valid() {
		return nil, ledger.ErrInvalidCurrency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.accounts[userID]
	if account == nil {
		return nil, ledger.ErrAccountNotFound
	}
	if err := account.Credit(currency, amount, s.clock.Now()); err != nil {
		return nil, err
	}
	account.Normalize()
	return account.Clone(), nil
}

// SaveTransaction inserts a transaction and assigns an id when missing.
// Stored transactions are never replaced.
func (s *Store) SaveTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Transaction, error) {
	_ = ctx
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	copy := tx.Clone()
	if copy.ID == "" {
		copy.ID = uuid.NewString()
	}
	if copy.Timestamp.IsZero() {
		copy.Timestamp = s.clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[copy.ID]; exists {
		return nil, ledger.ErrTransactionExists
	}
	s.order = append(s.order, copy.ID)
	s.transactions[copy.ID] = copy
	return copy.Clone(), nil
}

// GetTransaction loads a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	_ = ctx
	s.mu.RLock()
	tx := s.transactions[id]
	s.mu.RUnlock()
	if tx == nil {
		return nil, ledger.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

// ListTransactionsByUser returns a user's transactions, newest first.
func (s *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	_ = ctx
	return s.filter(func(tx *ledger.Transaction) bool { return tx.UserID == userID }), nil
}

// ListTransactionsByStatus returns transactions with a status, newest first.
func (s *Store) ListTransactionsByStatus(ctx context.Context, status ledger.Status) ([]ledger.Transaction, error) {
	_ = ctx
	return s.filter(func(tx *ledger.Transaction) bool { return tx.Status == status }), nil
}

func (s *Store) filter(keep func(*ledger.Transaction) bool) []ledger.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []ledger.Transaction
	for i := len(s.order) - 1; i >= 0; i-- {
		tx := s.transactions[s.order[i]]
		if tx != nil && keep(tx) {
			result = append(result, *tx)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}
