package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"citypay/internal/audit"
	ledger "citypay/internal/ledger/domain"
)

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// AccountService manages ledger accounts outside the payment path.
type AccountService struct {
	store    ledger.Store
	recorder *audit.Recorder
	logger   logrus.FieldLogger
	clock    Clock
}

// Option configures the service.
type Option func(*AccountService)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(s *AccountService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAccountService constructs an account service.
func NewAccountService(store ledger.Store, recorder *audit.Recorder, opts ...Option) (*AccountService, error) {
	if store == nil {
		return nil, errors.New("account service: nil store")
	}
	s := &AccountService{
		store:    store,
		recorder: recorder,
		logger:   logrus.StandardLogger(),
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetOrCreate returns the user's account, creating an empty one on first use.
func (s *AccountService) GetOrCreate(ctx context.Context, userID string) (*ledger.Account, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, err
	}
	fresh, err := ledger.NewAccount(userID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	account, err = s.store.EnsureAccount(ctx, fresh)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user", userID).Info("account created")
	return account, nil
}

// GetByUserID returns the user's account or ledger.ErrAccountNotFound.
func (s *AccountService) GetByUserID(ctx context.Context, userID string) (*ledger.Account, error) {
	if userID == "" {
		return nil, ledger.ErrEmptyUserID
	}
	return s.store.GetAccount(ctx, userID)
}

// Deposit credits a balance on behalf of an administrator.
func (s *AccountService) Deposit(ctx context.Context, adminID, userID string, currency ledger.Currency, amount decimal.Decimal) (*ledger.Account, error) {
	if !currency.Valid() {
		return nil, ledger.ErrInvalidCurrency
	}
	if !amount.IsPositive() {
		return nil, ledger.ErrNonPositiveAmount
	}
	if !currency.FitsScale(amount) {
		return nil, ledger.ErrAmountPrecision
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	account, err := s.store.Credit(ctx, userID, currency, amount)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	details := fmt.Sprintf("Deposit: %s %s to %s", amount.StringFixed(currency.Scale()), currency, userID)
	_ = s.recorder.LogAdminAction(ctx, adminID, "ACCOUNT_DEPOSIT", details)
	s.logger.WithFields(logrus.Fields{
		"admin":    adminID,
		"user":     userID,
		"currency": currency,
	}).Info("deposit applied")
	return account, nil
}
