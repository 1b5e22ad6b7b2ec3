package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// FiatScale is the number of decimal places kept for fiat balances.
	FiatScale int32 = 2
	// CryptoScale is the number of decimal places kept for crypto balances.
	CryptoScale int32 = 8
)

// Currency selects one of the two balances held by an account.
type Currency string

const (
	CurrencyFiat   Currency = "fiat"
	CurrencyCrypto Currency = "crypto"
)

// Scale returns the persisted precision for the currency.
func (c Currency) Scale() int32 {
	if c == CurrencyCrypto {
		return CryptoScale
	}
	return FiatScale
}

// FitsScale reports whether amount carries no more decimal places than the
// balance keeps.
func (c Currency) FitsScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(c.Scale()))
}

// Valid reports whether c is a known currency.
func (c Currency) Valid() bool {
	return c == CurrencyFiat || c == CurrencyCrypto
}

// Account holds the fiat and crypto balances of a single user.
type Account struct {
	UserID        string
	FiatBalance   decimal.Decimal
	CryptoBalance decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount creates an empty account for a user.
func NewAccount(userID string, now time.Time) (*Account, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	now = now.UTC()
	return &Account{
		UserID:        userID,
		FiatBalance:   decimal.Zero,
		CryptoBalance: decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Balance returns the balance for a currency.
func (a *Account) Balance(currency Currency) decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	if currency == CurrencyCrypto {
		return a.CryptoBalance
	}
	return a.FiatBalance
}

// CanDebit reports whether the balance covers amount.
func (a *Account) CanDebit(currency Currency, amount decimal.Decimal) bool {
	if a == nil {
		return false
	}
	return a.Balance(currency).GreaterThanOrEqual(amount)
}

// Debit subtracts amount from a balance. The balance never goes below zero.
func (a *Account) Debit(currency Currency, amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !a.CanDebit(currency, amount) {
		return ErrInsufficientFunds
	}
	a.set(currency, a.Balance(currency).Sub(amount))
	a.Touch(now)
	return nil
}

// Credit adds amount to a balance.
func (a *Account) Credit(currency Currency, amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	a.set(currency, a.Balance(currency).Add(amount))
	a.Touch(now)
	return nil
}

// Touch records a mutation time.
func (a *Account) Touch(now time.Time) {
	a.UpdatedAt = now.UTC()
}

// Normalize rounds both balances to their persisted precision.
func (a *Account) Normalize() {
	a.FiatBalance = a.FiatBalance.Round(FiatScale)
	a.CryptoBalance = a.CryptoBalance.Round(CryptoScale)
}

// Clone returns a detached copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	copy := *a
	return &copy
}

func (a *Account) set(currency Currency, value decimal.Decimal) {
	if currency == CurrencyCrypto {
		a.CryptoBalance = value
		return
	}
	a.FiatBalance = value
}
