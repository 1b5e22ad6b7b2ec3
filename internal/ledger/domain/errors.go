package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when a user has no ledger account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrTransactionNotFound is returned when a transaction id is unknown.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrEmptyUserID is returned when a user id is empty.
	ErrEmptyUserID = errors.New("ledger: empty user id")
	// ErrNegativeAmount is returned when a mutation amount is negative.
	ErrNegativeAmount = errors.New("ledger: negative amount")
	// ErrNonPositiveAmount is returned when a transaction amount is zero or negative.
	ErrNonPositiveAmount = errors.New("ledger: amount must be positive")
	// ErrInsufficientFunds is returned when a debit would overdraw a balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrInvalidCurrency is returned for an unknown balance selector.
	ErrInvalidCurrency = errors.New("ledger: invalid currency")
	// ErrInvalidPaymentType is returned for an unknown payment type.
	ErrInvalidPaymentType = errors.New("ledger: invalid payment type")
	// ErrCryptoFieldsOnFiat is returned when a fiat transaction carries settlement fields.
	ErrCryptoFieldsOnFiat = errors.New("ledger: crypto fields set on fiat transaction")
	// ErrNilAccount is returned when saving a nil account.
	ErrNilAccount = errors.New("ledger: nil account")
	// ErrNilTransaction is returned when saving a nil transaction.
	ErrNilTransaction = errors.New("ledger: nil transaction")
	// ErrAmountPrecision is returned when an amount has more decimal places than its balance.
	ErrAmountPrecision = errors.New("ledger: amount exceeds balance precision")
	// ErrTransactionExists is returned when saving a transaction id that is already stored.
	ErrTransactionExists = errors.New("ledger: transaction already exists")
)
