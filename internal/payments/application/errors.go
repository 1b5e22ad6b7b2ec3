package application

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	ledger "citypay/internal/ledger/domain"
)

var (
	// ErrSecurityCheckFailed is returned when a security step rejects the payment. Nothing was written.
	ErrSecurityCheckFailed = errors.New("payments: security check failed")
	// ErrInsufficientBalance is matched by *FailedPaymentError. A FAILED transaction exists.
	ErrInsufficientBalance = errors.New("payments: insufficient balance")
	// ErrAccountNotFound is returned when the payer has no ledger account. Nothing was written.
	ErrAccountNotFound = ledger.ErrAccountNotFound
	// ErrMissingNetwork is returned for crypto payments without a network.
	ErrMissingNetwork = errors.New("payments: crypto network is required")
	// ErrInvalidPayment is returned for malformed payment requests.
	ErrInvalidPayment = errors.New("payments: invalid payment request")
	// ErrNotExecuted is returned when compensating a command that never completed.
	ErrNotExecuted = errors.New("payments: command has not completed")
	// ErrAlreadyExecuted is returned when a command is executed twice.
	ErrAlreadyExecuted = errors.New("payments: command already executed")
	// ErrAlreadyCompensated is returned when a command is compensated twice.
	ErrAlreadyCompensated = errors.New("payments: command already compensated")
)

// SecurityError reports which security step rejected a payment.
type SecurityError struct {
	Step   string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSecurityCheckFailed, e.Reason)
}

// Is matches ErrSecurityCheckFailed.
func (e *SecurityError) Is(target error) bool {
	return target == ErrSecurityCheckFailed
}

// FailedPaymentError is returned when the balance did not cover the payment.
// Transaction is the FAILED record that was persisted and notified.
type FailedPaymentError struct {
	Transaction *ledger.Transaction
	Currency    ledger.Currency
	Balance     decimal.Decimal
	Requested   decimal.Decimal
}

func (e *FailedPaymentError) Error() string {
	return fmt.Sprintf("payments: insufficient %s balance: have %s, need %s",
		e.Currency, e.Balance.String(), e.Requested.String())
}

// Is matches ErrInsufficientBalance.
func (e *FailedPaymentError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// HasFailedRecord reports whether err carries a persisted FAILED transaction.
func HasFailedRecord(err error) bool {
	var failed *FailedPaymentError
	return errors.As(err, &failed) && failed.Transaction != nil
}

// FailedTransaction returns the persisted FAILED transaction carried by err.
func FailedTransaction(err error) (*ledger.Transaction, bool) {
	var failed *FailedPaymentError
	if !errors.As(err, &failed) || failed.Transaction == nil {
		return nil, false
	}
	return failed.Transaction, true
}
