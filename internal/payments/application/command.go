package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"citypay/internal/audit"
	"citypay/internal/auth"
	ledger "citypay/internal/ledger/domain"
	"citypay/internal/observability/metrics"
	"citypay/internal/security"
	"citypay/internal/settlement"
)

// Kind tags a command variant.
type Kind int

const (
	KindFiat Kind = iota
	KindCrypto
)

// PaymentType returns the transaction payment type for the variant.
func (k Kind) PaymentType() ledger.PaymentType {
	if k == KindCrypto {
		return ledger.PaymentTypeCrypto
	}
	return ledger.PaymentTypeFiat
}

func (k Kind) String() string {
	if k == KindCrypto {
		return "crypto"
	}
	return "fiat"
}

// Command is a single payment. It executes at most once and may be
// compensated once after completing.
type Command struct {
	processor *Processor
	kind      Kind
	user      *auth.Identity
	account   *ledger.Account
	req       PaymentRequest

	mu          sync.Mutex
	executed    bool
	result      *ledger.Transaction
	compensated bool
}

// Kind returns the command variant.
func (c *Command) Kind() Kind { return c.kind }

// Result returns the completed transaction, if any.
func (c *Command) Result() *ledger.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Clone()
}

// CanExecute reports whether the account snapshot covers the amount. It does
// not touch the store; Execute re-checks atomically.
func (c *Command) CanExecute() bool {
	if c.account == nil || c.req.Amount == nil {
		return false
	}
	return c.account.CanDebit(c.kind.PaymentType().Currency(), *c.req.Amount)
}

// Execute runs the payment: security gate, conditional debit, settlement for
// crypto, persistence, metrics, notification and audit, in that order.
func (c *Command) Execute(ctx context.Context) (*ledger.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executed {
		return nil, ErrAlreadyExecuted
	}
	c.executed = true

	p := c.processor
	started := p.clock.Now()
	tx, outcome, err := c.execute(ctx)
	p.observe(c.kind, outcome, started)
	if err != nil {
		return nil, err
	}
	c.result = tx
	return tx.Clone(), nil
}

func (c *Command) execute(ctx context.Context) (*ledger.Transaction, string, error) {
	p := c.processor
	currency := c.kind.PaymentType().Currency()

	if c.kind == KindCrypto && c.req.CryptoNetwork == "" {
		return nil, metrics.OutcomeRejected, ErrMissingNetwork
	}
	serviceType, ok := ledger.ParseServiceType(string(c.req.ServiceType))
	if !ok {
		return nil, metrics.OutcomeRejected, fmt.Errorf("%w: unknown service type %q", ErrInvalidPayment, c.req.ServiceType)
	}
	c.req.ServiceType = serviceType

	if step, ok := p.security.Check(c.user, c.req.Amount); !ok {
		return nil, metrics.OutcomeRejected, &SecurityError{Step: step, Reason: security.FailureReason(step)}
	}
	amount := *c.req.Amount
	if !currency.FitsScale(amount) {
		return nil, metrics.OutcomeRejected, fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidPayment, amount, currency.Scale())
	}
	logger := p.logger.WithFields(logrus.Fields{
		"user": c.user.ID,
		"type": c.kind.PaymentType(),
	})

	account, ok, err := p.store.DebitIfSufficient(ctx, c.user.ID, currency, amount)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	if !ok {
		failed, err := c.recordFailure(ctx, amount)
		if err != nil {
			return nil, metrics.OutcomeError, fmt.Errorf("payments: persist failed transaction: %w", err)
		}
		logger.WithField("transaction", failed.ID).Info("payment failed: insufficient balance")
		return nil, metrics.OutcomeInsufficient, &FailedPaymentError{
			Transaction: failed,
			Currency:    currency,
			Balance:     account.Balance(currency),
			Requested:   amount,
		}
	}
	c.account = account

	tx := &ledger.Transaction{
		UserID:      c.user.ID,
		PaymentType: c.kind.PaymentType(),
		ServiceType: c.req.ServiceType,
		Amount:      amount,
		Status:      ledger.StatusCompleted,
		Timestamp:   p.clock.Now(),
		Description: c.req.Description,
	}

	if c.kind == KindCrypto {
		adapter := p.adapters.Resolve(c.req.CryptoNetwork)
		reference, err := adapter.Settle(ctx, settlement.WalletAddress(c.user.ID), amount, c.req.CryptoNetwork)
		if err != nil {
			c.restore(ctx, currency, amount, logger)
			return nil, metrics.OutcomeError, fmt.Errorf("payments: settle on %s: %w", adapter.NetworkName(), err)
		}
		tx.CryptoNetwork = c.req.CryptoNetwork
		tx.TransactionHash = reference
	}

	saved, err := p.store.SaveTransaction(ctx, tx)
	if err != nil {
		c.restore(ctx, currency, amount, logger)
		return nil, metrics.OutcomeError, fmt.Errorf("payments: persist transaction: %w", err)
	}

	p.metrics.IncrementTransactionCount()
	p.metrics.AddRevenue(amount.IntPart())

	p.notify(ctx, saved)

	if err := p.audit.LogPayment(ctx, c.user.ID, string(saved.PaymentType), saved.AmountString(), string(saved.ServiceType)); err != nil {
		logger.WithError(err).Warn("payment audit failed")
	}

	logger.WithFields(logrus.Fields{
		"transaction": saved.ID,
		"amount":      saved.AmountString(),
		"network":     saved.CryptoNetwork,
	}).Info("payment processed")
	return saved, metrics.OutcomeCompleted, nil
}

func (c *Command) recordFailure(ctx context.Context, amount decimal.Decimal) (*ledger.Transaction, error) {
	p := c.processor
	failed, err := p.store.SaveTransaction(ctx, &ledger.Transaction{
		UserID:        c.user.ID,
		PaymentType:   c.kind.PaymentType(),
		ServiceType:   c.req.ServiceType,
		Amount:        amount,
		Status:        ledger.StatusFailed,
		CryptoNetwork: c.req.CryptoNetwork,
		Timestamp:     p.clock.Now(),
		Description:   c.req.Description,
	})
	if err != nil {
		return nil, err
	}
	p.notify(ctx, failed)
	return failed, nil
}

// restore credits back a debit whose transaction could not be completed.
func (c *Command) restore(ctx context.Context, currency ledger.Currency, amount decimal.Decimal, logger logrus.FieldLogger) {
	if _, err := c.processor.store.Credit(ctx, c.user.ID, currency, amount); err != nil {
		logger.WithError(err).Error("failed to restore debited balance")
	}
}

// Compensate undoes a completed payment. Fiat payments are credited back.
// Crypto settlement is irreversible, so only a refund attempt is recorded.
func (c *Command) Compensate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return ErrNotExecuted
	}
	if c.compensated {
		return ErrAlreadyCompensated
	}
	p := c.processor
	tx := c.result
	logger := p.logger.WithFields(logrus.Fields{
		"user":        tx.UserID,
		"transaction": tx.ID,
	})

	switch c.kind {
	case KindFiat:
		account, err := p.store.Credit(ctx, tx.UserID, ledger.CurrencyFiat, tx.Amount)
		if err != nil {
			return fmt.Errorf("payments: refund: %w", err)
		}
		c.account = account
		c.compensated = true
		logger.Infof("Refunded %s fiat to user %s", tx.AmountString(), tx.UserID)
		c.recordCompensation(ctx, "PAYMENT_REFUNDED",
			fmt.Sprintf("Refund: %s FIAT for transaction %s", tx.AmountString(), tx.ID), logger)
	case KindCrypto:
		c.compensated = true
		logger.Warnf("Crypto refund attempt logged for user %s: %s %s", tx.UserID, tx.AmountString(), tx.CryptoNetwork)
		c.recordCompensation(ctx, "CRYPTO_REFUND_ATTEMPT",
			fmt.Sprintf("Crypto refund attempt: %s %s for transaction %s", tx.AmountString(), tx.CryptoNetwork, tx.ID), logger)
	default:
		return errors.New("payments: unknown command kind")
	}
	return nil
}

func (c *Command) recordCompensation(ctx context.Context, action, details string, logger logrus.FieldLogger) {
	err := c.processor.audit.Record(ctx, audit.Event{
		EventType: audit.EventPayment,
		UserID:    c.result.UserID,
		Action:    action,
		Details:   details,
		CreatedAt: c.processor.clock.Now(),
	})
	if err != nil {
		logger.WithError(err).Warn("compensation audit failed")
	}
}

