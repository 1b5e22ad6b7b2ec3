package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"citypay/internal/audit"
	"citypay/internal/auth"
	ledger "citypay/internal/ledger/domain"
	"citypay/internal/observability/metrics"
	"citypay/internal/settlement"
)

// SecurityChecker gates payments before any ledger access.
type SecurityChecker interface {
	Check(user *auth.Identity, amount *decimal.Decimal) (string, bool)
}

// AdapterResolver maps a network identifier to a settlement adapter.
type AdapterResolver interface {
	Resolve(network string) settlement.Adapter
}

// Notifier delivers persisted transactions to observers.
type Notifier interface {
	NotifyAll(ctx context.Context, tx *ledger.Transaction) error
}

// AuditRecorder writes payment audit entries.
type AuditRecorder interface {
	LogPayment(ctx context.Context, userID, paymentType, amount, serviceType string) error
	Record(ctx context.Context, event audit.Event) error
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// PaymentRequest carries the caller supplied payment parameters.
type PaymentRequest struct {
	PaymentType   ledger.PaymentType `json:"paymentType"`
	Amount        *decimal.Decimal   `json:"amount"`
	ServiceType   ledger.ServiceType `json:"serviceType"`
	Description   string             `json:"description"`
	CryptoNetwork string             `json:"cryptoNetwork"`
}

// Processor owns the collaborators shared by every payment command.
type Processor struct {
	store    ledger.Store
	security SecurityChecker
	adapters AdapterResolver
	notifier Notifier
	metrics  *metrics.Register
	audit    AuditRecorder
	logger   logrus.FieldLogger
	clock    Clock
}

// Option configures the processor.
type Option func(*Processor)

// WithMetrics sets the metrics register.
func WithMetrics(register *metrics.Register) Option {
	return func(p *Processor) {
		p.metrics = register
	}
}

// WithAudit sets the audit recorder.
func WithAudit(recorder AuditRecorder) Option {
	return func(p *Processor) {
		if recorder != nil {
			p.audit = recorder
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProcessor constructs a payment processor.
func NewProcessor(store ledger.Store, security SecurityChecker, adapters AdapterResolver, notifier Notifier, opts ...Option) (*Processor, error) {
	if store == nil {
		return nil, errors.New("payments: nil store")
	}
	if security == nil {
		return nil, errors.New("payments: nil security checker")
	}
	if adapters == nil {
		return nil, errors.New("payments: nil adapter resolver")
	}
	if notifier == nil {
		return nil, errors.New("payments: nil notifier")
	}
	p := &Processor{
		store:    store,
		security: security,
		adapters: adapters,
		notifier: notifier,
		audit:    audit.NewRecorder(nil, nil),
		logger:   logrus.StandardLogger(),
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewFiatCommand builds a fiat payment command against an account snapshot.
func (p *Processor) NewFiatCommand(user *auth.Identity, account *ledger.Account, req PaymentRequest) *Command {
	return p.newCommand(KindFiat, user, account, req)
}

// NewCryptoCommand builds a crypto payment command against an account snapshot.
func (p *Processor) NewCryptoCommand(user *auth.Identity, account *ledger.Account, req PaymentRequest) *Command {
	return p.newCommand(KindCrypto, user, account, req)
}

func (p *Processor) newCommand(kind Kind, user *auth.Identity, account *ledger.Account, req PaymentRequest) *Command {
	req.CryptoNetwork = strings.TrimSpace(req.CryptoNetwork)
	if req.ServiceType == "" {
		req.ServiceType = ledger.ServiceOther
	}
	return &Command{
		processor: p,
		kind:      kind,
		user:      user,
		account:   account.Clone(),
		req:       req,
	}
}

// Pay loads the payer's account and executes the command matching
// req.PaymentType.
func (p *Processor) Pay(ctx context.Context, user *auth.Identity, req PaymentRequest) (*ledger.Transaction, error) {
	paymentType, ok := ledger.ParsePaymentType(string(req.PaymentType))
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment type %q", ErrInvalidPayment, req.PaymentType)
	}
	req.PaymentType = paymentType

	var account *ledger.Account
	if user != nil {
		loaded, err := p.store.GetAccount(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		account = loaded
	}

	var cmd *Command
	if paymentType == ledger.PaymentTypeCrypto {
		cmd = p.NewCryptoCommand(user, account, req)
	} else {
		cmd = p.NewFiatCommand(user, account, req)
	}
	return cmd.Execute(ctx)
}

func (p *Processor) observe(kind Kind, outcome string, started time.Time) {
	p.metrics.ObservePayment(string(kind.PaymentType()), outcome, p.clock.Now().Sub(started))
}

func (p *Processor) notify(ctx context.Context, tx *ledger.Transaction) {
	if err := p.notifier.NotifyAll(ctx, tx); err != nil {
		p.logger.WithError(err).WithField("transaction", tx.ID).Warn("notification fan-out incomplete")
	}
}
