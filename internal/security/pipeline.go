package security

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"citypay/internal/auth"
)

// Step names, in pipeline order.
const (
	StepValidateUser       = "validateUser"
	StepCheckAccountStatus = "checkAccountStatus"
	StepValidateAmount     = "validateAmount"
	StepCustomChecks       = "performCustomChecks"
)

var failureReasons = map[string]string{
	StepValidateUser:       "User validation failed",
	StepCheckAccountStatus: "Account status check failed",
	StepValidateAmount:     "Amount validation failed",
	StepCustomChecks:       "Custom security checks failed",
}

// Default amount band, inclusive.
var (
	DefaultMinAmount = decimal.RequireFromString("0.01")
	DefaultMaxAmount = decimal.RequireFromString("10000.00")
)

// CustomCheck is an extra gate run in the performCustomChecks step.
type CustomCheck func(user *auth.Identity, amount decimal.Decimal) bool

type step struct {
	name  string
	check func(user *auth.Identity, amount *decimal.Decimal) bool
}

// Pipeline runs an ordered set of security checks and stops at the first failure.
type Pipeline struct {
	steps     []step
	minAmount decimal.Decimal
	maxAmount decimal.Decimal
	custom    []CustomCheck
	logger    logrus.FieldLogger
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithAmountLimits overrides the inclusive amount band.
func WithAmountLimits(min, max decimal.Decimal) Option {
	return func(p *Pipeline) {
		p.minAmount = min
		p.maxAmount = max
	}
}

// WithCustomCheck appends a check to the performCustomChecks step.
func WithCustomCheck(check CustomCheck) Option {
	return func(p *Pipeline) {
		if check != nil {
			p.custom = append(p.custom, check)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline builds the payment security pipeline.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		minAmount: DefaultMinAmount,
		maxAmount: DefaultMaxAmount,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.minAmount.GreaterThan(p.maxAmount) {
		return nil, errors.New("security: min amount above max amount")
	}
	p.steps = []step{
		{name: StepValidateUser, check: p.validateUser},
		{name: StepCheckAccountStatus, check: p.checkAccountStatus},
		{name: StepValidateAmount, check: p.validateAmount},
		{name: StepCustomChecks, check: p.performCustomChecks},
	}
	return p, nil
}

// PerformSecurityCheck reports whether every step passed.
func (p *Pipeline) PerformSecurityCheck(user *auth.Identity, amount *decimal.Decimal) bool {
	_, ok := p.Check(user, amount)
	return ok
}

// Check runs the steps in order and returns the name of the failing step.
func (p *Pipeline) Check(user *auth.Identity, amount *decimal.Decimal) (string, bool) {
	name := displayName(user)
	p.logger.WithField("user", name).Debug("starting security check")
	for _, s := range p.steps {
		if s.check(user, amount) {
			continue
		}
		p.logger.WithFields(logrus.Fields{
			"step": s.name,
			"user": name,
		}).Warnf("Security check failed: %s for user: %s", failureReasons[s.name], name)
		return s.name, false
	}
	p.logger.WithField("user", name).Debug("security check passed")
	return "", true
}

// FailureReason returns the human readable reason for a failed step.
func FailureReason(step string) string {
	return failureReasons[step]
}

func (p *Pipeline) validateUser(user *auth.Identity, _ *decimal.Decimal) bool {
	return user != nil && user.DisplayName != ""
}

func (p *Pipeline) checkAccountStatus(user *auth.Identity, _ *decimal.Decimal) bool {
	return user != nil && user.Role != ""
}

func (p *Pipeline) validateAmount(_ *auth.Identity, amount *decimal.Decimal) bool {
	if amount == nil {
		return false
	}
	return amount.GreaterThanOrEqual(p.minAmount) && amount.LessThanOrEqual(p.maxAmount)
}

func (p *Pipeline) performCustomChecks(user *auth.Identity, amount *decimal.Decimal) bool {
	for _, check := range p.custom {
		if !check(user, *amount) {
			return false
		}
	}
	return true
}

func displayName(user *auth.Identity) string {
	if user == nil {
		return ""
	}
	return user.DisplayName
}
