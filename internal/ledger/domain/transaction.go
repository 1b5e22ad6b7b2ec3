package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType identifies which balance a transaction drew on.
type PaymentType string

const (
	PaymentTypeFiat   PaymentType = "FIAT"
	PaymentTypeCrypto PaymentType = "CRYPTO"
)

// Currency maps the payment type to the balance it debits.
func (p PaymentType) Currency() Currency {
	if p == PaymentTypeCrypto {
		return CurrencyCrypto
	}
	return CurrencyFiat
}

// ParsePaymentType normalizes a payment type string.
func ParsePaymentType(value string) (PaymentType, bool) {
	switch PaymentType(strings.ToUpper(strings.TrimSpace(value))) {
	case PaymentTypeFiat:
		return PaymentTypeFiat, true
	case PaymentTypeCrypto:
		return PaymentTypeCrypto, true
	default:
		return "", false
	}
}

// ServiceType is the municipal service being paid for.
type ServiceType string

const (
	ServiceParking        ServiceType = "PARKING"
	ServiceTransportation ServiceType = "TRANSPORTATION"
	ServiceUtilities      ServiceType = "UTILITIES"
	ServiceOther          ServiceType = "OTHER"
)

// ParseServiceType normalizes a service type string. Empty input maps to OTHER.
func ParseServiceType(value string) (ServiceType, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return ServiceOther, true
	}
	switch ServiceType(value) {
	case ServiceParking, ServiceTransportation, ServiceUtilities, ServiceOther:
		return ServiceType(value), true
	default:
		return "", false
	}
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Transaction is an immutable payment record.
type Transaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	PaymentType     PaymentType     `json:"paymentType"`
	ServiceType     ServiceType     `json:"serviceType"`
	Amount          decimal.Decimal `json:"amount"`
	Status          Status          `json:"status"`
	CryptoNetwork   string          `json:"cryptoNetwork,omitempty"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Description     string          `json:"description,omitempty"`
}

// Clone returns a detached copy.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	copy := *t
	return &copy
}

// AmountString renders the amount at the precision of its balance.
func (t *Transaction) AmountString() string {
	if t == nil {
		return ""
	}
	if t.PaymentType == PaymentTypeCrypto {
		return t.Amount.Round(CryptoScale).String()
	}
	return t.Amount.StringFixed(FiatScale)
}

// Validate checks the fields every persisted transaction must carry.
func (t *Transaction) Validate() error {
	if t == nil {
		return ErrNilTransaction
	}
	if t.UserID == "" {
		return ErrEmptyUserID
	}
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if t.PaymentType != PaymentTypeFiat && t.PaymentType != PaymentTypeCrypto {
		return ErrInvalidPaymentType
	}
	if !t.PaymentType.Currency().FitsScale(t.Amount) {
		return ErrAmountPrecision
	}
	if t.PaymentType == PaymentTypeFiat && (t.CryptoNetwork != "" || t.TransactionHash != "") {
		return ErrCryptoFieldsOnFiat
	}
	return nil
}
