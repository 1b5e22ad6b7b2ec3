package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	ledger "citypay/internal/ledger/domain"
)

// SecurityRecorder writes security audit entries.
type SecurityRecorder interface {
	LogSecurityEvent(ctx context.Context, userID, details string) error
}

// SecurityAlertObserver raises an audit alert for failed transactions.
type SecurityAlertObserver struct {
	recorder SecurityRecorder
	logger   logrus.FieldLogger
}

// NewSecurityAlertObserver constructs the observer.
func NewSecurityAlertObserver(recorder SecurityRecorder, logger logrus.FieldLogger) (*SecurityAlertObserver, error) {
	if recorder == nil {
		return nil, errors.New("security observer: nil recorder")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SecurityAlertObserver{recorder: recorder, logger: logger}, nil
}

// AlertMessage formats the alert text for a failed transaction.
func AlertMessage(tx *ledger.Transaction) string {
	return fmt.Sprintf("SECURITY ALERT: Failed transaction %s for user %s - Amount: %s",
		tx.ID, tx.UserID, tx.AmountString())
}

func (o *SecurityAlertObserver) Update(ctx context.Context, tx *ledger.Transaction) error {
	if tx.Status != ledger.StatusFailed {
		return nil
	}
	alert := AlertMessage(tx)
	o.logger.WithFields(logrus.Fields{
		"observer":    o.Type(),
		"transaction": tx.ID,
		"user":        tx.UserID,
	}).Warn(alert)
	return o.recorder.LogSecurityEvent(ctx, tx.UserID, alert)
}

func (o *SecurityAlertObserver) Type() string { return "SECURITY_ALERT" }
