package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	ledger "citypay/internal/ledger/domain"
)

// LogObserver writes a one-line summary for every transaction. It stands in
// for an email channel.
type LogObserver struct {
	logger logrus.FieldLogger
}

// NewLogObserver constructs a LogObserver.
func NewLogObserver(logger logrus.FieldLogger) *LogObserver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogObserver{logger: logger}
}

// Summary formats the notification message for tx.
func Summary(tx *ledger.Transaction) string {
	return fmt.Sprintf("Transaction %s: %s payment of %s for %s - Status: %s",
		tx.ID, tx.PaymentType, tx.AmountString(), tx.ServiceType, tx.Status)
}

func (o *LogObserver) Update(_ context.Context, tx *ledger.Transaction) error {
	o.logger.WithFields(logrus.Fields{
		"observer":    o.Type(),
		"transaction": tx.ID,
		"user":        tx.UserID,
	}).Info("Email Notification: " + Summary(tx))
	return nil
}

func (o *LogObserver) Type() string { return "EMAIL" }
