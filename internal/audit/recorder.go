package audit

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Recorder builds typed audit events and writes them to a sink.
type Recorder struct {
	sink   Sink
	logger logrus.FieldLogger
}

// NewRecorder constructs a recorder. A nil logger discards failures.
func NewRecorder(sink Sink, logger logrus.FieldLogger) *Recorder {
	if logger == nil {
		discard := logrus.New()
		discard.Out = io.Discard
		logger = discard
	}
	return &Recorder{sink: sink, logger: logger}
}

// Record writes an event, stamping the client ip from ctx when unset.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	if r == nil || r.sink == nil {
		return nil
	}
	if event.IP == "" {
		event.IP = ClientIPFromContext(ctx)
	}
	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.EventType,
			"action":     event.Action,
			"user":       event.UserID,
		}).Warn("audit write failed")
		return err
	}
	return nil
}

// LogPayment records a processed payment.
func (r *Recorder) LogPayment(ctx context.Context, userID, paymentType, amount, serviceType string) error {
	return r.Record(ctx, Event{
		EventType: EventPayment,
		UserID:    userID,
		Action:    "PAYMENT_PROCESSED",
		Details:   fmt.Sprintf("Payment: %s, Amount: %s, Service: %s", paymentType, amount, serviceType),
	})
}

// LogSecurityEvent records a security alert.
func (r *Recorder) LogSecurityEvent(ctx context.Context, userID, details string) error {
	return r.Record(ctx, Event{
		EventType: EventSecurityAlert,
		UserID:    userID,
		Action:    "SECURITY_ALERT",
		Details:   details,
	})
}

// LogAuthentication records an authentication outcome.
func (r *Recorder) LogAuthentication(ctx context.Context, userID, action string) error {
	return r.Record(ctx, Event{
		EventType: EventAuthentication,
		UserID:    userID,
		Action:    action,
	})
}

// LogAdminAction records an administrative mutation.
func (r *Recorder) LogAdminAction(ctx context.Context, adminID, action, details string) error {
	return r.Record(ctx, Event{
		EventType: EventAdminAction,
		UserID:    adminID,
		Action:    action,
		Details:   details,
	})
}

// LogSystemEvent records a process-level event with no user.
func (r *Recorder) LogSystemEvent(ctx context.Context, action, details string) error {
	return r.Record(ctx, Event{
		EventType: EventSystem,
		Action:    action,
		Details:   details,
	})
}
