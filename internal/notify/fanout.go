package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	ledger "citypay/internal/ledger/domain"
)

// Observer receives every persisted transaction.
type Observer interface {
	Update(ctx context.Context, tx *ledger.Transaction) error
	Type() string
}

// Fanout delivers transactions to a fixed set of observers.
type Fanout struct {
	observers []Observer
	logger    logrus.FieldLogger
	onFailure func(observer string)
}

// NewFanout constructs a fan-out over observers. Nil observers are skipped.
func NewFanout(logger logrus.FieldLogger, observers ...Observer) *Fanout {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	f := &Fanout{logger: logger}
	for _, observer := range observers {
		if observer != nil {
			f.observers = append(f.observers, observer)
		}
	}
	return f
}

// OnFailure installs a callback invoked with the type of each failing observer.
func (f *Fanout) OnFailure(fn func(observer string)) *Fanout {
	if f != nil {
		f.onFailure = fn
	}
	return f
}

// Observers returns the registered observer types in order.
func (f *Fanout) Observers() []string {
	if f == nil {
		return nil
	}
	types := make([]string, 0, len(f.observers))
	for _, observer := range f.observers {
		types = append(types, observer.Type())
	}
	return types
}

// NotifyAll invokes every observer. A failing or panicking observer does not
// stop the rest; all failures are joined into the returned error.
func (f *Fanout) NotifyAll(ctx context.Context, tx *ledger.Transaction) error {
	if f == nil || tx == nil {
		return nil
	}
	f.logger.WithFields(logrus.Fields{
		"transaction": tx.ID,
		"observers":   len(f.observers),
	}).Debug("notifying observers")

	var errs []error
	for _, observer := range f.observers {
		if err := f.deliver(ctx, observer, tx); err != nil {
			f.logger.WithError(err).WithFields(logrus.Fields{
				"observer":    observer.Type(),
				"transaction": tx.ID,
			}).Warn("observer failed")
			if f.onFailure != nil {
				f.onFailure(observer.Type())
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) deliver(ctx context.Context, observer Observer, tx *ledger.Transaction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: observer %s panicked: %v", observer.Type(), r)
		}
	}()
	if err := observer.Update(ctx, tx.Clone()); err != nil {
		return fmt.Errorf("notify: observer %s: %w", observer.Type(), err)
	}
	return nil
}
