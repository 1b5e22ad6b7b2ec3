package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nsqio/go-nsq"

	ledger "citypay/internal/ledger/domain"
)

// DefaultTopic is the NSQ topic transactions are published to.
const DefaultTopic = "payment_events"

// Publisher publishes a message body to a topic. *nsq.Producer satisfies it.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// NewNSQProducer connects a producer and pings the daemon.
func NewNSQProducer(address string) (*nsq.Producer, error) {
	if address == "" {
		return nil, errors.New("nsq: empty address")
	}
	producer, err := nsq.NewProducer(address, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq: create producer: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("nsq: ping daemon: %w", err)
	}
	return producer, nil
}

// PaymentEvent is the message published for each transaction.
type PaymentEvent struct {
	Event       string              `json:"event"`
	Transaction *ledger.Transaction `json:"transaction"`
}

// NSQObserver publishes transactions to an NSQ topic.
type NSQObserver struct {
	publisher Publisher
	topic     string
}

// NewNSQObserver constructs the observer.
func NewNSQObserver(publisher Publisher, topic string) (*NSQObserver, error) {
	if publisher == nil {
		return nil, errors.New("nsq observer: nil publisher")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &NSQObserver{publisher: publisher, topic: topic}, nil
}

func (o *NSQObserver) Update(ctx context.Context, tx *ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(PaymentEvent{
		Event:       "payment." + strings.ToLower(string(tx.Status)),
		Transaction: tx,
	})
	if err != nil {
		return fmt.Errorf("nsq observer: marshal: %w", err)
	}
	return o.publisher.Publish(o.topic, body)
}

func (o *NSQObserver) Type() string { return "NSQ" }
