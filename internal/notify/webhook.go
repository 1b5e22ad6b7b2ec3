package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	ledger "citypay/internal/ledger/domain"
)

// Channel delivers rendered content.
type Channel interface {
	Send(ctx context.Context, content string) error
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookChannel sends notifications to a webhook endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send posts the content as a text message payload.
func (w *WebhookChannel) Send(ctx context.Context, content string) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

// WebhookObserver renders a transaction and sends it through a channel.
type WebhookObserver struct {
	channel  Channel
	template *Template
	statuses map[ledger.Status]struct{}
}

// NewWebhookObserver constructs the observer. With no statuses every
// transaction is forwarded.
func NewWebhookObserver(channel Channel, template *Template, statuses ...ledger.Status) (*WebhookObserver, error) {
	if channel == nil {
		return nil, errors.New("webhook observer: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	o := &WebhookObserver{channel: channel, template: template}
	if len(statuses) > 0 {
		o.statuses = make(map[ledger.Status]struct{}, len(statuses))
		for _, status := range statuses {
			o.statuses[status] = struct{}{}
		}
	}
	return o, nil
}

func (o *WebhookObserver) Update(ctx context.Context, tx *ledger.Transaction) error {
	if o.statuses != nil {
		if _, ok := o.statuses[tx.Status]; !ok {
			return nil
		}
	}
	content, err := o.template.Render(buildTemplateData(tx))
	if err != nil {
		return err
	}
	return o.channel.Send(ctx, content)
}

func (o *WebhookObserver) Type() string { return "WEBHOOK" }
