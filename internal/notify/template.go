package notify

import (
	"bytes"
	"errors"
	"text/template"
	"time"

	ledger "citypay/internal/ledger/domain"
)

const DefaultTemplate = `[Payment {{.Status}}]
Transaction: {{.ID}}
User: {{.UserID}}
Type: {{.PaymentType}}
Service: {{.ServiceType}}
Amount: {{.Amount}}
{{ if .Network }}Network: {{.Network}}
Reference: {{.Reference}}
{{ end }}Time: {{.Time}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	ID          string
	UserID      string
	PaymentType string
	ServiceType string
	Amount      string
	Status      string
	Network     string
	Reference   string
	Time        string
	Description string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("payment-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("payment template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildTemplateData(tx *ledger.Transaction) TemplateData {
	return TemplateData{
		ID:          tx.ID,
		UserID:      tx.UserID,
		PaymentType: string(tx.PaymentType),
		ServiceType: string(tx.ServiceType),
		Amount:      tx.AmountString(),
		Status:      string(tx.Status),
		Network:     tx.CryptoNetwork,
		Reference:   tx.TransactionHash,
		Time:        tx.Timestamp.UTC().Format(time.RFC3339),
		Description: tx.Description,
	}
}
