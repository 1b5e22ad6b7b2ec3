package http

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	ledger "citypay/internal/ledger/domain"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// TransactionView is the wire form of a transaction.
type TransactionView struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	PaymentType     string `json:"paymentType"`
	ServiceType     string `json:"serviceType"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	CryptoNetwork   string `json:"cryptoNetwork,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Timestamp       string `json:"timestamp"`
	Description     string `json:"description,omitempty"`
}

// BalanceView is the wire form of an account.
type BalanceView struct {
	UserID        string `json:"userId"`
	FiatBalance   string `json:"fiatBalance"`
	CryptoBalance string `json:"cryptoBalance"`
}

func toTransactionView(tx *ledger.Transaction) TransactionView {
	return TransactionView{
		ID:              tx.ID,
		UserID:          tx.UserID,
		PaymentType:     string(tx.PaymentType),
		ServiceType:     string(tx.ServiceType),
		Amount:          tx.AmountString(),
		Status:          string(tx.Status),
		CryptoNetwork:   tx.CryptoNetwork,
		TransactionHash: tx.TransactionHash,
		Timestamp:       tx.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Description:     tx.Description,
	}
}

func toTransactionViews(list []ledger.Transaction) []TransactionView {
	out := make([]TransactionView, 0, len(list))
	for i := range list {
		out = append(out, toTransactionView(&list[i]))
	}
	return out
}

func toBalanceView(account *ledger.Account) BalanceView {
	return BalanceView{
		UserID:        account.UserID,
		FiatBalance:   account.FiatBalance.StringFixed(ledger.FiatScale),
		CryptoBalance: formatCrypto(account.CryptoBalance),
	}
}

func formatCrypto(value decimal.Decimal) string {
	return value.StringFixed(ledger.CryptoScale)
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}
