package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"citypay/internal/audit"
	"citypay/internal/auth"
	ledgerapp "citypay/internal/ledger/application"
	ledger "citypay/internal/ledger/domain"
	"citypay/internal/observability/metrics"
	paymentsapp "citypay/internal/payments/application"
)

const maxBodyBytes = 1 << 20

// Payer executes payments for an authenticated caller.
type Payer interface {
	Pay(ctx context.Context, user *auth.Identity, req paymentsapp.PaymentRequest) (*ledger.Transaction, error)
}

// TransactionReader reads persisted transactions.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]ledger.Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status ledger.Status) ([]ledger.Transaction, error)
}

// Handler provides payment, account and reporting endpoints.
type Handler struct {
	payer        Payer
	accounts     *ledgerapp.AccountService
	transactions TransactionReader
	metrics      *metrics.Register
	auditLog     audit.Lister
	logger       logrus.FieldLogger
	now          func() time.Time
}

// Option configures the handler.
type Option func(*Handler)

// WithMetrics exposes the metrics snapshot endpoint.
func WithMetrics(register *metrics.Register) Option {
	return func(h *Handler) {
		h.metrics = register
	}
}

// WithAuditLog exposes the audit log endpoint.
func WithAuditLog(lister audit.Lister) Option {
	return func(h *Handler) {
		h.auditLog = lister
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithNow overrides the clock used for statements.
func WithNow(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(payer Payer, accounts *ledgerapp.AccountService, transactions TransactionReader, opts ...Option) (*Handler, error) {
	if payer == nil {
		return nil, errors.New("payments handler: nil payer")
	}
	if accounts == nil {
		return nil, errors.New("payments handler: nil account service")
	}
	if transactions == nil {
		return nil, errors.New("payments handler: nil transaction reader")
	}
	h := &Handler{
		payer:        payer,
		accounts:     accounts,
		transactions: transactions,
		logger:       logrus.StandardLogger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pay/fiat", h.payFiat)
	mux.HandleFunc("POST /api/pay/crypto", h.payCrypto)
	mux.HandleFunc("GET /api/account/balance", h.balance)
	mux.HandleFunc("POST /api/account/deposit", h.deposit)
	mux.HandleFunc("GET /api/transactions", h.listTransactions)
	mux.HandleFunc("GET /api/transactions/export.csv", h.export(formatCSV))
	mux.HandleFunc("GET /api/transactions/export.pdf", h.export(formatPDF))
	mux.HandleFunc("GET /api/transactions/export.xlsx", h.export(formatXLSX))
	mux.HandleFunc("GET /api/transactions/{id}", h.getTransaction)
	mux.HandleFunc("GET /api/metrics", h.metricsSnapshot)
	mux.HandleFunc("GET /api/metrics/logs", h.auditLogs)
}

type payBody struct {
	Amount        *decimal.Decimal `json:"amount"`
	ServiceType   string           `json:"serviceType"`
	Description   string           `json:"description"`
	CryptoNetwork string           `json:"cryptoNetwork"`
}

func (h *Handler) payFiat(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, ledger.PaymentTypeFiat)
}

func (h *Handler) payCrypto(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, ledger.PaymentTypeCrypto)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request, paymentType ledger.PaymentType) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body payBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount required")
		return
	}
	if !paymentType.Currency().FitsScale(*body.Amount) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("amount allows at most %d decimal places", paymentType.Currency().Scale()))
		return
	}
	serviceType, ok := ledger.ParseServiceType(body.ServiceType)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown service type")
		return
	}
	if paymentType == ledger.PaymentTypeCrypto && strings.TrimSpace(body.CryptoNetwork) == "" {
		writeError(w, http.StatusBadRequest, "cryptoNetwork required")
		return
	}
	network := ""
	if paymentType == ledger.PaymentTypeCrypto {
		network = body.CryptoNetwork
	}

	tx, err := h.payer.Pay(r.Context(), user, paymentsapp.PaymentRequest{
		PaymentType:   paymentType,
		Amount:        body.Amount,
		ServiceType:   serviceType,
		Description:   body.Description,
		CryptoNetwork: network,
	})
	if err != nil {
		h.respondPaymentError(w, user.ID, err)
		return
	}
	writeOK(w, "Payment processed successfully", toTransactionView(tx))
}

func (h *Handler) respondPaymentError(w http.ResponseWriter, userID string, err error) {
	if failed, ok := paymentsapp.FailedTransaction(err); ok {
		writeJSON(w, http.StatusPaymentRequired, Envelope{
			Success: false,
			Message: "Insufficient balance",
			Data:    toTransactionView(failed),
		})
		return
	}
	var secErr *paymentsapp.SecurityError
	switch {
	case errors.As(err, &secErr):
		writeError(w, http.StatusForbidden, "Security check failed: "+secErr.Reason)
	case errors.Is(err, paymentsapp.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, paymentsapp.ErrInvalidPayment), errors.Is(err, paymentsapp.ErrMissingNetwork):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).WithField("user", userID).Error("payment failed")
		writeError(w, http.StatusInternalServerError, "payment failed")
	}
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.accounts.GetOrCreate(r.Context(), user.ID)
	if err != nil {
		h.logger.WithError(err).WithField("user", user.ID).Error("balance lookup failed")
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}
	writeOK(w, "Balance retrieved", toBalanceView(account))
}

type depositBody struct {
	UserID   string           `json:"userId"`
	Currency string           `json:"currency"`
	Amount   *decimal.Decimal `json:"amount"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.IdentityFromContext(r.Context())
	if !ok || !admin.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var body depositBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.UserID) == "" || body.Amount == nil {
		writeError(w, http.StatusBadRequest, "userId and amount required")
		return
	}
	currency := ledger.Currency(strings.ToLower(strings.TrimSpace(body.Currency)))
	if currency == "" {
		currency = ledger.CurrencyFiat
	}
	account, err := h.accounts.Deposit(r.Context(), admin.ID, strings.TrimSpace(body.UserID), currency, *body.Amount)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrInvalidCurrency), errors.Is(err, ledger.ErrNonPositiveAmount), errors.Is(err, ledger.ErrEmptyUserID),
		errors.Is(err, ledger.ErrAmountPrecision):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		h.logger.WithError(err).WithField("user", body.UserID).Error("deposit failed")
		writeError(w, http.StatusInternalServerError, "deposit failed")
		return
	}
	writeOK(w, "Deposit applied", toBalanceView(account))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var (
		list []ledger.Transaction
		err  error
	)
	query := r.URL.Query()
	switch {
	case query.Get("status") != "":
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		list, err = h.transactions.ListTransactionsByStatus(r.Context(), ledger.Status(strings.ToUpper(query.Get("status"))))
	default:
		userID, allowed := resolveSubject(user, query.Get("userId"))
		if !allowed {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		list, err = h.transactions.ListTransactionsByUser(r.Context(), userID)
	}
	if err != nil {
		h.logger.WithError(err).Error("list transactions failed")
		writeError(w, http.StatusInternalServerError, "list transactions failed")
		return
	}
	writeOK(w, "Transactions retrieved", toTransactionViews(list))
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tx, err := h.transactions.GetTransaction(r.Context(), r.PathValue("id"))
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("get transaction failed")
		writeError(w, http.StatusInternalServerError, "get transaction failed")
		return
	}
	if tx.UserID != user.ID && !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeOK(w, "Transaction retrieved", toTransactionView(tx))
}

func (h *Handler) metricsSnapshot(w http.ResponseWriter, r *http.Request) {
	if !auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RoleAdmin) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if h.metrics == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	writeOK(w, "Metrics retrieved", h.metrics.Snapshot())
}

func (h *Handler) auditLogs(w http.ResponseWriter, r *http.Request) {
	if !auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RoleAdmin) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if h.auditLog == nil {
		writeError(w, http.StatusNotFound, "audit log disabled")
		return
	}
	var eventType audit.EventType
	if value := r.URL.Query().Get("eventType"); value != "" {
		parsed, ok := audit.ParseEventType(value)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown eventType")
			return
		}
		eventType = parsed
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	events, err := h.auditLog.List(r.Context(), eventType, limit)
	if err != nil {
		h.logger.WithError(err).Error("audit list failed")
		writeError(w, http.StatusInternalServerError, "audit list failed")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeOK(w, "Audit logs retrieved", events)
}

// resolveSubject picks whose data a request reads. Only admins may read
// another user's records.
func resolveSubject(user *auth.Identity, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == user.ID {
		return user.ID, true
	}
	return requested, user.IsAdmin()
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}
