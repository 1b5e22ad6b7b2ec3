package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"citypay/internal/audit"
	"citypay/internal/auth"
	ledgerapp "citypay/internal/ledger/application"
	ledger "citypay/internal/ledger/domain"
	"citypay/internal/ledger/infrastructure/memory"
	"citypay/internal/notify"
	"citypay/internal/observability/metrics"
	paymentsapp "citypay/internal/payments/application"
	"citypay/internal/security"
	"citypay/internal/settlement"
)

var testSecret = []byte("handler-secret")

type server struct {
	handler http.Handler
	store   *memory.Store
	sink    *audit.MemorySink
	metrics *metrics.Register
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memory.NewStore()
	sink := audit.NewMemorySink()
	recorder := audit.NewRecorder(sink, logger)
	pipeline, err := security.NewPipeline(security.WithLogger(logger))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	register, err := metrics.New(prometheus.NewRegistry(), time.Now())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	processor, err := paymentsapp.NewProcessor(store, pipeline, settlement.NewRegistry(logger), notify.NewFanout(logger),
		paymentsapp.WithMetrics(register),
		paymentsapp.WithAudit(recorder),
		paymentsapp.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	accounts, err := ledgerapp.NewAccountService(store, recorder, ledgerapp.WithLogger(logger))
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	handler, err := NewHandler(processor, accounts, store,
		WithMetrics(register),
		WithAuditLog(sink),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	mux := http.NewServeMux()
	handler.Register(mux)
	mw := auth.NewMiddleware(testSecret, auth.NewDefaultPolicy(nil))
	mw.Failures = recorder
	return &server{handler: audit.Middleware(mw.Wrap(mux)), store: store, sink: sink, metrics: register}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	claims := auth.Claims{
		Name: subject,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func (s *server) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.1.2.3:5555"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func (s *server) fund(t *testing.T, userID, fiat, crypto string) {
	t.Helper()
	account, _ := ledger.NewAccount(userID, time.Now())
	account.FiatBalance = decimal.RequireFromString(fiat)
	account.CryptoBalance = decimal.RequireFromString(crypto)
	if err := s.store.SaveAccount(context.Background(), account); err != nil {
		t.Fatalf("save account: %v", err)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, resp.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func TestPayFiat_Completed(t *testing.T) {
	s := newServer(t)
	s.fund(t, "alice", "100.00", "0")

	resp := s.do(t, http.MethodPost, "/api/pay/fiat", token(t, "alice", "user"), map[string]any{
		"amount":      "30.00",
		"serviceType": "parking",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var tx TransactionView
	env := decode(t, resp, &tx)
	if !env.Success || tx.Status != "COMPLETED" || tx.Amount != "30.00" || tx.ServiceType != "PARKING" {
		t.Fatalf("unexpected response: %+v %+v", env, tx)
	}

	resp = s.do(t, http.MethodGet, "/api/account/balance", token(t, "alice", "user"), nil)
	var balance BalanceView
	decode(t, resp, &balance)
	if balance.FiatBalance != "70.00" {
		t.Fatalf("expected 70.00, got %s", balance.FiatBalance)
	}

	var ip string
	for _, event := range s.sink.Events() {
		if event.Action == "PAYMENT_PROCESSED" {
			ip = event.IP
		}
	}
	if ip != "10.1.2.3" {
		t.Fatalf("expected client ip on audit entry, got %q", ip)
	}
}

func TestPayFiat_InsufficientReturnsFailedTransaction(t *testing.T) {
	s := newServer(t)
	s.fund(t, "alice", "5.00", "0")

	resp := s.do(t, http.MethodPost, "/api/pay/fiat", token(t, "alice", "user"), map[string]any{"amount": 25})
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.Code)
	}
	var tx TransactionView
	env := decode(t, resp, &tx)
	if env.Success || tx.Status != "FAILED" || tx.ID == "" {
		t.Fatalf("expected FAILED transaction in body, got %+v", tx)
	}
}

func TestPay_ErrorMapping(t *testing.T) {
	s := newServer(t)
	s.fund(t, "alice", "20000.00", "1")
	alice := token(t, "alice", "user")

	cases := []struct {
		name string
		path string
		auth string
		body map[string]any
		want int
	}{
		{name: "above ceiling", path: "/api/pay/fiat", auth: alice, body: map[string]any{"amount": "15000.00"}, want: http.StatusForbidden},
		{name: "zero amount", path: "/api/pay/fiat", auth: alice, body: map[string]any{"amount": "0.00"}, want: http.StatusForbidden},
		{name: "crypto without network", path: "/api/pay/crypto", auth: alice, body: map[string]any{"amount": "0.5"}, want: http.StatusBadRequest},
		{name: "fiat sub-cent", path: "/api/pay/fiat", auth: alice, body: map[string]any{"amount": "10.005"}, want: http.StatusBadRequest},
		{name: "crypto nine decimals", path: "/api/pay/crypto", auth: alice, body: map[string]any{"amount": "0.123456789", "cryptoNetwork": "ETH"}, want: http.StatusBadRequest},
		{name: "missing amount", path: "/api/pay/fiat", auth: alice, body: map[string]any{}, want: http.StatusBadRequest},
		{name: "unknown service", path: "/api/pay/fiat", auth: alice, body: map[string]any{"amount": "1", "serviceType": "casino"}, want: http.StatusBadRequest},
		{name: "no account", path: "/api/pay/fiat", auth: token(t, "bob", "user"), body: map[string]any{"amount": "1"}, want: http.StatusNotFound},
		{name: "no token", path: "/api/pay/fiat", body: map[string]any{"amount": "1"}, want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, tc.path, tc.auth, tc.body)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}

	list, _ := s.store.ListTransactionsByUser(context.Background(), "alice")
	if len(list) != 0 {
		t.Fatalf("rejected payments must not write transactions, got %d", len(list))
	}
}

func TestPayCrypto_Completed(t *testing.T) {
	s := newServer(t)
	s.fund(t, "alice", "0", "1.5")

	resp := s.do(t, http.MethodPost, "/api/pay/crypto", token(t, "alice", "user"), map[string]any{
		"amount":        "0.5",
		"cryptoNetwork": "BTC",
		"serviceType":   "UTILITIES",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var tx TransactionView
	decode(t, resp, &tx)
	if tx.CryptoNetwork != "BTC" || tx.TransactionHash == "" || tx.Amount != "0.5" {
		t.Fatalf("unexpected crypto transaction %+v", tx)
	}
}

func TestDeposit_AdminOnly(t *testing.T) {
	s := newServer(t)
	body := map[string]any{"userId": "carol", "currency": "crypto", "amount": "0.25"}

	if resp := s.do(t, http.MethodPost, "/api/account/deposit", token(t, "carol", "user"), body); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", resp.Code)
	}
	resp := s.do(t, http.MethodPost, "/api/account/deposit", token(t, "root", "admin"), body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var balance BalanceView
	decode(t, resp, &balance)
	if balance.CryptoBalance != "0.25000000" || balance.FiatBalance != "0.00" {
		t.Fatalf("unexpected balance %+v", balance)
	}

	bad := s.do(t, http.MethodPost, "/api/account/deposit", token(t, "root", "admin"), map[string]any{"userId": "carol", "amount": "-1"})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative deposit, got %d", bad.Code)
	}
	fine := s.do(t, http.MethodPost, "/api/account/deposit", token(t, "root", "admin"), map[string]any{"userId": "carol", "amount": "1.001"})
	if fine.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for sub-cent deposit, got %d", fine.Code)
	}
}

func TestTransactions_OwnerOrAdmin(t *testing.T) {
	s := newServer(t)
	s.fund(t, "alice", "50", "0")
	resp := s.do(t, http.MethodPost, "/api/pay/fiat", token(t, "alice", "user"), map[string]any{"amount": "10"})
	var tx TransactionView
	decode(t, resp, &tx)

	if resp := s.do(t, http.MethodGet, "/api/transactions/"+tx.ID, token(t, "mallory", "user"), nil); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", resp.Code)
	}
	if resp := s.do(t, http.MethodGet, "/api/transactions/"+tx.ID, token(t, "root", "admin"), nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.Code)
	}
	if resp := s.do(t, http.MethodGet, "/api/transactions/missing", token(t, "alice", "user"), nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := s.do(t, http.MethodGet, "/api/transactions?userId=alice", token(t, "mallory", "user"), nil); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 listing other user, got %d", resp.Code)
	}

	resp = s.do(t, http.MethodGet, "/api/transactions", token(t, "alice", "user"), nil)
	var list []TransactionView
	decode(t, resp, &list)
	if len(list) != 1 || list[0].ID != tx.ID {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestExportCSV(t *testing.T) {
	s := newServer(t)
	s.fund(t, "alice", "50", "0")
	s.do(t, http.MethodPost, "/api/pay/fiat", token(t, "alice", "user"), map[string]any{"amount": "12.50", "serviceType": "TRANSPORTATION"})

	resp := s.do(t, http.MethodGet, "/api/transactions/export.csv", token(t, "alice", "user"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %s", ct)
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[1][3] != "TRANSPORTATION" || rows[1][4] != "12.50" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestExportPDFAndXLSX(t *testing.T) {
	stmt := Statement{
		UserID:      "alice",
		GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Transactions: []ledger.Transaction{{
			ID: "tx-1", UserID: "alice", PaymentType: ledger.PaymentTypeFiat, ServiceType: ledger.ServiceParking,
			Amount: decimal.RequireFromString("30"), Status: ledger.StatusCompleted, Timestamp: time.Now(),
		}},
	}
	pdf, err := BuildStatementPDF(stmt)
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}
	xlsx, err := BuildStatementXLSX(stmt)
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	if !bytes.HasPrefix(xlsx, []byte("PK")) {
		t.Fatalf("expected zip container")
	}
	fiat, crypto := stmt.Totals()
	if !fiat.Equal(decimal.NewFromInt(30)) || !crypto.IsZero() {
		t.Fatalf("unexpected totals %s %s", fiat, crypto)
	}
}

func TestMetricsAndLogs_Admin(t *testing.T) {
	s := newServer(t)
	s.fund(t, "alice", "100", "0")
	s.do(t, http.MethodPost, "/api/pay/fiat", token(t, "alice", "user"), map[string]any{"amount": "30"})

	if resp := s.do(t, http.MethodGet, "/api/metrics", token(t, "alice", "user"), nil); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	resp := s.do(t, http.MethodGet, "/api/metrics", token(t, "root", "admin"), nil)
	var snap metrics.Snapshot
	decode(t, resp, &snap)
	if snap.TotalTransactions != 1 || snap.TotalRevenue != 30 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	resp = s.do(t, http.MethodGet, "/api/metrics/logs?eventType=PAYMENT", token(t, "root", "admin"), nil)
	var events []audit.Event
	decode(t, resp, &events)
	if len(events) != 1 || events[0].Action != "PAYMENT_PROCESSED" {
		t.Fatalf("unexpected events %+v", events)
	}
	if resp := s.do(t, http.MethodGet, "/api/metrics/logs?eventType=BOGUS", token(t, "root", "admin"), nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
