package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/coinpay/transaction-service/internal/app"
	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/internal/store"
)

const testJWTSecret = "test-secret-key-with-enough-length-0123456789"

type ledgerStoreStub struct {
	store.LedgerRepository

	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Transaction
}

func newLedgerStoreStub() *ledgerStoreStub {
	return &ledgerStoreStub{rows: map[int64]domain.Transaction{}}
}

func (s *ledgerStoreStub) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.Transaction, 0, len(s.rows))
	for id := int64(1); id <= s.nextID; id++ {
		if tx, ok := s.rows[id]; ok {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *ledgerStoreStub) FindTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.rows[id]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return &tx, nil
}

func (s *ledgerStoreStub) FindTransactionsByStatus(ctx context.Context, status string) ([]domain.Transaction, error) {
	all, _ := s.ListTransactions(ctx)
	result := make([]domain.Transaction, 0)
	for _, tx := range all {
		if strings.EqualFold(tx.Status, status) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *ledgerStoreStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx.ID = s.nextID
	s.rows[tx.ID] = *tx
	return nil
}

func (s *ledgerStoreStub) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[tx.ID]; !ok {
		return store.ErrTransactionNotFound
	}
	s.rows[tx.ID] = *tx
	return nil
}

func (s *ledgerStoreStub) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return store.ErrTransactionNotFound
	}
	delete(s.rows, id)
	return nil
}

type chainStoreStub struct {
	store.ChainRepository

	txs     map[int64]*domain.BlockchainTransaction
	wallets map[string]*domain.Wallet
	writes  int
}

func (s *chainStoreStub) FindChainTransactionByID(ctx context.Context, id int64) (*domain.BlockchainTransaction, error) {
	tx, ok := s.txs[id]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (s *chainStoreStub) FindChainTransactionWithWallet(ctx context.Context, id int64) (*domain.BlockchainTransaction, error) {
	return s.FindChainTransactionByID(ctx, id)
}

func (s *chainStoreStub) UpdateChainTransactionStatus(ctx context.Context, id int64, status domain.ChainStatus, txHash *string) error {
	s.writes++
	s.txs[id].Status = status
	return nil
}

func (s *chainStoreStub) UpdateChainTransactionReceipt(ctx context.Context, id int64, receipt domain.Receipt) error {
	s.writes++
	tx := s.txs[id]
	block := receipt.BlockNumber
	tx.BlockNumber = &block
	tx.TransactionHash = &receipt.TxHash
	tx.Status = domain.ChainStatusCompleted
	return nil
}

func (s *chainStoreStub) MarkChainTransactionFailed(ctx context.Context, id int64, errorMessage string) error {
	s.writes++
	s.txs[id].Status = domain.ChainStatusFailed
	s.txs[id].ErrorMessage = &errorMessage
	return nil
}

func (s *chainStoreStub) ListChainTransactionHistory(ctx context.Context, opts domain.TransactionHistoryOptions) ([]domain.BlockchainTransaction, int, error) {
	result := make([]domain.BlockchainTransaction, 0)
	for _, tx := range s.txs {
		if tx.WalletID == opts.WalletID {
			result = append(result, *tx)
		}
	}
	return result, len(result), nil
}

func (s *chainStoreStub) FindWalletByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	wallet, ok := s.wallets[strings.ToLower(address)]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	return wallet, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]app.CachedBalance
}

func (c *memoryCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string) (*app.CachedBalance, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value app.CachedBalance, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

const (
	walletAddress = "0x1111111111111111111111111111111111111111"
	peerAddress   = "0x2222222222222222222222222222222222222222"
)

type testServer struct {
	handler http.Handler
	ledger  *ledgerStoreStub
	chain   *chainStoreStub
	cache   *memoryCache
}

func newTestServer(t *testing.T, secret string, checks map[string]HealthCheck) *testServer {
	t.Helper()
	ledger := newLedgerStoreStub()
	chain := &chainStoreStub{
		txs: map[int64]*domain.BlockchainTransaction{
			1: {ID: 1, WalletID: 10, FromAddress: walletAddress, ToAddress: peerAddress, Status: domain.ChainStatusPending, Amount: decimal.NewFromInt(5)},
		},
		wallets: map[string]*domain.Wallet{
			walletAddress: {ID: 10, Address: walletAddress, Balance: decimal.RequireFromString("99.5"), BalanceCurrency: "USDC"},
		},
	}
	cache := &memoryCache{entries: map[string]app.CachedBalance{}}
	metrics := NewMetrics()

	status := app.NewStatusService(chain, cache, nil, metrics)
	query := app.NewChainQueryService(chain, cache, nil, time.Minute)

	handler := TransactionRoutes(RouterConfig{
		Ledger:  NewLedgerHandlers(app.NewLedgerService(ledger)),
		Chain:   NewChainHandlers(status, query, metrics),
		Health:  NewHealthHandlers(checks),
		Metrics: metrics,
		JWT:     JWTConfig{Secret: secret, Issuer: "CoinPayTestIssuer"},
	})
	return &testServer{handler: handler, ledger: ledger, chain: chain, cache: cache}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authHeader(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + signToken(t, jwt.MapClaims{
		"sub": "user-42",
		"iss": "CoinPayTestIssuer",
		"exp": time.Now().Add(time.Hour).Unix(),
	})}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestLedgerRoutes_CreateThenGetRoundTrip(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)

	payload := map[string]interface{}{
		"amount":        "150.25",
		"currency":      "USD",
		"type":          "Transfer",
		"status":        "Pending",
		"sender_name":   "Alice",
		"receiver_name": "Bob",
		"description":   "rent",
	}
	created := srv.do(t, http.MethodPost, "/api/transactions", payload, nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", created.Code, created.Body.String())
	}
	var createdTx domain.Transaction
	decodeBody(t, created, &createdTx)
	if loc := created.Header().Get("Location"); loc != "/api/transactions/1" {
		t.Fatalf("unexpected Location header %q", loc)
	}
	if createdTx.TransactionID == nil || !regexp.MustCompile(`^TXN\d+$`).MatchString(*createdTx.TransactionID) {
		t.Fatalf("expected generated TXN id, got %v", createdTx.TransactionID)
	}
	if time.Since(createdTx.CreatedAt) > time.Minute {
		t.Fatalf("expected creation time near now, got %s", createdTx.CreatedAt)
	}

	fetched := srv.do(t, http.MethodGet, "/api/transactions/1", nil, nil)
	if fetched.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", fetched.Code)
	}
	var fetchedTx domain.Transaction
	decodeBody(t, fetched, &fetchedTx)

	if !fetchedTx.Amount.Equal(decimal.RequireFromString("150.25")) ||
		fetchedTx.Currency != "USD" ||
		fetchedTx.Type != "Transfer" ||
		fetchedTx.Status != "Pending" ||
		*fetchedTx.SenderName != "Alice" ||
		*fetchedTx.ReceiverName != "Bob" ||
		*fetchedTx.Description != "rent" ||
		*fetchedTx.TransactionID != *createdTx.TransactionID {
		t.Fatalf("round trip mismatch: created %+v fetched %+v", createdTx, fetchedTx)
	}
}

func TestLedgerRoutes_PutStampsCompletionOnce(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)
	srv.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{"amount": 10}, nil)

	update := map[string]interface{}{"amount": 10, "currency": "USD", "type": "Payment", "status": "Completed"}
	first := srv.do(t, http.MethodPut, "/api/transactions/1", update, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	var firstTx domain.Transaction
	decodeBody(t, first, &firstTx)
	if firstTx.CompletedAt == nil {
		t.Fatal("expected completion timestamp after first Completed update")
	}

	second := srv.do(t, http.MethodPut, "/api/transactions/1", update, nil)
	var secondTx domain.Transaction
	decodeBody(t, second, &secondTx)
	if secondTx.CompletedAt == nil || !secondTx.CompletedAt.Equal(*firstTx.CompletedAt) {
		t.Fatalf("expected completion timestamp to be preserved, first %v second %v", firstTx.CompletedAt, secondTx.CompletedAt)
	}
}

func TestLedgerRoutes_StatusLookupIsCaseInsensitive(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)
	for _, status := range []string{"Pending", "Failed", "pending"} {
		srv.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{"amount": 1, "status": status}, nil)
	}

	var lower, canonical []domain.Transaction
	decodeBody(t, srv.do(t, http.MethodGet, "/api/transactions/status/pending", nil, nil), &lower)
	decodeBody(t, srv.do(t, http.MethodGet, "/api/transactions/status/Pending", nil, nil), &canonical)
	if len(lower) != 2 || len(canonical) != 2 {
		t.Fatalf("expected 2 results for both casings, got %d and %d", len(lower), len(canonical))
	}
	for i := range lower {
		if lower[i].ID != canonical[i].ID {
			t.Fatal("expected identical result sets")
		}
	}
}

func TestLedgerRoutes_PatchStatus(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)
	srv.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{"amount": 1}, nil)

	rec := srv.do(t, http.MethodPatch, "/api/transactions/1/status?status=completed", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tx domain.Transaction
	decodeBody(t, rec, &tx)
	if tx.Status != "Completed" || tx.CompletedAt == nil {
		t.Fatalf("expected Completed with timestamp, got %+v", tx)
	}

	rec = srv.do(t, http.MethodPatch, "/api/transactions/1/status", map[string]string{"status": "Failed"}, nil)
	decodeBody(t, rec, &tx)
	if tx.Status != "Failed" {
		t.Fatalf("expected status from body, got %s", tx.Status)
	}

	if rec := srv.do(t, http.MethodPatch, "/api/transactions/1/status?status=archived", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodPatch, "/api/transactions/1/status", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing status, got %d", rec.Code)
	}
}

func TestLedgerRoutes_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{name: "non integer id", method: http.MethodGet, path: "/api/transactions/abc", want: http.StatusBadRequest},
		{name: "unknown id get", method: http.MethodGet, path: "/api/transactions/77", want: http.StatusNotFound},
		{name: "unknown id put", method: http.MethodPut, path: "/api/transactions/77", body: map[string]interface{}{"amount": 1}, want: http.StatusNotFound},
		{name: "unknown id patch", method: http.MethodPatch, path: "/api/transactions/77/status?status=Failed", want: http.StatusNotFound},
		{name: "unknown id delete", method: http.MethodDelete, path: "/api/transactions/77", want: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPost, path: "/api/transactions", body: "{not json", want: http.StatusBadRequest},
		{name: "invalid type", method: http.MethodPost, path: "/api/transactions", body: map[string]interface{}{"amount": 1, "type": "Chargeback"}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := srv.do(t, tt.method, tt.path, tt.body, nil); rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLedgerRoutes_Delete(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)
	srv.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{"amount": 1}, nil)

	if rec := srv.do(t, http.MethodDelete, "/api/transactions/1", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/api/transactions/1", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestChainRoutes_Authentication(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		srv := newTestServer(t, testJWTSecret, nil)
		if rec := srv.do(t, http.MethodGet, "/api/transaction/1/status", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		srv := newTestServer(t, testJWTSecret, nil)
		token := signToken(t, jwt.MapClaims{"sub": "user-1", "iss": "someone-else", "exp": time.Now().Add(time.Hour).Unix()})
		rec := srv.do(t, http.MethodGet, "/api/transaction/1/status", nil, map[string]string{"Authorization": "Bearer " + token})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		srv := newTestServer(t, testJWTSecret, nil)
		token := signToken(t, jwt.MapClaims{"sub": "user-1", "iss": "CoinPayTestIssuer", "exp": time.Now().Add(-time.Hour).Unix()})
		rec := srv.do(t, http.MethodGet, "/api/transaction/1/status", nil, map[string]string{"Authorization": "Bearer " + token})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, "", nil)
		if rec := srv.do(t, http.MethodGet, "/api/transaction/1/status", nil, authHeader(t)); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		srv := newTestServer(t, testJWTSecret, nil)
		if rec := srv.do(t, http.MethodGet, "/api/transaction/1/status", nil, authHeader(t)); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestChainRoutes_StatusUpdateOutcomes(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)
	srv.cache.entries[app.BalanceCacheKey(walletAddress)] = app.CachedBalance{Balance: decimal.NewFromInt(1)}
	srv.cache.entries[app.BalanceCacheKey(peerAddress)] = app.CachedBalance{Balance: decimal.NewFromInt(2)}

	rec := srv.do(t, http.MethodPut, "/api/transaction/1/status", map[string]string{"status": "processing"}, authHeader(t))
	var resp outcomeResponse
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Outcome != "updated" {
		t.Fatalf("expected updated outcome, got %d %+v", rec.Code, resp)
	}
	if len(srv.cache.entries) != 0 {
		t.Fatalf("expected both balance entries invalidated, got %v", srv.cache.entries)
	}

	rec = srv.do(t, http.MethodPut, "/api/transaction/999/status", map[string]string{"status": "Completed"}, authHeader(t))
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Outcome != "not_found" {
		t.Fatalf("expected not_found outcome with 200, got %d %+v", rec.Code, resp)
	}

	if rec := srv.do(t, http.MethodPut, "/api/transaction/1/status", map[string]string{"status": "mined"}, authHeader(t)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestChainRoutes_ReceiptAndFail(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)
	hash := "0x" + strings.Repeat("0f", 32)

	rec := srv.do(t, http.MethodPost, "/api/transaction/1/receipt", map[string]interface{}{"tx_hash": "0x12", "block_number": 1, "gas_used": 1}, authHeader(t))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short hash, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/api/transaction/1/receipt", map[string]interface{}{"tx_hash": hash, "gas_used": 1}, authHeader(t))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing block number, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/api/transaction/1/receipt", map[string]interface{}{"tx_hash": hash, "block_number": 1, "gas_used": 1, "confirmations": -2}, authHeader(t))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative confirmations, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodPost, "/api/transaction/1/receipt", map[string]interface{}{"tx_hash": hash, "block_number": 500, "gas_used": "21000"}, authHeader(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if srv.chain.txs[1].Status != domain.ChainStatusCompleted || *srv.chain.txs[1].BlockNumber != 500 {
		t.Fatalf("expected receipt applied, got %+v", srv.chain.txs[1])
	}

	if rec := srv.do(t, http.MethodPost, "/api/transaction/1/fail", map[string]string{}, authHeader(t)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty error message, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/api/transaction/1/fail", map[string]string{"error_message": "bundler rejected"}, authHeader(t))
	if rec.Code != http.StatusOK || srv.chain.txs[1].Status != domain.ChainStatusFailed {
		t.Fatalf("expected failure applied, got %d %+v", rec.Code, srv.chain.txs[1])
	}
}

func TestChainRoutes_Balance(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)

	if rec := srv.do(t, http.MethodGet, "/api/transaction/balance/0x123", nil, authHeader(t)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed address, got %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/api/transaction/balance/"+peerAddress, nil, authHeader(t)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown wallet, got %d", rec.Code)
	}

	var first, second balanceResponse
	decodeBody(t, srv.do(t, http.MethodGet, "/api/transaction/balance/"+walletAddress, nil, authHeader(t)), &first)
	decodeBody(t, srv.do(t, http.MethodGet, "/api/transaction/balance/"+walletAddress, nil, authHeader(t)), &second)
	if first.Cached || !second.Cached {
		t.Fatalf("expected miss then hit, got %v then %v", first.Cached, second.Cached)
	}
	if !second.Balance.Equal(decimal.RequireFromString("99.5")) || second.Currency != "USDC" {
		t.Fatalf("unexpected balance %+v", second)
	}
}

func TestChainRoutes_HistoryValidation(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: http.StatusBadRequest},
		{query: "wallet_id=10&page=0", want: http.StatusBadRequest},
		{query: "wallet_id=10&page_size=101", want: http.StatusBadRequest},
		{query: "wallet_id=10&status=mined", want: http.StatusBadRequest},
		{query: "wallet_id=10&status=pending&page=1&page_size=5", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, "/api/transaction/history?"+tt.query, nil, authHeader(t))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	var page app.HistoryPage
	decodeBody(t, srv.do(t, http.MethodGet, "/api/transaction/history?wallet_id=10", nil, authHeader(t)), &page)
	if page.TotalCount != 1 || page.PageSize != app.DefaultHistoryPageSize {
		t.Fatalf("unexpected history page %+v", page)
	}
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	if rec := srv.do(t, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK || rec.Body.String() != "healthy" {
		t.Fatalf("unexpected liveness response %d %q", rec.Code, rec.Body.String())
	}
	if rec := srv.do(t, http.MethodGet, "/health/ready", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}

	failing := newTestServer(t, testJWTSecret, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("dial tcp: connection refused") },
	})
	rec := failing.do(t, http.MethodGet, "/health/ready", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "not_ready" || body.Checks["postgres"] != "ok" {
		t.Fatalf("unexpected readiness body %+v", body)
	}
}

func TestCorrelationIDPropagation(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)

	rec := srv.do(t, http.MethodGet, "/health", nil, map[string]string{CorrelationIDHeader: "req-123"})
	if got := rec.Header().Get(CorrelationIDHeader); got != "req-123" {
		t.Fatalf("expected echoed correlation id, got %q", got)
	}

	rec = srv.do(t, http.MethodGet, "/health", nil, nil)
	if got := rec.Header().Get(CorrelationIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid correlation id, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testJWTSecret, nil)
	srv.do(t, http.MethodGet, "/api/transactions", nil, nil)

	rec := srv.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "http_requests_total{") || !strings.Contains(body, `route="/api/transactions`) {
		t.Fatalf("expected request counter for ledger list route, got:\n%s", body)
	}
}
