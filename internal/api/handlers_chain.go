package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/coinpay/transaction-service/internal/app"
	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/pkg/chainclient"
)

// ChainHandlers serves the blockchain transaction routes under /api/transaction.
type ChainHandlers struct {
	status  *app.StatusService
	query   *app.ChainQueryService
	metrics *Metrics
}

func NewChainHandlers(status *app.StatusService, query *app.ChainQueryService, metrics *Metrics) *ChainHandlers {
	return &ChainHandlers{status: status, query: query, metrics: metrics}
}

type outcomeResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Outcome       string `json:"outcome"`
}

type updateStatusRequest struct {
	Status string  `json:"status"`
	TxHash *string `json:"tx_hash"`
}

type receiptRequest struct {
	TxHash        string          `json:"tx_hash"`
	BlockNumber   *int64          `json:"block_number"`
	GasUsed       decimal.Decimal `json:"gas_used"`
	Confirmations int             `json:"confirmations"`
}

type failRequest struct {
	ErrorMessage string `json:"error_message"`
}

type balanceResponse struct {
	Address     string          `json:"address"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	LastUpdated string          `json:"last_updated"`
	Cached      bool            `json:"cached"`
}

// GetTransactionStatusHandler handles GET /api/transaction/{id}/status.
func (h *ChainHandlers) GetTransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	tx, err := h.query.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeQueryError(w, r, "get_status", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// UpdateTransactionStatusHandler handles PUT /api/transaction/{id}/status.
func (h *ChainHandlers) UpdateTransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	status, err := domain.ParseChainStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TxHash != nil && strings.TrimSpace(*req.TxHash) != "" {
		if _, err := chainclient.ParseTxHash(*req.TxHash); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	outcome, err := h.status.UpdateStatus(r.Context(), id, status, req.TxHash)
	h.writeOutcome(w, r, "update_status", id, outcome, err)
}

// ApplyReceiptHandler handles POST /api/transaction/{id}/receipt.
func (h *ChainHandlers) ApplyReceiptHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req receiptRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	hash, err := chainclient.ParseTxHash(req.TxHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BlockNumber == nil || *req.BlockNumber < 0 {
		writeError(w, http.StatusBadRequest, "block_number must be a non-negative integer")
		return
	}
	if req.GasUsed.IsNegative() || req.Confirmations < 0 {
		writeError(w, http.StatusBadRequest, "gas_used and confirmations must not be negative")
		return
	}

	outcome, err := h.status.UpdateWithReceipt(r.Context(), id, domain.Receipt{
		TxHash:        hash.Hex(),
		BlockNumber:   *req.BlockNumber,
		GasUsed:       req.GasUsed,
		Confirmations: req.Confirmations,
	})
	h.writeOutcome(w, r, "apply_receipt", id, outcome, err)
}

// MarkFailedHandler handles POST /api/transaction/{id}/fail.
func (h *ChainHandlers) MarkFailedHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req failRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	message := strings.TrimSpace(req.ErrorMessage)
	if message == "" {
		writeError(w, http.StatusBadRequest, "error_message is required")
		return
	}

	outcome, err := h.status.MarkAsFailed(r.Context(), id, message)
	h.writeOutcome(w, r, "mark_failed", id, outcome, err)
}

// HistoryHandler handles GET /api/transaction/history.
func (h *ChainHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	walletID, err := strconv.ParseInt(query.Get("wallet_id"), 10, 64)
	if err != nil || walletID <= 0 {
		writeError(w, http.StatusBadRequest, "wallet_id must be a positive integer")
		return
	}
	opts := domain.TransactionHistoryOptions{WalletID: walletID, Page: 1, PageSize: app.DefaultHistoryPageSize}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := domain.ParseChainStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Status = &status
	}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be at least 1")
			return
		}
		opts.Page = page
	}
	if raw := query.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > app.MaxHistoryPageSize {
			writeError(w, http.StatusBadRequest, "page_size must be between 1 and 100")
			return
		}
		opts.PageSize = size
	}

	page, err := h.query.History(r.Context(), opts)
	if err != nil {
		h.writeQueryError(w, r, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// BalanceHandler handles GET /api/transaction/balance/{address}.
func (h *ChainHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	if !chainclient.IsAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid address format")
		return
	}

	balance, cached, err := h.query.Balance(r.Context(), address)
	if err != nil {
		h.writeQueryError(w, r, "balance", err)
		return
	}
	h.metrics.BalanceLookup(cached)
	writeJSON(w, http.StatusOK, balanceResponse{
		Address:     balance.Address,
		Balance:     balance.Balance,
		Currency:    balance.Currency,
		LastUpdated: balance.LastUpdated.UTC().Format(time.RFC3339),
		Cached:      cached,
	})
}

// writeOutcome answers 200 for both applied updates and unknown ids; the outcome field
// tells them apart.
func (h *ChainHandlers) writeOutcome(w http.ResponseWriter, r *http.Request, op string, id int64, outcome app.UpdateOutcome, err error) {
	if err != nil {
		log.Printf("level=error component=api endpoint=chain op=%s transaction_id=%d correlation_id=%s err=%v", op, id, CorrelationIDFromContext(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{TransactionID: id, Outcome: outcome.String()})
}

func (h *ChainHandlers) writeQueryError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if app.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Printf("level=error component=api endpoint=chain op=%s correlation_id=%s err=%v", op, CorrelationIDFromContext(r.Context()), err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
