/**
 * @description
 * This file contains the HTTP handlers for the ledger transaction CRUD surface under
 * /api/transactions. Handlers parse the request, call the ledger service and map its
 * errors onto status codes: unknown ids are 404 here, unlike the status service which
 * treats them as a silent no-op.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: For URL parameters.
 * - internal/app, internal/store: For service logic and sentinel errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/coinpay/transaction-service/internal/app"
	"github.com/coinpay/transaction-service/internal/store"
)

const maxRequestBodyBytes = 1 << 20

// LedgerHandlers holds the ledger service used by the CRUD handlers.
type LedgerHandlers struct {
	service *app.LedgerService
}

func NewLedgerHandlers(service *app.LedgerService) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// ListTransactionsHandler handles GET /api/transactions.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

// GetTransactionHandler handles GET /api/transactions/{id}.
func (h *LedgerHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	tx, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ListTransactionsByStatusHandler handles GET /api/transactions/status/{status}.
func (h *LedgerHandlers) ListTransactionsByStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")
	transactions, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, "list_by_status", err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

// CreateTransactionHandler handles POST /api/transactions.
func (h *LedgerHandlers) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var input app.LedgerTransactionInput
	if !decodeJSONBody(w, r, &input) {
		return
	}
	tx, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, "create", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/transactions/%d", tx.ID))
	writeJSON(w, http.StatusCreated, tx)
}

// UpdateTransactionHandler handles PUT /api/transactions/{id}.
func (h *LedgerHandlers) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var input app.LedgerTransactionInput
	if !decodeJSONBody(w, r, &input) {
		return
	}
	tx, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.writeServiceError(w, r, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// UpdateTransactionStatusHandler handles PATCH /api/transactions/{id}/status. The new
// status comes from the ?status= query parameter or a {"status": ...} body.
func (h *LedgerHandlers) UpdateTransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" && r.ContentLength != 0 {
		var body struct {
			Status string `json:"status"`
		}
		if !decodeJSONBody(w, r, &body) {
			return
		}
		status = strings.TrimSpace(body.Status)
	}
	if status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	tx, err := h.service.UpdateStatus(r.Context(), id, status)
	if err != nil {
		h.writeServiceError(w, r, "update_status", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransactionHandler handles DELETE /api/transactions/{id}.
func (h *LedgerHandlers) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, app.ErrInvalidLedgerTransaction):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api endpoint=ledger op=%s correlation_id=%s err=%v", op, CorrelationIDFromContext(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseIDParam reads the {id} URL parameter and answers 400 when it is not a positive integer.
func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return 0, false
	}
	return id, true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
