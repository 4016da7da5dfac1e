/**
 * @description
 * This file defines the ledger-style transaction record exposed by the basic
 * `/api/transactions` CRUD surface. It is a plain payment record (amount, parties,
 * status) that is created by clients and mutated in place by update/patch calls.
 *
 * @notes
 * - Amounts use shopspring/decimal so that values such as 10.10 survive the round
 *   trip through Postgres NUMERIC without float drift.
 * - Status and type values are canonicalized to their capitalized form on input.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger transaction statuses.
const (
	LedgerStatusPending   = "Pending"
	LedgerStatusCompleted = "Completed"
	LedgerStatusFailed    = "Failed"
)

// Ledger transaction types.
const (
	LedgerTypePayment  = "Payment"
	LedgerTypeRefund   = "Refund"
	LedgerTypeTransfer = "Transfer"
)

const DefaultLedgerCurrency = "USD"

var (
	ledgerStatuses = []string{LedgerStatusPending, LedgerStatusCompleted, LedgerStatusFailed}
	ledgerTypes    = []string{LedgerTypePayment, LedgerTypeRefund, LedgerTypeTransfer}
)

// Transaction represents a ledger payment record.
// This struct maps directly to the `transactions` table in the database.
type Transaction struct {
	ID            int64           `json:"id"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          string          `json:"type"`   // Payment, Refund, Transfer
	Status        string          `json:"status"` // Pending, Completed, Failed
	SenderName    *string         `json:"sender_name,omitempty"`
	ReceiverName  *string         `json:"receiver_name,omitempty"`
	Description   *string         `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// ApplyStatus sets the status and stamps CompletedAt on the first transition into
// Completed. An existing completion timestamp is never overwritten.
func (t *Transaction) ApplyStatus(status string, now time.Time) {
	t.Status = status
	if status == LedgerStatusCompleted && t.CompletedAt == nil {
		completedAt := now.UTC()
		t.CompletedAt = &completedAt
	}
}

// CopyMutableFields overwrites every client-editable field with the values from src.
// Identity, external id and timestamps are left untouched.
func (t *Transaction) CopyMutableFields(src Transaction) {
	t.Amount = src.Amount
	t.Currency = src.Currency
	t.Type = src.Type
	t.Status = src.Status
	t.SenderName = src.SenderName
	t.ReceiverName = src.ReceiverName
	t.Description = src.Description
}

// NormalizeLedgerStatus maps any casing of a known status to its canonical form.
func NormalizeLedgerStatus(raw string) (string, error) {
	return matchCanonical(raw, ledgerStatuses, "status")
}

// NormalizeLedgerType maps any casing of a known transaction type to its canonical form.
func NormalizeLedgerType(raw string) (string, error) {
	return matchCanonical(raw, ledgerTypes, "type")
}

func matchCanonical(raw string, allowed []string, field string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	for _, candidate := range allowed {
		if strings.EqualFold(trimmed, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unsupported %s %q (allowed: %s)", field, raw, strings.Join(allowed, ", "))
}
