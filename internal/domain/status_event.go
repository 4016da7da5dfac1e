package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatusEvent is published when a blockchain transaction reaches a terminal state.
type TransactionStatusEvent struct {
	EventID       string           `json:"event_id"`
	EventType     string           `json:"event_type"`
	TransactionID int64            `json:"transaction_id"`
	Status        ChainStatus      `json:"status"`
	TxHash        string           `json:"tx_hash,omitempty"`
	BlockNumber   *int64           `json:"block_number,omitempty"`
	GasUsed       *decimal.Decimal `json:"gas_used,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	FromAddress   string           `json:"from_address,omitempty"`
	ToAddress     string           `json:"to_address,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// ChainReceiptEvent represents the message emitted by the chain monitor once a submitted
// operation has been mined or has reverted.
type ChainReceiptEvent struct {
	TransactionID int64           `json:"transaction_id"`
	TxHash        string          `json:"tx_hash"`
	BlockNumber   int64           `json:"block_number"`
	GasUsed       decimal.Decimal `json:"gas_used"`
	Confirmations int             `json:"confirmations"`
	ErrorMessage  string          `json:"error_message"`
}
