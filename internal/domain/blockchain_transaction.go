package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChainStatus is the on-chain submission state of a BlockchainTransaction.
type ChainStatus string

const (
	ChainStatusPending    ChainStatus = "Pending"
	ChainStatusProcessing ChainStatus = "Processing"
	ChainStatusCompleted  ChainStatus = "Completed"
	ChainStatusFailed     ChainStatus = "Failed"
	ChainStatusCancelled  ChainStatus = "Cancelled"
)

var chainStatuses = []ChainStatus{
	ChainStatusPending,
	ChainStatusProcessing,
	ChainStatusCompleted,
	ChainStatusFailed,
	ChainStatusCancelled,
}

// ParseChainStatus accepts any casing of a known status. "Confirmed" is accepted as an
// alias of Completed because bundler callbacks still emit it.
func ParseChainStatus(raw string) (ChainStatus, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "confirmed") {
		return ChainStatusCompleted, nil
	}
	for _, status := range chainStatuses {
		if strings.EqualFold(trimmed, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("unsupported chain status %q", raw)
}

// IsOpen reports whether the transaction is still waiting for on-chain inclusion.
func (s ChainStatus) IsOpen() bool {
	return s == ChainStatusPending || s == ChainStatusProcessing
}

// Wallet is the owning wallet of a blockchain transaction. Only the fields needed for
// address resolution and balance lookups are mapped.
type Wallet struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	Address          string          `json:"address"`
	Balance          decimal.Decimal `json:"balance"`
	BalanceCurrency  string          `json:"balance_currency"`
	BalanceUpdatedAt *time.Time      `json:"balance_updated_at,omitempty"`
}

// BlockchainTransaction tracks a gasless transfer from submission to on-chain inclusion.
// Receipt fields (hash, block number, gas used) are only ever written together, and
// ErrorMessage is only set while Status is Failed.
type BlockchainTransaction struct {
	ID              int64            `json:"id"`
	WalletID        int64            `json:"wallet_id"`
	UserOpHash      string           `json:"user_op_hash"`
	TransactionHash *string          `json:"transaction_hash,omitempty"`
	FromAddress     string           `json:"from_address"`
	ToAddress       string           `json:"to_address"`
	TokenAddress    string           `json:"token_address"`
	Amount          decimal.Decimal  `json:"amount"`
	Status          ChainStatus      `json:"status"`
	ChainID         int64            `json:"chain_id"`
	TransactionType string           `json:"transaction_type"`
	GasUsed         *decimal.Decimal `json:"gas_used,omitempty"`
	IsGasless       bool             `json:"is_gasless"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	BlockNumber     *int64           `json:"block_number,omitempty"`
	Confirmations   int              `json:"confirmations"`
	CreatedAt       time.Time        `json:"created_at"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	ConfirmedAt     *time.Time       `json:"confirmed_at,omitempty"`

	Wallet *Wallet `json:"wallet,omitempty"`
}

// Receipt is the tuple confirming on-chain inclusion. Confirmations is the depth seen
// when the receipt was read; zero means unknown.
type Receipt struct {
	TxHash        string
	BlockNumber   int64
	GasUsed       decimal.Decimal
	Confirmations int
}

// TransactionHistoryOptions filters the paged history listing.
type TransactionHistoryOptions struct {
	WalletID int64
	Status   *ChainStatus
	Page     int
	PageSize int
}
