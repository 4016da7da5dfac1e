/**
 * @description
 * This file defines the repository interfaces consumed by the transaction-service.
 * By defining interfaces, we decouple the application's business logic from the
 * PostgreSQL implementation, making the status service and the CRUD surface easy to
 * exercise with in-memory stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/coinpay/transaction-service/internal/domain"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrWalletNotFound      = errors.New("wallet not found")
)

// LedgerRepository persists the ledger-style payment records behind /api/transactions.
type LedgerRepository interface {
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error)
	// FindTransactionsByStatus matches status case-insensitively.
	FindTransactionsByStatus(ctx context.Context, status string) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	// SaveTransaction overwrites every mutable column of an existing row.
	SaveTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
}

// ChainRepository persists blockchain-backed transactions and their owning wallets.
// Every update is a single-row statement; a missing row yields ErrTransactionNotFound.
type ChainRepository interface {
	FindChainTransactionByID(ctx context.Context, id int64) (*domain.BlockchainTransaction, error)
	// FindChainTransactionWithWallet also loads the owning wallet.
	FindChainTransactionWithWallet(ctx context.Context, id int64) (*domain.BlockchainTransaction, error)
	ListChainTransactionHistory(ctx context.Context, opts domain.TransactionHistoryOptions) ([]domain.BlockchainTransaction, int, error)

	// UpdateChainTransactionStatus sets the status, attaches txHash when non-empty,
	// stamps confirmed_at on Completed and clears any error message.
	UpdateChainTransactionStatus(ctx context.Context, id int64, status domain.ChainStatus, txHash *string) error
	// UpdateChainTransactionReceipt writes hash, block and gas together and moves the
	// transaction to Completed.
	UpdateChainTransactionReceipt(ctx context.Context, id int64, receipt domain.Receipt) error
	MarkChainTransactionFailed(ctx context.Context, id int64, errorMessage string) error

	FindWalletByAddress(ctx context.Context, address string) (*domain.Wallet, error)
}
