package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/coinpay/transaction-service/internal/domain"
)

const chainColumns = `bt.id, bt.wallet_id, bt.user_op_hash, bt.transaction_hash, bt.from_address, bt.to_address,
	bt.token_address, bt.amount, bt.status, bt.chain_id, bt.transaction_type, bt.gas_used, bt.is_gasless,
	bt.error_message, bt.block_number, bt.confirmations, bt.created_at, bt.submitted_at, bt.confirmed_at`

// updateChainStatusSQL keeps the stored hash when none is supplied, stamps confirmed_at
// on Completed and clears the error message for every status other than Failed.
const updateChainStatusSQL = `
	UPDATE blockchain_transactions
	SET status = $1,
		transaction_hash = COALESCE($2, transaction_hash),
		confirmed_at = CASE WHEN $1 = 'Completed' THEN NOW() ELSE confirmed_at END,
		error_message = CASE WHEN $1 = 'Failed' THEN error_message ELSE NULL END
	WHERE id = $3
`

// applyReceiptSQL writes hash, block and gas in one statement. Confirmations never move
// backwards, so a receipt without a known depth keeps the stored one.
const applyReceiptSQL = `
	UPDATE blockchain_transactions
	SET transaction_hash = $1,
		block_number = $2,
		gas_used = $3,
		confirmations = GREATEST(confirmations, $4),
		status = 'Completed',
		confirmed_at = NOW(),
		error_message = NULL
	WHERE id = $5
`

const markChainFailedSQL = `UPDATE blockchain_transactions SET status = 'Failed', error_message = $1 WHERE id = $2`

const walletColumns = `w.id, w.user_id, w.address, w.balance, w.balance_currency, w.balance_updated_at`

func chainScanTargets(tx *domain.BlockchainTransaction, status *string, amount *decimal.Decimal, gasUsed *decimal.NullDecimal) []any {
	return []any{
		&tx.ID,
		&tx.WalletID,
		&tx.UserOpHash,
		&tx.TransactionHash,
		&tx.FromAddress,
		&tx.ToAddress,
		&tx.TokenAddress,
		amount,
		status,
		&tx.ChainID,
		&tx.TransactionType,
		gasUsed,
		&tx.IsGasless,
		&tx.ErrorMessage,
		&tx.BlockNumber,
		&tx.Confirmations,
		&tx.CreatedAt,
		&tx.SubmittedAt,
		&tx.ConfirmedAt,
	}
}

func finishChainScan(tx *domain.BlockchainTransaction, status string, amount decimal.Decimal, gasUsed decimal.NullDecimal) {
	tx.Status = domain.ChainStatus(status)
	tx.Amount = amount
	if gasUsed.Valid {
		gas := gasUsed.Decimal
		tx.GasUsed = &gas
	}
}

// FindChainTransactionByID loads a blockchain transaction without its wallet.
func (r *PostgresRepository) FindChainTransactionByID(ctx context.Context, id int64) (*domain.BlockchainTransaction, error) {
	var (
		tx      domain.BlockchainTransaction
		status  string
		amount  decimal.Decimal
		gasUsed decimal.NullDecimal
	)
	query := `SELECT ` + chainColumns + ` FROM blockchain_transactions bt WHERE bt.id = $1`
	if err := r.db.QueryRow(ctx, query, id).Scan(chainScanTargets(&tx, &status, &amount, &gasUsed)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	finishChainScan(&tx, status, amount, gasUsed)
	return &tx, nil
}

// FindChainTransactionWithWallet loads a blockchain transaction joined with its wallet.
func (r *PostgresRepository) FindChainTransactionWithWallet(ctx context.Context, id int64) (*domain.BlockchainTransaction, error) {
	var (
		tx            domain.BlockchainTransaction
		wallet        domain.Wallet
		status        string
		amount        decimal.Decimal
		gasUsed       decimal.NullDecimal
		walletBalance decimal.Decimal
	)
	query := `
		SELECT ` + chainColumns + `, ` + walletColumns + `
		FROM blockchain_transactions bt
		JOIN wallets w ON w.id = bt.wallet_id
		WHERE bt.id = $1
	`
	targets := chainScanTargets(&tx, &status, &amount, &gasUsed)
	targets = append(targets,
		&wallet.ID,
		&wallet.UserID,
		&wallet.Address,
		&walletBalance,
		&wallet.BalanceCurrency,
		&wallet.BalanceUpdatedAt,
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	finishChainScan(&tx, status, amount, gasUsed)
	wallet.Balance = walletBalance
	tx.Wallet = &wallet
	return &tx, nil
}

type historyQuery struct {
	countSQL  string
	countArgs []any
	listSQL   string
	listArgs  []any
}

func buildHistoryQuery(opts domain.TransactionHistoryOptions) historyQuery {
	conditions := []string{"bt.wallet_id = $1"}
	args := []any{opts.WalletID}
	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conditions = append(conditions, fmt.Sprintf("bt.status = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	listArgs := append(append([]any{}, args...), opts.PageSize, (opts.Page-1)*opts.PageSize)
	return historyQuery{
		countSQL:  `SELECT COUNT(*) FROM blockchain_transactions bt WHERE ` + where,
		countArgs: args,
		listSQL: fmt.Sprintf(`SELECT %s FROM blockchain_transactions bt WHERE %s ORDER BY bt.created_at DESC, bt.id DESC LIMIT $%d OFFSET $%d`,
			chainColumns, where, len(listArgs)-1, len(listArgs)),
		listArgs: listArgs,
	}
}

// ListChainTransactionHistory returns one page of a wallet's transactions, newest first,
// together with the total number of matching rows.
func (r *PostgresRepository) ListChainTransactionHistory(ctx context.Context, opts domain.TransactionHistoryOptions) ([]domain.BlockchainTransaction, int, error) {
	q := buildHistoryQuery(opts)

	var total int
	if err := r.db.QueryRow(ctx, q.countSQL, q.countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := r.db.Query(ctx, q.listSQL, q.listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	transactions := make([]domain.BlockchainTransaction, 0, opts.PageSize)
	for rows.Next() {
		var (
			tx      domain.BlockchainTransaction
			status  string
			amount  decimal.Decimal
			gasUsed decimal.NullDecimal
		)
		if err := rows.Scan(chainScanTargets(&tx, &status, &amount, &gasUsed)...); err != nil {
			return nil, 0, err
		}
		finishChainScan(&tx, status, amount, gasUsed)
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

// UpdateChainTransactionStatus sets the status of a blockchain transaction.
func (r *PostgresRepository) UpdateChainTransactionStatus(ctx context.Context, id int64, status domain.ChainStatus, txHash *string) error {
	var hash *string
	if txHash != nil && strings.TrimSpace(*txHash) != "" {
		trimmed := strings.TrimSpace(*txHash)
		hash = &trimmed
	}
	result, err := r.db.Exec(ctx, updateChainStatusSQL, string(status), hash, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// UpdateChainTransactionReceipt applies a receipt and completes the transaction.
func (r *PostgresRepository) UpdateChainTransactionReceipt(ctx context.Context, id int64, receipt domain.Receipt) error {
	result, err := r.db.Exec(ctx, applyReceiptSQL, receipt.TxHash, receipt.BlockNumber, receipt.GasUsed, receipt.Confirmations, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// MarkChainTransactionFailed moves a blockchain transaction to Failed with a reason.
func (r *PostgresRepository) MarkChainTransactionFailed(ctx context.Context, id int64, errorMessage string) error {
	result, err := r.db.Exec(ctx, markChainFailedSQL, errorMessage, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// FindWalletByAddress resolves a wallet by its on-chain address (case-insensitive).
func (r *PostgresRepository) FindWalletByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	var (
		wallet  domain.Wallet
		balance decimal.Decimal
	)
	query := `SELECT ` + walletColumns + ` FROM wallets w WHERE lower(w.address) = lower($1)`
	err := r.db.QueryRow(ctx, query, address).Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Address,
		&balance,
		&wallet.BalanceCurrency,
		&wallet.BalanceUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	wallet.Balance = balance
	return &wallet, nil
}
