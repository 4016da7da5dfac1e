/**
 * @description
 * This file provides the PostgreSQL implementation of the ledger repository. It
 * contains the SQL for the `transactions` table backing the basic CRUD surface.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coinpay/transaction-service/internal/domain"
)

// PostgresRepository is a concrete implementation of LedgerRepository and
// ChainRepository for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Ping verifies that the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

const ledgerColumns = `id, transaction_id, amount, currency, type, status, sender_name, receiver_name, description, created_at, completed_at`

func scanLedgerTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount decimal.Decimal
	err := row.Scan(
		&tx.ID,
		&tx.TransactionID,
		&amount,
		&tx.Currency,
		&tx.Type,
		&tx.Status,
		&tx.SenderName,
		&tx.ReceiverName,
		&tx.Description,
		&tx.CreatedAt,
		&tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	return &tx, nil
}

func (r *PostgresRepository) queryLedger(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// ListTransactions returns every ledger transaction, oldest first.
func (r *PostgresRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return r.queryLedger(ctx, `SELECT `+ledgerColumns+` FROM transactions ORDER BY id`)
}

// FindTransactionByID retrieves a single ledger transaction.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanLedgerTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// FindTransactionsByStatus matches the status column case-insensitively.
func (r *PostgresRepository) FindTransactionsByStatus(ctx context.Context, status string) ([]domain.Transaction, error) {
	return r.queryLedger(ctx, `SELECT `+ledgerColumns+` FROM transactions WHERE lower(status) = lower($1) ORDER BY id`, status)
}

// CreateTransaction inserts a ledger transaction and populates its generated ID.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (transaction_id, amount, currency, type, status, sender_name, receiver_name, description, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		tx.TransactionID,
		tx.Amount,
		tx.Currency,
		tx.Type,
		tx.Status,
		tx.SenderName,
		tx.ReceiverName,
		tx.Description,
		tx.CreatedAt,
		tx.CompletedAt,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// SaveTransaction overwrites the mutable columns of an existing ledger transaction.
func (r *PostgresRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $1, currency = $2, type = $3, status = $4, sender_name = $5,
			receiver_name = $6, description = $7, completed_at = $8
		WHERE id = $9
	`
	result, err := r.db.Exec(ctx, query,
		tx.Amount,
		tx.Currency,
		tx.Type,
		tx.Status,
		tx.SenderName,
		tx.ReceiverName,
		tx.Description,
		tx.CompletedAt,
		tx.ID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// DeleteTransaction removes a ledger transaction.
func (r *PostgresRepository) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
