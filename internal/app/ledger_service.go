package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/internal/store"
)

// ErrInvalidLedgerTransaction wraps every validation failure of a ledger payload.
var ErrInvalidLedgerTransaction = errors.New("invalid ledger transaction")

// ticksAtUnixEpoch is the number of 100ns ticks between 0001-01-01 and 1970-01-01.
const ticksAtUnixEpoch = 621355968000000000

// GenerateLedgerTransactionID returns the external id assigned to ledger transactions
// created without one: "TXN" followed by the creation time in 100ns ticks since year 1.
func GenerateLedgerTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN%d", now.UTC().UnixNano()/100+ticksAtUnixEpoch)
}

// LedgerTransactionInput carries the client-supplied fields of a ledger transaction.
type LedgerTransactionInput struct {
	TransactionID *string         `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	SenderName    *string         `json:"sender_name"`
	ReceiverName  *string         `json:"receiver_name"`
	Description   *string         `json:"description"`
}

// LedgerService implements the ledger CRUD rules on top of a LedgerRepository.
// Concurrent updates to the same record are last-writer-wins.
type LedgerService struct {
	repo store.LedgerRepository
	now  func() time.Time
}

func NewLedgerService(repo store.LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo, now: time.Now}
}

func (s *LedgerService) List(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *LedgerService) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	return s.repo.FindTransactionByID(ctx, id)
}

// ListByStatus matches status case-insensitively. An unknown status yields an empty list.
func (s *LedgerService) ListByStatus(ctx context.Context, status string) ([]domain.Transaction, error) {
	return s.repo.FindTransactionsByStatus(ctx, strings.TrimSpace(status))
}

// Create stores a new ledger transaction, assigning an external id when none is supplied
// and stamping the creation time. The completion time is only stamped by updates, even
// when the record is created as Completed.
func (s *LedgerService) Create(ctx context.Context, input LedgerTransactionInput) (*domain.Transaction, error) {
	fields, err := normalizeLedgerInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tx := &domain.Transaction{CreatedAt: now}
	tx.CopyMutableFields(fields)

	if input.TransactionID != nil && strings.TrimSpace(*input.TransactionID) != "" {
		externalID := strings.TrimSpace(*input.TransactionID)
		tx.TransactionID = &externalID
	} else {
		externalID := GenerateLedgerTransactionID(now)
		tx.TransactionID = &externalID
	}

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Update overwrites every mutable field of an existing transaction. The completion time
// is stamped on the first transition into Completed only.
func (s *LedgerService) Update(ctx context.Context, id int64, input LedgerTransactionInput) (*domain.Transaction, error) {
	fields, err := normalizeLedgerInput(input)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.CopyMutableFields(fields)
	tx.ApplyStatus(fields.Status, s.now())

	if err := s.repo.SaveTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateStatus changes only the status, following the same completion rule as Update.
func (s *LedgerService) UpdateStatus(ctx context.Context, id int64, status string) (*domain.Transaction, error) {
	canonical, err := domain.NormalizeLedgerStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLedgerTransaction, err)
	}

	tx, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.ApplyStatus(canonical, s.now())

	if err := s.repo.SaveTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteTransaction(ctx, id)
}

// normalizeLedgerInput applies defaults and canonical casing to the mutable fields.
func normalizeLedgerInput(input LedgerTransactionInput) (domain.Transaction, error) {
	if input.Amount.IsNegative() {
		return domain.Transaction{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidLedgerTransaction)
	}

	fields := domain.Transaction{
		Amount:       input.Amount,
		Currency:     strings.ToUpper(strings.TrimSpace(input.Currency)),
		SenderName:   input.SenderName,
		ReceiverName: input.ReceiverName,
		Description:  input.Description,
		Type:         domain.LedgerTypePayment,
		Status:       domain.LedgerStatusPending,
	}
	if fields.Currency == "" {
		fields.Currency = domain.DefaultLedgerCurrency
	}
	if len(fields.Currency) > 3 {
		return domain.Transaction{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidLedgerTransaction)
	}

	if strings.TrimSpace(input.Type) != "" {
		txType, err := domain.NormalizeLedgerType(input.Type)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidLedgerTransaction, err)
		}
		fields.Type = txType
	}
	if strings.TrimSpace(input.Status) != "" {
		status, err := domain.NormalizeLedgerStatus(input.Status)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidLedgerTransaction, err)
		}
		fields.Status = status
	}
	return fields, nil
}
