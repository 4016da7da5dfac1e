/**
 * @description
 * This file contains the status service, the only component allowed to mutate the
 * status of a blockchain transaction. Every mutation is followed by the side effects
 * that depend on it: balance cache invalidation and completion notifications.
 *
 * Key features:
 * - Each operation reports an explicit UpdateOutcome so callers can tell an applied
 *   update from a no-op on an unknown id. Unknown ids are logged, never returned as errors.
 * - Cache invalidation is best-effort. Removal failures are logged and counted but never
 *   fail the primary write.
 * - MarkAsFailed does not invalidate balance cache entries.
 *
 * @dependencies
 * - internal/domain, internal/store: For domain models and data access.
 * - github.com/google/uuid: For notification event ids.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/internal/store"
)

// UpdateOutcome describes what a status-service operation did.
type UpdateOutcome int

const (
	// OutcomeError accompanies a non-nil error.
	OutcomeError UpdateOutcome = iota
	OutcomeUpdated
	OutcomeNotFound
)

func (o UpdateOutcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// StatusMetrics receives counters from the status service.
type StatusMetrics interface {
	RecordStatusTransition(operation string, outcome UpdateOutcome)
	RecordCacheInvalidationFailure()
}

type noopStatusMetrics struct{}

func (noopStatusMetrics) RecordStatusTransition(string, UpdateOutcome) {}

func (noopStatusMetrics) RecordCacheInvalidationFailure() {}

const (
	operationUpdateStatus = "update_status"
	operationApplyReceipt = "update_with_receipt"
	operationMarkAsFailed = "mark_as_failed"
	notificationTimeout   = 5 * time.Second
	completedEventType    = "transaction.status.completed"
	failedEventType       = "transaction.status.failed"
)

// StatusService orchestrates blockchain transaction status transitions.
type StatusService struct {
	repo     store.ChainRepository
	cache    BalanceCache
	notifier CompletionNotifier
	metrics  StatusMetrics
	now      func() time.Time
}

// NewStatusService creates a status service. A nil cache, notifier or metrics sink is
// replaced by its no-op variant.
func NewStatusService(repo store.ChainRepository, cache BalanceCache, notifier CompletionNotifier, metrics StatusMetrics) *StatusService {
	if cache == nil {
		cache = NoopBalanceCache{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if metrics == nil {
		metrics = noopStatusMetrics{}
	}
	return &StatusService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}
}

// UpdateStatus moves a transaction to status, attaching txHash when it is non-empty, and
// invalidates the cached balances of both addresses.
func (s *StatusService) UpdateStatus(ctx context.Context, transactionID int64, status domain.ChainStatus, txHash *string) (UpdateOutcome, error) {
	tx, err := s.repo.FindChainTransactionWithWallet(ctx, transactionID)
	if err != nil {
		return s.lookupFailed(operationUpdateStatus, transactionID, err)
	}

	if err := s.repo.UpdateChainTransactionStatus(ctx, transactionID, status, txHash); err != nil {
		return s.writeFailed(operationUpdateStatus, transactionID, err)
	}

	log.Printf("level=info component=status_service op=%s transaction_id=%d status=%s", operationUpdateStatus, transactionID, status)
	s.invalidateBalances(ctx, transactionID, tx.FromAddress, tx.ToAddress)
	s.metrics.RecordStatusTransition(operationUpdateStatus, OutcomeUpdated)
	return OutcomeUpdated, nil
}

// UpdateWithReceipt persists the receipt (which completes the transaction), invalidates
// both cached balances and announces the completion.
func (s *StatusService) UpdateWithReceipt(ctx context.Context, transactionID int64, receipt domain.Receipt) (UpdateOutcome, error) {
	tx, err := s.repo.FindChainTransactionWithWallet(ctx, transactionID)
	if err != nil {
		return s.lookupFailed(operationApplyReceipt, transactionID, err)
	}

	if err := s.repo.UpdateChainTransactionReceipt(ctx, transactionID, receipt); err != nil {
		return s.writeFailed(operationApplyReceipt, transactionID, err)
	}

	log.Printf("level=info component=status_service op=%s transaction_id=%d tx_hash=%s block=%d gas_used=%s",
		operationApplyReceipt, transactionID, receipt.TxHash, receipt.BlockNumber, receipt.GasUsed)
	s.invalidateBalances(ctx, transactionID, tx.FromAddress, tx.ToAddress)

	block := receipt.BlockNumber
	gas := receipt.GasUsed
	s.notify(domain.TransactionStatusEvent{
		EventType:     completedEventType,
		TransactionID: transactionID,
		Status:        domain.ChainStatusCompleted,
		TxHash:        receipt.TxHash,
		BlockNumber:   &block,
		GasUsed:       &gas,
		FromAddress:   tx.FromAddress,
		ToAddress:     tx.ToAddress,
	})
	s.metrics.RecordStatusTransition(operationApplyReceipt, OutcomeUpdated)
	return OutcomeUpdated, nil
}

// MarkAsFailed moves a transaction to Failed with errorMessage. Cached balances are left
// untouched.
func (s *StatusService) MarkAsFailed(ctx context.Context, transactionID int64, errorMessage string) (UpdateOutcome, error) {
	tx, err := s.repo.FindChainTransactionByID(ctx, transactionID)
	if err != nil {
		return s.lookupFailed(operationMarkAsFailed, transactionID, err)
	}

	if err := s.repo.MarkChainTransactionFailed(ctx, transactionID, errorMessage); err != nil {
		return s.writeFailed(operationMarkAsFailed, transactionID, err)
	}

	log.Printf("level=warn component=status_service op=%s transaction_id=%d reason=%q", operationMarkAsFailed, transactionID, errorMessage)

	event := domain.TransactionStatusEvent{
		EventType:     failedEventType,
		TransactionID: transactionID,
		Status:        domain.ChainStatusFailed,
		ErrorMessage:  errorMessage,
		FromAddress:   tx.FromAddress,
		ToAddress:     tx.ToAddress,
	}
	if tx.TransactionHash != nil {
		event.TxHash = *tx.TransactionHash
	}
	s.notify(event)
	s.metrics.RecordStatusTransition(operationMarkAsFailed, OutcomeUpdated)
	return OutcomeUpdated, nil
}

func (s *StatusService) lookupFailed(operation string, transactionID int64, err error) (UpdateOutcome, error) {
	if errors.Is(err, store.ErrTransactionNotFound) {
		log.Printf("level=warn component=status_service op=%s transaction_id=%d msg=\"transaction not found\"", operation, transactionID)
		s.metrics.RecordStatusTransition(operation, OutcomeNotFound)
		return OutcomeNotFound, nil
	}
	log.Printf("level=error component=status_service op=%s transaction_id=%d stage=lookup err=%v", operation, transactionID, err)
	s.metrics.RecordStatusTransition(operation, OutcomeError)
	return OutcomeError, fmt.Errorf("find transaction %d: %w", transactionID, err)
}

// writeFailed treats a row deleted between lookup and write like an unknown id.
func (s *StatusService) writeFailed(operation string, transactionID int64, err error) (UpdateOutcome, error) {
	if errors.Is(err, store.ErrTransactionNotFound) {
		log.Printf("level=warn component=status_service op=%s transaction_id=%d msg=\"transaction disappeared before update\"", operation, transactionID)
		s.metrics.RecordStatusTransition(operation, OutcomeNotFound)
		return OutcomeNotFound, nil
	}
	log.Printf("level=error component=status_service op=%s transaction_id=%d stage=write err=%v", operation, transactionID, err)
	s.metrics.RecordStatusTransition(operation, OutcomeError)
	return OutcomeError, fmt.Errorf("update transaction %d: %w", transactionID, err)
}

// invalidateBalances removes the cached balance of each distinct, non-empty address.
// Addresses differing only in case share one key.
// The removals run concurrently and failures are only logged.
func (s *StatusService) invalidateBalances(ctx context.Context, transactionID int64, addresses ...string) {
	seen := make(map[string]struct{}, len(addresses))
	var wg sync.WaitGroup
	for _, address := range addresses {
		if strings.TrimSpace(address) == "" {
			continue
		}
		key := BalanceCacheKey(address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if err := s.cache.Remove(ctx, key); err != nil {
				log.Printf("level=warn component=status_service msg=\"balance cache invalidation failed\" transaction_id=%d key=%s err=%v", transactionID, key, err)
				s.metrics.RecordCacheInvalidationFailure()
			}
		}(key)
	}
	wg.Wait()
}

// notify publishes a status event on a fresh context so that a cancelled request does
// not drop the notification of a write that already happened.
func (s *StatusService) notify(event domain.TransactionStatusEvent) {
	event.EventID = uuid.NewString()
	event.OccurredAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()
	if err := s.notifier.NotifyStatusChange(ctx, event); err != nil {
		log.Printf("level=warn component=status_service msg=\"status notification failed\" transaction_id=%d event_type=%s err=%v", event.TransactionID, event.EventType, err)
	}
}
