package app

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/pkg/chainclient"
)

const revertedOnChainMessage = "transaction reverted on-chain"

// ReceiptFetcher looks up the on-chain receipt of a transaction hash.
type ReceiptFetcher interface {
	FetchReceipt(ctx context.Context, txHash string) (*chainclient.Receipt, error)
}

// ChainRefresher settles open transactions from their on-chain receipt. All writes go
// through the status service.
type ChainRefresher struct {
	fetcher ReceiptFetcher
	status  *StatusService
}

func NewChainRefresher(fetcher ReceiptFetcher, status *StatusService) *ChainRefresher {
	return &ChainRefresher{fetcher: fetcher, status: status}
}

// Refresh reports whether the stored transaction changed. Transactions that are already
// settled or have no hash yet are left alone, as are hashes the node does not know.
func (r *ChainRefresher) Refresh(ctx context.Context, tx *domain.BlockchainTransaction) (bool, error) {
	if r == nil || r.fetcher == nil || r.status == nil || tx == nil {
		return false, nil
	}
	if !tx.Status.IsOpen() || tx.TransactionHash == nil || strings.TrimSpace(*tx.TransactionHash) == "" {
		return false, nil
	}

	receipt, err := r.fetcher.FetchReceipt(ctx, *tx.TransactionHash)
	if err != nil {
		if errors.Is(err, chainclient.ErrReceiptNotFound) {
			return false, nil
		}
		return false, err
	}

	var outcome UpdateOutcome
	if receipt.Succeeded {
		outcome, err = r.status.UpdateWithReceipt(ctx, tx.ID, domain.Receipt{
			TxHash:        receipt.TxHash,
			BlockNumber:   receipt.BlockNumber,
			GasUsed:       decimal.NewFromInt(int64(receipt.GasUsed)),
			Confirmations: int(receipt.Confirmations),
		})
	} else {
		outcome, err = r.status.MarkAsFailed(ctx, tx.ID, revertedOnChainMessage)
	}
	if err != nil {
		return false, err
	}
	return outcome == OutcomeUpdated, nil
}
