package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/internal/store"
)

const (
	DefaultHistoryPageSize = 20
	MaxHistoryPageSize     = 100
)

// HistoryPage is one page of a wallet's blockchain transactions, newest first.
type HistoryPage struct {
	Transactions []domain.BlockchainTransaction `json:"transactions"`
	TotalCount   int                            `json:"total_count"`
	Page         int                            `json:"page"`
	PageSize     int                            `json:"page_size"`
	TotalPages   int                            `json:"total_pages"`
}

// ChainQueryService serves the read paths over blockchain transactions and wallet
// balances. It never mutates transaction status itself.
type ChainQueryService struct {
	repo       store.ChainRepository
	cache      BalanceCache
	refresher  *ChainRefresher
	balanceTTL time.Duration
	now        func() time.Time
}

// NewChainQueryService wires the read side. refresher may be nil when no chain RPC is
// configured.
func NewChainQueryService(repo store.ChainRepository, cache BalanceCache, refresher *ChainRefresher, balanceTTL time.Duration) *ChainQueryService {
	if cache == nil {
		cache = NoopBalanceCache{}
	}
	return &ChainQueryService{
		repo:       repo,
		cache:      cache,
		refresher:  refresher,
		balanceTTL: balanceTTL,
		now:        time.Now,
	}
}

// GetTransaction loads a transaction with its wallet, settling it from the chain first
// when it is still open. Refresh failures are logged and the stored record is returned.
func (s *ChainQueryService) GetTransaction(ctx context.Context, id int64) (*domain.BlockchainTransaction, error) {
	tx, err := s.repo.FindChainTransactionWithWallet(ctx, id)
	if err != nil {
		return nil, err
	}

	refreshed, err := s.refresher.Refresh(ctx, tx)
	if err != nil {
		log.Printf("level=warn component=chain_query transaction_id=%d msg=\"receipt refresh failed\" err=%v", id, err)
		return tx, nil
	}
	if !refreshed {
		return tx, nil
	}
	return s.repo.FindChainTransactionWithWallet(ctx, id)
}

// History returns one page of a wallet's transactions. Zero paging values take defaults
// and the page size is capped.
func (s *ChainQueryService) History(ctx context.Context, opts domain.TransactionHistoryOptions) (*HistoryPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultHistoryPageSize
	}
	if opts.PageSize > MaxHistoryPageSize {
		opts.PageSize = MaxHistoryPageSize
	}

	transactions, total, err := s.repo.ListChainTransactionHistory(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Transactions: transactions,
		TotalCount:   total,
		Page:         opts.Page,
		PageSize:     opts.PageSize,
		TotalPages:   (total + opts.PageSize - 1) / opts.PageSize,
	}, nil
}

// Balance reads a wallet balance through the cache. Keys ignore address casing, so a read
// in any casing shares the entry the status service invalidates.
func (s *ChainQueryService) Balance(ctx context.Context, address string) (*CachedBalance, bool, error) {
	key := BalanceCacheKey(address)
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("level=warn component=chain_query key=%s msg=\"balance cache read failed\" err=%v", key, err)
	}
	if ok {
		log.Printf("level=debug component=chain_query key=%s msg=\"balance cache hit\"", key)
		return cached, true, nil
	}

	wallet, err := s.repo.FindWalletByAddress(ctx, address)
	if err != nil {
		return nil, false, err
	}

	balance := CachedBalance{
		Address:     wallet.Address,
		Balance:     wallet.Balance,
		Currency:    wallet.BalanceCurrency,
		LastUpdated: s.now().UTC(),
	}
	if wallet.BalanceUpdatedAt != nil {
		balance.LastUpdated = wallet.BalanceUpdatedAt.UTC()
	}

	storedKey := BalanceCacheKey(wallet.Address)
	if err := s.cache.Set(ctx, storedKey, balance, s.balanceTTL); err != nil {
		log.Printf("level=warn component=chain_query key=%s msg=\"balance cache write failed\" err=%v", storedKey, err)
	}
	return &balance, false, nil
}

// IsNotFound reports whether err means the requested transaction or wallet does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrTransactionNotFound) || errors.Is(err, store.ErrWalletNotFound)
}
