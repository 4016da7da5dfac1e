/**
 * @description
 * This package provides a thin client for reading transaction receipts from an
 * EVM JSON-RPC node. It is used to refresh the status of submitted transactions
 * that are still waiting for on-chain inclusion.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum: ethclient for RPC, common/hexutil for hash parsing.
 */
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrReceiptNotFound means the node does not know the transaction yet or it is
	// still in the mempool.
	ErrReceiptNotFound = errors.New("transaction receipt not found")
	ErrInvalidTxHash   = errors.New("transaction hash must be a 0x-prefixed 32-byte hex string")
)

const defaultCallTimeout = 10 * time.Second

// Receipt is the subset of an on-chain receipt the service persists.
type Receipt struct {
	TxHash        string
	BlockNumber   int64
	GasUsed       uint64
	Succeeded     bool
	Confirmations uint64
}

// rpcBackend is the subset of *ethclient.Client used by Client.
type rpcBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Client reads receipts from a JSON-RPC endpoint.
type Client struct {
	backend     rpcBackend
	callTimeout time.Duration
}

// Dial connects to the node at rpcURL.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, errors.New("chain rpc url is empty")
	}
	backend, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return newClient(backend), nil
}

func newClient(backend rpcBackend) *Client {
	return &Client{backend: backend, callTimeout: defaultCallTimeout}
}

// FetchReceipt returns the receipt of txHash along with its current confirmation depth.
func (c *Client) FetchReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("fetch receipt %s: %w", hash.Hex(), err)
	}
	if receipt.BlockNumber == nil {
		return nil, ErrReceiptNotFound
	}

	result := &Receipt{
		TxHash:      hash.Hex(),
		BlockNumber: receipt.BlockNumber.Int64(),
		GasUsed:     receipt.GasUsed,
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
	}

	// Confirmation depth is informational; a failed head lookup keeps the receipt usable.
	if head, err := c.backend.BlockNumber(ctx); err == nil && head >= receipt.BlockNumber.Uint64() {
		result.Confirmations = head - receipt.BlockNumber.Uint64() + 1
	}
	return result, nil
}

func (c *Client) Close() {
	if c != nil && c.backend != nil {
		c.backend.Close()
	}
}

// ParseTxHash validates and decodes a 0x-prefixed 32-byte transaction hash.
func ParseTxHash(raw string) (common.Hash, error) {
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil || len(decoded) != common.HashLength {
		return common.Hash{}, ErrInvalidTxHash
	}
	return common.BytesToHash(decoded), nil
}

// IsAddress reports whether raw is a 0x-prefixed 20-byte hex address.
func IsAddress(raw string) bool {
	return strings.HasPrefix(raw, "0x") && common.IsHexAddress(raw)
}
