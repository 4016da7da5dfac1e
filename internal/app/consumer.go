package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/pkg/chainclient"
)

// Routing keys emitted by the chain monitor.
const (
	ReceiptConfirmedRoutingKey = "chain.receipt.confirmed"
	ReceiptFailedRoutingKey    = "chain.receipt.failed"
)

const defaultRevertMessage = "transaction failed on-chain"

// ReceiptConsumer applies chain monitor receipt events through the status service.
type ReceiptConsumer struct {
	status *StatusService
}

func NewReceiptConsumer(status *StatusService) *ReceiptConsumer {
	return &ReceiptConsumer{status: status}
}

// Bindings maps each routing key to its handler.
func (c *ReceiptConsumer) Bindings() map[string]func([]byte) bool {
	return map[string]func([]byte) bool{
		ReceiptConfirmedRoutingKey: c.HandleConfirmed,
		ReceiptFailedRoutingKey:    c.HandleFailed,
	}
}

// HandleConfirmed applies a mined receipt. It returns false only when the message
// should be requeued.
func (c *ReceiptConsumer) HandleConfirmed(body []byte) bool {
	event, ok := decodeReceiptEvent(ReceiptConfirmedRoutingKey, body)
	if !ok {
		return true
	}
	if strings.TrimSpace(event.TxHash) == "" {
		log.Printf("level=warn component=receipt_consumer routing_key=%s transaction_id=%d msg=\"missing tx hash; dropping\"", ReceiptConfirmedRoutingKey, event.TransactionID)
		return true
	}
	hash, err := chainclient.ParseTxHash(event.TxHash)
	if err != nil {
		log.Printf("level=warn component=receipt_consumer routing_key=%s transaction_id=%d tx_hash=%q msg=\"invalid tx hash; dropping\"", ReceiptConfirmedRoutingKey, event.TransactionID, event.TxHash)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := c.status.UpdateWithReceipt(ctx, event.TransactionID, domain.Receipt{
		TxHash:        hash.Hex(),
		BlockNumber:   event.BlockNumber,
		GasUsed:       event.GasUsed,
		Confirmations: event.Confirmations,
	})
	return c.settle(ReceiptConfirmedRoutingKey, event.TransactionID, outcome, err)
}

// HandleFailed marks the transaction as failed with the reported reason.
func (c *ReceiptConsumer) HandleFailed(body []byte) bool {
	event, ok := decodeReceiptEvent(ReceiptFailedRoutingKey, body)
	if !ok {
		return true
	}
	reason := strings.TrimSpace(event.ErrorMessage)
	if reason == "" {
		reason = defaultRevertMessage
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := c.status.MarkAsFailed(ctx, event.TransactionID, reason)
	return c.settle(ReceiptFailedRoutingKey, event.TransactionID, outcome, err)
}

func (c *ReceiptConsumer) settle(routingKey string, transactionID int64, outcome UpdateOutcome, err error) bool {
	if err != nil {
		log.Printf("level=error component=receipt_consumer routing_key=%s transaction_id=%d msg=\"processing failed; requeueing\" err=%v", routingKey, transactionID, err)
		return false
	}
	if outcome == OutcomeNotFound {
		log.Printf("level=warn component=receipt_consumer routing_key=%s transaction_id=%d msg=\"unknown transaction; acknowledging\"", routingKey, transactionID)
	}
	return true
}

func decodeReceiptEvent(routingKey string, body []byte) (domain.ChainReceiptEvent, bool) {
	var event domain.ChainReceiptEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=receipt_consumer routing_key=%s msg=\"failed to unmarshal payload\" err=%v", routingKey, err)
		return event, false
	}
	if event.TransactionID <= 0 {
		log.Printf("level=warn component=receipt_consumer routing_key=%s msg=\"missing transaction id; dropping\"", routingKey)
		return event, false
	}
	if event.BlockNumber < 0 || event.GasUsed.IsNegative() || event.Confirmations < 0 {
		log.Printf("level=warn component=receipt_consumer routing_key=%s transaction_id=%d msg=\"negative block or gas; dropping\"", routingKey, event.TransactionID)
		return event, false
	}
	return event, true
}
