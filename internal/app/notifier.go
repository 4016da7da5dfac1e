package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/coinpay/transaction-service/internal/domain"
	"github.com/coinpay/transaction-service/pkg/rabbitmq"
)

// CompletionNotifier announces terminal status changes to downstream consumers.
type CompletionNotifier interface {
	NotifyStatusChange(ctx context.Context, event domain.TransactionStatusEvent) error
}

// RabbitNotifier publishes status events to a topic exchange using the event type as the
// routing key.
type RabbitNotifier struct {
	publisher rabbitmq.Publisher
	exchange  string
}

func NewRabbitNotifier(publisher rabbitmq.Publisher, exchange string) *RabbitNotifier {
	return &RabbitNotifier{publisher: publisher, exchange: strings.TrimSpace(exchange)}
}

func (n *RabbitNotifier) NotifyStatusChange(ctx context.Context, event domain.TransactionStatusEvent) error {
	if n == nil || n.publisher == nil {
		return nil
	}
	routingKey := event.EventType
	if routingKey == "" {
		routingKey = "transaction.status." + strings.ToLower(string(event.Status))
	}
	if err := n.publisher.Publish(ctx, n.exchange, routingKey, event); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// NoopNotifier discards every event.
type NoopNotifier struct{}

func (NoopNotifier) NotifyStatusChange(ctx context.Context, event domain.TransactionStatusEvent) error {
	return nil
}
