package rabbitmq

import (
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerPrefetch = 16

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(amqpURL string) (*Consumer, error) {
	conn, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch}, nil
}

// ConsumeWithBindings declares a durable queue, binds it to exchange for every routing key
// in bindings and dispatches deliveries in the background. A handler returning false
// requeues the message; unknown routing keys are acknowledged and dropped.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]func([]byte) bool) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]func([]byte) bool)
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			dispatch(handlers, d)
		}
		log.Printf("level=warn component=rabbitmq_consumer queue=%s msg=\"delivery channel closed\"", q.Name)
	}()

	return nil
}

// acknowledger is the subset of amqp.Delivery used by dispatch.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type delivery interface {
	acknowledger
	routingKey() string
	body() []byte
}

type amqpDelivery struct{ amqp.Delivery }

func (d amqpDelivery) routingKey() string { return d.RoutingKey }
func (d amqpDelivery) body() []byte { return d.Body }

func dispatch(handlers map[string]func([]byte) bool, d amqp.Delivery) {
	handleDelivery(handlers, amqpDelivery{d})
}

func handleDelivery(handlers map[string]func([]byte) bool, d delivery) {
	handler, ok := handlers[d.routingKey()]
	if !ok {
		log.Printf("level=warn component=rabbitmq_consumer routing_key=%s msg=\"no handler; acknowledging to drop\"", d.routingKey())
		_ = d.Ack(false)
		return
	}
	if handler(d.body()) {
		_ = d.Ack(false)
		return
	}
	log.Printf("level=warn component=rabbitmq_consumer routing_key=%s msg=\"handler failed; requeueing\"", d.routingKey())
	_ = d.Nack(false, true)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
