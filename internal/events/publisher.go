// Package events publishes marketplace events to RabbitMQ. The publisher is
// optional: a process started without a broker URL gets a nil *Publisher,
// and every method on a nil receiver is a no-op, so callers never branch on
// whether eventing is configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/adforge/slotmarket/internal/refund"
)

const (
	exchangeName   = "slotmarket.events"
	publishTimeout = 5 * time.Second

	routingKeySlotsPurchased = "slots.purchased"
	routingKeyRefundPaidOut  = "refunds.paid_out"
)

// Publisher sends domain events over one AMQP channel.
type Publisher struct {
	logger  *zap.Logger
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

// NewPublisher dials the broker and declares the events exchange. An empty
// URL returns a nil publisher without error.
func NewPublisher(brokerURL string, logger *zap.Logger) (*Publisher, error) {
	if brokerURL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	logger.Info("connected to broker", zap.String("exchange", exchangeName))
	return &Publisher{logger: logger, conn: conn, channel: channel}, nil
}

// SlotsPurchased implements purchase.Notifier.
func (publisher *Publisher) SlotsPurchased(ctx context.Context, userID string, slotIDs []string, totalCents int64) {
	if publisher == nil {
		return
	}
	publisher.publish(ctx, routingKeySlotsPurchased, map[string]any{
		"user_id":     userID,
		"slot_ids":    slotIDs,
		"total_cents": totalCents,
	})
}

// RefundProcessed implements refund.Notifier.
func (publisher *Publisher) RefundProcessed(ctx context.Context, changeset refund.Changeset) {
	if publisher == nil {
		return
	}
	publisher.publish(ctx, routingKeyRefundPaidOut, map[string]any{
		"refund_id":                changeset.RefundID,
		"slot_id":                  changeset.SlotID,
		"requester_id":             changeset.RequesterID,
		"distributor_id":           changeset.DistributorID,
		"requester_credit_cents":   changeset.RequesterCreditCents,
		"distributor_credit_cents": changeset.DistributorCreditCents,
	})
}

// publish is best-effort: a broker failure is logged, never surfaced, because
// events fire after the storage transaction already committed.
func (publisher *Publisher) publish(ctx context.Context, routingKey string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		publisher.logger.Error("marshal event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	err = publisher.channel.PublishWithContext(ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		publisher.logger.Error("publish event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	publisher.logger.Debug("event published", zap.String("routing_key", routingKey))
}

// Close releases the channel and connection.
func (publisher *Publisher) Close() {
	if publisher == nil {
		return
	}
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if publisher.channel != nil {
		publisher.channel.Close()
		publisher.channel = nil
	}
	if publisher.conn != nil {
		publisher.conn.Close()
		publisher.conn = nil
	}
	publisher.logger.Info("publisher closed")
}
