package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/atlasfin/atlasbank/pkg/models"
)

// Publisher publishes trading events. Delivery is fire-and-forget: failures
// are logged, never retried.
type Publisher interface {
	PublishTrade(ctx context.Context, trade *models.Trade) error
	PublishRejection(ctx context.Context, order *models.Order, reason string) error
	Close() error
}

// RejectionEvent is the JSON payload published for rejected orders
type RejectionEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// KafkaPublisher implements Publisher over kafka-go writers
type KafkaPublisher struct {
	logger       *zap.Logger
	tradeWriter  *kafka.Writer
	rejectWriter *kafka.Writer
}

// NewKafkaPublisher creates a publisher with one writer per topic
func NewKafkaPublisher(logger *zap.Logger, brokers []string, tradeTopic, rejectTopic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: time.Second,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
		}
	}
	return &KafkaPublisher{
		logger:       logger,
		tradeWriter:  newWriter(tradeTopic),
		rejectWriter: newWriter(rejectTopic),
	}, nil
}

// PublishTrade publishes an executed fill keyed by symbol
func (p *KafkaPublisher) PublishTrade(ctx context.Context, trade *models.Trade) error {
	payload, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	err = p.tradeWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(trade.Symbol),
		Value: payload,
		Time:  trade.CreatedAt,
	})
	if err != nil {
		p.logger.Error("Failed to publish trade event",
			zap.String("trade_id", trade.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish trade: %w", err)
	}
	return nil
}

// PublishRejection publishes an order rejection keyed by symbol
func (p *KafkaPublisher) PublishRejection(ctx context.Context, order *models.Order, reason string) error {
	event := RejectionEvent{
		OrderID:   order.ID.String(),
		UserID:    order.UserID.String(),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Type:      order.Type,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal rejection: %w", err)
	}
	err = p.rejectWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.Symbol),
		Value: payload,
		Time:  event.Timestamp,
	})
	if err != nil {
		p.logger.Error("Failed to publish rejection event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish rejection: %w", err)
	}
	return nil
}

// Close closes both writers
func (p *KafkaPublisher) Close() error {
	if err := p.tradeWriter.Close(); err != nil {
		return err
	}
	return p.rejectWriter.Close()
}

// NoopPublisher discards events; used when kafka is disabled and in tests.
type NoopPublisher struct{}

func (NoopPublisher) PublishTrade(ctx context.Context, trade *models.Trade) error { return nil }
func (NoopPublisher) PublishRejection(ctx context.Context, order *models.Order, reason string) error {
	return nil
}
func (NoopPublisher) Close() error { return nil }
