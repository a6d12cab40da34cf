// Package consumer reads domain events from Kafka and hands them to a sink.
package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"swadharma/backend/internal/telemetry"
	"swadharma/backend/internal/telemetry/domain"
)

const sinkTimeout = 10 * time.Second

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads events from a topic with a consumer group. Offsets are committed by the reader.
type Consumer struct {
	reader messageReader
	log    *zap.Logger
}

// NewKafkaConsumer returns a Consumer reading topic as groupID.
func NewKafkaConsumer(brokers []string, topic, groupID string, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	return &Consumer{reader: reader, log: log}
}

// Run reads until ctx is cancelled, passing every decodable event to sink.
// Malformed messages and sink failures are logged and skipped.
func (c *Consumer) Run(ctx context.Context, sink telemetry.EventEmitter) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("consumer: kafka read failed", zap.Error(err))
			continue
		}
		c.handle(ctx, sink, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, sink telemetry.EventEmitter, msg kafka.Message) {
	var ev domain.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Warn("consumer: dropping malformed event",
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
			zap.Error(err))
		return
	}
	sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	if err := sink.Emit(sinkCtx, &ev); err != nil {
		c.log.Error("consumer: sink failed",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.Error(err))
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
