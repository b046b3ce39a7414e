package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"enrolld/internal/platform/config"
)

// KafkaSink publishes audit events to a Kafka topic. The writer runs async so
// Append returns before the broker acknowledges; delivery errors surface only
// through the writer's completion callback and are dropped there, matching
// the fire-and-forget audit contract.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink builds a sink for the configured brokers. Returns nil if no
// brokers are configured.
func NewKafkaSink(cfg config.KafkaConfig) *KafkaSink {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.AuditTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
