package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/vasiliy-maslov/print-admin/internal/order"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// KafkaReporter publishes every status mirror result as an OrderStatusChanged
// event. Consumers can replay failed mirrors from it.
type KafkaReporter struct {
	pub      Publisher
	producer string
	now      func() time.Time
}

func NewKafkaReporter(pub Publisher, producer string) *KafkaReporter {
	return &KafkaReporter{pub: pub, producer: producer, now: time.Now}
}

func (r *KafkaReporter) ReportMirror(ctx context.Context, result order.StatusResult) {
	env, err := NewEnvelope(EventStatusChanged, r.producer, result.OrderID, r.now(), result)
	if err != nil {
		log.Error().Err(err).Str("order_id", result.OrderID).Msg("events: failed to build envelope")
		return
	}

	value, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("order_id", result.OrderID).Msg("events: failed to encode envelope")
		return
	}

	err = r.pub.Publish(ctx, PartitionKey(result.OrderID), value,
		kafka.Header{Key: "event_type", Value: []byte(EventStatusChanged)},
		kafka.Header{Key: "outcome", Value: []byte(result.Secondary.Outcome)},
	)
	if err != nil {
		log.Warn().Err(err).Str("order_id", result.OrderID).Msg("events: status event dropped")
	}
}
