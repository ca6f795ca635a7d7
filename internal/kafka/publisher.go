package kafka

import (
	"context"
	"fmt"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/ariefcatur/storefront-fulfillment/internal/tracing"
	"github.com/segmentio/kafka-go"
	"strconv"
)

// EnvelopePublisher routes lifecycle envelopes to their topics.
type EnvelopePublisher struct {
	Producer *Producer
}

func (p *EnvelopePublisher) Publish(ctx context.Context, env orders.Envelope) error {
	topic := orders.TopicFor(env.EventType)
	if topic == "" {
		return fmt.Errorf("no topic for event type %q", env.EventType)
	}
	headers := []kafka.Header{
		{Key: "x-event-type", Value: []byte(env.EventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	}
	headers = tracing.InjectKafkaHeaders(ctx, headers)
	return p.Producer.Publish(ctx, topic, orders.PartitionKey(env.CorrelationID), MustMarshal(env), headers...)
}
