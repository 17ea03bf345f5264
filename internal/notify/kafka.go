package notify

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// KafkaNotifier publishes one JSON message per appointment change. The writer
// runs in async mode so Notify never waits on the brokers; delivery errors are
// only logged.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafkaNotifier(brokers []string, topic string, logger zerolog.Logger) *KafkaNotifier {
	log := logger.With().Str("component", "kafka_notifier").Str("topic", topic).Logger()
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Msg("failed to deliver appointment notifications")
			}
		},
	}
	return &KafkaNotifier{writer: w, log: log}
}

func (n *KafkaNotifier) Notify(ctx context.Context, ev appointment.Notification) {
	msg, err := buildMessage(ctx, ev)
	if err != nil {
		n.log.Error().Err(err).Str("appointment_id", ev.AppointmentID.String()).Msg("failed to encode notification")
		return
	}
	// Async writers return immediately; the request context may be gone by the
	// time the batch is flushed.
	if err := n.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		n.log.Error().Err(err).Str("appointment_id", ev.AppointmentID.String()).Msg("failed to enqueue notification")
	}
}

// Close flushes pending messages.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// buildMessage keys messages by provider so one provider's changes stay
// ordered within a partition.
func buildMessage(ctx context.Context, ev appointment.Notification) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Key:   []byte(ev.ProviderID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "appointment_id", Value: []byte(ev.AppointmentID.String())},
		},
	}
	carrier := &headerCarrier{headers: msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	msg.Headers = carrier.headers
	return msg, nil
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
