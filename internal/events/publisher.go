package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yourorg/convosync/internal/models"
)

// Publisher emits conversation events to Kafka for downstream consumers
// (notifications, analytics). Publish failures are logged, never fatal to
// the send path.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) Close() error { return p.writer.Close() }

type messageEvent struct {
	Event     string    `json:"event"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	At        time.Time `json:"at"`
}

func (p *Publisher) MessageSent(ctx context.Context, m models.Message) {
	p.publish(ctx, m.Sender, messageEvent{
		Event:     "message.sent",
		MessageID: m.ID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Kind:      m.Kind.Wire(),
		At:        time.Now().UTC(),
	})
}

func (p *Publisher) MessageDeleted(ctx context.Context, id string) {
	p.publish(ctx, id, messageEvent{
		Event:     "message.deleted",
		MessageID: id,
		At:        time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, key string, ev messageEvent) {
	b, _ := json.Marshal(ev)
	msg := kafka.Message{Key: []byte(key), Value: b, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil && p.log != nil {
		p.log.Warnw("publish event", "event", ev.Event, "error", err)
	}
}
