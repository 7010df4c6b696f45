// Package publisher announces event lifecycle changes on Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"agenda/internal/event/models"
	"agenda/internal/platform/kafka/producer"
)

// MessageProducer is the subset of the Kafka producer used here.
type MessageProducer interface {
	ProduceAsync(msg *producer.Message) error
}

// Kafka writes one record per lifecycle change, keyed by event id so that
// all changes of an event land on the same partition in order.
type Kafka struct {
	producer MessageProducer
	topic    string
}

func NewKafka(p MessageProducer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic}
}

// Publish enqueues the change for background delivery. Only encoding
// failures and a closed producer are reported; broker failures are logged
// by the producer.
func (k *Kafka) Publish(_ context.Context, evt models.LifecycleEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}
	msg := &producer.Message{
		Topic: k.topic,
		Key:   []byte(evt.EventID),
		Value: payload,
		Headers: map[string]string{
			"event_type": string(evt.Type),
			"tenant_id":  evt.TenantID,
		},
	}
	if err := k.producer.ProduceAsync(msg); err != nil {
		return fmt.Errorf("enqueue lifecycle event: %w", err)
	}
	return nil
}
