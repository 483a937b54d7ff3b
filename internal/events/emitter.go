package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	kafkax "github.com/ariefcatur/go-diner-live.git/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

// Emitter adalah batas broadcast fan-out: core hanya menghasilkan event,
// tidak pernah menyapa socket satu-satu.
type Emitter interface {
	Emit(topic string, key []byte, env diner.Envelope)
}

func NewEnvelope(producer, eventType, correlationID string, payload any) diner.Envelope {
	return diner.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

// Kafka mem-publish envelope ke producer async.
type Kafka struct {
	Producer *kafkax.Producer
}

func (k *Kafka) Emit(topic string, key []byte, env diner.Envelope) {
	k.Producer.Publish(topic, key, kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
