package events

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/consumer"
	"github.com/travigo/busalert/pkg/ctdf"
)

const QueueName = "events-queue"

func Publish(event ctdf.Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return consumer.Publish(QueueName, eventBytes)
}

// BatchConsumer decodes events off the queue and hands each one to Handler
type BatchConsumer struct {
	Handler func(event ctdf.Event)
}

func NewBatchConsumer(handler func(event ctdf.Event)) *BatchConsumer {
	return &BatchConsumer{Handler: handler}
}

func (c *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var event ctdf.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Error().Err(err).Msg("Failed to decode event")
			continue
		}

		c.Handler(event)
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to consume event")
		}
	}
}
