package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/elastic_client"
	"github.com/travigo/busalert/pkg/userdata"
)

const notificationIndexName = "busalert-notifications"

type NotifyBatchConsumer struct {
	Notifications userdata.NotificationStore
	Push          PushSender
	Index         func(indexName string, document any) error

	Timeout time.Duration
}

func NewNotifyBatchConsumer(notifications userdata.NotificationStore, push PushSender) *NotifyBatchConsumer {
	return &NotifyBatchConsumer{
		Notifications: notifications,
		Push:          push,
		Index:         elastic_client.IndexDocument,
		Timeout:       30 * time.Second,
	}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	processPool := pool.New().WithMaxGoroutines(len(payloads) + 1)
	for _, payload := range payloads {
		payload := payload

		processPool.Go(func() {
			var alert ctdf.ArrivalAlert
			if err := json.Unmarshal([]byte(payload), &alert); err != nil {
				log.Error().Err(err).Msg("Failed to decode arrival alert")
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
			defer cancel()

			c.Process(ctx, &alert)
		})
	}
	processPool.Wait()

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to consume from queue")
		}
	}
}

// Process stores the alert in the users history and then delivers it. Delivery is best effort,
// a failed push or index never drops the history record.
func (c *NotifyBatchConsumer) Process(ctx context.Context, alert *ctdf.ArrivalAlert) {
	notification := alert.Notification()

	if err := c.Notifications.AddNotification(ctx, notification); err != nil {
		log.Error().Err(err).Str("user", alert.UserID).Msg("Failed to store notification")
	}

	if c.Index != nil {
		if err := c.Index(notificationIndexName, alert); err != nil {
			log.Error().Err(err).Str("user", alert.UserID).Msg("Failed to index notification")
		}
	}

	if c.Push == nil {
		return
	}

	err := c.Push.SendPush(ctx, notification)
	if errors.Is(err, ErrNoPushTarget) {
		log.Debug().Str("user", alert.UserID).Msg("No push target registered")
	} else if err != nil {
		log.Error().Err(err).Str("user", alert.UserID).Msg("Failed to send push notification")
	}
}
