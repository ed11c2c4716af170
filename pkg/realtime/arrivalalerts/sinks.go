package arrivalalerts

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/consumer"
	"github.com/travigo/busalert/pkg/ctdf"
)

const NotifyQueueName = "notify-queue"

type AlertSink interface {
	Deliver(ctx context.Context, alert *ctdf.ArrivalAlert) error
}

// LogSink is the in-app toast, written to the log of the runner
type LogSink struct{}

func (s LogSink) Deliver(_ context.Context, alert *ctdf.ArrivalAlert) error {
	log.Info().
		Str("user", alert.UserID).
		Str("route", alert.RouteID).
		Str("station", alert.StationID).
		Int("minutes", alert.PredictMinutes).
		Msg(alert.Message)

	return nil
}

// QueueSink hands the alert to the notify service for history, indexing and push delivery
type QueueSink struct {
	QueueName string
	Publish   func(queueName string, payload []byte) error
}

func NewQueueSink() *QueueSink {
	return &QueueSink{
		QueueName: NotifyQueueName,
		Publish:   consumer.Publish,
	}
}

func (s *QueueSink) Deliver(_ context.Context, alert *ctdf.ArrivalAlert) error {
	alertBytes, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	return s.Publish(s.QueueName, alertBytes)
}
