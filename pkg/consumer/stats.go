package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/travigo/busalert/pkg/database"
	"github.com/travigo/busalert/pkg/redis_client"
)

const healthCheckTimeout = 5 * time.Second

type queueSummary struct {
	Ready     int64 `json:"ready"`
	Rejected  int64 `json:"rejected"`
	Unacked   int64 `json:"unacked"`
	Consumers int64 `json:"consumers"`
}

// QueueStatsHandler reports on the one queue a consumer process serves
type QueueStatsHandler struct {
	redisConnection rmq.Connection
	queueName       string
}

func NewQueueStatsHandler(connection rmq.Connection, queueName string) *QueueStatsHandler {
	return &QueueStatsHandler{redisConnection: connection, queueName: queueName}
}

func (handler *QueueStatsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	// get redis queue stats
	stats, err := handler.redisConnection.CollectStats([]string{handler.queueName})
	if err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(writer, err)
		return
	}

	if request.FormValue("format") == "json" {
		queueStat := stats.QueueStats[handler.queueName]

		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(map[string]queueSummary{
			handler.queueName: {
				Ready:     queueStat.ReadyCount,
				Rejected:  queueStat.RejectedCount,
				Unacked:   queueStat.UnackedCount(),
				Consumers: queueStat.ConsumerCount(),
			},
		})
		return
	}

	fmt.Fprint(writer, stats.GetHtml(request.FormValue("layout"), request.FormValue("refresh")))
}

type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// DefaultHealthChecks covers redis, and mongo once it has been connected
func DefaultHealthChecks() map[string]HealthCheck {
	return map[string]HealthCheck{
		"redis": func(ctx context.Context) error {
			return redis_client.Client.Ping(ctx).Err()
		},
		"mongo": func(ctx context.Context) error {
			if database.MongoGlobalInstance == nil {
				return nil
			}

			return database.MongoGlobalInstance.Client.Ping(ctx, nil)
		},
	}
}

func (handler *HealthHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), healthCheckTimeout)
	defer cancel()

	for name, check := range handler.checks {
		if err := check(ctx); err != nil {
			writer.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(writer, "%s: %s", name, err)

			return
		}
	}

	writer.WriteHeader(http.StatusOK)
	fmt.Fprint(writer, "OK")
}
