package consumer

import (
	"fmt"
	"net/http"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/redis_client"
)

const statsServerAddress = ":3333"

type RedisConsumer struct {
	QueueName string

	NumberConsumers int
	BatchSize       int

	Timeout time.Duration

	Consumer rmq.BatchConsumer
}

func (c *RedisConsumer) Setup() {
	c.startConsumers()
	go c.startStatsServer()
}

func (c *RedisConsumer) startConsumers() {
	// Run the background consumers
	log.Info().Str("queue", c.QueueName).Msg("Starting consumers")

	queue, err := redis_client.QueueConnection.OpenQueue(c.QueueName)
	if err != nil {
		panic(err)
	}
	if err := queue.StartConsuming(int64(c.NumberConsumers*c.BatchSize), 1*time.Second); err != nil {
		panic(err)
	}

	for i := 0; i < c.NumberConsumers; i++ {
		c.startQueueConsumer(queue, i)
	}
}

func (c *RedisConsumer) startQueueConsumer(queue rmq.Queue, id int) {
	log.Info().Msgf("Starting %s consumer %d", c.QueueName, id)

	if _, err := queue.AddBatchConsumer(fmt.Sprintf("%s-%d", c.QueueName, id), int64(c.BatchSize), c.Timeout, c.Consumer); err != nil {
		panic(err)
	}
}

func (c *RedisConsumer) startStatsServer() {
	mux := http.NewServeMux()

	endpoint := fmt.Sprintf("/%s/stats", c.QueueName)
	mux.Handle(endpoint, NewQueueStatsHandler(redis_client.QueueConnection, c.QueueName))
	mux.Handle("/health", NewHealthHandler(DefaultHealthChecks()))

	log.Info().Msgf("Stats server listening on http://localhost%s%s", statsServerAddress, endpoint)
	if err := http.ListenAndServe(statsServerAddress, mux); err != nil {
		log.Error().Err(err).Msg("Stats server stopped")
	}
}

// Publish JSON payloads onto a queue
func Publish(queueName string, payload []byte) error {
	queue, err := redis_client.QueueConnection.OpenQueue(queueName)
	if err != nil {
		return err
	}

	return queue.PublishBytes(payload)
}
