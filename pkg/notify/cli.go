package notify

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/consumer"
	"github.com/travigo/busalert/pkg/database"
	"github.com/travigo/busalert/pkg/elastic_client"
	"github.com/travigo/busalert/pkg/realtime/arrivalalerts"
	"github.com/travigo/busalert/pkg/redis_client"
	"github.com/travigo/busalert/pkg/userdata"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Provides the notification system",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run notify server",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					defer database.Disconnect()

					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}
					defer elastic_client.WaitUntilQueueEmpty()

					store := userdata.NewMongoStore()

					var push PushSender
					pushManager := &PushManager{Targets: store}
					if err := pushManager.Setup(); err != nil {
						log.Warn().Err(err).Msg("Push notifications disabled")
					} else {
						push = pushManager
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       arrivalalerts.NotifyQueueName,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewNotifyBatchConsumer(store, push),
					}
					redisConsumer.Setup()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
		},
	}
}
