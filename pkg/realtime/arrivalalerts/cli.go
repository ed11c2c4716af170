package arrivalalerts

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/consumer"
	"github.com/travigo/busalert/pkg/database"
	"github.com/travigo/busalert/pkg/events"
	"github.com/travigo/busalert/pkg/gbis"
	"github.com/travigo/busalert/pkg/redis_client"
	"github.com/travigo/busalert/pkg/userdata"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "arrival-alerts",
		Usage: "Poll bookmarked routes and raise arrival alerts",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the arrival alert schedulers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "YAML file with scheduler settings",
					},
					&cli.StringSliceFlag{
						Name:  "user",
						Usage: "Only run for these users instead of everyone with bookmarks",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := LoadConfig(c.String("config"))
					if err != nil {
						return err
					}

					if err := database.Connect(); err != nil {
						return err
					}
					defer database.Disconnect()

					if err := redis_client.Connect(); err != nil {
						return err
					}

					fetcher, err := gbis.NewClientFromEnvironment()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(c.Context)
					defer cancel()

					store := userdata.NewStoreFromEnvironment()

					manager := NewManager(
						store,
						fetcher,
						[]AlertSink{LogSink{}, NewQueueSink()},
						NewSuppressor(config, redis_client.Client),
						config,
					)
					manager.BaseContext = ctx

					log.Info().
						Dur("period", config.PollPeriod).
						Dur("routedelay", config.RouteDelay).
						Dur("suppression", config.SuppressionWindow).
						Msg("Starting arrival alerts")

					users := c.StringSlice("user")
					if len(users) == 0 {
						users, err = store.ListBookmarkUsers(ctx)
						if err != nil {
							return err
						}
					}

					if err := manager.LoadUsers(ctx, users); err != nil {
						log.Error().Err(err).Msg("Some users failed to load")
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       events.QueueName,
						NumberConsumers: 1,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        events.NewBatchConsumer(manager.HandleEvent),
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

					manager.StopAll()
					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
		},
	}
}
