package api

import (
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/api/routes"
	"github.com/travigo/busalert/pkg/database"
	"github.com/travigo/busalert/pkg/events"
	"github.com/travigo/busalert/pkg/gbis"
	"github.com/travigo/busalert/pkg/redis_client"
	"github.com/travigo/busalert/pkg/userdata"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the core web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
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

					log.Info().Str("listen", c.String("listen")).Msg("Starting web API")

					return SetupServer(c.String("listen"), Dependencies{
						Fetcher:      fetcher,
						Store:        userdata.NewStoreFromEnvironment(),
						StationCache: routes.NewRedisStationArrivalCache(redis_client.Client),
						PublishEvent: events.Publish,
					})
				},
			},
		},
	}
}
