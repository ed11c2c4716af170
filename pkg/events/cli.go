package events

import (
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Provides tooling for the user events queue",
		Subcommands: []*cli.Command{
			{
				Name:  "test-event",
				Usage: "publish a bookmarks changed event for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "User ID the event is for",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Event type",
						Value: string(ctdf.EventTypeBookmarksChanged),
					},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					event := ctdf.NewUserEvent(ctdf.EventType(c.String("type")), c.String("user"))
					if err := Publish(event); err != nil {
						return err
					}

					log.Info().Str("user", event.UserID).Str("type", string(event.Type)).Msg("Published event")

					return nil
				},
			},
		},
	}
}
