package dbwatch

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/database"
	"github.com/travigo/busalert/pkg/events"
	"github.com/travigo/busalert/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "dbwatch",
		Usage: "Watches the user data collections and raises events",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run events server",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					defer database.Disconnect()

					if err := redis_client.Connect(); err != nil {
						return err
					}

					log.Info().Msg("Starting dbwatch server")

					ctx, cancel := context.WithCancel(c.Context)
					defer cancel()

					bookmarksWatch := NewUserDataWatch(database.BookmarkedRoutesCollection, ctdf.EventTypeBookmarksChanged, events.Publish)
					go bookmarksWatch.Run(ctx)

					settingsWatch := NewUserDataWatch(database.NotificationSettingsCollection, ctdf.EventTypeSettingsChanged, events.Publish)
					go settingsWatch.Run(ctx)

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					return nil
				},
			},
		},
	}
}
