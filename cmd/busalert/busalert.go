package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/api"
	"github.com/travigo/busalert/pkg/dbwatch"
	"github.com/travigo/busalert/pkg/events"
	"github.com/travigo/busalert/pkg/gbis"
	"github.com/travigo/busalert/pkg/notify"
	"github.com/travigo/busalert/pkg/realtime/arrivalalerts"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("BUSALERT_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("BUSALERT_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "busalert",
		Description: "Bus arrival alerts for bookmarked routes - runs all the services",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			arrivalalerts.RegisterCLI(),
			notify.RegisterCLI(),
			dbwatch.RegisterCLI(),
			events.RegisterCLI(),
			gbis.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
