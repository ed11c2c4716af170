package gbis

import (
	"context"

	"github.com/kr/pretty"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "gbis",
		Usage: "Query the Gyeonggi bus arrival API directly",
		Subcommands: []*cli.Command{
			{
				Name:  "arrival",
				Usage: "print the arrival prediction for one route at one stop",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "route",
						Usage:    "Route ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "station",
						Usage:    "Station ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "order",
						Usage:    "Order of the station along the route",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					client, err := NewClientFromEnvironment()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(c.Context, DefaultTimeout)
					defer cancel()

					arrival, err := client.FetchArrival(ctx, c.String("route"), c.String("station"), c.String("order"))
					if err != nil {
						return err
					}

					pretty.Println(arrival.WithDisplay())

					return nil
				},
			},
			{
				Name:  "station",
				Usage: "print every route arrival at a stop",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "station",
						Usage:    "Station ID",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					client, err := NewClientFromEnvironment()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(c.Context, DefaultTimeout)
					defer cancel()

					arrivals, queryTime, err := client.FetchStationArrivals(ctx, c.String("station"))
					if err != nil {
						return err
					}

					classified := ctdf.ClassifyRouteArrivals(arrivals)

					pretty.Println("Query time:", queryTime)
					pretty.Println("Active:", ctdf.WithDisplay(classified.Active))
					pretty.Println("Inactive:", ctdf.WithDisplay(classified.Inactive))

					return nil
				},
			},
			{
				Name:  "route-stations",
				Usage: "print the stops a route serves in order",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "route",
						Usage:    "Route ID",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					client, err := NewClientFromEnvironment()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(c.Context, DefaultTimeout)
					defer cancel()

					stations, queryTime, err := client.FetchRouteStations(ctx, c.String("route"))
					if err != nil {
						return err
					}

					pretty.Println("Query time:", queryTime)
					for _, station := range stations {
						pretty.Printf("%3d %s (%s) %f,%f\n", station.StationSeq, station.StationName, station.StationID, station.Latitude, station.Longitude)
					}

					return nil
				},
			},
		},
	}
}
