package api

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/busalert/pkg/api/routes"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/userdata"
)

type Dependencies struct {
	Fetcher      routes.ArrivalFetcher
	Store        userdata.Store
	StationCache routes.StationArrivalCache

	// PublishEvent tells the alert runners a users bookmarks or settings changed
	PublishEvent func(event ctdf.Event) error

	// Authentication fills in account_userid for the account routes, defaults to routes.AccountIdentity
	Authentication fiber.Handler
}

func NewApp(dependencies Dependencies) *fiber.App {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.StationsRouter(group.Group("/stations"), dependencies.Fetcher, dependencies.StationCache)
	routes.BusRoutesRouter(group.Group("/routes"), dependencies.Fetcher)

	authentication := dependencies.Authentication
	if authentication == nil {
		authentication = routes.AccountIdentity()
	}

	routes.AccountRouter(group.Group("/account", authentication), dependencies.Store, dependencies.PublishEvent)

	return webApp
}

func SetupServer(listen string, dependencies Dependencies) error {
	if dependencies.Authentication == nil && os.Getenv("AUTH0_DOMAIN") != "" {
		dependencies.Authentication = EnsureValidToken()
	}

	webApp := NewApp(dependencies)

	return webApp.Listen(listen)
}
