package redis_client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/busalert/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"

// rmq prefixes its connection keys with this
const queueConnectionTag = "busalert"

// OptionsFromEnvironment prefers BUSALERT_REDIS_URL, then the address/password/database variables
func OptionsFromEnvironment() (*redis.Options, error) {
	env := util.GetEnvironmentVariables()

	if env["BUSALERT_REDIS_URL"] != "" {
		options, err := redis.ParseURL(env["BUSALERT_REDIS_URL"])
		if err != nil {
			return nil, fmt.Errorf("parsing BUSALERT_REDIS_URL: %w", err)
		}

		return options, nil
	}

	options := &redis.Options{
		Addr:       defaultConnectionAddress,
		ClientName: queueConnectionTag,
	}

	if env["BUSALERT_REDIS_ADDRESS"] != "" {
		options.Addr = env["BUSALERT_REDIS_ADDRESS"]
	}

	options.Password = env["BUSALERT_REDIS_PASSWORD"]

	if env["BUSALERT_REDIS_DATABASE"] != "" {
		database, err := strconv.Atoi(env["BUSALERT_REDIS_DATABASE"])
		if err != nil {
			return nil, fmt.Errorf("parsing BUSALERT_REDIS_DATABASE: %w", err)
		}

		options.DB = database
	}

	return options, nil
}

// Connect sets up the shared client used for alert suppression and caching,
// and the queue connection events and alerts travel over
func Connect() error {
	options, err := OptionsFromEnvironment()
	if err != nil {
		return err
	}

	Client = redis.NewClient(options)

	if err := Client.Ping(context.Background()).Err(); err != nil {
		return err
	}

	QueueConnection, err = rmq.OpenConnectionWithRedisClient(queueConnectionTag, Client, nil)

	return err
}
