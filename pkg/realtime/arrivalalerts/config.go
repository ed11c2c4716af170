package arrivalalerts

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	iso8601 "github.com/senseyeio/duration"
	"gopkg.in/yaml.v3"
)

type SuppressionStoreType string

const (
	SuppressionStoreMemory SuppressionStoreType = "memory"
	SuppressionStoreRedis  SuppressionStoreType = "redis"
)

type Config struct {
	PollPeriod   time.Duration
	RouteDelay   time.Duration
	FetchTimeout time.Duration

	// SuppressionWindow of 0 alerts on every qualifying poll
	SuppressionWindow time.Duration
	SuppressionStore  SuppressionStoreType
}

var defaultConfig = Config{
	PollPeriod:        30 * time.Second,
	RouteDelay:        1 * time.Second,
	FetchTimeout:      15 * time.Second,
	SuppressionWindow: 0,
	SuppressionStore:  SuppressionStoreMemory,
}

func DefaultConfig() Config {
	return defaultConfig
}

type fileConfig struct {
	PollPeriod        string `yaml:"poll_period" validate:"omitempty,iso8601duration"`
	RouteDelay        string `yaml:"route_delay" validate:"omitempty,iso8601duration"`
	FetchTimeout      string `yaml:"fetch_timeout" validate:"omitempty,iso8601duration"`
	SuppressionWindow string `yaml:"suppression_window" validate:"omitempty,iso8601duration"`
	SuppressionStore  string `yaml:"suppression_store" validate:"omitempty,oneof=memory redis"`
}

// LoadConfig reads the optional YAML file at path on top of the defaults and then applies
// any environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	config := defaultConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}

		if err := config.applyYAML(data); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	config.applyEnvironment()

	if config.PollPeriod <= 0 {
		return Config{}, fmt.Errorf("poll period must be positive, got %s", config.PollPeriod)
	}
	if config.RouteDelay < 0 || config.FetchTimeout <= 0 || config.SuppressionWindow < 0 {
		return Config{}, fmt.Errorf("invalid alert configuration %+v", config)
	}

	return config, nil
}

func (c *Config) applyYAML(data []byte) error {
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	validate := validator.New()
	if err := validate.RegisterValidation("iso8601duration", func(fl validator.FieldLevel) bool {
		_, err := iso8601.ParseISO8601(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	if err := validate.Struct(file); err != nil {
		return err
	}

	setISODuration(&c.PollPeriod, file.PollPeriod)
	setISODuration(&c.RouteDelay, file.RouteDelay)
	setISODuration(&c.FetchTimeout, file.FetchTimeout)
	setISODuration(&c.SuppressionWindow, file.SuppressionWindow)

	if file.SuppressionStore != "" {
		c.SuppressionStore = SuppressionStoreType(file.SuppressionStore)
	}

	return nil
}

func (c *Config) applyEnvironment() {
	setEnvironmentDuration(&c.PollPeriod, "BUSALERT_ALERT_POLL_PERIOD")
	setEnvironmentDuration(&c.RouteDelay, "BUSALERT_ALERT_ROUTE_DELAY")
	setEnvironmentDuration(&c.FetchTimeout, "BUSALERT_ALERT_FETCH_TIMEOUT")
	setEnvironmentDuration(&c.SuppressionWindow, "BUSALERT_ALERT_SUPPRESSION_WINDOW")

	if val := os.Getenv("BUSALERT_ALERT_SUPPRESSION_STORE"); val == string(SuppressionStoreMemory) || val == string(SuppressionStoreRedis) {
		c.SuppressionStore = SuppressionStoreType(val)
	}
}

func setISODuration(target *time.Duration, value string) {
	if value == "" {
		return
	}

	parsed, err := iso8601.ParseISO8601(value)
	if err != nil {
		return
	}

	reference := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	*target = parsed.Shift(reference).Sub(reference)
}

func setEnvironmentDuration(target *time.Duration, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Ignoring invalid duration")
		return
	}

	*target = parsed
}
