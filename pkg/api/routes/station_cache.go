package routes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
)

const StationArrivalCacheExpiration = 15 * time.Second

type StationArrivals struct {
	Arrivals  []*ctdf.RouteArrival
	QueryTime string
}

type StationArrivalCache interface {
	Get(ctx context.Context, stationID string) (*StationArrivals, bool)
	Set(ctx context.Context, stationID string, arrivals *StationArrivals)
}

// RedisStationArrivalCache keeps station arrival lists briefly so busy stations
// don't cost an upstream request per page load
type RedisStationArrivalCache struct {
	Expiration time.Duration

	cache *cache.Cache[string]
}

func NewRedisStationArrivalCache(redisClient *redis.Client) *RedisStationArrivalCache {
	redisStore := redisstore.NewRedis(redisClient, store.WithExpiration(StationArrivalCacheExpiration))

	return &RedisStationArrivalCache{
		Expiration: StationArrivalCacheExpiration,
		cache:      cache.New[string](redisStore),
	}
}

func (s *RedisStationArrivalCache) Get(ctx context.Context, stationID string) (*StationArrivals, bool) {
	value, err := s.cache.Get(ctx, stationCacheKey(stationID))
	if err != nil {
		return nil, false
	}

	var arrivals StationArrivals
	if err := json.Unmarshal([]byte(value), &arrivals); err != nil {
		log.Error().Err(err).Str("stationid", stationID).Msg("Failed to decode cached station arrivals")
		return nil, false
	}

	return &arrivals, true
}

func (s *RedisStationArrivalCache) Set(ctx context.Context, stationID string, arrivals *StationArrivals) {
	arrivalsBytes, err := json.Marshal(arrivals)
	if err != nil {
		log.Error().Err(err).Str("stationid", stationID).Msg("Failed to encode station arrivals")
		return
	}

	err = s.cache.Set(ctx, stationCacheKey(stationID), string(arrivalsBytes), store.WithExpiration(s.Expiration))
	if err != nil {
		log.Error().Err(err).Str("stationid", stationID).Msg("Failed to cache station arrivals")
	}
}

func stationCacheKey(stationID string) string {
	return "api/stationarrivals/" + stationID
}
