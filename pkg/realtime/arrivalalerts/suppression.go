package arrivalalerts

import (
	"context"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Suppressor decides whether an alert has already been raised for the same bus recently
type Suppressor interface {
	// ShouldSuppress records key and reports whether it was already recorded inside the window
	ShouldSuppress(ctx context.Context, key string) bool
}

// NewSuppressor returns nil when the window is 0, which disables suppression entirely
func NewSuppressor(config Config, redisClient *redis.Client) Suppressor {
	if config.SuppressionWindow <= 0 {
		return nil
	}

	if config.SuppressionStore == SuppressionStoreRedis && redisClient != nil {
		return NewCacheSuppressor(redisClient, config.SuppressionWindow)
	}

	return NewMemorySuppressor(config.SuppressionWindow)
}

type MemorySuppressor struct {
	Window time.Duration

	mutex sync.Mutex
	seen  map[string]time.Time
	now   func() time.Time
}

func NewMemorySuppressor(window time.Duration) *MemorySuppressor {
	return &MemorySuppressor{
		Window: window,
		seen:   map[string]time.Time{},
		now:    time.Now,
	}
}

func (s *MemorySuppressor) ShouldSuppress(_ context.Context, key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()

	for seenKey, seenTime := range s.seen {
		if now.Sub(seenTime) >= s.Window {
			delete(s.seen, seenKey)
		}
	}

	if _, exists := s.seen[key]; exists {
		return true
	}

	s.seen[key] = now

	return false
}

type stringCache interface {
	Get(ctx context.Context, key any) (string, error)
	Set(ctx context.Context, key any, object string, options ...store.Option) error
}

// CacheSuppressor shares suppression state between alert runners through Redis
type CacheSuppressor struct {
	Window time.Duration

	cache stringCache
}

func NewCacheSuppressor(redisClient *redis.Client, window time.Duration) *CacheSuppressor {
	redisStore := redisstore.NewRedis(redisClient, store.WithExpiration(window))

	return &CacheSuppressor{
		Window: window,
		cache:  cache.New[string](redisStore),
	}
}

func (s *CacheSuppressor) ShouldSuppress(ctx context.Context, key string) bool {
	cacheKey := "arrivalalerts/suppress/" + key

	if _, err := s.cache.Get(ctx, cacheKey); err == nil {
		return true
	}

	if err := s.cache.Set(ctx, cacheKey, time.Now().Format(time.RFC3339), store.WithExpiration(s.Window)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to record alert suppression")
	}

	return false
}
