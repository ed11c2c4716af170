package arrivalalerts

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/userdata"
)

const loadConcurrency = 10

type UserSource interface {
	userdata.BookmarkStore
	userdata.SettingsStore
}

// Manager owns one Scheduler per user and keeps it in step with the users bookmarks and settings
type Manager struct {
	Store      UserSource
	Fetcher    ArrivalFetcher
	Sinks      []AlertSink
	Suppressor Suppressor
	Config     Config

	BaseContext context.Context

	mutex      sync.Mutex
	schedulers map[string]*Scheduler
}

func NewManager(store UserSource, fetcher ArrivalFetcher, sinks []AlertSink, suppressor Suppressor, config Config) *Manager {
	return &Manager{
		Store:       store,
		Fetcher:     fetcher,
		Sinks:       sinks,
		Suppressor:  suppressor,
		Config:      config,
		BaseContext: context.Background(),
		schedulers:  map[string]*Scheduler{},
	}
}

// LoadUsers starts a scheduler for each of the users. Failures are logged per user
// and the first one is returned once every user has been tried.
func (m *Manager) LoadUsers(ctx context.Context, userIDs []string) error {
	loadPool := pool.New().WithMaxGoroutines(loadConcurrency).WithErrors()

	for _, userID := range userIDs {
		userID := userID

		loadPool.Go(func() error {
			err := m.RefreshUser(ctx, userID)
			if err != nil {
				log.Error().Err(err).Str("user", userID).Msg("Failed to load user")
			}

			return err
		})
	}

	err := loadPool.Wait()

	log.Info().Int("users", len(userIDs)).Int("armed", m.ArmedCount()).Msg("Loaded users")

	return err
}

// RefreshUser reloads the users bookmarks and threshold and restarts their scheduler with them
func (m *Manager) RefreshUser(ctx context.Context, userID string) error {
	bookmarks, err := m.Store.ListBookmarks(ctx, userID)
	if err != nil {
		return err
	}

	threshold, err := m.Store.GetAlertThreshold(ctx, userID)
	if err != nil {
		return err
	}

	m.Scheduler(userID).Start(bookmarks, threshold)

	return nil
}

// Scheduler returns the users scheduler, creating an idle one if needed
func (m *Manager) Scheduler(userID string) *Scheduler {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.schedulers == nil {
		m.schedulers = map[string]*Scheduler{}
	}

	scheduler, exists := m.schedulers[userID]
	if !exists {
		scheduler = NewScheduler(userID, m.Fetcher, m.Sinks, m.Suppressor, m.Config)
		if m.BaseContext != nil {
			scheduler.BaseContext = m.BaseContext
		}

		m.schedulers[userID] = scheduler
	}

	return scheduler
}

func (m *Manager) ArmedCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for _, scheduler := range m.schedulers {
		if scheduler.State() != StateIdle {
			count++
		}
	}

	return count
}

func (m *Manager) HandleEvent(event ctdf.Event) {
	switch event.Type {
	case ctdf.EventTypeBookmarksChanged, ctdf.EventTypeSettingsChanged:
	default:
		log.Debug().Str("type", string(event.Type)).Msg("Ignoring event")
		return
	}

	if event.UserID == "" {
		return
	}

	if err := m.RefreshUser(m.baseContext(), event.UserID); err != nil {
		log.Error().Err(err).Str("user", event.UserID).Str("type", string(event.Type)).Msg("Failed to refresh user")
		return
	}

	log.Info().Str("user", event.UserID).Str("type", string(event.Type)).Msg("Refreshed user scheduler")
}

func (m *Manager) StopAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, scheduler := range m.schedulers {
		scheduler.Stop()
	}
}

func (m *Manager) baseContext() context.Context {
	if m.BaseContext == nil {
		return context.Background()
	}

	return m.BaseContext
}
