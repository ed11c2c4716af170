package arrivalalerts

import (
	"context"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/travigo/busalert/pkg/ctdf"
)

type State string

const (
	StateIdle    State = "Idle"
	StateArmed   State = "Armed"
	StatePolling State = "Polling"
)

type ArrivalFetcher interface {
	FetchArrival(ctx context.Context, routeID string, stationID string, staOrder string) (*ctdf.RouteArrival, error)
}

type CycleReport struct {
	Routes     int
	Fetched    int
	Failed     int
	Alerts     int
	Suppressed int
}

// Scheduler polls the arrivals of one users bookmarked routes and raises alerts
// when the first bus is within their threshold.
//
// Cycles are serialised by pollMutex, so there is never more than one fetch in flight
// for a scheduler even if a tick fires while the previous cycle is still running.
type Scheduler struct {
	UserID string

	Fetcher    ArrivalFetcher
	Sinks      []AlertSink
	Suppressor Suppressor
	Config     Config

	BaseContext context.Context

	mutex     sync.Mutex
	pollMutex sync.Mutex

	bookmarks []*ctdf.BookmarkedRoute
	threshold ctdf.AlertThreshold

	armed   bool
	polling bool
	stop    chan struct{}

	now func() time.Time
}

func NewScheduler(userID string, fetcher ArrivalFetcher, sinks []AlertSink, suppressor Suppressor, config Config) *Scheduler {
	return &Scheduler{
		UserID:      userID,
		Fetcher:     fetcher,
		Sinks:       sinks,
		Suppressor:  suppressor,
		Config:      config,
		BaseContext: context.Background(),
		now:         time.Now,
	}
}

func (s *Scheduler) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch {
	case s.polling:
		return StatePolling
	case s.armed:
		return StateArmed
	default:
		return StateIdle
	}
}

// Start replaces the bookmarks and threshold the scheduler polls with deep copies of the ones given.
// Any running timer is always cancelled first. With nothing to poll, or alerts turned off,
// the scheduler is left Idle.
func (s *Scheduler) Start(bookmarks []*ctdf.BookmarkedRoute, threshold ctdf.AlertThreshold) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stopTimer()

	snapshot := []*ctdf.BookmarkedRoute{}
	for _, bookmark := range bookmarks {
		if bookmark == nil {
			continue
		}

		var copiedBookmark ctdf.BookmarkedRoute
		if err := copier.CopyWithOption(&copiedBookmark, *bookmark, copier.Option{DeepCopy: true}); err != nil {
			log.Error().Err(err).Str("user", s.UserID).Str("routeid", bookmark.RouteID).Msg("Failed to snapshot bookmark")
			continue
		}

		snapshot = append(snapshot, &copiedBookmark)
	}

	s.bookmarks = snapshot
	s.threshold = threshold

	if len(snapshot) == 0 || !threshold.Enabled {
		log.Debug().
			Str("user", s.UserID).
			Int("bookmarks", len(snapshot)).
			Bool("enabled", threshold.Enabled).
			Msg("Scheduler idle")
		return
	}

	stop := make(chan struct{})
	s.stop = stop
	s.armed = true

	log.Info().
		Str("user", s.UserID).
		Int("bookmarks", len(snapshot)).
		Int("minutesbefore", threshold.MinutesBefore).
		Dur("period", s.Config.PollPeriod).
		Msg("Scheduler armed")

	go s.run(stop, s.Config.PollPeriod)
}

// Stop cancels the timer. A cycle that is already running is left to finish.
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stopTimer()
}

func (s *Scheduler) stopTimer() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}

	s.armed = false
}

func (s *Scheduler) run(stop chan struct{}, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}

			s.RunCycle(s.baseContext())
		}
	}
}

// RunCycle polls every bookmarked route once, strictly one after another in bookmark order,
// pausing RouteDelay after each route whatever the outcome.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	s.pollMutex.Lock()
	defer s.pollMutex.Unlock()

	s.mutex.Lock()
	bookmarks := s.bookmarks
	threshold := s.threshold
	s.polling = true
	s.mutex.Unlock()

	defer func() {
		s.mutex.Lock()
		s.polling = false
		s.mutex.Unlock()
	}()

	report := CycleReport{Routes: len(bookmarks)}
	startTime := time.Now()

	for _, bookmark := range bookmarks {
		s.pollRoute(ctx, bookmark, threshold, &report)

		if !s.wait(ctx, s.Config.RouteDelay) {
			break
		}
	}

	log.Debug().
		Str("user", s.UserID).
		Int("routes", report.Routes).
		Int("fetched", report.Fetched).
		Int("failed", report.Failed).
		Int("alerts", report.Alerts).
		Int("suppressed", report.Suppressed).
		Str("length", time.Since(startTime).String()).
		Msg("Poll cycle complete")

	return report
}

func (s *Scheduler) pollRoute(ctx context.Context, bookmark *ctdf.BookmarkedRoute, threshold ctdf.AlertThreshold, report *CycleReport) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout())
	arrival, err := s.Fetcher.FetchArrival(fetchCtx, bookmark.RouteID, bookmark.StationID, bookmark.StaOrder)
	cancel()

	if err != nil {
		report.Failed++

		log.Error().Err(err).
			Str("user", s.UserID).
			Str("routeid", bookmark.RouteID).
			Str("stationid", bookmark.StationID).
			Msg("Failed to fetch route arrival")
		return
	}

	report.Fetched++

	if arrival == nil || !arrival.IsActive() {
		return
	}

	firstBusTime, ok := arrival.FirstBusMinutes()
	if !ok || !threshold.Triggers(firstBusTime) {
		return
	}

	alert := ctdf.NewArrivalAlert(bookmark, arrival, firstBusTime, threshold, s.currentTime())

	if s.Suppressor != nil && s.Suppressor.ShouldSuppress(ctx, alert.SuppressionKey()) {
		report.Suppressed++
		return
	}

	report.Alerts++

	for _, sink := range s.Sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			log.Warn().Err(err).
				Str("user", s.UserID).
				Str("routeid", bookmark.RouteID).
				Msg("Failed to deliver alert")
		}
	}
}

func (s *Scheduler) wait(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) fetchTimeout() time.Duration {
	if s.Config.FetchTimeout <= 0 {
		return defaultConfig.FetchTimeout
	}

	return s.Config.FetchTimeout
}

func (s *Scheduler) currentTime() time.Time {
	if s.now == nil {
		return time.Now()
	}

	return s.now()
}

func (s *Scheduler) baseContext() context.Context {
	if s.BaseContext == nil {
		return context.Background()
	}

	return s.BaseContext
}
