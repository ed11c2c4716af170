package arrivalalerts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/busalert/pkg/ctdf"
	"github.com/travigo/busalert/pkg/gbis"
)

type fakeFetcher struct {
	mutex    sync.Mutex
	arrivals map[string]*ctdf.RouteArrival
	errors   map[string]error
	calls    []string

	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		arrivals: map[string]*ctdf.RouteArrival{},
		errors:   map[string]error{},
	}
}

func (f *fakeFetcher) FetchArrival(ctx context.Context, routeID string, stationID string, staOrder string) (*ctdf.RouteArrival, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		previous := f.maxInFlight.Load()
		if current <= previous || f.maxInFlight.CompareAndSwap(previous, current) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.calls = append(f.calls, routeID)

	if err := f.errors[routeID]; err != nil {
		return nil, err
	}

	arrival, exists := f.arrivals[routeID]
	if !exists {
		return &ctdf.RouteArrival{RouteID: routeID, StationID: stationID, StaOrder: staOrder}, nil
	}

	return arrival, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return append([]string{}, f.calls...)
}

type recordingSink struct {
	mutex  sync.Mutex
	alerts []*ctdf.ArrivalAlert
	err    error
}

func (r *recordingSink) Deliver(_ context.Context, alert *ctdf.ArrivalAlert) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.alerts = append(r.alerts, alert)

	return r.err
}

func (r *recordingSink) Alerts() []*ctdf.ArrivalAlert {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return append([]*ctdf.ArrivalAlert{}, r.alerts...)
}

func minutes(m int) *int {
	return &m
}

func plate(p string) *string {
	return &p
}

func testConfig() Config {
	return Config{
		PollPeriod:   20 * time.Millisecond,
		RouteDelay:   0,
		FetchTimeout: time.Second,
	}
}

func activeArrival(routeID string, predictMinutes int) *ctdf.RouteArrival {
	return &ctdf.RouteArrival{
		RouteID: routeID,
		Bus1: ctdf.BusSlot{
			PredictMinutes: minutes(predictMinutes),
			PlateNumber:    plate("경기70아" + routeID),
		},
	}
}

func TestRunCycleThreshold(t *testing.T) {
	tests := []struct {
		name           string
		predictMinutes int
		expectedAlerts int
	}{
		{name: "at threshold", predictMinutes: 5, expectedAlerts: 1},
		{name: "inside threshold", predictMinutes: 1, expectedAlerts: 1},
		{name: "outside threshold", predictMinutes: 6, expectedAlerts: 0},
		{name: "no prediction", predictMinutes: 0, expectedAlerts: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fetcher := newFakeFetcher()
			fetcher.arrivals["146"] = activeArrival("146", test.predictMinutes)

			sink := &recordingSink{}
			scheduler := NewScheduler("12", fetcher, []AlertSink{sink}, nil, testConfig())

			scheduler.Start([]*ctdf.BookmarkedRoute{
				{UserID: "12", RouteID: "146", StationID: "9700", StaOrder: "3"},
			}, ctdf.AlertThreshold{UserID: "12", MinutesBefore: 5, Enabled: true})
			scheduler.Stop()

			report := scheduler.RunCycle(context.Background())

			assert.Equal(t, test.expectedAlerts, report.Alerts)
			assert.Len(t, sink.Alerts(), test.expectedAlerts)
		})
	}
}

func TestRunCycleAlertMessage(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.arrivals["200000085"] = &ctdf.RouteArrival{
		RouteID:   "200000085",
		RouteName: "146",
		Bus1:      ctdf.BusSlot{PredictMinutes: minutes(12), PlateNumber: plate("A")},
		Bus2:      ctdf.BusSlot{PredictMinutes: minutes(4), PlateNumber: plate("B")},
	}

	sink := &recordingSink{}
	scheduler := NewScheduler("12", fetcher, []AlertSink{sink}, nil, testConfig())
	scheduler.Start([]*ctdf.BookmarkedRoute{
		{UserID: "12", RouteID: "200000085", StationID: "200000177", StationName: "강남역", StaOrder: "3"},
	}, ctdf.AlertThreshold{MinutesBefore: 5, Enabled: true})
	scheduler.Stop()

	scheduler.RunCycle(context.Background())

	alerts := sink.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "4분 후 146번 버스가 강남역에 도착합니다!", alerts[0].Message)
	assert.Equal(t, "B", alerts[0].PlateNumber)
	assert.Equal(t, 4, alerts[0].PredictMinutes)
	assert.Equal(t, ctdf.ArrivalAlertTitle, alerts[0].Title)
}

func TestRunCycleContinuesAfterFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.errors["1"] = &gbis.TransportError{StatusCode: 500, Err: errors.New("boom")}
	fetcher.errors["2"] = &gbis.UpstreamError{ResultCode: 4, Message: "결과가 존재하지 않습니다."}
	fetcher.arrivals["3"] = activeArrival("3", 2)

	sink := &recordingSink{}
	scheduler := NewScheduler("12", fetcher, []AlertSink{sink}, nil, testConfig())
	scheduler.Start([]*ctdf.BookmarkedRoute{
		{RouteID: "1", StationID: "S", StaOrder: "1"},
		{RouteID: "2", StationID: "S", StaOrder: "1"},
		{RouteID: "3", StationID: "S", StaOrder: "1"},
	}, ctdf.DefaultAlertThreshold("12"))
	scheduler.Stop()

	report := scheduler.RunCycle(context.Background())

	assert.Equal(t, []string{"1", "2", "3"}, fetcher.Calls())
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Alerts)
	assert.Len(t, sink.Alerts(), 1)

	// A failing sink does not stop other sinks or routes
	failingSink := &recordingSink{err: errors.New("push failed")}
	scheduler.Sinks = []AlertSink{failingSink, sink}
	scheduler.RunCycle(context.Background())
	assert.Len(t, failingSink.Alerts(), 1)
	assert.Len(t, sink.Alerts(), 2)
}

func TestRunCycleRouteDelay(t *testing.T) {
	fetcher := newFakeFetcher()

	config := testConfig()
	config.RouteDelay = 30 * time.Millisecond

	scheduler := NewScheduler("12", fetcher, nil, nil, config)
	scheduler.Start([]*ctdf.BookmarkedRoute{
		{RouteID: "1", StationID: "S", StaOrder: "1"},
		{RouteID: "2", StationID: "S", StaOrder: "1"},
	}, ctdf.DefaultAlertThreshold("12"))
	scheduler.Stop()

	startTime := time.Now()
	scheduler.RunCycle(context.Background())

	assert.GreaterOrEqual(t, time.Since(startTime), 60*time.Millisecond)
}

func TestStartEmptyBookmarksStaysIdle(t *testing.T) {
	fetcher := newFakeFetcher()
	scheduler := NewScheduler("12", fetcher, nil, nil, testConfig())

	scheduler.Start(nil, ctdf.DefaultAlertThreshold("12"))
	assert.Equal(t, StateIdle, scheduler.State())

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, fetcher.Calls())
}

func TestStartDisabledStaysIdle(t *testing.T) {
	fetcher := newFakeFetcher()
	scheduler := NewScheduler("12", fetcher, nil, nil, testConfig())

	scheduler.Start([]*ctdf.BookmarkedRoute{{RouteID: "1", StationID: "S", StaOrder: "1"}}, ctdf.AlertThreshold{MinutesBefore: 5, Enabled: false})
	assert.Equal(t, StateIdle, scheduler.State())
}

func TestStartArmsAndStops(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.arrivals["1"] = activeArrival("1", 3)

	sink := &recordingSink{}
	scheduler := NewScheduler("12", fetcher, []AlertSink{sink}, nil, testConfig())

	scheduler.Start([]*ctdf.BookmarkedRoute{{RouteID: "1", StationID: "S", StaOrder: "1"}}, ctdf.DefaultAlertThreshold("12"))
	assert.NotEqual(t, StateIdle, scheduler.State())

	assert.Eventually(t, func() bool {
		return len(sink.Alerts()) >= 2
	}, time.Second, 5*time.Millisecond)

	scheduler.Stop()

	assert.Eventually(t, func() bool {
		return scheduler.State() == StateIdle
	}, time.Second, 5*time.Millisecond)

	callsAfterStop := len(fetcher.Calls())
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, callsAfterStop, len(fetcher.Calls()))
}

func TestRestartReplacesSnapshot(t *testing.T) {
	fetcher := newFakeFetcher()
	scheduler := NewScheduler("12", fetcher, nil, nil, testConfig())

	bookmarks := []*ctdf.BookmarkedRoute{{RouteID: "1", StationID: "S", StaOrder: "1"}}
	scheduler.Start(bookmarks, ctdf.DefaultAlertThreshold("12"))

	// Mutating the callers slice must not leak into the running scheduler
	bookmarks[0].RouteID = "mutated"

	scheduler.Start([]*ctdf.BookmarkedRoute{{RouteID: "2", StationID: "S", StaOrder: "1"}}, ctdf.DefaultAlertThreshold("12"))

	assert.Eventually(t, func() bool {
		return len(fetcher.Calls()) >= 2
	}, time.Second, 5*time.Millisecond)

	scheduler.Stop()

	for _, call := range fetcher.Calls() {
		assert.Equal(t, "2", call)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	fetcher := newFakeFetcher()
	scheduler := NewScheduler("12", fetcher, nil, nil, testConfig())

	bookmarks := []*ctdf.BookmarkedRoute{{RouteID: "1", StationID: "S", StaOrder: "1"}}
	scheduler.Start(bookmarks, ctdf.DefaultAlertThreshold("12"))
	scheduler.Stop()

	bookmarks[0].RouteID = "mutated"
	scheduler.RunCycle(context.Background())

	assert.Equal(t, []string{"1"}, fetcher.Calls())
}

func TestCyclesNeverOverlap(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 15 * time.Millisecond

	scheduler := NewScheduler("12", fetcher, nil, nil, testConfig())
	scheduler.Start([]*ctdf.BookmarkedRoute{
		{RouteID: "1", StationID: "S", StaOrder: "1"},
		{RouteID: "2", StationID: "S", StaOrder: "1"},
		{RouteID: "3", StationID: "S", StaOrder: "1"},
	}, ctdf.DefaultAlertThreshold("12"))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.RunCycle(context.Background())
		}()
	}
	wg.Wait()

	scheduler.Stop()

	assert.Equal(t, int32(1), fetcher.maxInFlight.Load())
	assert.GreaterOrEqual(t, len(fetcher.Calls()), 9)
}

func TestRunCycleSuppression(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.arrivals["1"] = activeArrival("1", 3)

	sink := &recordingSink{}
	scheduler := NewScheduler("12", fetcher, []AlertSink{sink}, NewMemorySuppressor(time.Minute), testConfig())
	scheduler.Start([]*ctdf.BookmarkedRoute{{UserID: "12", RouteID: "1", StationID: "S", StaOrder: "1"}}, ctdf.DefaultAlertThreshold("12"))
	scheduler.Stop()

	first := scheduler.RunCycle(context.Background())
	second := scheduler.RunCycle(context.Background())

	assert.Equal(t, 1, first.Alerts)
	assert.Equal(t, 0, second.Alerts)
	assert.Equal(t, 1, second.Suppressed)
	assert.Len(t, sink.Alerts(), 1)

	// A different bus on the same route is a new alert
	fetcher.mutex.Lock()
	fetcher.arrivals["1"] = &ctdf.RouteArrival{RouteID: "1", Bus1: ctdf.BusSlot{PredictMinutes: minutes(2), PlateNumber: plate("other")}}
	fetcher.mutex.Unlock()

	third := scheduler.RunCycle(context.Background())
	assert.Equal(t, 1, third.Alerts)
}

func TestRunCycleWithoutSuppressionRepeats(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.arrivals["1"] = activeArrival("1", 3)

	sink := &recordingSink{}
	scheduler := NewScheduler("12", fetcher, []AlertSink{sink}, nil, testConfig())
	scheduler.Start([]*ctdf.BookmarkedRoute{{RouteID: "1", StationID: "S", StaOrder: "1"}}, ctdf.DefaultAlertThreshold("12"))
	scheduler.Stop()

	scheduler.RunCycle(context.Background())
	scheduler.RunCycle(context.Background())

	assert.Len(t, sink.Alerts(), 2)
}
