package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
	"gateway-monitor/internal/observability/metrics"
)

// TelemetryFetcher fetches current telemetry for one gateway. It must not
// retry internally; retry policy belongs to the scheduler's cycle cadence.
type TelemetryFetcher interface {
	Fetch(ctx context.Context, gatewayID string) (monitoring.Telemetry, error)
}

// SubscriptionLister snapshots the active subscriptions once per cycle.
type SubscriptionLister interface {
	ListActive(ctx context.Context) ([]monitoring.Subscription, error)
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Subscriptions int
	Gateways      int
	FetchErrors   int
	SkippedBusy   int
	Transitions   int
	Dispatch      DispatchReport
}

// Scheduler drives the monitoring loop. Each tick it snapshots the active
// subscriptions, fetches each distinct gateway exactly once (concurrently,
// bounded by a per-fetch timeout), evaluates and detects per (user, gateway)
// pair from the shared result, then dispatches the cycle's transitions.
// A gateway whose fetch from a previous cycle is still in flight is skipped,
// never fetched twice concurrently.
type Scheduler struct {
	subscriptions SubscriptionLister
	fetcher       TelemetryFetcher
	detector      *Detector
	dispatcher    *Dispatcher
	logger        *log.Logger
	clock         Clock

	interval     time.Duration
	fetchTimeout time.Duration
	cycleTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// SchedulerOption customizes the scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the poll interval.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithFetchTimeout bounds a single gateway fetch.
func WithFetchTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
	}
}

// WithCycleTimeout bounds a whole poll cycle.
func WithCycleTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.cycleTimeout = timeout
		}
	}
}

// WithSchedulerClock overrides the default clock.
func WithSchedulerClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewScheduler constructs a poll scheduler.
func NewScheduler(subscriptions SubscriptionLister, fetcher TelemetryFetcher, detector *Detector, dispatcher *Dispatcher, logger *log.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if subscriptions == nil {
		return nil, errors.New("scheduler: nil subscription lister")
	}
	if fetcher == nil {
		return nil, errors.New("scheduler: nil fetcher")
	}
	if detector == nil {
		return nil, errors.New("scheduler: nil detector")
	}
	if dispatcher == nil {
		return nil, errors.New("scheduler: nil dispatcher")
	}
	if logger == nil {
		logger = log.Default()
	}
	scheduler := &Scheduler{
		subscriptions: subscriptions,
		fetcher:       fetcher,
		detector:      detector,
		dispatcher:    dispatcher,
		logger:        logger,
		clock:         systemClock{},
		interval:      time.Minute,
		fetchTimeout:  10 * time.Second,
		cycleTimeout:  50 * time.Second,
		inflight:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(scheduler)
	}
	return scheduler, nil
}

// Start runs the loop until ctx is done. No cycle error is fatal; the loop
// survives unbounded sequences of per-gateway failures.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
			if _, err := s.RunCycle(cycleCtx, now.UTC()); err != nil {
				s.logger.Printf("poll cycle error: %v", err)
			}
			cancel()
		}
	}
}

type fetchOutcome struct {
	telemetry monitoring.Telemetry
	err       error
}

// RunCycle executes one poll cycle.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	started := s.clock.Now()
	report := CycleReport{}

	subs, err := s.subscriptions.ListActive(ctx)
	if err != nil {
		metrics.ObservePollCycle(metrics.ResultError, s.clock.Now().Sub(started))
		return report, err
	}
	report.Subscriptions = len(subs)
	metrics.SetActiveSubscriptions(len(subs))
	if len(subs) == 0 {
		metrics.ObservePollCycle(metrics.ResultSuccess, s.clock.Now().Sub(started))
		return report, nil
	}

	gatewayIDs, byGateway := groupByGateway(subs)
	report.Gateways = len(gatewayIDs)

	var (
		wg      sync.WaitGroup
		eventMu sync.Mutex
		events  []monitoring.TransitionEvent
	)
	for _, gatewayID := range gatewayIDs {
		if !s.claim(gatewayID) {
			report.SkippedBusy++
			s.logger.Printf("poll skip: gateway=%s fetch still in flight", gatewayID)
			continue
		}
		wg.Add(1)
		go func(gatewayID string, pairs []monitoring.Subscription) {
			defer wg.Done()
			defer s.release(gatewayID)

			outcome := s.fetch(ctx, gatewayID)
			if outcome.err != nil {
				// Policy: a fetch failure never flips state, the pair is
				// simply skipped for this cycle.
				eventMu.Lock()
				report.FetchErrors++
				eventMu.Unlock()
				metrics.IncFetch(fetchResult(outcome.err))
				s.logger.Printf("fetch failed: gateway=%s err=%v", gatewayID, outcome.err)
				return
			}
			metrics.IncFetch(metrics.ResultSuccess)

			for _, sub := range pairs {
				eval := Evaluate(outcome.telemetry, sub.ThresholdMinutes, now)
				event, err := s.detector.Detect(ctx, sub, eval)
				if err != nil {
					s.logger.Printf("detect failed: user=%d gateway=%s err=%v", sub.UserID, sub.GatewayID, err)
					continue
				}
				if event == nil {
					continue
				}
				metrics.IncTransition(event.Current)
				eventMu.Lock()
				events = append(events, *event)
				eventMu.Unlock()
			}
		}(gatewayID, byGateway[gatewayID])
	}
	wg.Wait()

	report.Transitions = len(events)
	report.Dispatch = s.dispatcher.Dispatch(ctx, events)
	metrics.AddNotifications(metrics.ResultSuccess, report.Dispatch.Delivered)
	metrics.AddNotifications(metrics.ResultError, report.Dispatch.Failed)
	metrics.ObservePollCycle(metrics.ResultSuccess, s.clock.Now().Sub(started))
	return report, nil
}

func (s *Scheduler) fetch(ctx context.Context, gatewayID string) fetchOutcome {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	telemetry, err := s.fetcher.Fetch(fetchCtx, gatewayID)
	if err != nil {
		if _, ok := monitoring.AsFetchError(err); !ok {
			kind := monitoring.FetchUnreachable
			if errors.Is(err, context.DeadlineExceeded) {
				kind = monitoring.FetchTimeout
			}
			err = monitoring.NewFetchError(kind, gatewayID, err)
		}
		return fetchOutcome{err: err}
	}
	return fetchOutcome{telemetry: telemetry}
}

func (s *Scheduler) claim(gatewayID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[gatewayID]; busy {
		return false
	}
	s.inflight[gatewayID] = struct{}{}
	return true
}

func (s *Scheduler) release(gatewayID string) {
	s.mu.Lock()
	delete(s.inflight, gatewayID)
	s.mu.Unlock()
}

// groupByGateway returns distinct gateway ids in discovery order and the
// subscriptions that share each gateway, so each gateway is fetched once
// per cycle no matter how many users watch it.
func groupByGateway(subs []monitoring.Subscription) ([]string, map[string][]monitoring.Subscription) {
	byGateway := make(map[string][]monitoring.Subscription)
	var order []string
	for _, sub := range subs {
		if _, seen := byGateway[sub.GatewayID]; !seen {
			order = append(order, sub.GatewayID)
		}
		byGateway[sub.GatewayID] = append(byGateway[sub.GatewayID], sub)
	}
	return order, byGateway
}

func fetchResult(err error) string {
	if fetchErr, ok := monitoring.AsFetchError(err); ok {
		return string(fetchErr.Kind)
	}
	return metrics.ResultError
}
