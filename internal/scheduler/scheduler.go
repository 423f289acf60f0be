// Package scheduler runs the periodic screening cycle and publishes snapshots.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"BreakoutScreener/internal/collector"
	"BreakoutScreener/internal/logger"
	"BreakoutScreener/internal/metrics"
	"BreakoutScreener/internal/model"
	"BreakoutScreener/internal/pricecache"
	"BreakoutScreener/internal/recorder"
	"BreakoutScreener/internal/session"
	"BreakoutScreener/internal/strategy"
	"BreakoutScreener/internal/universe"
)

// State is the scheduler's position within a cycle.
type State string

const (
	StateIdle            State = "Idle"
	StateFetchingQuotes  State = "FetchingQuotes"
	StateFetchingCandles State = "FetchingCandles"
	StateEvaluating      State = "Evaluating"
	StatePublishing      State = "Publishing"
)

// Notifier receives alerts produced by a cycle. Implemented by *notifier.TelegramNotifier.
type Notifier interface {
	NotifyBreakouts(ctx context.Context, results []model.BreakoutResult, at time.Time) error
	NotifyDegraded(ctx context.Context, h model.EngineHealth, cause string) error
	NotifyRecovered(ctx context.Context, failures int) error
}

// Config controls cycle cadence and scope.
type Config struct {
	Cadence          time.Duration
	Lookback         time.Duration
	CycleTimeout     time.Duration
	Staleness        time.Duration
	MaxConcurrency   int
	Sector           string
	FailureThreshold int
}

// Scheduler owns the refresh cycle. Only the price cache and the published
// snapshot are shared with readers.
type Scheduler struct {
	Cron     *cron.Cron
	Gateway  collector.Gateway
	Universe *universe.Universe
	Prices   *pricecache.Cache
	Detector *strategy.Detector
	Gate     *session.Gate
	Recorder recorder.Recorder
	Notifier Notifier
	Metrics  *metrics.Metrics
	// Now is the cycle clock; defaults to time.Now.
	Now func() time.Time

	cfg      Config
	snapshot atomic.Pointer[model.Snapshot]
	runMu    sync.Mutex

	mu     sync.Mutex
	state  State
	health model.EngineHealth

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. Recorder, Notifier and Metrics may be set afterwards.
func NewScheduler(cfg Config, gw collector.Gateway, u *universe.Universe, prices *pricecache.Cache, det *strategy.Detector, gate *session.Gate) *Scheduler {
	if cfg.Cadence <= 0 {
		cfg.Cadence = 5 * time.Minute
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = cfg.Cadence
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 8
	}
	if cfg.Sector == "" {
		cfg.Sector = model.SectorAll
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 3
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Gateway:  gw,
		Universe: u,
		Prices:   prices,
		Detector: det,
		Gate:     gate,
		Recorder: recorder.NewNoopRecorder(),
		cfg:      cfg,
		state:    StateIdle,
		health:   model.EngineHealth{Status: model.HealthStarting, State: string(StateIdle)},
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start registers the cadence job and runs the first cycle immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	spec := fmt.Sprintf("@every %s", s.cfg.Cadence)
	if _, err := s.Cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		s.cancel()
		return fmt.Errorf("register screening cycle: %w", err)
	}
	s.Cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()
	logger.Info("scheduler started (cadence %s, sector %s)", s.cfg.Cadence, s.cfg.Sector)
	return nil
}

// Stop cancels any running cycle and waits for it to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	logger.Info("scheduler stopped")
}

// Latest returns the most recently published snapshot, or nil before the first cycle.
func (s *Scheduler) Latest() *model.Snapshot {
	return s.snapshot.Load()
}

// Health returns a copy of the current engine health.
func (s *Scheduler) Health() model.EngineHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.health
	h.State = string(s.state)
	return h
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	logger.Debug("scheduler state: %s", st)
}

// IngestTicks applies streamed ticks to the price cache until ticks closes or ctx is done.
// Ticks for instruments outside the universe are ignored.
func (s *Scheduler) IngestTicks(ctx context.Context, ticks <-chan model.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			if _, known := s.Universe.Lookup(t.InstrumentID); !known {
				continue
			}
			s.Metrics.RecordTick(s.Prices.Update(t.InstrumentID, t.Price, t.Time))
		}
	}
}

// pending tracks one instrument through a cycle.
type pending struct {
	instrument model.Instrument
	price      float64
	candles    []model.Candle
	omit       *model.Omission
}

func omission(id string, reason model.OmitReason, err error) *model.Omission {
	o := &model.Omission{InstrumentID: id, Reason: reason}
	if err != nil {
		o.Detail = err.Error()
	}
	return o
}

// RunOnce executes one full cycle and returns the published snapshot.
// Cycles never overlap. When ctx is cancelled before the cycle publishes,
// nothing is published and RunOnce returns nil; a cycle that only runs out
// of its own deadline still publishes its partial results.
func (s *Scheduler) RunOnce(ctx context.Context) *model.Snapshot {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer s.setState(StateIdle)

	start := s.now()
	if !s.Gate.IsOpen(start) {
		return s.publishClosed(start)
	}

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	instruments := s.Universe.Instruments(s.cfg.Sector)
	items := make([]*pending, len(instruments))
	ids := make([]string, len(instruments))
	for i, in := range instruments {
		items[i] = &pending{instrument: in}
		ids[i] = in.ID
	}

	s.setState(StateFetchingQuotes)
	quoteErr := s.fetchQuotes(cycleCtx, ids, start)
	for _, it := range items {
		s.resolvePrice(cycleCtx, it, start, quoteErr)
	}

	s.setState(StateFetchingCandles)
	s.fetchCandles(cycleCtx, items, start)

	s.setState(StateEvaluating)
	now := s.now()
	results := make([]model.BreakoutResult, 0, len(items))
	var omitted []model.Omission
	for _, it := range items {
		if it.omit == nil {
			res, err := s.Detector.Evaluate(strategy.Input{
				Instrument: it.instrument,
				Price:      it.price,
				Candles:    it.candles,
				Now:        now,
			})
			if err == nil {
				results = append(results, res)
				continue
			}
			it.omit = omission(it.instrument.ID, model.OmitInsufficientData, err)
		}
		omitted = append(omitted, *it.omit)
	}

	if err := ctx.Err(); err != nil {
		// shutdown, not the cycle deadline: keep the last published snapshot and health
		logger.Warn("cycle abandoned before publish: %v", err)
		return nil
	}

	s.setState(StatePublishing)
	snap := &model.Snapshot{
		CycleID:     uuid.NewString(),
		EvaluatedAt: start,
		Sector:      s.cfg.Sector,
		Results:     results,
		Omitted:     omitted,
		Duration:    s.now().Sub(start),
	}
	failed := len(instruments) > 0 && len(results) == 0
	cause := ""
	if failed {
		switch {
		case quoteErr != nil:
			cause = quoteErr.Error()
		case len(omitted) > 0:
			cause = omitted[0].Detail
		}
	}
	s.publish(ctx, snap, failed, cause)
	return snap
}

// fetchQuotes makes the single batched quote call and seeds the price cache.
func (s *Scheduler) fetchQuotes(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	quotes, err := s.Gateway.GetQuotes(ctx, ids)
	if err != nil {
		logger.Warn("quote batch failed: %v", err)
		return err
	}
	for id, q := range quotes {
		t := q.Time
		if t.IsZero() {
			t = now
		}
		s.Metrics.RecordTick(s.Prices.Update(id, q.LastPrice, t))
	}
	return nil
}

func (s *Scheduler) resolvePrice(ctx context.Context, it *pending, now time.Time, quoteErr error) {
	id := it.instrument.ID
	e, err := s.Prices.Fresh(id, now, s.cfg.Staleness)
	switch {
	case err == nil:
		it.price = e.Price
	case ctx.Err() != nil:
		it.omit = omission(id, model.OmitCancelled, ctx.Err())
	case errors.Is(err, model.ErrStaleData):
		it.omit = omission(id, model.OmitStalePrice, err)
	case quoteErr != nil:
		it.omit = omission(id, model.OmitProviderError, quoteErr)
	default:
		it.omit = omission(id, model.OmitNoPrice, err)
	}
}

// fetchCandles loads candles for every priced instrument with bounded
// concurrency. One instrument's failure never affects another.
func (s *Scheduler) fetchCandles(ctx context.Context, items []*pending, now time.Time) {
	iv := s.Detector.Config().Interval
	from := now.Add(-s.cfg.Lookback)

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, it := range items {
		if it.omit != nil {
			continue
		}
		if ctx.Err() != nil {
			it.omit = omission(it.instrument.ID, model.OmitCancelled, ctx.Err())
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				it.omit = omission(it.instrument.ID, model.OmitCancelled, ctx.Err())
				return nil
			}
			candles, err := s.Gateway.GetCandles(ctx, it.instrument.ID, iv, from, now)
			switch {
			case err == nil:
				it.candles = candles
			case ctx.Err() != nil:
				it.omit = omission(it.instrument.ID, model.OmitCancelled, err)
			default:
				logger.Warn("candles %s: %v", it.instrument.ID, err)
				it.omit = omission(it.instrument.ID, model.OmitProviderError, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) publishClosed(at time.Time) *model.Snapshot {
	snap := &model.Snapshot{
		CycleID:      uuid.NewString(),
		EvaluatedAt:  at,
		Sector:       s.cfg.Sector,
		MarketClosed: true,
		Results:      []model.BreakoutResult{},
	}
	s.snapshot.Store(snap)

	s.mu.Lock()
	s.health.LastCycleAt = at
	s.health.LastCycleDuration = 0
	if s.health.ConsecutiveFailures < s.cfg.FailureThreshold {
		s.health.Status = model.HealthMarketClosed
	}
	h := s.health
	s.mu.Unlock()

	s.Metrics.RecordCycle(snap, h)
	logger.Debug("market closed at %s, cycle skipped", at.In(s.Gate.Location()).Format("2006-01-02 15:04"))
	return snap
}

// publish stores snap, updates health and fans out to recorder, metrics and notifier.
func (s *Scheduler) publish(ctx context.Context, snap *model.Snapshot, failed bool, cause string) {
	prev := s.snapshot.Swap(snap)

	stale := 0
	for _, o := range snap.Omitted {
		if o.Reason == model.OmitStalePrice {
			stale++
		}
	}

	s.mu.Lock()
	prevFailures := s.health.ConsecutiveFailures
	h := &s.health
	h.LastCycleAt = snap.EvaluatedAt
	h.LastCycleDuration = snap.Duration
	h.Evaluated = len(snap.Results)
	h.Omitted = len(snap.Omitted)
	h.StaleInstruments = stale
	if failed {
		h.ConsecutiveFailures++
	} else {
		h.ConsecutiveFailures = 0
		h.LastSuccessfulCycle = snap.EvaluatedAt
	}
	if h.ConsecutiveFailures >= s.cfg.FailureThreshold {
		h.Status = model.HealthDegraded
	} else {
		h.Status = model.HealthOK
	}
	health := *h
	health.State = string(s.state)
	s.mu.Unlock()

	logger.Info("cycle %s: %d evaluated, %d breakouts, %d omitted in %s",
		snap.CycleID, len(snap.Results), len(snap.Breakouts()), len(snap.Omitted), snap.Duration.Round(time.Millisecond))
	if failed {
		logger.Error("cycle produced no result (%d consecutive): %s", health.ConsecutiveFailures, cause)
	}

	if err := s.Recorder.RecordSnapshot(snap); err != nil {
		logger.Error("record snapshot: %v", err)
	}
	s.Metrics.RecordCycle(snap, health)

	if s.Notifier == nil {
		return
	}
	if fresh := newBreakouts(prev, snap); len(fresh) > 0 {
		if err := s.Notifier.NotifyBreakouts(ctx, fresh, snap.EvaluatedAt); err != nil {
			logger.Error("notify breakouts: %v", err)
		}
	}
	switch {
	case failed && health.ConsecutiveFailures == s.cfg.FailureThreshold:
		if err := s.Notifier.NotifyDegraded(ctx, health, cause); err != nil {
			logger.Error("notify degraded: %v", err)
		}
	case !failed && prevFailures >= s.cfg.FailureThreshold:
		if err := s.Notifier.NotifyRecovered(ctx, prevFailures); err != nil {
			logger.Error("notify recovered: %v", err)
		}
	}
}

// newBreakouts returns breakouts in cur that were not breakouts in prev.
func newBreakouts(prev, cur *model.Snapshot) []model.BreakoutResult {
	was := map[string]bool{}
	if prev != nil {
		for _, r := range prev.Results {
			if r.Breakout {
				was[r.InstrumentID] = true
			}
		}
	}
	var out []model.BreakoutResult
	for _, r := range cur.Results {
		if r.Breakout && !was[r.InstrumentID] {
			out = append(out, r)
		}
	}
	return out
}
