package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mic-havock/ridb-backend/internal/config"
	"github.com/mic-havock/ridb-backend/internal/model"
	"github.com/mic-havock/ridb-backend/internal/notify"
)

// ErrCycleRunning is returned when a cycle is requested while one is in flight
var ErrCycleRunning = errors.New("monitoring cycle already running")

// WatchStore is the persistence the monitor reads candidates from and
// records outcomes to
type WatchStore interface {
	ListActive(ctx context.Context) ([]model.Watch, error)
	Deactivate(ctx context.Context, id int64, at time.Time) error
	IncrementAttempts(ctx context.Context, id int64) error
	RecordSuccess(ctx context.Context, id int64, at time.Time) error
}

// AvailabilitySource fetches upstream date statuses
type AvailabilitySource interface {
	GetSingle(ctx context.Context, campsiteID string) (model.DateStatuses, error)
	GetFacilityMonth(ctx context.Context, facilityID string, month time.Time) (map[string]model.DateStatuses, error)
}

// Notifier delivers a rendered alert
type Notifier interface {
	Send(ctx context.Context, to, subject string, body notify.Body) error
}

// CycleStats tracks what one monitoring cycle did
type CycleStats struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Loaded        int       `json:"loaded"`
	Invalid       int       `json:"invalid"`
	Suppressed    int       `json:"suppressed"`
	Expired       int       `json:"expired"`
	Groups        int       `json:"groups"`
	Singletons    int       `json:"singletons"`
	BulkFetches   int       `json:"bulk_fetches"`
	SingleFetches int       `json:"single_fetches"`
	GroupRetries  int       `json:"group_retries"`
	Checked       int       `json:"checked"`
	Reservable    int       `json:"reservable"`
	Notified      int       `json:"notified"`
	SendFailures  int       `json:"send_failures"`
	Failed        int       `json:"failed"`
	StoreErrors   int       `json:"store_errors"`
}

// Duration is how long the cycle ran
func (s *CycleStats) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// cycle is the mutable state of one in-flight RunCycle
type cycle struct {
	id    string
	mu    sync.Mutex
	stats CycleStats
}

func (c *cycle) count(fn func(s *CycleStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// Monitor runs monitoring cycles over the active watches
type Monitor struct {
	store     WatchStore
	source    AvailabilitySource
	notifier  Notifier
	cfg       config.Config
	available StatusSet
	now       func() time.Time
	onCycle   func(CycleStats)
	logger    *log.Logger
	errLogger *log.Logger

	running atomic.Bool
	mu      sync.RWMutex
	last    *CycleStats
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithMonitorLoggers replaces the stdout and stderr loggers
func WithMonitorLoggers(logger, errLogger *log.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
		m.errLogger = errLogger
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// WithCycleHook registers fn to run after every completed cycle
func WithCycleHook(fn func(CycleStats)) MonitorOption {
	return func(m *Monitor) { m.onCycle = fn }
}

// NewMonitor creates a new Monitor
func NewMonitor(store WatchStore, source AvailabilitySource, notifier Notifier, cfg config.Config, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		store:     store,
		source:    source,
		notifier:  notifier,
		cfg:       cfg,
		available: NewStatusSet(cfg.AvailableStatuses),
		now:       time.Now,
		logger:    log.New(os.Stdout, "", log.LstdFlags),
		errLogger: log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.BatchSize <= 0 {
		m.cfg.BatchSize = 1
	}
	return m
}

// Running reports whether a cycle is in flight
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// LastCycle returns the stats of the most recent completed cycle, or nil
func (m *Monitor) LastCycle() *CycleStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil
	}
	s := *m.last
	return &s
}

// RunCycle performs one full pass over the active watches. Per-watch failures
// are logged and counted; only failing to load the watches returns an error.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleStats, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrCycleRunning
	}
	defer m.running.Store(false)

	c := &cycle{id: uuid.NewString()[:8]}
	c.stats.ID = c.id
	c.stats.StartedAt = m.now()

	watches, err := m.store.ListActive(ctx)
	if err != nil {
		m.errLogger.Printf("[cycle %s] Failed to load active watches: %v", c.id, err)
		return nil, fmt.Errorf("failed to load active watches: %w", err)
	}
	c.stats.Loaded = len(watches)

	if len(watches) == 0 {
		m.logger.Printf("[cycle %s] No active watches to monitor", c.id)
		return m.finish(c), nil
	}
	m.logger.Printf("[cycle %s] Loaded %d active watches", c.id, len(watches))

	now := c.stats.StartedAt
	today := model.Day(now.UTC())

	var work []model.Watch
	for _, w := range watches {
		if err := w.Validate(); err != nil {
			m.errLogger.Printf("[cycle %s] Skipping watch %d: %v", c.id, w.ID, err)
			c.stats.Invalid++
			continue
		}
		if w.Suppressed(now, m.cfg.SuppressionWindow) {
			c.stats.Suppressed++
			continue
		}
		if w.Expired(today) {
			m.expire(ctx, c, w)
			continue
		}
		work = append(work, w)
	}

	groups, singletons := GroupWatches(work)
	c.stats.Groups = len(groups)
	c.stats.Singletons = len(singletons)

	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}
		m.processGroup(ctx, c, g)
	}

	m.processSingletons(ctx, c, singletons)

	return m.finish(c), nil
}

func (m *Monitor) finish(c *cycle) *CycleStats {
	c.mu.Lock()
	c.stats.FinishedAt = m.now()
	stats := c.stats
	c.mu.Unlock()

	m.mu.Lock()
	m.last = &stats
	m.mu.Unlock()

	m.PrintSummary(&stats)
	if m.onCycle != nil {
		m.onCycle(stats)
	}

	out := stats
	return &out
}

func (m *Monitor) expire(ctx context.Context, c *cycle, w model.Watch) {
	m.logger.Printf("[cycle %s] Watch %d ended on %s, stopping monitoring for campsite %s (%s)",
		c.id, w.ID, model.FormatDate(w.EndDate), w.CampsiteID, w.EmailAddress)

	if err := m.store.Deactivate(ctx, w.ID, m.now()); err != nil {
		m.errLogger.Printf("[cycle %s] Failed to deactivate watch %d: %v", c.id, w.ID, err)
		c.count(func(s *CycleStats) { s.StoreErrors++ })
		return
	}
	c.count(func(s *CycleStats) { s.Expired++ })
}

// processGroup answers a facility-month group with one bulk fetch. Rate
// limits and server errors are retried after the group cool-down.
func (m *Monitor) processGroup(ctx context.Context, c *cycle, g WatchGroup) {
	m.logger.Printf("[cycle %s] Fetching %s for %d watches", c.id, g.Key, len(g.Watches))

	var campsites map[string]model.DateStatuses
	var err error
	for attempt := 0; ; attempt++ {
		campsites, err = m.source.GetFacilityMonth(ctx, g.Key.FacilityID, g.Key.MonthStart())
		c.count(func(s *CycleStats) { s.BulkFetches++ })
		if err == nil || !IsRetryable(err) || attempt >= m.cfg.GroupMaxRetries {
			break
		}

		m.errLogger.Printf("[cycle %s] %s: %v; pausing %s before retry %d/%d",
			c.id, g.Key, err, m.cfg.GroupCoolDown, attempt+1, m.cfg.GroupMaxRetries)
		c.count(func(s *CycleStats) { s.GroupRetries++ })
		if serr := sleep(ctx, m.cfg.GroupCoolDown); serr != nil {
			return
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.errLogger.Printf("[cycle %s] Giving up on %s: %v", c.id, g.Key, err)
		for _, w := range g.Watches {
			m.fail(ctx, c, w, err)
		}
		return
	}

	var eg errgroup.Group
	eg.SetLimit(m.cfg.BatchSize)
	for _, w := range g.Watches {
		w := w
		eg.Go(func() error {
			statuses, ok := campsites[w.CampsiteID]
			if !ok {
				m.logger.Printf("[cycle %s] Campsite %s missing from %s, fetching individually", c.id, w.CampsiteID, g.Key)
				m.checkSingle(ctx, c, w)
				return nil
			}
			m.evaluate(ctx, c, w, statuses)
			return nil
		})
	}
	eg.Wait()
}

// processSingletons checks watches concurrently in fixed-size batches with a
// pause between batches
func (m *Monitor) processSingletons(ctx context.Context, c *cycle, watches []model.Watch) {
	for start := 0; start < len(watches); start += m.cfg.BatchSize {
		if start > 0 {
			if err := sleep(ctx, m.cfg.BatchDelay); err != nil {
				return
			}
		} else if ctx.Err() != nil {
			return
		}

		end := min(start+m.cfg.BatchSize, len(watches))
		m.logger.Printf("[cycle %s] Checking batch %d-%d of %d single campsites", c.id, start+1, end, len(watches))

		var eg errgroup.Group
		for _, w := range watches[start:end] {
			w := w
			eg.Go(func() error {
				m.checkSingle(ctx, c, w)
				return nil
			})
		}
		eg.Wait()
	}
}

func (m *Monitor) checkSingle(ctx context.Context, c *cycle, w model.Watch) {
	statuses, err := m.source.GetSingle(ctx, w.CampsiteID)
	c.count(func(s *CycleStats) { s.SingleFetches++ })
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.fail(ctx, c, w, err)
		return
	}
	m.evaluate(ctx, c, w, statuses)
}

// evaluate applies the range check, notifies on success and counts the attempt
func (m *Monitor) evaluate(ctx context.Context, c *cycle, w model.Watch, statuses model.DateStatuses) {
	result := CheckWatch(w, statuses, m.available)
	c.count(func(s *CycleStats) { s.Checked++ })

	if result.Reservable {
		c.count(func(s *CycleStats) { s.Reservable++ })
		m.logger.Printf("[cycle %s] Campsite %s (%s %s) is reservable %s to %s for watch %d",
			c.id, w.CampsiteID, w.CampsiteName, w.CampsiteNumber,
			model.FormatDate(w.StartDate), model.FormatDate(w.EndDate), w.ID)
		m.notify(ctx, c, w)
	}

	m.countAttempt(ctx, c, w)
}

func (m *Monitor) notify(ctx context.Context, c *cycle, w model.Watch) {
	subject, body := notify.Success.Render(notify.Fields(w, m.cfg.ExternalBaseURL))

	if err := m.notifier.Send(ctx, w.EmailAddress, subject, body); err != nil {
		m.errLogger.Printf("[cycle %s] Failed to notify %s for watch %d: %v", c.id, w.EmailAddress, w.ID, err)
		c.count(func(s *CycleStats) { s.SendFailures++ })
		return
	}

	if err := m.store.RecordSuccess(ctx, w.ID, m.now()); err != nil {
		m.errLogger.Printf("[cycle %s] Notified watch %d but failed to record it: %v", c.id, w.ID, err)
		c.count(func(s *CycleStats) { s.StoreErrors++ })
		return
	}
	c.count(func(s *CycleStats) { s.Notified++ })
}

func (m *Monitor) fail(ctx context.Context, c *cycle, w model.Watch, err error) {
	m.errLogger.Printf("[cycle %s] Availability check failed for watch %d (campsite %s, %s to %s): %v",
		c.id, w.ID, w.CampsiteID, model.FormatDate(w.StartDate), model.FormatDate(w.EndDate), err)
	c.count(func(s *CycleStats) { s.Failed++ })
	m.countAttempt(ctx, c, w)
}

func (m *Monitor) countAttempt(ctx context.Context, c *cycle, w model.Watch) {
	if err := m.store.IncrementAttempts(ctx, w.ID); err != nil {
		m.errLogger.Printf("[cycle %s] Failed to count attempt for watch %d: %v", c.id, w.ID, err)
		c.count(func(s *CycleStats) { s.StoreErrors++ })
	}
}

// PrintSummary prints the cycle statistics
func (m *Monitor) PrintSummary(stats *CycleStats) {
	m.logger.Println("")
	m.logger.Printf("=== Monitoring Cycle Summary [%s] ===", stats.ID)
	m.logger.Printf("Loaded:          %d", stats.Loaded)
	m.logger.Printf("Suppressed:      %d", stats.Suppressed)
	m.logger.Printf("Expired:         %d", stats.Expired)
	m.logger.Printf("Invalid:         %d", stats.Invalid)
	m.logger.Printf("Groups:          %d (%d bulk fetches, %d retries)", stats.Groups, stats.BulkFetches, stats.GroupRetries)
	m.logger.Printf("Singletons:      %d (%d single fetches)", stats.Singletons, stats.SingleFetches)
	m.logger.Printf("Checked:         %d", stats.Checked)
	m.logger.Printf("Reservable:      %d", stats.Reservable)
	m.logger.Printf("Notified:        %d", stats.Notified)
	m.logger.Printf("Send failures:   %d", stats.SendFailures)
	m.logger.Printf("Failed checks:   %d", stats.Failed)
	m.logger.Printf("Duration:        %s", stats.Duration().Round(time.Millisecond))
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
