package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"

	"github.com/imring/apptime/internal/metrics"
	"github.com/imring/apptime/internal/procsrc"
	"github.com/imring/apptime/internal/store"
)

// Default delays between cycles.
const (
	DefaultActiveDelay = 5 * time.Second
	DefaultFocusDelay  = 1 * time.Second
)

// ErrAlreadyRunning is returned by Start when the loops are already alive.
var ErrAlreadyRunning = errors.New("sampler already running")

// Store is the part of the record store the sampler writes to.
type Store interface {
	AddActives(ctx context.Context, recs []store.Record) (int, error)
	AddFocus(ctx context.Context, rec store.Record) (bool, error)
}

// Sampler runs the active and focus loops.
type Sampler struct {
	store       Store
	source      procsrc.Source
	clock       quartz.Clock
	logger      *slog.Logger
	onlyVisible bool

	activeDelay atomic.Int64
	focusDelay  atomic.Int64

	// writeMu spans the scan-and-write phase of both loops.
	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	alive  atomic.Int32

	activeCycles atomic.Uint64
	focusCycles  atomic.Uint64
	tracked      atomic.Int64
}

// Stats counts completed cycles since New. Applications is the number of
// active records the last active cycle wrote.
type Stats struct {
	ActiveCycles uint64
	FocusCycles  uint64
	Applications int
}

// Option configures a Sampler.
type Option func(*Sampler)

func WithActiveDelay(d time.Duration) Option {
	return func(s *Sampler) { setDelay(&s.activeDelay, d) }
}

func WithFocusDelay(d time.Duration) Option {
	return func(s *Sampler) { setDelay(&s.focusDelay, d) }
}

// WithOnlyVisible limits the active loop to visible windows.
func WithOnlyVisible(v bool) Option {
	return func(s *Sampler) { s.onlyVisible = v }
}

func WithClock(c quartz.Clock) Option {
	return func(s *Sampler) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// New creates a Sampler. It does not start the loops.
func New(st Store, src procsrc.Source, opts ...Option) (*Sampler, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if src == nil {
		return nil, fmt.Errorf("process source cannot be nil")
	}
	s := &Sampler{
		store:  st,
		source: src,
		clock:  quartz.NewReal(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.activeDelay.Store(int64(DefaultActiveDelay))
	s.focusDelay.Store(int64(DefaultFocusDelay))
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func setDelay(v *atomic.Int64, d time.Duration) {
	if d > 0 {
		v.Store(int64(d))
	}
}

// Delays returns the current active and focus delays.
func (s *Sampler) Delays() (active, focus time.Duration) {
	return time.Duration(s.activeDelay.Load()), time.Duration(s.focusDelay.Load())
}

// SetDelays changes the cadence. The new values apply from the next wait;
// non-positive values are ignored.
func (s *Sampler) SetDelays(active, focus time.Duration) {
	setDelay(&s.activeDelay, active)
	setDelay(&s.focusDelay, focus)
	a, f := s.Delays()
	metrics.SetDelay("active", a.Seconds())
	metrics.SetDelay("focus", f.Seconds())
	s.logger.Info("sampler delays updated", "active", a, "focus", f)
}

// Start launches both loops. The first cycle of each runs immediately.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	a, f := s.Delays()
	metrics.SetDelay("active", a.Seconds())
	metrics.SetDelay("focus", f.Seconds())

	s.alive.Store(2)
	metrics.SetRunning(true)
	s.wg.Add(2)
	go s.loop(ctx, "active", &s.activeDelay, &s.activeCycles, s.activeCycle)
	go s.loop(ctx, "focus", &s.focusDelay, &s.focusCycles, s.focusCycle)

	s.logger.Info("sampler started", "active_delay", a, "focus_delay", f)
	return nil
}

// Stop cancels both loops and waits for them to exit. A cycle in progress
// finishes its writes first. Stop on a stopped sampler is a no-op.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.logger.Info("sampler stopped")
}

// Stats returns the cycle counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		ActiveCycles: s.activeCycles.Load(),
		FocusCycles:  s.focusCycles.Load(),
		Applications: int(s.tracked.Load()),
	}
}

// Running reports whether both loops are alive.
func (s *Sampler) Running() bool {
	return s.alive.Load() == 2
}

func (s *Sampler) loop(ctx context.Context, name string, delay *atomic.Int64, count *atomic.Uint64, cycle func(context.Context)) {
	defer s.wg.Done()
	defer func() {
		if s.alive.Add(-1) < 2 {
			metrics.SetRunning(false)
		}
	}()

	for {
		if s.runCycle(ctx, name, cycle) {
			count.Add(1)
		}

		timer := s.clock.NewTimer(time.Duration(delay.Load()), "sampler", name)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runCycle holds the writer lock for one scan and its writes. Writes are
// detached from cancellation so a cycle never stops halfway. It reports
// whether the cycle ran.
func (s *Sampler) runCycle(ctx context.Context, name string, cycle func(context.Context)) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	start := time.Now()
	cycle(context.WithoutCancel(ctx))
	metrics.IncCycle(name)
	metrics.ObserveCycle(name, time.Since(start).Seconds())
	return true
}

func (s *Sampler) activeCycle(ctx context.Context) {
	handles, err := s.source.ActiveWindows(ctx, s.onlyVisible)
	if err != nil {
		s.logger.Warn("active scan failed", "error", err)
		return
	}

	now := s.clock.Now("sampler", "active")
	recs := Collect(handles, now)
	if len(recs) == 0 {
		s.tracked.Store(0)
		return
	}

	n, err := s.store.AddActives(ctx, recs)
	if err != nil {
		s.logger.Error("failed to write active records", "error", err)
	}
	s.tracked.Store(int64(n))
	metrics.AddRecords("active", metrics.Accepted, n)
	if err == nil {
		metrics.AddRecords("active", metrics.Rejected, len(recs)-n)
	} else {
		metrics.AddRecords("active", metrics.Failed, len(recs)-n)
	}
	s.logger.Debug("active cycle", "processes", len(handles), "records", len(recs), "accepted", n)
}

func (s *Sampler) focusCycle(ctx context.Context) {
	h, err := s.source.FocusedWindow(ctx)
	if err != nil {
		s.logger.Warn("focus scan failed", "error", err)
		return
	}
	if h == nil {
		h = procsrc.NoProcess
	}

	now := s.clock.Now("sampler", "focus")
	rec := store.Record{
		Path:  h.FullPath(),
		Name:  h.WindowName(),
		Times: []store.Interval{{Start: h.FocusedSince(), End: now}},
	}

	ok, err := s.store.AddFocus(ctx, rec)
	switch {
	case err != nil:
		s.logger.Error("failed to write focus record", "path", rec.Path, "error", err)
		metrics.AddRecords("focus", metrics.Failed, 1)
	case ok:
		metrics.AddRecords("focus", metrics.Accepted, 1)
	default:
		metrics.AddRecords("focus", metrics.Rejected, 1)
	}
}
