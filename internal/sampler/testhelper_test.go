package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/imring/apptime/internal/procsrc"
	"github.com/imring/apptime/internal/store"
)

func TestMain(m *testing.M) {
	// RunDaemon installs a signal handler whose runtime goroutine never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

// setupTestStore creates an in-memory SQLite store for tests and registers
// cleanup with t.Cleanup so callers don't need explicit defer.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("setupTestStore: open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type fakeHandle struct {
	pid   int32
	path  string
	name  string
	start time.Time
	since time.Time
	gone  bool
}

func (h *fakeHandle) PID() int32           { return h.pid }
func (h *fakeHandle) Exists() bool         { return !h.gone }
func (h *fakeHandle) WindowName() string   { return h.name }
func (h *fakeHandle) FullPath() string     { return h.path }
func (h *fakeHandle) StartTime() time.Time { return h.start }
func (h *fakeHandle) FocusedSince() time.Time {
	if h.since.IsZero() {
		return h.start
	}
	return h.since
}

type fakeSource struct {
	mu      sync.Mutex
	handles []procsrc.Handle
	focused procsrc.Handle
	err     error

	// block, when set, holds ActiveWindows until it is closed; entered is
	// signalled once the call has started.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSource) ActiveProcesses(ctx context.Context) ([]procsrc.Handle, error) {
	return f.ActiveWindows(ctx, false)
}

func (f *fakeSource) ActiveWindows(_ context.Context, _ bool) ([]procsrc.Handle, error) {
	f.mu.Lock()
	block, entered := f.block, f.entered
	f.block, f.entered = nil, nil
	f.mu.Unlock()
	if block != nil {
		close(entered)
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]procsrc.Handle(nil), f.handles...), nil
}

func (f *fakeSource) FocusedWindow(context.Context) (procsrc.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.focused == nil {
		return procsrc.NoProcess, nil
	}
	return f.focused, nil
}

// fakeStore records writes and flags any two writes that overlap in time.
type fakeStore struct {
	mu      sync.Mutex
	actives [][]store.Record
	focuses []store.Record

	writing atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (f *fakeStore) enter() {
	if f.writing.Add(1) > 1 {
		f.overlap.Store(true)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeStore) leave() { f.writing.Add(-1) }

func (f *fakeStore) AddActives(_ context.Context, recs []store.Record) (int, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actives = append(f.actives, recs)
	return len(recs), nil
}

func (f *fakeStore) AddFocus(_ context.Context, rec store.Record) (bool, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Path == "" {
		return false, nil
	}
	f.focuses = append(f.focuses, rec)
	return true, nil
}

func (f *fakeStore) snapshot() ([][]store.Record, []store.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]store.Record(nil), f.actives...), append([]store.Record(nil), f.focuses...)
}
