package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekey/pulsekey/internal/config"
	"github.com/pulsekey/pulsekey/internal/injector"
	"github.com/pulsekey/pulsekey/internal/keymap"
	"github.com/pulsekey/pulsekey/internal/pause"
	"github.com/pulsekey/pulsekey/internal/process"
)

// mockLocator serves scripted handles and counts lookups.
type mockLocator struct {
	mu      sync.Mutex
	calls   int
	handles []process.Handle // consumed in order; last one repeats
	missing bool             // never find anything
}

func (m *mockLocator) Find(ctx context.Context, name string) (process.Handle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.missing || len(m.handles) == 0 {
		return process.Handle{}, false, nil
	}
	h := m.handles[0]
	if len(m.handles) > 1 {
		m.handles = m.handles[1:]
	}
	return h, true, nil
}

func (m *mockLocator) findCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type injection struct {
	key string
	pid int32
}

// mockInjector records injections and fails with ErrTargetGone for
// configured stale PIDs.
type mockInjector struct {
	mu       sync.Mutex
	calls    []injection
	gonePIDs map[int32]bool
}

func (m *mockInjector) Inject(ctx context.Context, target process.Handle, chord keymap.Chord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gonePIDs[target.PID] {
		return injector.ErrTargetGone
	}
	m.calls = append(m.calls, injection{key: chord.String(), pid: target.PID})
	return nil
}

func (m *mockInjector) injected() []injection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]injection(nil), m.calls...)
}

func (m *mockInjector) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func ms(d time.Duration) config.Duration {
	return config.Duration{Duration: d}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ProcessName = "target.exe"
	cfg.MaxRetries = 3
	return &cfg
}

func newTestEngine(cfg *config.Config, loc process.Locator, inj injector.Injector, st *pause.State) *Engine {
	return New(cfg, loc, inj, st, nil, Options{Backoff: time.Millisecond})
}

func TestSequenceSinglePassInOrder(t *testing.T) {
	cfg := testConfig()
	cfg.LoopSequence = false
	cfg.KeySequence = []config.KeyAction{
		{Key: "1", IntervalAfter: ms(5 * time.Millisecond)},
		{Key: "2", IntervalAfter: ms(5 * time.Millisecond)},
		{Key: "space", IntervalAfter: ms(10 * time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 1, Name: "target.exe"}}}
	inj := &mockInjector{}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	require.NoError(t, eng.Run(context.Background()))

	calls := inj.injected()
	require.Len(t, calls, 3)
	assert.Equal(t, "1", calls[0].key)
	assert.Equal(t, "2", calls[1].key)
	assert.Equal(t, "space", calls[2].key)

	stats := eng.Stats()
	assert.EqualValues(t, 3, stats.TotalInjections)
	assert.EqualValues(t, 1, stats.SequencePasses)
	assert.False(t, stats.Running)
}

func TestSequenceBoundedRepeats(t *testing.T) {
	cfg := testConfig()
	cfg.LoopSequence = true
	cfg.RepeatCount = 2
	cfg.KeySequence = []config.KeyAction{
		{Key: "a", IntervalAfter: ms(time.Millisecond)},
		{Key: "b", IntervalAfter: ms(time.Millisecond)},
		{Key: "c", IntervalAfter: ms(time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 1, Name: "target.exe"}}}
	inj := &mockInjector{}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	require.NoError(t, eng.Run(context.Background()))

	calls := inj.injected()
	require.Len(t, calls, 6)
	assert.Equal(t, "a", calls[0].key)
	assert.Equal(t, "a", calls[3].key)
	assert.EqualValues(t, 2, eng.Stats().SequencePasses)
}

func TestUnboundedSequenceRunsUntilCanceled(t *testing.T) {
	cfg := testConfig()
	cfg.LoopSequence = true
	cfg.RepeatCount = 0
	cfg.KeySequence = []config.KeyAction{
		{Key: "r", IntervalAfter: ms(time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 1, Name: "target.exe"}}}
	inj := &mockInjector{}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool { return inj.count() >= 5 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop promptly after cancellation")
	}
}

func TestIndependentKeysRunConcurrently(t *testing.T) {
	cfg := testConfig()
	cfg.IndependentKeys = []config.IndependentKey{
		{Key: "r", Interval: ms(2 * time.Millisecond)},
		{Key: "f5", Interval: ms(3 * time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 1, Name: "target.exe"}}}
	inj := &mockInjector{}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool {
		seen := map[string]int{}
		for _, c := range inj.injected() {
			seen[c.key]++
		}
		return seen["r"] >= 3 && seen["f5"] >= 3
	}, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop promptly after cancellation")
	}
}

func TestPauseSuspendsInjections(t *testing.T) {
	cfg := testConfig()
	cfg.IndependentKeys = []config.IndependentKey{
		{Key: "r", Interval: ms(2 * time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 1, Name: "target.exe"}}}
	inj := &mockInjector{}
	st := pause.NewState()
	eng := newTestEngine(cfg, loc, inj, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool { return inj.count() >= 2 }, 2*time.Second, time.Millisecond)

	st.Set(true)
	// Allow in-flight waits to drain, then the count must hold still.
	time.Sleep(10 * time.Millisecond)
	frozen := inj.count()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, inj.count(), frozen+1, "injections continued while paused")

	st.Set(false)
	require.Eventually(t, func() bool { return inj.count() > frozen+1 }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop promptly after cancellation")
	}
}

func TestTargetGoneTriggersSingleReacquisitionAndRetry(t *testing.T) {
	cfg := testConfig()
	cfg.LoopSequence = false
	cfg.KeySequence = []config.KeyAction{
		{Key: "a", IntervalAfter: ms(time.Millisecond)},
	}

	// PID 1 is stale from the start; re-acquisition yields PID 2.
	loc := &mockLocator{handles: []process.Handle{
		{PID: 1, Name: "target.exe"},
		{PID: 2, Name: "target.exe"},
	}}
	inj := &mockInjector{gonePIDs: map[int32]bool{1: true}}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	require.NoError(t, eng.Run(context.Background()))

	// The step was retried against the fresh handle, not skipped.
	calls := inj.injected()
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].key)
	assert.Equal(t, int32(2), calls[0].pid)

	// One initial acquisition plus exactly one re-acquisition.
	assert.Equal(t, 2, loc.findCalls())
	assert.EqualValues(t, 1, eng.Stats().Reacquisitions)
}

func TestConcurrentTargetGoneCollapsesToOneReacquisition(t *testing.T) {
	cfg := testConfig()
	cfg.IndependentKeys = []config.IndependentKey{
		{Key: "r", Interval: ms(2 * time.Millisecond)},
		{Key: "a", Interval: ms(2 * time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{
		{PID: 1, Name: "target.exe"},
		{PID: 2, Name: "target.exe"},
	}}
	inj := &mockInjector{gonePIDs: map[int32]bool{1: true}}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	// Both drivers start against stale PID 1 and both fail; the refresh
	// must collapse into one lookup that both observe.
	require.Eventually(t, func() bool { return inj.count() >= 4 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, loc.findCalls(), "expected initial acquisition plus exactly one shared re-acquisition")
	for _, c := range inj.injected() {
		assert.Equal(t, int32(2), c.pid)
	}
}

func TestFatalWhenAcquisitionExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	cfg.IndependentKeys = []config.IndependentKey{
		{Key: "r", Interval: ms(time.Millisecond)},
	}

	loc := &mockLocator{missing: true}
	inj := &mockInjector{}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	err := eng.Run(context.Background())
	require.Error(t, err)

	var notFound *process.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 3, notFound.Retries)
	assert.Equal(t, 3, loc.findCalls())
	assert.Zero(t, inj.count())
}

func TestCancellationInterruptsLongWaits(t *testing.T) {
	cfg := testConfig()
	cfg.IndependentKeys = []config.IndependentKey{
		{Key: "r", Interval: ms(time.Hour)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 1, Name: "target.exe"}}}
	inj := &mockInjector{}
	eng := newTestEngine(cfg, loc, inj, pause.NewState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool { return inj.count() >= 1 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine stuck in an hour-long wait after cancellation")
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	cfg := testConfig()
	cfg.IndependentKeys = []config.IndependentKey{
		{Key: "r", Interval: ms(time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 1, Name: "target.exe"}}}
	eng := newTestEngine(cfg, loc, &mockInjector{}, pause.NewState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool { return eng.Running() }, time.Second, time.Millisecond)
	require.ErrorIs(t, eng.Run(ctx), ErrEngineAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
}

func TestDeliveryEventsEmitted(t *testing.T) {
	cfg := testConfig()
	cfg.LoopSequence = false
	cfg.KeySequence = []config.KeyAction{
		{Key: "space", IntervalAfter: ms(time.Millisecond)},
	}

	loc := &mockLocator{handles: []process.Handle{{PID: 9, Name: "target.exe"}}}
	eng := newTestEngine(cfg, loc, &mockInjector{}, pause.NewState())

	require.NoError(t, eng.Run(context.Background()))

	select {
	case ev := <-eng.Events():
		assert.Equal(t, DriverSequence, ev.Driver)
		assert.Equal(t, "space", ev.Key)
		assert.Equal(t, int32(9), ev.PID)
		assert.True(t, ev.Success)
	default:
		t.Fatal("expected a delivery event")
	}
}
