package live

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/timeutil"
)

// blockingEngine signals on started when Calculate begins and waits for a
// value on release before returning.
type blockingEngine struct {
	field   *grid.Field
	started chan struct{}
	release chan bool
	runs    atomic.Int32
}

func newBlockingEngine() *blockingEngine {
	g := grid.MustGeometry(grid.Area{MaxX: 1, MaxY: 1}, 2, 2)
	return &blockingEngine{
		field:   grid.NewField(g, 0.5),
		started: make(chan struct{}, 16),
		release: make(chan bool),
	}
}

func (e *blockingEngine) Name() string       { return "blocking" }
func (e *blockingEngine) Field() *grid.Field { return e.field }
func (e *blockingEngine) Calculate() bool {
	e.runs.Add(1)
	e.started <- struct{}{}
	return <-e.release
}

type panicEngine struct{ field *grid.Field }

func (panicEngine) Name() string         { return "panic" }
func (e panicEngine) Field() *grid.Field { return e.field }
func (panicEngine) Calculate() bool      { panic("boom") }

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestRecomputer_CoalescesTriggersDuringRun(t *testing.T) {
	eng := newBlockingEngine()
	r := NewRecomputer(eng, RecomputerConfig{})
	_, results := r.Results().Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Run(ctx)
	}()

	r.Trigger()
	waitFor(t, eng.started)

	for i := 0; i < 5; i++ {
		r.Trigger()
	}
	eng.release <- true

	waitFor(t, eng.started)
	eng.release <- false

	first := <-results
	second := <-results
	assert.True(t, first.Success)
	assert.False(t, second.Success)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)

	select {
	case <-eng.started:
		t.Fatal("triggers during a run should collapse into one follow-up")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(2), eng.runs.Load())

	cancel()
	wg.Wait()
}

func TestRecomputer_TriggerNeverBlocks(t *testing.T) {
	r := NewRecomputer(newBlockingEngine(), RecomputerConfig{})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Trigger()
		}
		close(done)
	}()
	waitFor(t, done)
}

func TestRecomputer_RunOnceSnapshotsField(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	eng := newBlockingEngine()
	r := NewRecomputer(eng, RecomputerConfig{Clock: clock})

	go func() {
		<-eng.started
		clock.Advance(250 * time.Millisecond)
		eng.release <- true
	}()
	res := r.RunOnce()

	require.NotNil(t, res.Field)
	assert.Equal(t, "blocking", res.Engine)
	assert.Equal(t, 250*time.Millisecond, res.Duration)
	assert.Equal(t, time.Unix(1000, 0), res.Started)

	eng.field.Set(0, 0, 0.1)
	assert.Equal(t, 0.5, res.Field.At(0, 0), "result field must not alias the engine field")

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, res.Seq, last.Seq)
}

func TestRecomputer_RecoversPanics(t *testing.T) {
	g := grid.MustGeometry(grid.Area{MaxX: 1, MaxY: 1}, 1, 1)
	r := NewRecomputer(panicEngine{field: grid.NewField(g, 1)}, RecomputerConfig{})
	res := r.RunOnce()
	assert.False(t, res.Success)
}

func TestRecomputer_RunStopsOnCancel(t *testing.T) {
	r := NewRecomputer(newBlockingEngine(), RecomputerConfig{Debounce: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	r.Trigger()
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRecomputer_DebounceWaitsForClock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	eng := newBlockingEngine()
	r := NewRecomputer(eng, RecomputerConfig{Clock: clock, Debounce: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	r.Trigger()
	require.Eventually(t, func() bool { return clock.Waiters() == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(0), eng.runs.Load(), "ran before the debounce elapsed")

	clock.Advance(50 * time.Millisecond)
	select {
	case <-eng.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start after the debounce")
	}
	eng.release <- true
}
