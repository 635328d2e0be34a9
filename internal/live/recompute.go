package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/monitoring"
	"github.com/banshee-data/lightskin/internal/timeutil"
)

// Engine is the part of a reconstruction engine the Recomputer drives.
type Engine interface {
	Name() string
	Calculate() bool
	Field() *grid.Field
}

// Result describes one completed reconstruction.
type Result struct {
	Seq      uint64
	Engine   string
	Success  bool
	Started  time.Time
	Duration time.Duration
	// Field is a private copy of the engine's field after the run.
	Field *grid.Field
}

// RecomputerConfig holds the optional collaborators of a Recomputer.
type RecomputerConfig struct {
	// Clock times runs and debounces triggers. Defaults to the real clock.
	Clock timeutil.Clock
	// Debounce delays each run after the trigger that caused it, so that a
	// burst of frames results in one reconstruction.
	Debounce time.Duration
	// Results receives every Result. A broker is created when nil.
	Results *Broker[Result]
}

// Recomputer runs an engine whenever it is triggered, with at most one
// reconstruction in flight. Triggers arriving during a run collapse into a
// single follow-up run.
type Recomputer struct {
	engine   Engine
	clock    timeutil.Clock
	debounce time.Duration
	results  *Broker[Result]

	pending chan struct{}

	mu   sync.Mutex
	seq  uint64
	last *Result
}

func NewRecomputer(engine Engine, cfg RecomputerConfig) *Recomputer {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Results == nil {
		cfg.Results = NewBroker[Result](0)
	}
	return &Recomputer{
		engine:   engine,
		clock:    cfg.Clock,
		debounce: cfg.Debounce,
		results:  cfg.Results,
		pending:  make(chan struct{}, 1),
	}
}

// Results returns the broker results are published on.
func (r *Recomputer) Results() *Broker[Result] { return r.results }

// Trigger requests a reconstruction. It never blocks.
func (r *Recomputer) Trigger() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run executes triggered reconstructions until ctx is cancelled. A run in
// progress is completed before Run returns.
func (r *Recomputer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.pending:
		}
		if r.debounce > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.debounce):
			}
		}
		r.RunOnce()
	}
}

// RunOnce reconstructs synchronously and publishes the result.
func (r *Recomputer) RunOnce() Result {
	started := r.clock.Now()
	ok := r.calculate()
	res := Result{
		Engine:   r.engine.Name(),
		Success:  ok,
		Started:  started,
		Duration: r.clock.Since(started),
	}
	if f := r.engine.Field(); f != nil {
		res.Field = f.Clone()
	}

	r.mu.Lock()
	r.seq++
	res.Seq = r.seq
	r.last = &res
	r.mu.Unlock()

	if ok {
		monitoring.Debugf("%s reconstruction %d took %v", res.Engine, res.Seq, res.Duration)
	} else {
		monitoring.Logf("%s reconstruction %d failed after %v", res.Engine, res.Seq, res.Duration)
	}
	r.results.Publish(res)
	return res
}

// Last returns the most recent result, if any.
func (r *Recomputer) Last() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

func (r *Recomputer) calculate() (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			monitoring.Logf("%s reconstruction panicked: %v", r.engine.Name(), fmt.Sprint(p))
			ok = false
		}
	}()
	return r.engine.Calculate()
}
