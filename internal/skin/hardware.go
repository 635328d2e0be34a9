package skin

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/lightskin/internal/monitoring"
)

// HardwareSensor is a ForwardSensor backed by the snapshot stream of a
// physical skin. Until the first frame arrives every reading is 1.0.
type HardwareSensor struct {
	parser *FrameParser

	mu      sync.RWMutex
	values  [][]float64
	seq     uint64
	onFrame func(Frame)

	dropped uint64
}

// NewHardwareSensor expects snapshots matching layout.
func NewHardwareSensor(layout *Layout) *HardwareSensor {
	values := make([][]float64, len(layout.Emitters))
	for e := range values {
		values[e] = make([]float64, len(layout.Sensors))
		for s := range values[e] {
			values[e][s] = 1.0
		}
	}
	return &HardwareSensor{
		parser: NewFrameParser(len(layout.Emitters), len(layout.Sensors)),
		values: values,
	}
}

// OnFrame registers f to be called after every complete frame. f runs on the
// reading goroutine and must hand work off rather than block.
func (h *HardwareSensor) OnFrame(f func(Frame)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFrame = f
}

// Run consumes lines until ctx is cancelled or lines is closed.
func (h *HardwareSensor) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			h.HandleLine(line)
		}
	}
}

// HandleLine feeds one line to the frame parser. It is not safe to call
// from more than one goroutine.
func (h *HardwareSensor) HandleLine(line string) {
	frame, err := h.parser.Feed(line)
	if err != nil {
		if errors.Is(err, ErrMalformedFrame) {
			h.mu.Lock()
			h.dropped++
			h.mu.Unlock()
		}
		monitoring.Logf("discarding snapshot: %v", err)
		return
	}
	if frame == nil {
		return
	}

	h.mu.Lock()
	h.values = frame.Values
	h.seq = frame.Seq
	cb := h.onFrame
	h.mu.Unlock()

	if cb != nil {
		cb(*frame)
	}
}

func (h *HardwareSensor) Intensity(sensor, emitter int) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.values[emitter][sensor]
}

// Latest returns a copy of the most recent frame. Seq is 0 before any frame
// has been received.
func (h *HardwareSensor) Latest() Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Frame{Seq: h.seq, Values: copyMatrix(h.values)}
}

// Dropped returns the number of discarded frames.
func (h *HardwareSensor) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
