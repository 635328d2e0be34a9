package skin

import (
	"sync"

	"github.com/banshee-data/lightskin/internal/live"
)

// SelectionChange describes one change of the selected emitter or sensor.
type SelectionChange struct {
	What     string // "emitter" or "sensor"
	Old, New int
}

// Selection tracks the emitter and sensor an operator is inspecting and
// publishes every change.
type Selection struct {
	mu      sync.Mutex
	emitter int
	sensor  int
	changes *live.Broker[SelectionChange]
}

// NewSelection starts with nothing selected.
func NewSelection() *Selection {
	return &Selection{
		emitter: NoSelection,
		sensor:  NoSelection,
		changes: live.NewBroker[SelectionChange](0),
	}
}

// Changes returns the broker changes are published on.
func (s *Selection) Changes() *live.Broker[SelectionChange] { return s.changes }

func (s *Selection) Emitter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitter
}

func (s *Selection) Sensor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensor
}

// SelectEmitter selects emitter i, or clears the selection with NoSelection.
func (s *Selection) SelectEmitter(i int) {
	s.mu.Lock()
	old := s.emitter
	s.emitter = i
	s.mu.Unlock()
	s.changes.Publish(SelectionChange{What: "emitter", Old: old, New: i})
}

// SelectSensor selects sensor i, or clears the selection with NoSelection.
func (s *Selection) SelectSensor(i int) {
	s.mu.Lock()
	old := s.sensor
	s.sensor = i
	s.mu.Unlock()
	s.changes.Publish(SelectionChange{What: "sensor", Old: old, New: i})
}

// SensitivityOptions restricts a sensitivity analysis to the selection.
func (s *Selection) SensitivityOptions() SensitivityOptions {
	opts := DefaultSensitivityOptions()
	opts.Emitter = s.Emitter()
	opts.Sensor = s.Sensor()
	return opts
}
