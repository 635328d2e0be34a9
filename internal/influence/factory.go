package influence

import (
	"fmt"
	"strings"

	"github.com/banshee-data/lightskin/internal/grid"
)

// Model names accepted by New.
const (
	NameDirect = "direct"
	NameWide   = "wide"
)

// Params carries the tunables of every model; each model reads its own.
type Params struct {
	SampleDistance    float64
	FootprintDistance float64
	FootprintFalloff  float64
}

// New builds the named model on g.
func New(name string, g grid.Geometry, p Params) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameDirect, "":
		return NewDirectSampled(g, p.SampleDistance), nil
	case NameWide:
		return NewWideFootprint(g, p.FootprintDistance, p.FootprintFalloff), nil
	default:
		return nil, fmt.Errorf("unknown influence model %q: expected %q or %q", name, NameDirect, NameWide)
	}
}

// Rebind returns a model of the same kind and parameters as m on geometry g.
// Caches are rebuilt empty around the rebound model.
func Rebind(m Model, g grid.Geometry) Model {
	switch v := m.(type) {
	case *Cache:
		return NewCache(Rebind(v.inner, g), v.maxEntries)
	case *DirectSampled:
		return NewDirectSampled(g, v.SampleDistance)
	case *WideFootprint:
		return NewWideFootprint(g, v.MaxDistance, v.Falloff)
	default:
		return m
	}
}
