package config

import (
	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/influence"
	"github.com/banshee-data/lightskin/internal/reconstruct"
	"github.com/banshee-data/lightskin/internal/skin"
)

// Geometry splits area into the configured number of cells.
func (c *TuningConfig) Geometry(area grid.Area) (grid.Geometry, error) {
	return grid.NewGeometry(area, c.GetGridCellsX(), c.GetGridCellsY())
}

// NewModel builds the configured influence model on g, memoised unless
// cache_entries is zero.
func (c *TuningConfig) NewModel(g grid.Geometry) (influence.Model, error) {
	m, err := influence.New(c.GetInfluenceModel(), g, c.GetInfluenceParams())
	if err != nil {
		return nil, err
	}
	if c.GetCacheEntries() == 0 {
		return m, nil
	}
	return influence.NewCache(m, c.GetCacheEntries()), nil
}

// NewEngine binds the configured algorithm to a fresh session.
func (c *TuningConfig) NewEngine(layout *skin.Layout, model influence.Model, sensor skin.ForwardSensor, cal skin.Calibration) (reconstruct.Engine, error) {
	s := reconstruct.NewSession(layout, model, sensor, cal)
	s.MinSensitivity = c.GetMinSensitivity()
	s.Workers = c.GetWorkers()
	return reconstruct.New(c.GetAlgorithm(), s, c.EngineOptions())
}

// WithAlgorithm returns a copy of c that builds the named algorithm.
func (c *TuningConfig) WithAlgorithm(name string) *TuningConfig {
	cp := *c
	cp.Algorithm = &name
	return &cp
}
