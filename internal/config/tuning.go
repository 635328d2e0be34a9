package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/banshee-data/lightskin/internal/influence"
	"github.com/banshee-data/lightskin/internal/reconstruct"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/lightskin.defaults.json"

// TuningConfig represents the root configuration for reconstruction
// tuning parameters. Every field is optional; the Get* methods supply the
// default for anything left unset.
type TuningConfig struct {
	// Grid params
	GridCellsX *int `json:"grid_cells_x,omitempty"`
	GridCellsY *int `json:"grid_cells_y,omitempty"`

	// Engine params
	Algorithm      *string  `json:"algorithm,omitempty"`
	Repetitions    *int     `json:"repetitions,omitempty"`
	MinSensitivity *float64 `json:"min_sensitivity,omitempty"`
	UnknownValue   *float64 `json:"unknown_value,omitempty"`
	Workers        *int     `json:"workers,omitempty"`

	// Influence model params
	InfluenceModel    *string  `json:"influence_model,omitempty"`
	SampleDistance    *float64 `json:"sample_distance,omitempty"`
	FootprintDistance *float64 `json:"footprint_distance,omitempty"`
	FootprintFalloff  *float64 `json:"footprint_falloff,omitempty"`
	CacheEntries      *int     `json:"cache_entries,omitempty"`

	// Linear system params
	SolverMode          *string  `json:"solver_mode,omitempty"`
	SolverMaxIterations *int     `json:"solver_max_iterations,omitempty"`
	SolverTolerance     *float64 `json:"solver_tolerance,omitempty"`

	// Live params
	BaudRate          *int    `json:"baud_rate,omitempty"`
	RecomputeDebounce *string `json:"recompute_debounce,omitempty"` // duration string like "50ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/ and cmd/<binary>/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.GridCellsX != nil && *c.GridCellsX <= 0 {
		return fmt.Errorf("grid_cells_x must be positive, got %d", *c.GridCellsX)
	}
	if c.GridCellsY != nil && *c.GridCellsY <= 0 {
		return fmt.Errorf("grid_cells_y must be positive, got %d", *c.GridCellsY)
	}

	if c.Algorithm != nil && !slices.Contains(reconstruct.Algorithms, normalize(*c.Algorithm)) {
		return fmt.Errorf("unknown algorithm %q: expected one of %s", *c.Algorithm, strings.Join(reconstruct.Algorithms, ", "))
	}
	if c.Repetitions != nil && *c.Repetitions < 0 {
		return fmt.Errorf("repetitions must be non-negative, got %d", *c.Repetitions)
	}
	if c.MinSensitivity != nil {
		if *c.MinSensitivity < 0 || *c.MinSensitivity > 1 {
			return fmt.Errorf("min_sensitivity must be between 0 and 1, got %f", *c.MinSensitivity)
		}
	}
	if c.UnknownValue != nil {
		if *c.UnknownValue < 0 || *c.UnknownValue > 1 {
			return fmt.Errorf("unknown_value must be between 0 and 1, got %f", *c.UnknownValue)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if c.InfluenceModel != nil {
		switch normalize(*c.InfluenceModel) {
		case influence.NameDirect, influence.NameWide:
		default:
			return fmt.Errorf("unknown influence_model %q: expected %q or %q", *c.InfluenceModel, influence.NameDirect, influence.NameWide)
		}
	}
	if c.SampleDistance != nil && *c.SampleDistance <= 0 {
		return fmt.Errorf("sample_distance must be positive, got %f", *c.SampleDistance)
	}
	if c.FootprintDistance != nil && *c.FootprintDistance <= 0 {
		return fmt.Errorf("footprint_distance must be positive, got %f", *c.FootprintDistance)
	}
	if c.FootprintFalloff != nil && *c.FootprintFalloff <= 0 {
		return fmt.Errorf("footprint_falloff must be positive, got %f", *c.FootprintFalloff)
	}
	if c.CacheEntries != nil && *c.CacheEntries < 0 {
		return fmt.Errorf("cache_entries must be non-negative, got %d", *c.CacheEntries)
	}

	if c.SolverMode != nil {
		if _, err := reconstruct.ParseSolverMode(*c.SolverMode); err != nil {
			return err
		}
	}
	if c.SolverMaxIterations != nil && *c.SolverMaxIterations <= 0 {
		return fmt.Errorf("solver_max_iterations must be positive, got %d", *c.SolverMaxIterations)
	}
	if c.SolverTolerance != nil && *c.SolverTolerance <= 0 {
		return fmt.Errorf("solver_tolerance must be positive, got %g", *c.SolverTolerance)
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.RecomputeDebounce != nil && *c.RecomputeDebounce != "" {
		if _, err := time.ParseDuration(*c.RecomputeDebounce); err != nil {
			return fmt.Errorf("invalid recompute_debounce '%s': %w", *c.RecomputeDebounce, err)
		}
	}

	return nil
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// GetGridCellsX returns the grid_cells_x value or the default.
func (c *TuningConfig) GetGridCellsX() int {
	if c.GridCellsX == nil {
		return 10
	}
	return *c.GridCellsX
}

// GetGridCellsY returns the grid_cells_y value or the default.
func (c *TuningConfig) GetGridCellsY() int {
	if c.GridCellsY == nil {
		return 10
	}
	return *c.GridCellsY
}

// GetAlgorithm returns the algorithm value or the default.
func (c *TuningConfig) GetAlgorithm() string {
	if c.Algorithm == nil || *c.Algorithm == "" {
		return reconstruct.AlgorithmDistribute
	}
	return normalize(*c.Algorithm)
}

// GetRepetitions returns the repetitions value or the default.
func (c *TuningConfig) GetRepetitions() int {
	if c.Repetitions == nil {
		return reconstruct.DefaultRepetitions
	}
	return *c.Repetitions
}

// GetMinSensitivity returns the min_sensitivity value or the default.
func (c *TuningConfig) GetMinSensitivity() float64 {
	if c.MinSensitivity == nil {
		return reconstruct.MinSensitivity
	}
	return *c.MinSensitivity
}

// GetUnknownValue returns the unknown_value value or the default.
func (c *TuningConfig) GetUnknownValue() float64 {
	if c.UnknownValue == nil {
		return reconstruct.UnknownValue
	}
	return *c.UnknownValue
}

// GetWorkers returns the workers value or the default. Zero and one both
// mean sequential accumulation.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetInfluenceModel returns the influence_model value or the default.
func (c *TuningConfig) GetInfluenceModel() string {
	if c.InfluenceModel == nil || *c.InfluenceModel == "" {
		return influence.NameDirect
	}
	return normalize(*c.InfluenceModel)
}

// GetInfluenceParams collects the influence model tunables.
func (c *TuningConfig) GetInfluenceParams() influence.Params {
	p := influence.Params{
		SampleDistance:    influence.DefaultSampleDistance,
		FootprintDistance: influence.DefaultFootprintDistance,
		FootprintFalloff:  influence.DefaultFootprintFalloff,
	}
	if c.SampleDistance != nil {
		p.SampleDistance = *c.SampleDistance
	}
	if c.FootprintDistance != nil {
		p.FootprintDistance = *c.FootprintDistance
	}
	if c.FootprintFalloff != nil {
		p.FootprintFalloff = *c.FootprintFalloff
	}
	return p
}

// GetCacheEntries returns the cache_entries value or the default. Zero
// disables the influence cache.
func (c *TuningConfig) GetCacheEntries() int {
	if c.CacheEntries == nil {
		return influence.DefaultCacheEntries
	}
	return *c.CacheEntries
}

// GetSolverMode returns the parsed solver_mode or BoundedLeastSquares.
func (c *TuningConfig) GetSolverMode() reconstruct.SolverMode {
	if c.SolverMode == nil {
		return reconstruct.BoundedLeastSquares
	}
	m, err := reconstruct.ParseSolverMode(*c.SolverMode)
	if err != nil {
		return reconstruct.BoundedLeastSquares // default on parse error
	}
	return m
}

// GetSolverOptions returns the linear system solver limits.
func (c *TuningConfig) GetSolverOptions() reconstruct.SolverOptions {
	o := reconstruct.DefaultSolverOptions()
	if c.SolverMaxIterations != nil {
		o.MaxIterations = *c.SolverMaxIterations
	}
	if c.SolverTolerance != nil {
		o.Tolerance = *c.SolverTolerance
	}
	return o
}

// EngineOptions assembles the options passed to reconstruct.New.
func (c *TuningConfig) EngineOptions() reconstruct.Options {
	return reconstruct.Options{
		Repetitions:  c.GetRepetitions(),
		UnknownValue: c.GetUnknownValue(),
		Mode:         c.GetSolverMode(),
		Solver:       c.GetSolverOptions(),
	}
}

// GetBaudRate returns the baud_rate value or the default.
func (c *TuningConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetRecomputeDebounce parses and returns the RecomputeDebounce as a time.Duration.
func (c *TuningConfig) GetRecomputeDebounce() time.Duration {
	if c.RecomputeDebounce == nil || *c.RecomputeDebounce == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.RecomputeDebounce)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}
