package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/lightskin/internal/influence"
	"github.com/banshee-data/lightskin/internal/reconstruct"
)

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if cfg.GridCellsX == nil || *cfg.GridCellsX != 10 {
		t.Errorf("Expected GridCellsX 10, got %v", cfg.GridCellsX)
	}
	if cfg.Algorithm == nil || *cfg.Algorithm != "distribute" {
		t.Errorf("Expected Algorithm 'distribute', got %v", cfg.Algorithm)
	}
	if cfg.RecomputeDebounce == nil || *cfg.RecomputeDebounce != "50ms" {
		t.Errorf("Expected RecomputeDebounce '50ms', got %v", cfg.RecomputeDebounce)
	}

	// The defaults file must agree with the compiled-in fallbacks.
	empty := EmptyTuningConfig()
	if cfg.GetRepetitions() != empty.GetRepetitions() {
		t.Errorf("repetitions: file %d, fallback %d", cfg.GetRepetitions(), empty.GetRepetitions())
	}
	if cfg.GetMinSensitivity() != empty.GetMinSensitivity() {
		t.Errorf("min_sensitivity: file %f, fallback %f", cfg.GetMinSensitivity(), empty.GetMinSensitivity())
	}
	if cfg.GetInfluenceParams() != empty.GetInfluenceParams() {
		t.Errorf("influence params: file %+v, fallback %+v", cfg.GetInfluenceParams(), empty.GetInfluenceParams())
	}
	if cfg.GetSolverOptions() != empty.GetSolverOptions() {
		t.Errorf("solver options: file %+v, fallback %+v", cfg.GetSolverOptions(), empty.GetSolverOptions())
	}
	if cfg.GetBaudRate() != 115200 {
		t.Errorf("GetBaudRate() = %d, want 115200", cfg.GetBaudRate())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "grid_cells_x": 16,
  "grid_cells_y": 12,
  "algorithm": "LinSys",
  "influence_model": "wide",
  "footprint_distance": 0.5,
  "solver_mode": "nnls",
  "recompute_debounce": "250ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetGridCellsX(); got != 16 {
		t.Errorf("GetGridCellsX() = %d, want 16", got)
	}
	if got := cfg.GetGridCellsY(); got != 12 {
		t.Errorf("GetGridCellsY() = %d, want 12", got)
	}
	if got := cfg.GetAlgorithm(); got != reconstruct.AlgorithmLinearSystem {
		t.Errorf("GetAlgorithm() = %q, want %q", got, reconstruct.AlgorithmLinearSystem)
	}
	if got := cfg.GetInfluenceModel(); got != influence.NameWide {
		t.Errorf("GetInfluenceModel() = %q, want %q", got, influence.NameWide)
	}
	p := cfg.GetInfluenceParams()
	if p.FootprintDistance != 0.5 || p.SampleDistance != influence.DefaultSampleDistance {
		t.Errorf("GetInfluenceParams() = %+v", p)
	}
	if got := cfg.GetSolverMode(); got != reconstruct.NonNegative {
		t.Errorf("GetSolverMode() = %v, want nonnegative", got)
	}
	if got := cfg.GetRecomputeDebounce(); got != 250*time.Millisecond {
		t.Errorf("GetRecomputeDebounce() = %v, want 250ms", got)
	}

	// Unset fields fall back to defaults.
	if got := cfg.GetRepetitions(); got != reconstruct.DefaultRepetitions {
		t.Errorf("GetRepetitions() = %d, want %d", got, reconstruct.DefaultRepetitions)
	}
	if got := cfg.GetCacheEntries(); got != influence.DefaultCacheEntries {
		t.Errorf("GetCacheEntries() = %d, want %d", got, influence.DefaultCacheEntries)
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := map[string]string{
		"malformed.json": `{"grid_cells_x": "ten"`,
		"rejected.json":  `{"algorithm": "fourier"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, name)
			if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := LoadTuningConfig(configPath); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{name: "empty config is valid", cfg: &TuningConfig{}},
		{name: "default file is valid", cfg: MustLoadDefaultConfig()},
		{name: "zero grid columns", cfg: &TuningConfig{GridCellsX: ptrInt(0)}, wantErr: true},
		{name: "negative grid rows", cfg: &TuningConfig{GridCellsY: ptrInt(-3)}, wantErr: true},
		{name: "algorithm is case insensitive", cfg: &TuningConfig{Algorithm: ptrString(" Repeated ")}},
		{name: "unknown algorithm", cfg: &TuningConfig{Algorithm: ptrString("art")}, wantErr: true},
		{name: "negative repetitions", cfg: &TuningConfig{Repetitions: ptrInt(-1)}, wantErr: true},
		{name: "zero repetitions", cfg: &TuningConfig{Repetitions: ptrInt(0)}},
		{name: "min sensitivity too high", cfg: &TuningConfig{MinSensitivity: ptrFloat64(1.5)}, wantErr: true},
		{name: "unknown value too low", cfg: &TuningConfig{UnknownValue: ptrFloat64(-0.1)}, wantErr: true},
		{name: "negative workers", cfg: &TuningConfig{Workers: ptrInt(-2)}, wantErr: true},
		{name: "unknown influence model", cfg: &TuningConfig{InfluenceModel: ptrString("cone")}, wantErr: true},
		{name: "zero sample distance", cfg: &TuningConfig{SampleDistance: ptrFloat64(0)}, wantErr: true},
		{name: "negative footprint falloff", cfg: &TuningConfig{FootprintFalloff: ptrFloat64(-1)}, wantErr: true},
		{name: "zero cache entries", cfg: &TuningConfig{CacheEntries: ptrInt(0)}},
		{name: "unknown solver mode", cfg: &TuningConfig{SolverMode: ptrString("cg")}, wantErr: true},
		{name: "zero solver iterations", cfg: &TuningConfig{SolverMaxIterations: ptrInt(0)}, wantErr: true},
		{name: "zero solver tolerance", cfg: &TuningConfig{SolverTolerance: ptrFloat64(0)}, wantErr: true},
		{name: "zero baud rate", cfg: &TuningConfig{BaudRate: ptrInt(0)}, wantErr: true},
		{name: "invalid debounce", cfg: &TuningConfig{RecomputeDebounce: ptrString("soon")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetRecomputeDebounce(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{name: "unset", cfg: &TuningConfig{}, want: 0},
		{name: "empty", cfg: &TuningConfig{RecomputeDebounce: ptrString("")}, want: 0},
		{name: "100ms", cfg: &TuningConfig{RecomputeDebounce: ptrString("100ms")}, want: 100 * time.Millisecond},
		{name: "invalid falls back", cfg: &TuningConfig{RecomputeDebounce: ptrString("later")}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetRecomputeDebounce(); got != tt.want {
				t.Errorf("GetRecomputeDebounce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := &TuningConfig{
		Repetitions:         ptrInt(5),
		UnknownValue:        ptrFloat64(0.75),
		SolverMode:          ptrString("nonnegative"),
		SolverMaxIterations: ptrInt(100),
	}

	o := cfg.EngineOptions()
	if o.Repetitions != 5 || o.UnknownValue != 0.75 {
		t.Errorf("EngineOptions() = %+v", o)
	}
	if o.Mode != reconstruct.NonNegative {
		t.Errorf("Mode = %v, want nonnegative", o.Mode)
	}
	if o.Solver.MaxIterations != 100 || o.Solver.Tolerance != reconstruct.DefaultTolerance {
		t.Errorf("Solver = %+v", o.Solver)
	}

	if got := EmptyTuningConfig().EngineOptions(); got != reconstruct.DefaultOptions() {
		t.Errorf("empty EngineOptions() = %+v, want %+v", got, reconstruct.DefaultOptions())
	}
}
