// Package main simulates a LightSkin over a known translucency field and
// compares how well each reconstruction algorithm recovers it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/lightskin/internal/config"
	"github.com/banshee-data/lightskin/internal/db"
	"github.com/banshee-data/lightskin/internal/monitoring"
	"github.com/banshee-data/lightskin/internal/reconstruct"
	"github.com/banshee-data/lightskin/internal/security"
	"github.com/banshee-data/lightskin/internal/skin"
)

// Config holds the command line of a simulation.
type Config struct {
	EmittersPath  string
	SensorsPath   string
	ReferencePath string
	ConfigPath    string
	Algorithms    string
	OutputDir     string
	OutputJSON    string
	DBPath        string
	Verbose       bool
}

// Summary is the JSON export of a simulation.
type Summary struct {
	Reference string          `json:"reference"`
	Grid      string          `json:"grid"`
	Engines   []EngineSummary `json:"engines"`
}

// EngineSummary holds the metrics of one run. Undefined metrics are null.
type EngineSummary struct {
	Engine          string    `json:"engine"`
	Success         bool      `json:"success"`
	DurationMS      float64   `json:"duration_ms"`
	Cells           int       `json:"cells"`
	Correlation     *float64  `json:"correlation"`
	NormalizedError *float64  `json:"normalized_error"`
	MeanAbsError    *float64  `json:"mean_abs_error"`
	MaxAbsError     *float64  `json:"max_abs_error"`
	Residual        *float64  `json:"residual,omitempty"`
	Convergence     []float64 `json:"convergence,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
}

func main() {
	cfg := parseFlags()
	if cfg.Verbose {
		monitoring.SetDebugLogger(log.Printf)
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.EmittersPath, "emitters", "fixtures/emitters.csv", "CSV of emitter x,y positions")
	flag.StringVar(&cfg.SensorsPath, "sensors", "fixtures/sensors.csv", "CSV of sensor x,y positions")
	flag.StringVar(&cfg.ReferencePath, "reference", "fixtures/translucency.csv", "CSV grid of the translucency to simulate")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Tuning config JSON (defaults to "+config.DefaultConfigPath+")")
	flag.StringVar(&cfg.Algorithms, "algorithms", strings.Join(reconstruct.Algorithms, ","), "Comma-separated algorithms to compare")
	flag.StringVar(&cfg.OutputDir, "output", "sim-out", "Output directory for images and the HTML report")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Output JSON filename (e.g., results.json), written to the output directory")
	flag.StringVar(&cfg.DBPath, "db", "", "Also store every run in this database")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	tuning, err := loadTuning(cfg.ConfigPath)
	if err != nil {
		return err
	}
	layout, err := skin.LoadLayout(cfg.EmittersPath, cfg.SensorsPath)
	if err != nil {
		return fmt.Errorf("failed to load layout: %w", err)
	}
	reference, err := skin.LoadFieldFile(cfg.ReferencePath, layout.Area())
	if err != nil {
		return fmt.Errorf("failed to load reference: %w", err)
	}
	sim, err := NewSimulation(layout, reference, tuning)
	if err != nil {
		return err
	}

	algorithms := splitList(cfg.Algorithms)
	if len(algorithms) == 0 {
		return fmt.Errorf("no algorithms given")
	}
	runs, err := sim.RunAll(ctx, algorithms)
	if err != nil {
		return err
	}

	summary := summarize(cfg.ReferencePath, sim, runs)
	if cfg.DBPath != "" {
		store, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		ids, err := sim.Record(store, runs, "simulation of "+cfg.ReferencePath)
		if err != nil {
			return fmt.Errorf("failed to record runs: %w", err)
		}
		for i, id := range ids {
			summary.Engines[i].SessionID = id
		}
	}

	printResults(out, summary)

	if cfg.OutputDir != "" {
		if err := sim.WriteReport(cfg.OutputDir, runs); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		log.Printf("Report written to: %s", filepath.Join(cfg.OutputDir, "index.html"))
	}
	if cfg.OutputJSON != "" {
		dir := cfg.OutputDir
		if dir == "" {
			dir = "."
		}
		outputPath := filepath.Join(dir, cfg.OutputJSON)
		if err := security.ValidatePathWithinDirectory(outputPath, dir); err != nil {
			return fmt.Errorf("invalid JSON output path: %w", err)
		}
		if err := exportJSON(summary, outputPath); err != nil {
			return fmt.Errorf("failed to export JSON: %w", err)
		}
		log.Printf("Results exported to: %s", outputPath)
	}
	return nil
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.MustLoadDefaultConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func summarize(referencePath string, sim *Simulation, runs []EngineRun) *Summary {
	s := &Summary{Reference: referencePath, Grid: sim.geom.String()}
	for _, r := range runs {
		es := EngineSummary{
			Engine:          r.Engine,
			Success:         r.Success,
			DurationMS:      float64(r.Duration.Microseconds()) / 1000,
			Cells:           r.Comparison.Cells,
			Correlation:     finite(r.Comparison.Correlation),
			NormalizedError: finite(r.Comparison.NormalizedError),
			MeanAbsError:    finite(r.Comparison.MeanAbsError),
			MaxAbsError:     finite(r.Comparison.MaxAbsError),
			Residual:        r.Residual,
		}
		if r.Convergence != nil {
			es.Convergence = r.Convergence.Changes
		}
		s.Engines = append(s.Engines, es)
	}
	return s
}

func printResults(w io.Writer, s *Summary) {
	fmt.Fprintln(w, "\n=== Reconstruction Comparison ===")
	fmt.Fprintf(w, "Reference: %s\n", s.Reference)
	fmt.Fprintf(w, "Grid: %s\n", s.Grid)
	for _, e := range s.Engines {
		fmt.Fprintf(w, "\n%s:\n", e.Engine)
		if !e.Success {
			fmt.Fprintln(w, "  FAILED")
			continue
		}
		fmt.Fprintf(w, "  Time: %.3f ms\n", e.DurationMS)
		fmt.Fprintf(w, "  Cells compared: %d\n", e.Cells)
		fmt.Fprintf(w, "  Correlation: %s\n", formatMetric(e.Correlation))
		fmt.Fprintf(w, "  Normalized error: %s\n", formatMetric(e.NormalizedError))
		fmt.Fprintf(w, "  Mean/max abs error: %s / %s\n", formatMetric(e.MeanAbsError), formatMetric(e.MaxAbsError))
		if e.Residual != nil {
			fmt.Fprintf(w, "  Residual: %.3g\n", *e.Residual)
		}
		if n := len(e.Convergence); n > 0 {
			fmt.Fprintf(w, "  Rounds: %d, last change %.3g\n", n, e.Convergence[n-1])
		}
		if e.SessionID != "" {
			fmt.Fprintf(w, "  Session: %s\n", e.SessionID)
		}
	}
}

func formatMetric(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}

func exportJSON(s *Summary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s)
}
