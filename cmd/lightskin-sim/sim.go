package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-echarts/go-echarts/v2/components"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/lightskin/internal/config"
	"github.com/banshee-data/lightskin/internal/db"
	"github.com/banshee-data/lightskin/internal/grid"
	"github.com/banshee-data/lightskin/internal/influence"
	"github.com/banshee-data/lightskin/internal/reconstruct"
	"github.com/banshee-data/lightskin/internal/report"
	"github.com/banshee-data/lightskin/internal/security"
	"github.com/banshee-data/lightskin/internal/skin"
)

// Simulation reconstructs a known reference field from simulated readings.
type Simulation struct {
	Layout    *skin.Layout
	Reference *grid.Field
	Tuning    *config.TuningConfig

	geom   grid.Geometry
	model  influence.Model
	sensor *skin.ProportionalSensor
}

// EngineRun is the outcome of one engine on the simulated readings.
type EngineRun struct {
	Engine      string
	Success     bool
	Started     time.Time
	Duration    time.Duration
	Field       *grid.Field
	Comparison  reconstruct.Comparison
	Convergence *report.Convergence
	// Residual is set for linear system runs.
	Residual *float64
}

func NewSimulation(layout *skin.Layout, reference *grid.Field, tuning *config.TuningConfig) (*Simulation, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	geom, err := tuning.Geometry(reference.Geometry().Area())
	if err != nil {
		return nil, err
	}
	model, err := tuning.NewModel(geom)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		Layout:    layout,
		Reference: reference,
		Tuning:    tuning,
		geom:      geom,
		model:     model,
		sensor:    skin.NewProportionalSensor(layout, reference, model),
	}, nil
}

// Run reconstructs the reference with one algorithm on a fresh session.
// Metrics cover only the cells some ray traverses.
func (s *Simulation) Run(algorithm string) (EngineRun, error) {
	e, err := s.Tuning.WithAlgorithm(algorithm).NewEngine(s.Layout, s.model, s.sensor, skin.IdealCalibration{Layout: s.Layout})
	if err != nil {
		return EngineRun{}, err
	}
	run := EngineRun{Engine: e.Name()}
	if obs, ok := e.(reconstruct.RoundObserver); ok {
		run.Convergence = report.NewConvergence(e.Name())
		obs.ObserveRounds(run.Convergence.Observe)
	}

	run.Started = time.Now()
	run.Success = e.Calculate()
	run.Duration = time.Since(run.Started)
	run.Field = e.Field().Clone()

	mask := reconstruct.Traversed(s.geom, e.Session().Measurements())
	run.Comparison = reconstruct.Compare(s.Reference, run.Field, mask)
	if ls, ok := e.(*reconstruct.LinearSystem); ok && run.Success {
		r := ls.Residual()
		run.Residual = &r
	}
	return run, nil
}

// RunAll runs every algorithm concurrently and returns the runs in the order
// given.
func (s *Simulation) RunAll(ctx context.Context, algorithms []string) ([]EngineRun, error) {
	runs := make([]EngineRun, len(algorithms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range algorithms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			run, err := s.Run(name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// WriteReport writes a PNG and a CSV per run, PNGs of the reference and the
// sensitivity map, and an index.html with every chart.
func (s *Simulation) WriteReport(dir string, runs []EngineRun) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	sensitivity := skin.SensitivityMap(s.Layout, s.model, skin.DefaultSensitivityOptions())
	if err := report.WriteHeatmapPNG(filepath.Join(dir, "reference.png"), s.Reference, "Reference", s.Layout); err != nil {
		return err
	}
	if err := report.WriteHeatmapPNG(filepath.Join(dir, "sensitivity.png"), sensitivity, "Sensitivity", s.Layout); err != nil {
		return err
	}

	charters := []components.Charter{
		report.FieldHeatmapChart(s.Reference, "Reference", s.Reference.Geometry().String()),
		report.FieldHeatmapChart(sensitivity, "Sensitivity", "all rays"),
	}
	var convergence []*report.Convergence
	for _, run := range runs {
		base := filepath.Join(dir, security.SanitizeFilename(run.Engine))
		if err := report.WriteHeatmapPNG(base+".png", run.Field, run.Engine, s.Layout); err != nil {
			return err
		}
		if err := writeFieldCSV(base+".csv", run.Field); err != nil {
			return err
		}
		subtitle := fmt.Sprintf("r=%.3f err=%.3f in %v", run.Comparison.Correlation, run.Comparison.NormalizedError, run.Duration.Round(time.Microsecond))
		charters = append(charters, report.FieldHeatmapChart(run.Field, run.Engine, subtitle))
		if run.Convergence != nil {
			convergence = append(convergence, run.Convergence)
		}
	}
	if len(convergence) > 0 {
		charters = append(charters, report.ConvergenceChart(convergence))
	}

	f, err := os.Create(filepath.Join(dir, "index.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	return report.RenderPage(f, "LightSkin simulation", charters...)
}

func writeFieldCSV(path string, field *grid.Field) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := skin.WriteField(f, field); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Record stores each run as its own session with one reconstruction.
func (s *Simulation) Record(store *db.DB, runs []EngineRun, notes string) ([]string, error) {
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		session := &db.Session{
			Started:        run.Started,
			Emitters:       len(s.Layout.Emitters),
			Sensors:        len(s.Layout.Sensors),
			CellsX:         s.geom.CellsX,
			CellsY:         s.geom.CellsY,
			Algorithm:      run.Engine,
			InfluenceModel: s.Tuning.GetInfluenceModel(),
			Notes:          notes,
		}
		if err := store.CreateSession(session); err != nil {
			return ids, err
		}
		ids = append(ids, session.ID)
		err := store.RecordReconstruction(&db.Reconstruction{
			SessionID: session.ID,
			Seq:       1,
			Engine:    run.Engine,
			Success:   run.Success,
			Started:   run.Started,
			Duration:  run.Duration,
			Residual:  run.Residual,
			Field:     run.Field,
		})
		if err != nil {
			return ids, err
		}
		if err := store.EndSession(session.ID, run.Started.Add(run.Duration)); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// finite maps NaN and infinities to nil for JSON output.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
