package main

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/lightskin/internal/httputil"
	"github.com/banshee-data/lightskin/internal/influence"
	"github.com/banshee-data/lightskin/internal/live"
	"github.com/banshee-data/lightskin/internal/report"
	"github.com/banshee-data/lightskin/internal/skin"
)

type resultSource interface {
	Last() (live.Result, bool)
}

// debugServer exposes the latest reconstruction and the operator selection
// under /debug/.
type debugServer struct {
	layout      *skin.Layout
	model       influence.Model
	results     resultSource
	selection   *skin.Selection
	recalibrate func() error
}

type fieldResponse struct {
	Seq        uint64       `json:"seq"`
	Engine     string       `json:"engine"`
	Success    bool         `json:"success"`
	Started    string       `json:"started"`
	DurationMS float64      `json:"duration_ms"`
	Area       [4]float64   `json:"area"`
	Columns    [][]*float64 `json:"columns"`
}

func (s *debugServer) attach(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("field.json", "latest reconstructed field", s.serveFieldJSON)
	debug.HandleFunc("field.png", "latest reconstructed field as an image", s.serveFieldPNG)
	debug.HandleFunc("field.html", "latest reconstructed field as a chart", s.serveFieldHTML)
	debug.HandleFunc("sensitivity.html", "sensitivity of the selected rays", s.serveSensitivity)
	debug.HandleSilentFunc("select", s.serveSelect)
	debug.HandleSilentFunc("recalibrate", s.serveRecalibrate)
}

func (s *debugServer) latest(w http.ResponseWriter) (live.Result, bool) {
	res, ok := s.results.Last()
	if !ok {
		httputil.ServiceUnavailable(w, "no reconstruction yet")
	}
	return res, ok
}

func (s *debugServer) serveFieldJSON(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	area := res.Field.Geometry().Area()
	out := fieldResponse{
		Seq:        res.Seq,
		Engine:     res.Engine,
		Success:    res.Success,
		Started:    res.Started.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
		Area:       [4]float64{area.MinX, area.MinY, area.MaxX, area.MaxY},
	}
	for _, col := range res.Field.Columns() {
		vals := make([]*float64, len(col))
		for j, v := range col {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals[j] = &col[j]
			}
		}
		out.Columns = append(out.Columns, vals)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *debugServer) serveFieldPNG(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	title := fmt.Sprintf("%s #%d", res.Engine, res.Seq)
	if err := report.HeatmapPNG(w, res.Field, title, s.layout); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *debugServer) serveFieldHTML(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	title := fmt.Sprintf("%s #%d", res.Engine, res.Seq)
	if err := report.RenderFieldHeatmap(w, res.Field, title); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *debugServer) serveSensitivity(w http.ResponseWriter, r *http.Request) {
	opts := s.selection.SensitivityOptions()
	f := skin.SensitivityMap(s.layout, s.model, opts)
	title := fmt.Sprintf("Sensitivity (emitter %d, sensor %d)", opts.Emitter, opts.Sensor)
	if err := report.RenderFieldHeatmap(w, f, title); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// serveSelect sets the emitter and/or sensor whose rays the sensitivity view
// shows. -1 selects all of them.
func (s *debugServer) serveSelect(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	emitter, err := parseSelection(r.FormValue("emitter"), len(s.layout.Emitters))
	if err != nil {
		httputil.BadRequest(w, "invalid emitter: "+err.Error())
		return
	}
	sensor, err := parseSelection(r.FormValue("sensor"), len(s.layout.Sensors))
	if err != nil {
		httputil.BadRequest(w, "invalid sensor: "+err.Error())
		return
	}
	if emitter != nil {
		s.selection.SelectEmitter(*emitter)
	}
	if sensor != nil {
		s.selection.SelectSensor(*sensor)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"emitter": s.selection.Emitter(),
		"sensor":  s.selection.Sensor(),
	})
}

// parseSelection returns nil for an empty value.
func parseSelection(v string, n int) (*int, error) {
	if v == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	if i < skin.NoSelection || i >= n {
		return nil, fmt.Errorf("%d out of range [%d, %d)", i, skin.NoSelection, n)
	}
	return &i, nil
}

func (s *debugServer) serveRecalibrate(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.recalibrate(); err != nil {
		httputil.InternalServerError(w, "failed to save calibration: "+err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "recalibrated"})
}
