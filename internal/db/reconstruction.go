package db

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/banshee-data/lightskin/internal/grid"
)

// SaveCalibration stores a calibration baseline, values[emitter][sensor],
// for a session and returns its row ID.
func (db *DB) SaveCalibration(sessionID string, values [][]float64) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("empty calibration")
	}
	body, err := json.Marshal(values)
	if err != nil {
		return 0, fmt.Errorf("failed to encode calibration: %w", err)
	}
	res, err := db.Exec(`
		INSERT INTO calibrations (session_id, created_unix, emitters, sensors, values_json)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, unixSeconds(time.Now()), len(values), len(values[0]), string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save calibration: %w", err)
	}
	return res.LastInsertId()
}

// LatestCalibration returns the most recent calibration of a session.
func (db *DB) LatestCalibration(sessionID string) ([][]float64, error) {
	var body string
	err := db.QueryRow(`
		SELECT values_json FROM calibrations
		WHERE session_id = ?
		ORDER BY created_unix DESC, calibration_id DESC LIMIT 1`, sessionID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calibration for session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration: %w", err)
	}
	var values [][]float64
	if err := json.Unmarshal([]byte(body), &values); err != nil {
		return nil, fmt.Errorf("failed to decode calibration: %w", err)
	}
	return values, nil
}

// Reconstruction is one stored engine run.
type Reconstruction struct {
	ID        int64
	SessionID string
	Seq       uint64
	Engine    string
	Success   bool
	Started   time.Time
	Duration  time.Duration
	// Residual is the solver residual norm, for engines that report one.
	Residual *float64
	Field    *grid.Field
}

// RecordReconstruction stores r and sets r.ID.
func (db *DB) RecordReconstruction(r *Reconstruction) error {
	if r.Field == nil {
		return fmt.Errorf("reconstruction %d has no field", r.Seq)
	}
	blob, err := EncodeField(r.Field)
	if err != nil {
		return err
	}
	g := r.Field.Geometry()
	lo, hi := r.Field.Range()

	res, err := db.Exec(`
		INSERT INTO reconstructions (
			session_id, seq, engine, success, started_unix, duration_ms,
			x0, y0, cell_width, cell_height, cells_x, cells_y,
			min_value, max_value, field_blob, residual
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, int64(r.Seq), r.Engine, r.Success, unixSeconds(r.Started),
		float64(r.Duration)/float64(time.Millisecond),
		g.X0, g.Y0, g.CellWidth, g.CellHeight, g.CellsX, g.CellsY,
		nullFloat(lo), nullFloat(hi), blob, r.Residual,
	)
	if err != nil {
		return fmt.Errorf("failed to record reconstruction: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

const reconstructionColumns = `
	reconstruction_id, session_id, seq, engine, success, started_unix, duration_ms,
	x0, y0, cell_width, cell_height, cells_x, cells_y, field_blob, residual`

// LatestReconstruction returns the highest-sequence successful
// reconstruction of a session.
func (db *DB) LatestReconstruction(sessionID string) (*Reconstruction, error) {
	row := db.QueryRow(`SELECT `+reconstructionColumns+`
		FROM reconstructions
		WHERE session_id = ? AND success = 1
		ORDER BY seq DESC, reconstruction_id DESC LIMIT 1`, sessionID)
	r, err := scanReconstruction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reconstruction for session %s: %w", sessionID, ErrNotFound)
	}
	return r, err
}

// Reconstructions returns up to limit reconstructions of a session, newest
// first, including failed runs.
func (db *DB) Reconstructions(sessionID string, limit int) ([]*Reconstruction, error) {
	rows, err := db.Query(`SELECT `+reconstructionColumns+`
		FROM reconstructions
		WHERE session_id = ?
		ORDER BY seq DESC, reconstruction_id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reconstruction
	for rows.Next() {
		r, err := scanReconstruction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReconstruction(row scanner) (*Reconstruction, error) {
	var (
		r          Reconstruction
		seq        int64
		started    float64
		durationMs float64
		g          grid.Geometry
		blob       []byte
		residual   sql.NullFloat64
	)
	if err := row.Scan(&r.ID, &r.SessionID, &seq, &r.Engine, &r.Success, &started, &durationMs,
		&g.X0, &g.Y0, &g.CellWidth, &g.CellHeight, &g.CellsX, &g.CellsY, &blob, &residual); err != nil {
		return nil, err
	}
	r.Seq = uint64(seq)
	r.Started = fromUnixSeconds(started)
	r.Duration = time.Duration(durationMs * float64(time.Millisecond))
	if residual.Valid {
		r.Residual = &residual.Float64
	}

	field, err := DecodeField(g, blob)
	if err != nil {
		return nil, fmt.Errorf("reconstruction %d: %w", r.ID, err)
	}
	r.Field = field
	return &r, nil
}

// EncodeField packs the field values as gzip-compressed little-endian
// float64s in flat index order.
func EncodeField(f *grid.Field) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := binary.Write(zw, binary.LittleEndian, f.Values()); err != nil {
		return nil, fmt.Errorf("failed to encode field: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode field: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeField is the inverse of EncodeField for a field over g.
func DecodeField(g grid.Geometry, blob []byte) (*grid.Field, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to decode field: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode field: %w", err)
	}
	if len(raw) != 8*g.Cells() {
		return nil, fmt.Errorf("failed to decode field: %d bytes for %d cells", len(raw), g.Cells())
	}

	f := grid.NewField(g, 0)
	for i := range g.Cells() {
		f.SetIndex(i, math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:])))
	}
	return f, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
