package skin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/lightskin/internal/grid"
)

// Layout is the fixed arrangement of emitters and sensors.
type Layout struct {
	Emitters []grid.Point
	Sensors  []grid.Point
}

// Ray returns the ray from the given emitter to the given sensor.
func (l *Layout) Ray(sensor, emitter int) grid.Ray {
	return grid.NewRay(l.Emitters[emitter], l.Sensors[sensor])
}

// Area returns the bounding box of all emitters and sensors, the default
// reconstruction area.
func (l *Layout) Area() grid.Area {
	return grid.AreaOf(l.Emitters, l.Sensors)
}

// Pairs returns the number of emitter/sensor combinations.
func (l *Layout) Pairs() int {
	return len(l.Emitters) * len(l.Sensors)
}

// Validate checks that the layout can be reconstructed over.
func (l *Layout) Validate() error {
	if len(l.Emitters) == 0 {
		return errors.New("layout has no emitters")
	}
	if len(l.Sensors) == 0 {
		return errors.New("layout has no sensors")
	}
	if l.Area().Empty() {
		return fmt.Errorf("layout spans no area: %+v", l.Area())
	}
	return nil
}

// LoadLayout reads emitter and sensor coordinates from two CSV files.
func LoadLayout(emittersPath, sensorsPath string) (*Layout, error) {
	emitters, err := loadPointsFile(emittersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load emitters: %w", err)
	}
	sensors, err := loadPointsFile(sensorsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sensors: %w", err)
	}
	l := &Layout{Emitters: emitters, Sensors: sensors}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func loadPointsFile(path string) ([]grid.Point, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPoints(f)
}

// LoadPoints parses x,y records. Blank lines and lines starting with # are
// skipped.
func LoadPoints(r io.Reader) ([]grid.Point, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	points := make([]grid.Point, 0, len(records))
	for n, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("record %d: expected x,y, got %d fields", n+1, len(rec))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid x: %w", n+1, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid y: %w", n+1, err)
		}
		points = append(points, grid.Point{X: x, Y: y})
	}
	return points, nil
}

// LoadField parses a CSV value grid over area. Each CSV row is one grid row
// (constant y), each column one grid column.
func LoadField(r io.Reader, area grid.Area) (*grid.Field, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("value grid is empty")
	}
	width := len(records[0])
	columns := make([][]float64, width)
	for i := range columns {
		columns[i] = make([]float64, len(records))
	}
	for j, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("row %d: expected %d values, got %d", j+1, width, len(rec))
		}
		for i, s := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", j+1, i+1, err)
			}
			columns[i][j] = v
		}
	}
	return grid.FieldFromColumns(area, columns)
}

// LoadFieldFile is LoadField on a file path.
func LoadFieldFile(path string, area grid.Area) (*grid.Field, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadField(f, area)
}

// WriteField writes f in the layout LoadField reads.
func WriteField(w io.Writer, f *grid.Field) error {
	g := f.Geometry()
	cw := csv.NewWriter(w)
	row := make([]string, g.CellsX)
	for j := 0; j < g.CellsY; j++ {
		for i := 0; i < g.CellsX; i++ {
			row[i] = strconv.FormatFloat(f.At(i, j), 'g', 6, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return records, nil
}
