package skin

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxRawReading is the raw reading that corresponds to full intensity.
const MaxRawReading = 1024

// ErrMalformedFrame is reported for snapshots that do not match the layout
// or contain unparseable readings. The frame is discarded.
var ErrMalformedFrame = errors.New("malformed snapshot frame")

var snapshotHeader = regexp.MustCompile(`^Snapshot: ([0-9]+),([0-9]+)`)

// Frame is one complete snapshot of every sensor for every emitter.
type Frame struct {
	Seq    uint64
	Values [][]float64 // [emitter][sensor], normalised to [0, 1]
}

// FrameParser assembles frames from the line stream of the skin firmware:
//
//	Snapshot: <emitters>,<sensors>
//	<raw>,<raw>,...    one line per emitter
//
// Lines outside a snapshot are ignored. A header always starts a new frame,
// abandoning any partial one.
type FrameParser struct {
	emitters, sensors int

	active  bool
	row     int
	pending [][]float64
	seq     uint64
}

// NewFrameParser expects frames of the given dimensions.
func NewFrameParser(emitters, sensors int) *FrameParser {
	return &FrameParser{emitters: emitters, sensors: sensors}
}

// Feed consumes one line. It returns a frame when the line completes one, and
// an error wrapping ErrMalformedFrame when the current frame was discarded.
func (p *FrameParser) Feed(line string) (*Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	if m := snapshotHeader.FindStringSubmatch(line); m != nil {
		p.active = false
		emitters, _ := strconv.Atoi(m[1])
		sensors, _ := strconv.Atoi(m[2])
		if emitters != p.emitters || sensors != p.sensors {
			return nil, fmt.Errorf("%w: got %d emitters / %d sensors, expected %d / %d",
				ErrMalformedFrame, emitters, sensors, p.emitters, p.sensors)
		}
		p.active = true
		p.row = 0
		p.pending = make([][]float64, emitters)
		if emitters == 0 {
			return p.complete(), nil
		}
		return nil, nil
	}
	if !p.active {
		return nil, nil
	}

	values, err := parseReadings(line, p.sensors)
	if err != nil {
		p.active = false
		return nil, fmt.Errorf("%w: emitter %d: %v", ErrMalformedFrame, p.row, err)
	}
	p.pending[p.row] = values
	p.row++
	if p.row == p.emitters {
		return p.complete(), nil
	}
	return nil, nil
}

func (p *FrameParser) complete() *Frame {
	p.active = false
	p.seq++
	f := &Frame{Seq: p.seq, Values: p.pending}
	p.pending = nil
	return f
}

// parseReadings reads up to n comma separated raw readings. Missing trailing
// readings are 0 and surplus ones are ignored.
func parseReadings(line string, n int) ([]float64, error) {
	fields := strings.Split(line, ",")
	out := make([]float64, n)
	for s := 0; s < n && s < len(fields); s++ {
		raw, err := strconv.ParseFloat(strings.TrimSpace(fields[s]), 64)
		if err != nil {
			return nil, fmt.Errorf("sensor %d: %w", s, err)
		}
		out[s] = clamp01(raw / MaxRawReading)
	}
	return out, nil
}
