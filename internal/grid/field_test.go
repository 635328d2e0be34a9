package grid

import (
	"math"
	"testing"
)

func TestMap_FillCloneCopy(t *testing.T) {
	g := MustGeometry(Area{MaxX: 4, MaxY: 2}, 4, 2)
	m := NewMap(g, 7)
	if m.Len() != 8 || m.At(3, 1) != 7 {
		t.Fatalf("unexpected map contents %v", m.Values())
	}
	m.Set(1, 1, 3)
	if m.AtIndex(g.Index(1, 1)) != 3 {
		t.Error("Set did not write flat index")
	}

	c := m.Clone()
	c.Set(0, 0, -1)
	if m.At(0, 0) != 7 {
		t.Error("Clone shares storage with original")
	}

	other := NewMap(MustGeometry(Area{MaxX: 1, MaxY: 1}, 1, 1), 0)
	if err := m.CopyFrom(other); err == nil {
		t.Error("expected geometry mismatch error")
	}
	if err := m.CopyFrom(c); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if m.At(0, 0) != -1 {
		t.Error("CopyFrom did not copy values")
	}
}

func TestField_MeasureAtClamps(t *testing.T) {
	f, err := FieldFromColumns(Area{MaxX: 2, MaxY: 2}, [][]float64{{0.2, 1.5}, {-0.3, 0.7}})
	if err != nil {
		t.Fatalf("FieldFromColumns: %v", err)
	}
	if v := f.MeasureAt(0.5, 0.5); v != 0.2 {
		t.Errorf("MeasureAt(0.5,0.5) = %g", v)
	}
	if v := f.MeasureAt(0.5, 1.5); v != 1 {
		t.Errorf("value above 1 should clamp, got %g", v)
	}
	if v := f.MeasureAt(5, -5); v != 0 {
		t.Errorf("value below 0 should clamp, got %g", v)
	}
	cols := f.Columns()
	if cols[1][1] != 0.7 {
		t.Errorf("Columns()[1][1] = %g", cols[1][1])
	}
}

func TestFieldFromColumns_Ragged(t *testing.T) {
	if _, err := FieldFromColumns(Area{MaxX: 1, MaxY: 1}, [][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected ragged input to fail")
	}
	if _, err := FieldFromColumns(Area{MaxX: 1, MaxY: 1}, nil); err == nil {
		t.Error("expected empty input to fail")
	}
}

func TestField_Range(t *testing.T) {
	f := NewField(MustGeometry(Area{MaxX: 3, MaxY: 1}, 3, 1), 0.5)
	f.Set(0, 0, math.NaN())
	f.Set(2, 0, 0.9)
	lo, hi := f.Range()
	if lo != 0.5 || hi != 0.9 {
		t.Errorf("Range = %g, %g", lo, hi)
	}
	f.Fill(math.Inf(1))
	lo, _ = f.Range()
	if !math.IsNaN(lo) {
		t.Errorf("Range of non-finite field should be NaN, got %g", lo)
	}
}
