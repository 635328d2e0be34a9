package grid

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestRay_Basics(t *testing.T) {
	r := NewRay(Point{0, 0}, Point{3, 4})
	if !near(r.Length(), 5) {
		t.Errorf("Length = %g", r.Length())
	}
	d := r.Direction()
	if !near(d.X, 0.6) || !near(d.Y, 0.8) {
		t.Errorf("Direction = %v", d)
	}
	p := r.PointAt(2.5)
	if !near(p.X, 1.5) || !near(p.Y, 2) {
		t.Errorf("PointAt(2.5) = %v", p)
	}
	if r.IsDegenerate() {
		t.Error("ray should not be degenerate")
	}
}

func TestRay_Degenerate(t *testing.T) {
	r := NewRay(Point{1, 1}, Point{1, 1})
	if !r.IsDegenerate() {
		t.Fatal("expected degenerate ray")
	}
	if (r.Direction() != Point{}) {
		t.Errorf("Direction of degenerate ray = %v", r.Direction())
	}
	if r.PointAt(3) != r.Start {
		t.Error("PointAt on degenerate ray should return Start")
	}
}

func TestRay_PerpendicularAndProjection(t *testing.T) {
	r := NewRay(Point{0, 0}, Point{10, 0})

	p := Point{4, 3}
	if !near(r.PerpendicularDistance(p), 3) {
		t.Errorf("PerpendicularDistance = %g", r.PerpendicularDistance(p))
	}
	cp := r.ClosestPointOnLine(p)
	if !near(cp.X, 4) || !near(cp.Y, 0) {
		t.Errorf("ClosestPointOnLine = %v", cp)
	}
	if !near(r.FractionAlong(p), 0.4) {
		t.Errorf("FractionAlong = %g", r.FractionAlong(p))
	}
	if f := r.FractionAlong(Point{-2, 1}); f >= 0 {
		t.Errorf("point behind emitter should project negative, got %g", f)
	}
	if f := r.FractionAlong(Point{12, -1}); f <= 1 {
		t.Errorf("point past sensor should project beyond 1, got %g", f)
	}
}

func TestRay_DiagonalClosestPoint(t *testing.T) {
	r := NewRay(Point{1, 1}, Point{5, 5})
	cp := r.ClosestPointOnLine(Point{1, 5})
	if !near(cp.X, 3) || !near(cp.Y, 3) {
		t.Errorf("ClosestPointOnLine = %v, want (3,3)", cp)
	}
	if !near(r.PerpendicularDistance(Point{1, 5}), math.Sqrt(8)) {
		t.Errorf("PerpendicularDistance = %g", r.PerpendicularDistance(Point{1, 5}))
	}
	if !near(r.DistanceAlong(Point{3, 3}), math.Sqrt(8)) {
		t.Errorf("DistanceAlong = %g", r.DistanceAlong(Point{3, 3}))
	}
}
