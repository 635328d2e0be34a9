package grid

import "math"

// Ray is the straight segment from an emitter (Start) to a sensor (End).
// Rays are comparable values; two rays with the same endpoints are the same
// ray for caching purposes.
type Ray struct {
	Start Point
	End   Point
}

// NewRay returns the ray from start to end.
func NewRay(start, end Point) Ray {
	return Ray{Start: start, End: end}
}

// DX is the horizontal component of the ray.
func (r Ray) DX() float64 { return r.End.X - r.Start.X }

// DY is the vertical component of the ray.
func (r Ray) DY() float64 { return r.End.Y - r.Start.Y }

// Length returns the euclidean length of the ray.
func (r Ray) Length() float64 { return math.Hypot(r.DX(), r.DY()) }

// IsDegenerate reports whether the ray has zero length.
func (r Ray) IsDegenerate() bool { return r.Length() == 0 }

// Direction returns the unit vector from Start to End, or the zero vector for
// a degenerate ray.
func (r Ray) Direction() Point {
	l := r.Length()
	if l == 0 {
		return Point{}
	}
	return Point{X: r.DX() / l, Y: r.DY() / l}
}

// C is the constant term of the line equation DY*x - DX*y + C = 0 that
// describes the infinite line through the ray.
func (r Ray) C() float64 {
	return r.End.X*r.Start.Y - r.Start.X*r.End.Y
}

// PointAt returns the point d units along the ray from Start.
func (r Ray) PointAt(d float64) Point {
	l := r.Length()
	if l == 0 {
		return r.Start
	}
	return r.PointAtFraction(d / l)
}

// PointAtFraction returns the point at fraction f of the way from Start to
// End; 0 is the emitter and 1 the sensor.
func (r Ray) PointAtFraction(f float64) Point {
	return Point{X: r.Start.X + f*r.DX(), Y: r.Start.Y + f*r.DY()}
}

// PerpendicularDistance returns the shortest distance from p to the infinite
// line through the ray. It is NaN for a degenerate ray.
func (r Ray) PerpendicularDistance(p Point) float64 {
	return math.Abs(r.DY()*p.X-r.DX()*p.Y+r.C()) / r.Length()
}

// ClosestPointOnLine returns the orthogonal projection of p onto the infinite
// line through the ray.
func (r Ray) ClosestPointOnLine(p Point) Point {
	dx, dy := r.DX(), r.DY()
	len2 := dx*dx + dy*dy
	if len2 == 0 {
		return r.Start
	}
	c := r.C()
	along := dx*p.X + dy*p.Y
	return Point{
		X: (dx*along - dy*c) / len2,
		Y: (dy*along + dx*c) / len2,
	}
}

// DistanceAlong returns the signed distance from Start of the projection of p
// onto the ray. Perpendicular offset is ignored.
func (r Ray) DistanceAlong(p Point) float64 {
	return (r.DX()*(p.X-r.Start.X) + r.DY()*(p.Y-r.Start.Y)) / r.Length()
}

// FractionAlong is DistanceAlong normalised by the ray length. Values in
// (0, 1) lie strictly between emitter and sensor.
func (r Ray) FractionAlong(p Point) float64 {
	return r.DistanceAlong(p) / r.Length()
}
