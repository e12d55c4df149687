package main

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// degenerateSegment is the squared length below which a swept segment is treated as a point
const degenerateSegment = 1e-12

// segmentAABBOverlap reports whether the segment's bounding box, expanded by r,
// contains center. Used to reject most ships before the quadratic test.
func segmentAABBOverlap(start, end, center r2.Vec, r float64) bool {
	minX := math.Min(start.X, end.X) - r
	maxX := math.Max(start.X, end.X) + r
	minY := math.Min(start.Y, end.Y) - r
	maxY := math.Max(start.Y, end.Y) + r
	return center.X >= minX && center.X <= maxX && center.Y >= minY && center.Y <= maxY
}

// segmentCircleIntersect checks if the segment start-end touches a circle at
// center with radius r. It solves |start + t*(end-start) - center| = r for t in
// [0, 1]. A segment whose start already lies inside the circle always hits,
// whatever its length.
func segmentCircleIntersect(start, end, center r2.Vec, r float64) bool {
	d := r2.Sub(end, start)
	f := r2.Sub(start, center)
	a := r2.Dot(d, d)
	c := r2.Dot(f, f) - r*r
	if c <= 0 {
		return true
	}
	if a <= degenerateSegment {
		return false
	}
	b := 2 * r2.Dot(f, d)
	discriminant := b*b - 4*a*c
	if discriminant < 0 {
		return false
	}
	discriminant = math.Sqrt(discriminant)
	t1 := (-b - discriminant) / (2 * a)
	t2 := (-b + discriminant) / (2 * a)
	return (t1 >= 0 && t1 <= 1) || (t2 >= 0 && t2 <= 1)
}

// sweptCircleHit combines the broad-phase box rejection with the exact test
func sweptCircleHit(start, end, center r2.Vec, r float64) bool {
	if !segmentAABBOverlap(start, end, center, r) {
		return false
	}
	return segmentCircleIntersect(start, end, center, r)
}
