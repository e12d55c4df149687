package main

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
)

// GenerateID returns a random entity identifier
func GenerateID() string {
	return uuid.NewString()
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// NormalizeAngle wraps a to (-PI, PI]. Non-finite input maps to 0.
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	r := math.Mod(a+math.Pi, 2*math.Pi)
	if r <= 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}

// Forward returns the unit heading for a rotation. Rotation 0 points up (-Y).
func Forward(rotation float64) r2.Vec {
	return r2.Vec{X: math.Sin(rotation), Y: -math.Cos(rotation)}
}

// LocalToWorld rotates a sprite-local offset by rotation and translates it to origin.
func LocalToWorld(origin, local r2.Vec, rotation float64) r2.Vec {
	return r2.Add(origin, r2.Rotate(local, rotation, r2.Vec{}))
}

func finiteOr0(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteVec(v r2.Vec) r2.Vec {
	return r2.Vec{X: finiteOr0(v.X), Y: finiteOr0(v.Y)}
}
