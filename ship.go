package main

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// ShipPhysics is the integrated motion state of a ship
type ShipPhysics struct {
	Position r2.Vec
	Velocity r2.Vec
	Rotation float64 // radians in (-PI, PI], 0 = nose up
}

// ShipState is the authoritative state of one ship
type ShipState struct {
	ID            string
	Name          string
	Physics       ShipPhysics
	Health        int
	Kills         int
	BulletOrigins []r2.Vec // sprite-local muzzle offsets, +Y down
	Sprites       SpriteSet
	ImageURL      string // sprite currently shown
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// NewShip creates a ship at full health
func NewShip(id, name string, t Tuning, pos r2.Vec, rotation float64, now time.Time) *ShipState {
	return &ShipState{
		ID:            id,
		Name:          name,
		Physics:       ShipPhysics{Position: pos, Rotation: NormalizeAngle(rotation)},
		Health:        t.MaxHealth,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// RandomSpawn returns a position within ±spawnRange on both axes and a random heading
func RandomSpawn(spawnRange float64) (r2.Vec, float64) {
	pos := r2.Vec{
		X: (rand.Float64()*2 - 1) * spawnRange,
		Y: (rand.Float64()*2 - 1) * spawnRange,
	}
	return pos, NormalizeAngle((rand.Float64()*2 - 1) * math.Pi)
}

// Alive reports whether the ship can still act
func (s *ShipState) Alive() bool {
	return s.Health > 0
}

// TakeDamage reduces health, clamped at 0, and returns true if this hit destroyed the ship
func (s *ShipState) TakeDamage(dmg int) bool {
	if s.Health <= 0 {
		return false
	}
	s.Health -= dmg
	if s.Health <= 0 {
		s.Health = 0
		return true
	}
	return false
}

// controls is the per-tick interpretation of an InputState
type controls struct {
	thrust  float64 // 0..1, forward only
	rotate  float64 // -1, 0, +1
	brake   bool
	stick   bool
	heading float64 // stick target rotation when stick is set
}

func readControls(in *InputState, deadzone float64) controls {
	var c controls
	if in == nil {
		return c
	}
	if in.Keys.Has(KeyW) {
		c.thrust = 1
	}
	c.brake = in.Keys.Has(KeyS)
	if in.Keys.Has(KeyA) {
		c.rotate--
	}
	if in.Keys.Has(KeyD) {
		c.rotate++
	}

	stick := finiteVec(in.Stick)
	length := r2.Norm(stick)
	if length > deadzone {
		c.stick = true
		c.thrust = math.Min((length-deadzone)/(1-deadzone), 1)
		c.heading = math.Atan2(stick.Y, stick.X) + math.Pi/2
		c.rotate = 0
	}
	return c
}

// simulateShip advances one ship by dt and reports whether it fires this tick.
// A nil input behaves as neutral controls.
func simulateShip(ship *ShipState, in *InputState, t Tuning, dt float64, now time.Time) bool {
	p := &ship.Physics
	c := readControls(in, t.StickDeadzone)

	// Rotation
	if c.stick {
		diff := NormalizeAngle(c.heading - p.Rotation)
		maxStep := t.RotateSpeed * dt
		p.Rotation = NormalizeAngle(p.Rotation + Clamp(diff, -maxStep, maxStep))
	} else if c.rotate != 0 {
		p.Rotation = NormalizeAngle(p.Rotation + c.rotate*t.RotateSpeed*dt)
	} else {
		p.Rotation = NormalizeAngle(p.Rotation)
	}

	v := finiteVec(p.Velocity)
	thrusting := c.thrust != 0

	if thrusting {
		v = r2.Add(v, r2.Scale(t.ThrustAccel*c.thrust*dt, Forward(p.Rotation)))
	}

	// Brake only without thrust
	if c.brake && !thrusting {
		if speed := r2.Norm(v); speed > 1e-4 {
			newSpeed := math.Max(speed-t.BrakeAccel*dt, 0)
			v = r2.Scale(newSpeed/speed, v)
		}
	}

	if !thrusting && !c.brake {
		v = r2.Scale(1-(1-t.LinearDamping)*dt, v)
	}

	if speed := r2.Norm(v); speed > t.MaxSpeed {
		v = r2.Scale(t.MaxSpeed/speed, v)
	}

	v = finiteVec(v)
	p.Velocity = v
	p.Position = finiteVec(r2.Add(p.Position, r2.Scale(dt, v)))

	// Appearance
	muzzle := in != nil && now.Before(in.MuzzleFlashUntil)
	if url := ship.Sprites.Resolve(thrusting, muzzle); url != "" && url != ship.ImageURL {
		ship.ImageURL = url
	}

	ship.LastUpdatedAt = now

	return canFire(in, t.FireCooldown, now)
}

func canFire(in *InputState, cooldown time.Duration, now time.Time) bool {
	if in == nil || !in.Keys.Has(KeySpace) {
		return false
	}
	return in.LastFireAt.IsZero() || now.Sub(in.LastFireAt) >= cooldown
}
