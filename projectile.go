package main

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// defaultBulletOrigins are used when a ship has no configured muzzle offsets
var defaultBulletOrigins = []r2.Vec{
	{X: -10, Y: -30}, // left barrel
	{X: 10, Y: -30},  // right barrel
}

// Projectile represents a shot in flight
type Projectile struct {
	ID        string
	OwnerID   string
	Position  r2.Vec
	Velocity  r2.Vec
	Rotation  float64
	CreatedAt time.Time
}

// Hit records one resolved projectile collision
type Hit struct {
	ProjectileID string
	OwnerID      string
	TargetID     string
	Damage       int
	Killed       bool // this hit brought the target to 0 health
}

// spawnProjectiles creates one projectile per muzzle offset of the ship
func spawnProjectiles(ship *ShipState, t Tuning, now time.Time) []*Projectile {
	origins := ship.BulletOrigins
	if len(origins) == 0 {
		origins = defaultBulletOrigins
	}
	rot := ship.Physics.Rotation
	vel := r2.Scale(t.ProjectileSpeed, Forward(rot))

	out := make([]*Projectile, 0, len(origins))
	for _, o := range origins {
		out = append(out, &Projectile{
			ID:        GenerateID(),
			OwnerID:   ship.ID,
			Position:  LocalToWorld(ship.Physics.Position, o, rot),
			Velocity:  vel,
			Rotation:  rot,
			CreatedAt: now,
		})
	}
	return out
}

// Expired reports whether the projectile has outlived lifetime
func (p *Projectile) Expired(now time.Time, lifetime time.Duration) bool {
	return now.Sub(p.CreatedAt) > lifetime
}

// stepProjectiles advances every projectile by dt, culls expired ones and
// resolves hits against live ships other than the owner. Ships are tested in
// insertion order and each projectile damages at most one ship.
func stepProjectiles(w *WorldState, t Tuning, dt float64, now time.Time) []Hit {
	var hits []Hit
	survivors := w.projectiles[:0]

	for _, p := range w.projectiles {
		if p.Expired(now, t.ProjectileLifetime) {
			continue
		}
		start := p.Position
		end := r2.Add(start, r2.Scale(dt, p.Velocity))

		var target *ShipState
		w.Each(func(ship *ShipState) bool {
			if ship.ID == p.OwnerID || !ship.Alive() {
				return true
			}
			if sweptCircleHit(start, end, ship.Physics.Position, t.ShipHitRadius) {
				target = ship
				return false
			}
			return true
		})

		if target != nil {
			killed := target.TakeDamage(t.BulletDamage)
			hits = append(hits, Hit{
				ProjectileID: p.ID,
				OwnerID:      p.OwnerID,
				TargetID:     target.ID,
				Damage:       t.BulletDamage,
				Killed:       killed,
			})
			if killed {
				if owner, ok := w.Get(p.OwnerID); ok {
					owner.Kills++
				}
			}
			continue
		}

		p.Position = finiteVec(end)
		survivors = append(survivors, p)
	}

	// Drop references held past the new length
	for i := len(survivors); i < len(w.projectiles); i++ {
		w.projectiles[i] = nil
	}
	w.projectiles = survivors
	return hits
}
