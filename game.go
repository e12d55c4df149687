package main

import (
	"errors"
	"log"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrNotStarted is returned by operations that need a running game
	ErrNotStarted = errors.New("game not started")
	// ErrNoShip is returned when the entity has no ship in the world
	ErrNoShip = errors.New("no ship for entity")
)

// Transport receives broadcast snapshots and signals when it closes
type Transport interface {
	Broadcast(state GameState)
	Done() <-chan struct{}
}

// KillRecorder is notified when a hit destroys a ship. RecordKill is called
// from the simulation tick and must not block.
type KillRecorder interface {
	RecordKill(evt KillEvent)
}

// KillEvent describes a ship destroyed by another ship's projectile
type KillEvent struct {
	KillerID    string
	KillerName  string
	KillerKills int
	KillerImage string
	VictimID    string
	VictimName  string
	At          time.Time
}

// Option configures a Game
type Option func(*Game)

// WithClock replaces time.Now as the game's clock
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// WithKillRecorder sets the kill event sink
func WithKillRecorder(k KillRecorder) Option {
	return func(g *Game) { g.kills = k }
}

// Game owns the authoritative world and runs the fixed-rate simulation and
// the independently clocked broadcast. Only the simulation tick mutates ships
// and projectiles in flight; everything else goes through the same lock.
type Game struct {
	mu        sync.RWMutex
	world     *WorldState
	inputs    *InputStore
	tuning    Tuning
	now       func() time.Time
	kills     KillRecorder
	tick      uint64
	running   bool
	stop      chan struct{}
	transport Transport
	wg        sync.WaitGroup
}

// NewGame creates a stopped Game
func NewGame(tuning Tuning, opts ...Option) *Game {
	g := &Game{
		world:  NewWorldState(),
		inputs: NewInputStore(),
		tuning: tuning,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the simulation and broadcast loops. It returns false and
// leaves the existing loops untouched when the game is already running.
// The game stops by itself when the transport's Done channel closes.
func (g *Game) Start(t Transport) bool {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return false
	}
	g.running = true
	g.stop = make(chan struct{})
	g.transport = t
	stop := g.stop
	g.wg.Add(2)
	g.mu.Unlock()

	go g.runSimulation(stop)
	go g.runBroadcast(stop, t)

	if t != nil {
		if done := t.Done(); done != nil {
			go func() {
				select {
				case <-done:
					log.Println("[sim] transport closed, stopping game loop")
					g.Stop()
				case <-stop:
				}
			}()
		}
	}
	log.Printf("[sim] started: %d Hz simulation, %d Hz broadcast", g.tuning.TickRate, g.tuning.BroadcastRate)
	return true
}

// Stop halts both loops and waits for them to exit. A tick in progress
// completes before Stop returns.
func (g *Game) Stop() {
	g.mu.Lock()
	if g.running {
		g.running = false
		close(g.stop)
		g.transport = nil
	}
	g.mu.Unlock()
	g.wg.Wait()
}

// Running reports whether the loops are active
func (g *Game) Running() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

func (g *Game) runSimulation(stop <-chan struct{}) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.tuning.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.update()
		}
	}
}

func (g *Game) runBroadcast(stop <-chan struct{}, t Transport) {
	defer g.wg.Done()
	if t == nil {
		return
	}
	ticker := time.NewTicker(g.tuning.BroadcastInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if state, ok := g.Snapshot(); ok {
				t.Broadcast(state)
			}
		}
	}
}

// update runs one simulation tick: ships, projectiles, then the inactivity purge
func (g *Game) update() {
	now := g.now()
	dt := g.tuning.Dt()

	g.mu.Lock()
	g.tick++
	g.world.Each(func(ship *ShipState) bool {
		g.simulateOne(ship, dt, now)
		return true
	})
	hits := stepProjectiles(g.world, g.tuning, dt, now)
	events := g.killEvents(hits, now)
	purged := g.purge(now)
	g.mu.Unlock()

	if purged > 0 {
		log.Printf("[sim] purged %d inactive ship(s)", purged)
	}
	if g.kills != nil {
		for _, evt := range events {
			g.kills.RecordKill(evt)
		}
	}
}

// simulateOne integrates a single ship. A panic is contained to that ship.
func (g *Game) simulateOne(ship *ShipState, dt float64, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[sim] ship %s skipped this tick: %v", ship.ID, r)
		}
	}()

	var in *InputState
	if stored, ok := g.inputs.Get(ship.ID); ok {
		if !ship.Alive() {
			stored.Keys = 0
			stored.Stick = r2.Vec{}
		}
		in = &stored
	}

	if simulateShip(ship, in, g.tuning, dt, now) {
		g.world.AddProjectiles(spawnProjectiles(ship, g.tuning, now)...)
		g.inputs.MarkFired(ship.ID, now, now.Add(g.tuning.MuzzleFlash))
	}
}

func (g *Game) killEvents(hits []Hit, now time.Time) []KillEvent {
	var events []KillEvent
	for _, h := range hits {
		if !h.Killed {
			continue
		}
		evt := KillEvent{KillerID: h.OwnerID, VictimID: h.TargetID, At: now}
		if killer, ok := g.world.Get(h.OwnerID); ok {
			evt.KillerName = killer.Name
			evt.KillerKills = killer.Kills
			evt.KillerImage = killer.Sprites.Resolve(true, false)
			if evt.KillerImage == "" {
				evt.KillerImage = killer.ImageURL
			}
		}
		if victim, ok := g.world.Get(h.TargetID); ok {
			evt.VictimName = victim.Name
		}
		events = append(events, evt)
	}
	return events
}

// purge removes ships and input records whose last input is older than the
// expiry threshold, regardless of health
func (g *Game) purge(now time.Time) int {
	stale := g.inputs.Stale(now, g.tuning.ShipExpiry)
	for _, id := range stale {
		g.inputs.Remove(id)
		g.world.Remove(id)
	}
	return len(stale)
}

// RecordInput merges an input update for an entity. It is ignored (returning
// false) when the game is stopped or the entity has no ship. Input for a
// destroyed ship is stored as neutral controls.
func (g *Game) RecordInput(id string, u InputUpdate) bool {
	return g.SubmitInput(id, u) == nil
}

// SubmitInput is RecordInput for callers that want to know why an update was
// dropped: ErrNotStarted or ErrNoShip.
func (g *Game) SubmitInput(id string, u InputUpdate) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.running {
		return ErrNotStarted
	}
	ship, ok := g.world.Get(id)
	if !ok {
		return ErrNoShip
	}
	g.inputs.Record(id, u, !ship.Alive(), g.now())
	return nil
}

// Input returns a copy of the stored input for an entity
func (g *Game) Input(id string) (InputState, bool) {
	return g.inputs.Get(id)
}

// Snapshot returns a copy of the world, or false when the game is stopped
func (g *Game) Snapshot() (GameState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.running {
		return GameState{}, false
	}
	return g.world.Snapshot(g.tick), true
}

// SpawnShip inserts (or replaces) a fully formed ship between ticks and
// starts its inactivity clock
func (g *Game) SpawnShip(ship *ShipState) error {
	if ship == nil || ship.ID == "" {
		return errors.New("spawn: ship needs an id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if ship.LastUpdatedAt.IsZero() {
		ship.LastUpdatedAt = now
	}
	if ship.ImageURL == "" {
		ship.ImageURL = ship.Sprites.Preferred()
	}
	g.world.Put(ship)
	g.inputs.Touch(ship.ID, now)
	return nil
}

// UpdateShip applies fn to a ship under the world lock. It is the only way
// for out-of-band work to change a ship already in the world.
func (g *Game) UpdateShip(id string, fn func(*ShipState)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ship, ok := g.world.Get(id)
	if !ok {
		return ErrNoShip
	}
	fn(ship)
	ship.LastUpdatedAt = g.now()
	return nil
}

// RemoveShip deletes a ship and its input immediately
func (g *Game) RemoveShip(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.world.Remove(id)
	g.inputs.Remove(id)
}

// HasShip reports whether the entity currently has a ship
func (g *Game) HasShip(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.world.Get(id)
	return ok
}

// ShipCount returns the number of ships in the world
func (g *Game) ShipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.world.Len()
}

// ProjectileCount returns the number of projectiles in flight
func (g *Game) ProjectileCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.world.ProjectileCount()
}

// Tick returns the number of simulation ticks run
func (g *Game) Tick() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tick
}

// Tuning returns the simulation constants
func (g *Game) Tuning() Tuning {
	return g.tuning
}
