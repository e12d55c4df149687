package main

// WorldState is the authoritative aggregate of ships and projectiles.
// It is not safe for concurrent use; Game guards it with its lock.
type WorldState struct {
	ships       map[string]*ShipState
	order       []string // insertion order of ships
	projectiles []*Projectile
}

// NewWorldState creates an empty world
func NewWorldState() *WorldState {
	return &WorldState{ships: make(map[string]*ShipState)}
}

// Put inserts or replaces a ship. A replaced ship keeps its original position in the order.
func (w *WorldState) Put(ship *ShipState) {
	if _, ok := w.ships[ship.ID]; !ok {
		w.order = append(w.order, ship.ID)
	}
	w.ships[ship.ID] = ship
}

// Get returns the ship with the given id
func (w *WorldState) Get(id string) (*ShipState, bool) {
	s, ok := w.ships[id]
	return s, ok
}

// Remove deletes a ship. Its projectiles stay in flight.
func (w *WorldState) Remove(id string) bool {
	if _, ok := w.ships[id]; !ok {
		return false
	}
	delete(w.ships, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

// Each calls fn for every ship in insertion order until fn returns false
func (w *WorldState) Each(fn func(*ShipState) bool) {
	for _, id := range w.order {
		if !fn(w.ships[id]) {
			return
		}
	}
}

// Len returns the number of ships
func (w *WorldState) Len() int {
	return len(w.ships)
}

// AddProjectiles appends new projectiles
func (w *WorldState) AddProjectiles(ps ...*Projectile) {
	w.projectiles = append(w.projectiles, ps...)
}

// ProjectileCount returns the number of live projectiles
func (w *WorldState) ProjectileCount() int {
	return len(w.projectiles)
}

// Snapshot copies the world into its wire form
func (w *WorldState) Snapshot(tick uint64) GameState {
	state := GameState{
		Ships:       make(map[string]ShipView, len(w.ships)),
		Order:       make([]string, len(w.order)),
		Projectiles: make([]ProjectileView, 0, len(w.projectiles)),
		Tick:        tick,
	}
	copy(state.Order, w.order)
	for _, id := range w.order {
		state.Ships[id] = w.ships[id].ToView()
	}
	for _, p := range w.projectiles {
		state.Projectiles = append(state.Projectiles, p.ToView())
	}
	return state
}
