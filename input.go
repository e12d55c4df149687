package main

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Key is one of the control keys a client may report as held
type Key uint8

const (
	KeyW     Key = 1 << iota // thrust
	KeyA                     // rotate left
	KeyS                     // brake
	KeyD                     // rotate right
	KeySpace                 // fire
)

var keyNames = map[string]Key{
	"W":     KeyW,
	"A":     KeyA,
	"S":     KeyS,
	"D":     KeyD,
	"SPACE": KeySpace,
}

// KeySet is the set of held keys
type KeySet uint8

// Has reports whether k is held
func (s KeySet) Has(k Key) bool {
	return s&KeySet(k) != 0
}

// Names returns the held key names in a stable order
func (s KeySet) Names() []string {
	out := make([]string, 0, 5)
	for _, name := range []string{"W", "A", "S", "D", "SPACE"} {
		if s.Has(keyNames[name]) {
			out = append(out, name)
		}
	}
	return out
}

// ParseKeys converts key names into a KeySet, ignoring names it does not know
func ParseKeys(names []string) KeySet {
	var s KeySet
	for _, n := range names {
		if k, ok := keyNames[n]; ok {
			s |= KeySet(k)
		}
	}
	return s
}

// InputUpdate is a validated partial input snapshot. Nil fields leave the
// stored value unchanged.
type InputUpdate struct {
	Keys  *KeySet
	Stick *r2.Vec
}

// InputState is the latest known input for one entity
type InputState struct {
	Keys             KeySet
	Stick            r2.Vec
	LastInputAt      time.Time
	LastFireAt       time.Time // zero until the first shot
	MuzzleFlashUntil time.Time
}

// InputStore buffers per-entity input between transport writes and simulation reads
type InputStore struct {
	mu     sync.Mutex
	inputs map[string]*InputState
}

// NewInputStore creates an empty InputStore
func NewInputStore() *InputStore {
	return &InputStore{inputs: make(map[string]*InputState)}
}

// Record merges an update into the entity's input, creating it on first contact.
// When dead is set the stored keys and stick are cleared whatever the update holds.
func (s *InputStore) Record(id string, u InputUpdate, dead bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.inputs[id]
	if !ok {
		in = &InputState{}
		s.inputs[id] = in
	}
	if dead {
		in.Keys = 0
		in.Stick = r2.Vec{}
	} else {
		if u.Keys != nil {
			in.Keys = *u.Keys
		}
		if u.Stick != nil {
			in.Stick = *u.Stick
		}
	}
	in.LastInputAt = now
}

// Touch refreshes LastInputAt without changing controls
func (s *InputStore) Touch(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.inputs[id]
	if !ok {
		in = &InputState{}
		s.inputs[id] = in
	}
	in.LastInputAt = now
}

// Get returns a copy of the entity's input
func (s *InputStore) Get(id string) (InputState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.inputs[id]
	if !ok {
		return InputState{}, false
	}
	return *in, true
}

// MarkFired stamps the fire cooldown and opens the muzzle flash window
func (s *InputStore) MarkFired(id string, now, flashUntil time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.inputs[id]; ok {
		in.LastFireAt = now
		in.MuzzleFlashUntil = flashUntil
	}
}

// Remove deletes the entity's input
func (s *InputStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inputs, id)
}

// Stale returns the ids whose last input is older than expiry
func (s *InputStore) Stale(now time.Time, expiry time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, in := range s.inputs {
		if now.Sub(in.LastInputAt) > expiry {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of tracked entities
func (s *InputStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}
