package main

import (
	"context"
	"strings"
	"sync"
	"testing"
)

// recordingNotifier captures progress messages
type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func TestValidatePrompt(t *testing.T) {
	if p, err := validatePrompt("  a blue hauler  "); err != nil || p != "a blue hauler" {
		t.Errorf("validatePrompt = %q, %v", p, err)
	}
	if _, err := validatePrompt("   "); err == nil {
		t.Error("blank prompt should be rejected")
	}
	if _, err := validatePrompt(strings.Repeat("x", maxPromptLen+1)); err == nil {
		t.Error("overlong prompt should be rejected")
	}
}

func TestSpawnDefault(t *testing.T) {
	g, _ := newTestGame()
	s := NewSpawner(g, nil)

	ship, err := s.SpawnDefault("abcd-1234")
	if err != nil {
		t.Fatal(err)
	}
	if !g.HasShip("abcd-1234") {
		t.Fatal("ship not in the world")
	}
	if ship.Health != g.Tuning().MaxHealth {
		t.Errorf("health = %d", ship.Health)
	}
	if ship.Name != "Pilot-abcd" {
		t.Errorf("name = %q, want Pilot-abcd", ship.Name)
	}
	if ship.Sprites.Count() != 4 || ship.ImageURL != defaultSprites[ThrustOffMuzzleOff] {
		t.Errorf("default sprites not applied: %q", ship.ImageURL)
	}
	if len(ship.BulletOrigins) != 2 || ship.BulletOrigins[0].X != 20.9375 {
		t.Errorf("bullet origins = %v", ship.BulletOrigins)
	}
	if _, ok := g.Input("abcd-1234"); !ok {
		t.Error("spawn should start the inactivity clock")
	}
}

func TestSpawnFromPrompt(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	g, _ := newTestGame()
	s := NewSpawner(g, NewAssetService(cfg))
	n := &recordingNotifier{}

	s.SpawnFromPrompt(context.Background(), "p1", "127.0.0.1", "a red fighter", n)

	if len(n.errors) != 0 {
		t.Fatalf("unexpected errors: %v", n.errors)
	}
	if !g.HasShip("p1") {
		t.Fatal("ship not spawned")
	}
	startManual(g)
	state, _ := g.Snapshot()
	view := state.Ships["p1"]
	if view.Name != "Star Runner" {
		t.Errorf("name = %q, want Star Runner", view.Name)
	}
	if len(view.Sprites) != 4 {
		t.Errorf("resized sprites = %v", view.Sprites)
	}
	if view.Appearance.ShipImageURL != "http://img/off-off.png?128" {
		t.Errorf("image = %q", view.Appearance.ShipImageURL)
	}
	if len(view.BulletOrigins) != 1 {
		t.Errorf("bullet origins = %v", view.BulletOrigins)
	}
	wantInfos := []string{"generating ship...", "ship base sprite generated", "expanding ship sprites...", "ship sprites expanded"}
	if strings.Join(n.infos, "|") != strings.Join(wantInfos, "|") {
		t.Errorf("infos = %v, want %v", n.infos, wantInfos)
	}
}

func TestSpawnFromPromptQuotaExhausted(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	g, _ := newTestGame()
	s := NewSpawner(g, NewAssetService(cfg))
	n := &recordingNotifier{}

	s.SpawnFromPrompt(context.Background(), "p1", "10.0.0.9", "a red fighter", n)

	if len(n.errors) != 1 || g.HasShip("p1") {
		t.Errorf("errors = %v, ship = %v; want refusal", n.errors, g.HasShip("p1"))
	}
}

func TestSpawnFromPromptGenerationFails(t *testing.T) {
	_, cfg := fakeAssetServer(t)
	g, _ := newTestGame()
	s := NewSpawner(g, NewAssetService(cfg))
	n := &recordingNotifier{}

	s.SpawnFromPrompt(context.Background(), "p1", "127.0.0.1", "forbidden", n)

	if len(n.errors) != 1 || n.errors[0] != "prompt rejected" {
		t.Errorf("errors = %v", n.errors)
	}
	if g.HasShip("p1") {
		t.Error("no ship should be created when generation fails")
	}
}
