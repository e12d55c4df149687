package main

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestInputSnapshotUpdate(t *testing.T) {
	var p InputSnapshotPayload
	if err := json.Unmarshal([]byte(`{"keysDown":["W","SPACE","X"],"joystick":{"x":2,"y":-0.5}}`), &p); err != nil {
		t.Fatal(err)
	}
	u := p.Update()
	if u.Keys == nil || !u.Keys.Has(KeyW) || !u.Keys.Has(KeySpace) {
		t.Errorf("keys = %v", u.Keys)
	}
	if u.Stick == nil || u.Stick.X != 1 || u.Stick.Y != -0.5 {
		t.Errorf("stick = %v, want clamped (1, -0.5)", u.Stick)
	}
}

func TestInputSnapshotPartialUpdate(t *testing.T) {
	u := InputSnapshotPayload{Joystick: &JoystickPayload{X: math.NaN(), Y: 0.3}}.Update()
	if u.Keys != nil {
		t.Error("missing keysDown should leave keys untouched")
	}
	if u.Stick.X != 0 || u.Stick.Y != 0.3 {
		t.Errorf("stick = %v, want NaN mapped to 0", u.Stick)
	}

	u = InputSnapshotPayload{KeysDown: []string{}}.Update()
	if u.Keys == nil || *u.Keys != 0 {
		t.Error("empty keysDown should release every key")
	}
	if u.Stick != nil {
		t.Error("missing joystick should leave the stick untouched")
	}
}

func TestInEnvelopeBodyAlias(t *testing.T) {
	var env InEnvelope
	json.Unmarshal([]byte(`{"type":"startWithDefault","body":{"userId":"u1"}}`), &env)
	var body StartWithDefaultBody
	json.Unmarshal(env.Data(), &body)
	if body.UserID != "u1" {
		t.Errorf("userId = %q, want u1", body.UserID)
	}
}

func TestShipViewRounding(t *testing.T) {
	ship := NewShip("a", "A", DefaultTuning(), r2.Vec{X: 1.23456, Y: -9.87654}, 1.234567, time.UnixMilli(1234))
	ship.Sprites = SpriteSet{ThrustOffMuzzleOff: "idle"}
	ship.BulletOrigins = []r2.Vec{{X: 1, Y: 2}}
	v := ship.ToView()

	if v.Physics.Position.X != 1.23 || v.Physics.Position.Y != -9.88 {
		t.Errorf("position = %+v", v.Physics.Position)
	}
	if v.Physics.Rotation != 1.2346 {
		t.Errorf("rotation = %v", v.Physics.Rotation)
	}
	if v.LastUpdatedAt != 1234 {
		t.Errorf("lastUpdatedAt = %d", v.LastUpdatedAt)
	}
	if v.Sprites["thrustersOffMuzzleOff"].URL != "idle" || len(v.BulletOrigins) != 1 {
		t.Errorf("view = %+v", v)
	}

	raw, _ := json.Marshal(v)
	for _, key := range []string{`"physics"`, `"appearance"`, `"shipImageUrl"`, `"resizedSprites"`, `"bulletOrigins"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("encoded ship missing %s: %s", key, raw)
		}
	}
}

func TestProtocolSchema(t *testing.T) {
	data, err := protocolSchemaJSON()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"inputSnapshot", "startWithPrompt", "startWithDefault", "keysDown", "joystick"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
