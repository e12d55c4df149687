package main

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Client -> Server message types
const (
	MsgPing             = "ping"
	MsgStartWithDefault = "startWithDefault"
	MsgStartWithPrompt  = "startWithPrompt"
	MsgInputSnapshot    = "inputSnapshot"
)

// Server -> Client message types
const (
	MsgConnected  = "connected"
	MsgInfo       = "info"
	MsgError      = "error"
	MsgGameState  = "gameState"
	MsgScoreboard = "scoreboard"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// InEnvelope is used for incoming messages. Older clients put the data under "body".
type InEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Data returns whichever of payload/body was sent
func (e InEnvelope) Data() json.RawMessage {
	if len(e.Payload) > 0 {
		return e.Payload
	}
	return e.Body
}

// JoystickPayload is an analog stick vector, each axis in [-1, 1]
type JoystickPayload struct {
	X float64 `json:"x" jsonschema:"minimum=-1,maximum=1"`
	Y float64 `json:"y" jsonschema:"minimum=-1,maximum=1"`
}

// InputSnapshotPayload is sent by the client whenever its controls change
type InputSnapshotPayload struct {
	KeysDown []string         `json:"keysDown,omitempty" jsonschema:"description=Held keys,enum=W,enum=A,enum=S,enum=D,enum=SPACE"`
	Joystick *JoystickPayload `json:"joystick,omitempty" jsonschema:"description=Analog stick; overrides keyboard steering outside the deadzone"`
}

// Update validates the payload into an InputUpdate. Unknown keys are dropped and
// stick axes are clamped to [-1, 1] with non-finite values treated as 0.
func (p InputSnapshotPayload) Update() InputUpdate {
	var u InputUpdate
	if p.KeysDown != nil {
		keys := ParseKeys(p.KeysDown)
		u.Keys = &keys
	}
	if p.Joystick != nil {
		stick := r2.Vec{
			X: Clamp(finiteOr0(p.Joystick.X), -1, 1),
			Y: Clamp(finiteOr0(p.Joystick.Y), -1, 1),
		}
		u.Stick = &stick
	}
	return u
}

// StartWithDefaultBody optionally names the entity to spawn for
type StartWithDefaultBody struct {
	UserID string `json:"userId,omitempty" jsonschema:"description=Entity id to spawn for; defaults to the connection id"`
}

// StartWithPromptPayload asks for a generated ship
type StartWithPromptPayload struct {
	Prompt string `json:"prompt" jsonschema:"minLength=1,maxLength=500,required"`
}

// ConnectedMsg tells a client its entity id and resume token
type ConnectedMsg struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Vec2 is the wire form of a vector
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

func toVec2(v r2.Vec) Vec2 {
	return Vec2{X: round2(v.X), Y: round2(v.Y)}
}

// PhysicsView is the wire form of ShipPhysics
type PhysicsView struct {
	Position Vec2    `json:"position" msgpack:"position"`
	Rotation float64 `json:"rotation" msgpack:"rotation"`
	Velocity Vec2    `json:"velocity" msgpack:"velocity"`
}

// AppearanceView carries the sprite to draw
type AppearanceView struct {
	ShipImageURL string `json:"shipImageUrl" msgpack:"shipImageUrl"`
}

// ShipView is broadcast per ship
type ShipView struct {
	Name          string               `json:"name,omitempty" msgpack:"name,omitempty"`
	Physics       PhysicsView          `json:"physics" msgpack:"physics"`
	Appearance    AppearanceView       `json:"appearance" msgpack:"appearance"`
	Health        int                  `json:"health" msgpack:"health"`
	Kills         int                  `json:"kills" msgpack:"kills"`
	BulletOrigins []Vec2               `json:"bulletOrigins,omitempty" msgpack:"bulletOrigins,omitempty"`
	Sprites       map[string]SpriteRef `json:"resizedSprites,omitempty" msgpack:"resizedSprites,omitempty"`
	LastUpdatedAt int64                `json:"lastUpdatedAt" msgpack:"lastUpdatedAt"` // epoch ms
}

// ProjectileView is broadcast per projectile
type ProjectileView struct {
	ID        string  `json:"id" msgpack:"id"`
	OwnerID   string  `json:"ownerId" msgpack:"ownerId"`
	Position  Vec2    `json:"position" msgpack:"position"`
	Velocity  Vec2    `json:"velocity" msgpack:"velocity"`
	Rotation  float64 `json:"rotation" msgpack:"rotation"`
	CreatedAt int64   `json:"createdAt" msgpack:"createdAt"` // epoch ms
}

// GameState is the full state broadcast
type GameState struct {
	Ships       map[string]ShipView `json:"ships" msgpack:"ships"`
	Projectiles []ProjectileView    `json:"projectiles" msgpack:"projectiles"`
	Tick        uint64              `json:"tick" msgpack:"tick"`
	Order       []string            `json:"-" msgpack:"-"` // ship insertion order
}

// ScoreboardItem is one row of the scoreboard
type ScoreboardItem struct {
	ID           string `json:"id" csv:"id"`
	Name         string `json:"name" csv:"name"`
	Score        int    `json:"score" csv:"score"`
	ShipImageURL string `json:"shipImageUrl,omitempty" csv:"ship_image_url"`
	UpdatedAt    string `json:"updatedAt,omitempty" csv:"updated_at"`
}

// ScoreboardList is the scoreboard message payload
type ScoreboardList struct {
	Items []ScoreboardItem `json:"items"`
	Count int              `json:"count"`
}

// ToView converts a ship to its wire form
func (s *ShipState) ToView() ShipView {
	v := ShipView{
		Name: s.Name,
		Physics: PhysicsView{
			Position: toVec2(s.Physics.Position),
			Rotation: round4(s.Physics.Rotation),
			Velocity: toVec2(s.Physics.Velocity),
		},
		Appearance:    AppearanceView{ShipImageURL: s.ImageURL},
		Health:        s.Health,
		Kills:         s.Kills,
		LastUpdatedAt: s.LastUpdatedAt.UnixMilli(),
	}
	if len(s.BulletOrigins) > 0 {
		v.BulletOrigins = make([]Vec2, len(s.BulletOrigins))
		for i, o := range s.BulletOrigins {
			v.BulletOrigins[i] = Vec2{X: o.X, Y: o.Y}
		}
	}
	if s.Sprites.Count() > 0 {
		v.Sprites = s.Sprites.WireMap()
	}
	return v
}

// ToView converts a projectile to its wire form
func (p *Projectile) ToView() ProjectileView {
	return ProjectileView{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Position:  toVec2(p.Position),
		Velocity:  toVec2(p.Velocity),
		Rotation:  round4(p.Rotation),
		CreatedAt: p.CreatedAt.UnixMilli(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
