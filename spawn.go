package main

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/spatial/r2"
)

// defaultSprites is the stock ship, already resized for clients
var defaultSprites = SpriteSet{
	ThrustOffMuzzleOff: "https://space-ship-sprites.s3.amazonaws.com/resized/30a91441fd699007c30a9fbe41388e3689b74a5a.png",
	ThrustOffMuzzleOn:  "https://space-ship-sprites.s3.amazonaws.com/resized/6b0f3ae8c3ff568e9068d00afe2408e091ca3525.png",
	ThrustOnMuzzleOff:  "https://space-ship-sprites.s3.amazonaws.com/resized/1ae92aa5ac921cba17f46bf51179c02b2888305d.png",
	ThrustOnMuzzleOn:   "https://space-ship-sprites.s3.amazonaws.com/resized/85b7e120b0d9396f04cc71c78ecc4579a1a37df0.png",
}

// defaultShipOrigins are the stock ship's muzzles in resized sprite space
var defaultShipOrigins = []r2.Vec{
	{X: 20.9375, Y: -20.125},
	{X: -20.75, Y: -20.1875},
}

// Notifier receives progress messages for the client that asked for a spawn
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// Spawner builds ships for spawn requests and inserts them into the game
type Spawner struct {
	game   *Game
	assets *AssetService
}

// NewSpawner creates a Spawner. assets may be nil, which disables prompt spawns.
func NewSpawner(game *Game, assets *AssetService) *Spawner {
	return &Spawner{game: game, assets: assets}
}

// SpawnDefault inserts a stock ship for id at a random spawn point
func (s *Spawner) SpawnDefault(id string) (*ShipState, error) {
	t := s.game.Tuning()
	pos, rot := RandomSpawn(t.SpawnRange)
	ship := NewShip(id, fallbackName(id), t, pos, rot, s.game.now())
	ship.Sprites = defaultSprites
	ship.ImageURL = defaultSprites[ThrustOffMuzzleOff]
	ship.BulletOrigins = append([]r2.Vec(nil), defaultShipOrigins...)
	if err := s.game.SpawnShip(ship); err != nil {
		return nil, err
	}
	return ship, nil
}

func validatePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must be a non-empty string")
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return "", errors.New("prompt too long")
	}
	return prompt, nil
}

// SpawnFromPrompt generates a ship from prompt. The ship enters the world as
// soon as one sprite exists; the sprite sheet, resized sprites, muzzle
// offsets and name follow and are written back through Game.UpdateShip.
// Failures after the first sprite fall back to defaults.
func (s *Spawner) SpawnFromPrompt(ctx context.Context, id, clientIP, prompt string, n Notifier) {
	if s.assets == nil {
		n.Error("ship generation unavailable")
		return
	}

	if q, err := s.assets.RemainingShips(ctx, clientIP); err != nil {
		log.Printf("[assets] quota check failed for %s: %v", clientIP, err)
	} else if q.Cap > 0 && q.Remaining <= 0 {
		n.Error("ship limit reached")
		return
	}

	n.Info("generating ship...")
	gen, err := s.assets.GenerateShip(ctx, prompt)
	if err != nil {
		log.Printf("[assets] generation error: %v", err)
		n.Error(err.Error())
		return
	}
	if gen.ImageURL == "" {
		n.Error("generation succeeded but missing image(s)")
		return
	}

	t := s.game.Tuning()
	pos, rot := RandomSpawn(t.SpawnRange)
	ship := NewShip(id, fallbackName(id), t, pos, rot, s.game.now())
	ship.Sprites = gen.Sprites
	ship.ImageURL = gen.ImageURL
	if err := s.game.SpawnShip(ship); err != nil {
		n.Error(err.Error())
		return
	}
	n.Info("ship base sprite generated")

	// The ship exists now; finish enriching it even if the client goes away.
	s.enrich(context.WithoutCancel(ctx), id, prompt, gen, n)
}

func (s *Spawner) enrich(ctx context.Context, id, prompt string, gen GenerateResult, n Notifier) {
	full := gen.Sprites
	if full.Count() < int(numSpriteVariants) {
		n.Info("expanding ship sprites...")
		expanded, err := s.assets.ExpandSpriteSheet(ctx, gen.ImageURL)
		if err != nil {
			log.Printf("[assets] sprite sheet expansion failed: %v", err)
		} else {
			full = full.Merge(expanded)
		}
	}

	display := full
	if resized, err := s.assets.ResizeSprites(ctx, full); err != nil {
		log.Printf("[assets] resize failed: %v", err)
	} else if resized.Count() > 0 {
		display = resized
	}

	origins, err := s.assets.BulletOrigins(ctx, full)
	if err != nil {
		log.Printf("[assets] bullet origin diff failed: %v", err)
	}

	name, err := s.assets.NameShip(ctx, prompt)
	if err != nil {
		log.Printf("[assets] naming failed: %v", err)
	}

	err = s.game.UpdateShip(id, func(ship *ShipState) {
		if display.Count() > 0 {
			ship.Sprites = display
			if url := display.Resolve(false, false); url != "" {
				ship.ImageURL = url
			}
		}
		if len(origins) > 0 {
			ship.BulletOrigins = origins
		}
		if name != "" {
			ship.Name = name
		}
	})
	if err != nil {
		log.Printf("[assets] ship %s gone before enrichment finished", id)
		return
	}
	n.Info("ship sprites expanded")
}

func fallbackName(id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 4 {
		short = short[:4]
	}
	return "Pilot-" + short
}
