package main

import (
	_ "embed"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	prodServiceBase = "https://9rc13jr0p2.execute-api.us-east-1.amazonaws.com"
	devServiceBase  = "http://localhost:3000"
)

// Config holds all server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Sim        SimConfig        `yaml:"sim"`
	Services   ServicesConfig   `yaml:"services"`
	Scoreboard ScoreboardConfig `yaml:"scoreboard"`
	Auth       AuthConfig       `yaml:"auth"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	PublicURL string `yaml:"public_url"`
	// Origins allowed to open /ws besides the serving host and PublicURL.
	// "*" accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
	TLSCert        string   `yaml:"tls_cert"`
	TLSKey         string   `yaml:"tls_key"`
	MaxConnsPerIP  int      `yaml:"max_conns_per_ip"`
	MaxTotalConns  int      `yaml:"max_total_conns"`
}

// SimConfig holds simulation tuning as written in YAML (durations in ms)
type SimConfig struct {
	TickRate             int     `yaml:"tick_rate"`
	BroadcastRate        int     `yaml:"broadcast_rate"`
	ThrustAccel          float64 `yaml:"thrust_accel"`
	BrakeFactor          float64 `yaml:"brake_factor"`
	MaxSpeed             float64 `yaml:"max_speed"`
	RotateSpeed          float64 `yaml:"rotate_speed"`
	LinearDamping        float64 `yaml:"linear_damping"`
	StickDeadzone        float64 `yaml:"stick_deadzone"`
	MuzzleFlashMS        int     `yaml:"muzzle_flash_ms"`
	FireCooldownMS       int     `yaml:"fire_cooldown_ms"`
	ProjectileSpeed      float64 `yaml:"projectile_speed"`
	ProjectileLifetimeMS int     `yaml:"projectile_lifetime_ms"`
	ShipHitRadius        float64 `yaml:"ship_hit_radius"`
	BulletDamage         int     `yaml:"bullet_damage"`
	MaxHealth            int     `yaml:"max_health"`
	ShipExpiryMS         int     `yaml:"ship_expiry_ms"`
	SpawnRange           float64 `yaml:"spawn_range"`
}

// ServicesConfig holds external asset service endpoints
type ServicesConfig struct {
	Env                    string `yaml:"env"`
	BaseURL                string `yaml:"base_url"`
	GenerateShipURL        string `yaml:"generate_ship_url"`
	GenerateSpriteSheetURL string `yaml:"generate_sprite_sheet_url"`
	ResizeSpritesURL       string `yaml:"resize_sprites_url"`
	DiffBoundingBoxURL     string `yaml:"diff_bounding_box_url"`
	NameShipURL            string `yaml:"name_ship_url"`
	ShipsQuotaURL          string `yaml:"ships_quota_url"`
	ScoreboardURL          string `yaml:"scoreboard_url"`
	TimeoutMS              int    `yaml:"timeout_ms"`
}

// ScoreboardConfig holds the score ledger settings
type ScoreboardConfig struct {
	DBPath    string `yaml:"db_path"`
	MaxItems  int    `yaml:"max_items"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// AuthConfig holds resume token settings
type AuthConfig struct {
	TokenSecret string `yaml:"token_secret"`
}

// DefaultConfig returns the embedded defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic("invalid embedded defaults.yaml: " + err.Error())
	}
	cfg.resolve()
	return cfg
}

// LoadConfig reads defaults, an optional YAML file and environment overrides.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	setStr := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	setStr(&c.Server.PublicURL, "PUBLIC_URL")
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	setStr(&c.Server.TLSCert, "TLS_CERT_PATH")
	setStr(&c.Server.TLSKey, "TLS_KEY_PATH")
	setStr(&c.Services.Env, "APP_ENV")
	setStr(&c.Services.ScoreboardURL, "SCOREBOARD_BASE_URL")
	setStr(&c.Services.GenerateShipURL, "GENERATE_SHIP_URL")
	setStr(&c.Services.GenerateSpriteSheetURL, "GENERATE_SPRITE_SHEET_URL")
	setStr(&c.Services.ResizeSpritesURL, "RESIZE_SPRITES_URL")
	setStr(&c.Services.DiffBoundingBoxURL, "DIFF_BOUNDING_BOX_URL")
	setStr(&c.Services.NameShipURL, "NAME_SHIP_URL")
	setStr(&c.Services.ShipsQuotaURL, "SHIPS_QUOTA_URL")
	setStr(&c.Scoreboard.DBPath, "DB_PATH")
	setStr(&c.Auth.TokenSecret, "TOKEN_SECRET")
	if v := getenv("MUZZLE_FLASH_DURATION_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Sim.MuzzleFlashMS = ms
		}
	}
}

// resolve fills service URLs left empty from the environment's base URL
func (c *Config) resolve() {
	s := &c.Services
	base := s.BaseURL
	if base == "" {
		base = devServiceBase
		if s.Env == "production" {
			base = prodServiceBase
		}
	}
	base = strings.TrimRight(base, "/")
	fill := func(dst *string, path string) {
		if *dst == "" {
			*dst = base + path
		}
	}
	fill(&s.GenerateShipURL, "/generate-space-ship")
	fill(&s.GenerateSpriteSheetURL, "/generate-sprite-sheet")
	fill(&s.ResizeSpritesURL, "/resize")
	fill(&s.DiffBoundingBoxURL, "/diff-bounding-box")
	fill(&s.NameShipURL, "/name-ship")
	fill(&s.ShipsQuotaURL, "/get-num-remaining-ships")
	if s.ScoreboardURL == "" {
		s.ScoreboardURL = base
	}
	s.ScoreboardURL = strings.TrimRight(s.ScoreboardURL, "/")
	if !strings.HasSuffix(s.ScoreboardURL, "/scoreboard") {
		s.ScoreboardURL += "/scoreboard"
	}
}

// Validate rejects settings the simulation cannot run with
func (c *Config) Validate() error {
	if c.Sim.TickRate <= 0 || c.Sim.BroadcastRate <= 0 {
		return fmt.Errorf("tick_rate and broadcast_rate must be positive")
	}
	if c.Sim.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed must be positive")
	}
	if c.Sim.StickDeadzone < 0 || c.Sim.StickDeadzone >= 1 {
		return fmt.Errorf("stick_deadzone must be in [0, 1)")
	}
	if c.Sim.MaxHealth <= 0 {
		return fmt.Errorf("max_health must be positive")
	}
	return nil
}

// Tuning converts the YAML sim section into runtime tuning
func (c *Config) Tuning() Tuning {
	s := c.Sim
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return Tuning{
		TickRate:           s.TickRate,
		BroadcastRate:      s.BroadcastRate,
		ThrustAccel:        s.ThrustAccel,
		BrakeAccel:         s.ThrustAccel * s.BrakeFactor,
		MaxSpeed:           s.MaxSpeed,
		RotateSpeed:        s.RotateSpeed,
		LinearDamping:      s.LinearDamping,
		StickDeadzone:      s.StickDeadzone,
		MuzzleFlash:        ms(s.MuzzleFlashMS),
		FireCooldown:       ms(s.FireCooldownMS),
		ProjectileSpeed:    s.ProjectileSpeed,
		ProjectileLifetime: ms(s.ProjectileLifetimeMS),
		ShipHitRadius:      s.ShipHitRadius,
		BulletDamage:       s.BulletDamage,
		MaxHealth:          s.MaxHealth,
		ShipExpiry:         ms(s.ShipExpiryMS),
		SpawnRange:         s.SpawnRange,
	}
}

// Tuning holds the simulation constants used by the tick
type Tuning struct {
	TickRate           int
	BroadcastRate      int
	ThrustAccel        float64 // units/s² at full thrust
	BrakeAccel         float64 // slightly above thrust for a snappier stop
	MaxSpeed           float64
	RotateSpeed        float64 // rad/s
	LinearDamping      float64
	StickDeadzone      float64
	MuzzleFlash        time.Duration
	FireCooldown       time.Duration
	ProjectileSpeed    float64
	ProjectileLifetime time.Duration
	ShipHitRadius      float64
	BulletDamage       int
	MaxHealth          int
	ShipExpiry         time.Duration
	SpawnRange         float64
}

// DefaultTuning returns the built-in simulation constants
func DefaultTuning() Tuning {
	return DefaultConfig().Tuning()
}

// Dt is the fixed simulation step in seconds
func (t Tuning) Dt() float64 {
	return 1.0 / float64(t.TickRate)
}

// TickInterval is the wall-clock period of the simulation ticker
func (t Tuning) TickInterval() time.Duration {
	return time.Duration(math.Round(float64(time.Second) / float64(t.TickRate)))
}

// BroadcastInterval is the wall-clock period of the broadcast ticker
func (t Tuning) BroadcastInterval() time.Duration {
	return time.Duration(math.Round(float64(time.Second) / float64(t.BroadcastRate)))
}
