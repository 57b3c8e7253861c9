package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	Arena    Arena    `yaml:"arena"`
	Movement Movement `yaml:"movement"`
	Combat   Combat   `yaml:"combat"`
	Economy  Economy  `yaml:"economy"`
	Sync     Sync     `yaml:"sync"`
	Bots     Bots     `yaml:"bots"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type Arena struct {
	HalfExtent float64 `yaml:"half_extent"`
	CubeY      float64 `yaml:"cube_y"`
}

type Movement struct {
	NormalSpeed         float64 `yaml:"normal_speed"`
	BoostSpeed          float64 `yaml:"boost_speed"`
	Spacing             float64 `yaml:"spacing"`
	TrailMargin         int     `yaml:"trail_margin"`
	BoostDropIntervalMs int     `yaml:"boost_drop_interval_ms"`
}

type Combat struct {
	ContactRadius float64 `yaml:"contact_radius"`
	SelfRadius    float64 `yaml:"self_radius"`
	// SelfSkip is the first segment index checked for self collision.
	SelfSkip int `yaml:"self_skip"`
}

type Economy struct {
	MinCubes     int     `yaml:"min_cubes"`
	SpawnPerTick int     `yaml:"spawn_per_tick"`
	SpawnMargin  float64 `yaml:"spawn_margin"`
}

type Sync struct {
	SendHz           int     `yaml:"send_hz"`
	ReapAfterMs      int     `yaml:"reap_after_ms"`
	ReconnectDelayMs int     `yaml:"reconnect_delay_ms"`
	RestartDelayMs   int     `yaml:"restart_delay_ms"`
	DesyncSlack      float64 `yaml:"desync_slack"`
	LeaderboardSize  int     `yaml:"leaderboard_size"`
}

type Bots struct {
	Count       int     `yaml:"count"`
	TurnRate    float64 `yaml:"turn_rate"`
	SenseRadius float64 `yaml:"sense_radius"`
	ValueRatio  float64 `yaml:"value_ratio"`
}

type RateLimits struct {
	InboundPerSecond float64 `yaml:"inbound_per_second"`
	InboundBurst     int     `yaml:"inbound_burst"`
}

// Defaults mirrors configs/tuning.yaml.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		Arena:           Arena{HalfExtent: 24, CubeY: 0.5},
		Movement: Movement{
			NormalSpeed:         5,
			BoostSpeed:          8,
			Spacing:             1.0,
			TrailMargin:         10,
			BoostDropIntervalMs: 1000,
		},
		Combat:  Combat{ContactRadius: 1.0, SelfRadius: 0.8, SelfSkip: 2},
		Economy: Economy{MinCubes: 30, SpawnPerTick: 5, SpawnMargin: 2},
		Sync: Sync{
			SendHz:           10,
			ReapAfterMs:      10000,
			ReconnectDelayMs: 5000,
			RestartDelayMs:   3000,
			DesyncSlack:      2.0,
			LeaderboardSize:  10,
		},
		Bots:       Bots{Count: 4, TurnRate: 3, SenseRadius: 15, ValueRatio: 1.5},
		RateLimits: RateLimits{InboundPerSecond: 30, InboundBurst: 60},
	}
}

// Load reads a tuning file. Keys missing from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// LoadOrDefault is Load, falling back to Defaults when the file does not exist.
func LoadOrDefault(path string) (Tuning, error) {
	t, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return t, err
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case t.Arena.HalfExtent <= 0:
		return fmt.Errorf("arena.half_extent must be > 0")
	case t.Movement.NormalSpeed <= 0 || t.Movement.BoostSpeed < t.Movement.NormalSpeed:
		return fmt.Errorf("movement: need 0 < normal_speed <= boost_speed")
	case t.Movement.Spacing <= 0:
		return fmt.Errorf("movement.spacing must be > 0")
	case t.Combat.ContactRadius <= 0 || t.Combat.SelfRadius <= 0:
		return fmt.Errorf("combat radii must be > 0")
	case t.Combat.SelfSkip < 1:
		return fmt.Errorf("combat.self_skip must be >= 1")
	case t.Economy.SpawnMargin < 0 || t.Economy.SpawnMargin >= t.Arena.HalfExtent:
		return fmt.Errorf("economy.spawn_margin out of range")
	case t.Sync.SendHz <= 0:
		return fmt.Errorf("sync.send_hz must be > 0")
	}
	return nil
}

func (t Tuning) TickDuration() time.Duration {
	return time.Second / time.Duration(t.TickRateHz)
}

func (t Tuning) TickDT() float64 { return 1.0 / float64(t.TickRateHz) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (s Sync) ReapAfter() time.Duration      { return ms(s.ReapAfterMs) }
func (s Sync) ReconnectDelay() time.Duration { return ms(s.ReconnectDelayMs) }
func (s Sync) RestartDelay() time.Duration   { return ms(s.RestartDelayMs) }
func (s Sync) SendInterval() time.Duration   { return time.Second / time.Duration(s.SendHz) }

func (m Movement) BoostDropInterval() time.Duration { return ms(m.BoostDropIntervalMs) }
