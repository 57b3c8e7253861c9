package world

import (
	"cubes2048.io/internal/sim/tuning"
)

type WorldConfig struct {
	ID   string
	Seed int64

	// Tuning holds every gameplay constant. A zero value means tuning.Defaults().
	Tuning tuning.Tuning

	// Bots overrides Tuning.Bots.Count when >= 0.
	Bots int

	// LeaderboardEveryTicks controls how often the tick log carries a leaderboard.
	LeaderboardEveryTicks int
	// DumpEveryTicks writes a periodic debug dump to the dump sink. 0 disables it.
	DumpEveryTicks int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "arena"
	}
	if c.Tuning == (tuning.Tuning{}) {
		c.Tuning = tuning.Defaults()
	}
	if c.Tuning.TickRateHz <= 0 {
		c.Tuning.TickRateHz = 20
	}
	if c.Bots < 0 {
		c.Bots = c.Tuning.Bots.Count
	}
	if c.LeaderboardEveryTicks <= 0 {
		c.LeaderboardEveryTicks = 100
	}
	if c.Tuning.Sync.LeaderboardSize <= 0 {
		c.Tuning.Sync.LeaderboardSize = 10
	}
}
