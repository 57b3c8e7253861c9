// Package bot pilots server-side snakes with a small FARMING / HUNTING / FLEEING state machine.
package bot

import (
	"math"

	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/tuning"
)

type State int

const (
	Farming State = iota
	Hunting
	Fleeing
)

func (s State) String() string {
	switch s {
	case Hunting:
		return "HUNTING"
	case Fleeing:
		return "FLEEING"
	default:
		return "FARMING"
	}
}

type Config struct {
	SenseRadius float64
	// ValueRatio is how many times larger a head must be to count as prey or threat.
	ValueRatio float64
	// WallMargin turns the bot back toward the centre when its head gets this close to the edge.
	WallMargin float64
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		SenseRadius: t.Bots.SenseRadius,
		ValueRatio:  t.Bots.ValueRatio,
		WallMargin:  2 * t.Movement.Spacing,
	}
}

// Brain is one bot's pilot. It keeps the last decided state and target for inspection.
type Brain struct {
	cfg Config

	State  State
	Target arena.Vec3
}

func New(cfg Config) *Brain { return &Brain{cfg: cfg} }

var _ arena.Pilot = (*Brain)(nil)

// Decide picks a heading: chase a clearly smaller head, run from a clearly larger one,
// otherwise go for the nearest cube the head can eat. Hunting and fleeing boost.
func (b *Brain) Decide(self *arena.Snake, a *arena.Arena, _ float64) (arena.Vec3, bool) {
	if !self.Alive || len(self.Segments) == 0 {
		return arena.Vec3{}, false
	}
	head := self.HeadPos()
	mine := float64(self.HeadValue())

	b.State = Farming
	b.Target = head.Add(self.Heading)
	found := false
	for _, o := range a.AliveSnakes() {
		if o == self {
			continue
		}
		if head.Dist(o.HeadPos()) >= b.cfg.SenseRadius {
			continue
		}
		theirs := float64(o.HeadValue())
		if theirs*b.cfg.ValueRatio < mine {
			b.State, b.Target, found = Hunting, o.HeadPos(), true
			break
		}
		if theirs > mine*b.cfg.ValueRatio {
			b.State, b.Target, found = Fleeing, head.Sub(o.HeadPos().Sub(head)), true
			break
		}
	}
	if !found {
		best := math.Inf(1)
		for _, c := range a.Cubes() {
			if c.Value > self.HeadValue() {
				continue
			}
			if d := head.Dist(c.Pos); d < best {
				best, b.Target = d, c.Pos
			}
		}
	}

	limit := a.HalfExtent - b.cfg.WallMargin
	if math.Abs(head.X) > limit || math.Abs(head.Z) > limit {
		b.Target = arena.V(0, head.Y, 0)
	}

	dir := b.Target.Sub(head).Flat().Normalize()
	if dir.IsZero() {
		dir = self.Heading
	}
	return dir, b.State != Farming
}
