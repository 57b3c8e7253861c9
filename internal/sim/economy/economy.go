// Package economy issues, spawns, collects and drops collectible cubes.
package economy

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/snake"
	"cubes2048.io/internal/sim/tuning"
)

var (
	// ErrValueTooHigh refuses a collection whose cube outranks the head. Nothing is mutated.
	ErrValueTooHigh = errors.New("cube value too high")
	ErrDeadSnake    = errors.New("snake is dead")
)

type Config struct {
	HalfExtent   float64
	SpawnMargin  float64
	CubeY        float64
	MinCubes     int
	SpawnPerTick int
	Seed         int64
}

func ConfigFromTuning(t tuning.Tuning, seed int64) Config {
	return Config{
		HalfExtent:   t.Arena.HalfExtent,
		SpawnMargin:  t.Economy.SpawnMargin,
		CubeY:        t.Arena.CubeY,
		MinCubes:     t.Economy.MinCubes,
		SpawnPerTick: t.Economy.SpawnPerTick,
		Seed:         seed,
	}
}

// Economy owns cube id issuance for one arena. Like the arena, it belongs to a single goroutine.
type Economy struct {
	a   *arena.Arena
	cfg Config
	rng *rand.Rand

	nextID int64
}

func New(a *arena.Arena, cfg Config) *Economy {
	return &Economy{a: a, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), nextID: 1}
}

// SpawnOptions leaves zero fields to be drawn: random position, weighted value, fresh id.
type SpawnOptions struct {
	Pos   *arena.Vec3
	Value int
	ID    int64
}

func (e *Economy) Spawn(o SpawnOptions) *arena.Cube {
	c := &arena.Cube{ID: o.ID, Value: o.Value}
	if c.ID == 0 {
		c.ID = e.issue()
	} else if c.ID >= e.nextID {
		e.nextID = c.ID + 1
	}
	if c.Value == 0 {
		c.Value = e.weightedValue()
	}
	if o.Pos != nil {
		c.Pos = *o.Pos
	} else {
		c.Pos = e.randomPos()
	}
	e.a.AddCube(c)
	return c
}

func (e *Economy) issue() int64 {
	id := e.nextID
	e.nextID++
	return id
}

func (e *Economy) weightedValue() int {
	r := e.rng.Float64()
	switch {
	case r < 0.6:
		return 2
	case r < 0.9:
		return 4
	default:
		return 8
	}
}

func (e *Economy) randomPos() arena.Vec3 {
	span := e.cfg.HalfExtent - e.cfg.SpawnMargin
	return arena.V((e.rng.Float64()*2-1)*span, e.cfg.CubeY, (e.rng.Float64()*2-1)*span)
}

// Collect feeds c to s. A cube equal to the head doubles the head in place; a smaller
// one is appended as a new tail segment. Either way the chain is merged afterwards.
func (e *Economy) Collect(s *arena.Snake, c *arena.Cube) error {
	if !s.Alive || len(s.Segments) == 0 {
		return ErrDeadSnake
	}
	head := s.Segments[0]
	if c.Value > head.Value {
		return fmt.Errorf("%w: cube %d value %d > head %d", ErrValueTooHigh, c.ID, c.Value, head.Value)
	}
	e.a.RemoveCube(c.ID)
	if c.Value == head.Value {
		head.Value *= 2
		s.Score += c.Value
	} else {
		snake.Grow(s, c.Value)
	}
	snake.MergeTail(s)
	return nil
}

// Drop spawns a cube of value v at pos.
func (e *Economy) Drop(pos arena.Vec3, v int) *arena.Cube {
	return e.Spawn(SpawnOptions{Pos: &pos, Value: v})
}

// DropSegments drops one cube per segment at the segment's position.
func (e *Economy) DropSegments(segs []*arena.Segment) []*arena.Cube {
	out := make([]*arena.Cube, 0, len(segs))
	for _, seg := range segs {
		out = append(out, e.Drop(seg.Pos, seg.Value))
	}
	return out
}

type Collection struct {
	SnakeID string
	CubeID  int64
	Value   int
}

// Reconcile lets every eligible alive snake collect the cubes its head touches, then
// tops the population up. A cube within reach of several heads is offered to the closest
// head first, then the larger head, then the smaller id; a refusal passes it on.
func (e *Economy) Reconcile(radius float64, eligible func(*arena.Snake) bool) []Collection {
	var out []Collection
	snakes := e.a.AliveSnakes()
	for _, c := range e.a.Cubes() {
		type cand struct {
			s *arena.Snake
			d float64
		}
		var cands []cand
		for _, s := range snakes {
			if eligible != nil && !eligible(s) {
				continue
			}
			if d := s.HeadPos().Dist(c.Pos); d <= radius {
				cands = append(cands, cand{s, d})
			}
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].d != cands[j].d {
				return cands[i].d < cands[j].d
			}
			if hi, hj := cands[i].s.HeadValue(), cands[j].s.HeadValue(); hi != hj {
				return hi > hj
			}
			return cands[i].s.ID < cands[j].s.ID
		})
		for _, cd := range cands {
			if err := e.Collect(cd.s, c); err == nil {
				out = append(out, Collection{SnakeID: cd.s.ID, CubeID: c.ID, Value: c.Value})
				break
			}
		}
	}
	e.Refill()
	return out
}

// Refill spawns random cubes while the population is below MinCubes, at most
// SpawnPerTick per call (unbounded when SpawnPerTick is 0).
func (e *Economy) Refill() int {
	n := 0
	for e.a.CubeCount() < e.cfg.MinCubes {
		if e.cfg.SpawnPerTick > 0 && n >= e.cfg.SpawnPerTick {
			break
		}
		e.Spawn(SpawnOptions{})
		n++
	}
	return n
}

// NextID is the id the next issued cube will get.
func (e *Economy) NextID() int64 { return e.nextID }
