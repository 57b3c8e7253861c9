// Package snake moves, grows and merges snakes. All functions mutate the snake in place
// and never touch the arena; callers own the registry.
package snake

import (
	"math"

	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/tuning"
)

type Params struct {
	NormalSpeed float64
	BoostSpeed  float64
	Spacing     float64
	TrailMargin int
	// BoostDropInterval is in seconds. 0 disables shedding.
	BoostDropInterval float64
	// TurnRate caps heading change in radians per second. 0 means instant.
	TurnRate float64
}

func ParamsFromTuning(t tuning.Tuning) Params {
	return Params{
		NormalSpeed:       t.Movement.NormalSpeed,
		BoostSpeed:        t.Movement.BoostSpeed,
		Spacing:           t.Movement.Spacing,
		TrailMargin:       t.Movement.TrailMargin,
		BoostDropInterval: t.Movement.BoostDropInterval().Seconds(),
	}
}

// Input is one frame of steering. A zero Dir keeps the current heading.
type Input struct {
	Dir   arena.Vec3
	Boost bool
}

const reverseEps = 1e-9

// Step advances s by dt seconds. When boosting sheds the tail segment, the shed
// segment is returned so the caller can drop it as a cube.
func Step(s *arena.Snake, dt float64, in Input, p Params) *arena.Segment {
	if !s.Alive || len(s.Segments) == 0 || dt <= 0 {
		return nil
	}
	steer(s, in.Dir, dt, p.TurnRate)

	s.Boosting = in.Boost && len(s.Segments) > 1
	speed := p.NormalSpeed
	if s.Boosting {
		speed = p.BoostSpeed
	}
	stepLen := speed * dt
	if stepLen <= 0 {
		return nil
	}

	head := s.Segments[0]
	head.Pos = head.Pos.Add(s.Heading.Scale(stepLen))

	s.Trail = append(s.Trail, arena.Vec3{})
	copy(s.Trail[1:], s.Trail)
	s.Trail[0] = head.Pos
	maxLen := int(float64(len(s.Segments))*p.Spacing/stepLen) + p.TrailMargin
	if len(s.Trail) > maxLen {
		s.Trail = s.Trail[:maxLen]
	}

	place(s, stepLen, p.Spacing)
	return shed(s, dt, p.BoostDropInterval)
}

func steer(s *arena.Snake, want arena.Vec3, dt, turnRate float64) {
	dir := want.Flat().Normalize()
	if dir.IsZero() {
		return
	}
	cur := s.Heading.Flat().Normalize()
	if cur.IsZero() {
		s.Heading = dir
		return
	}
	if dir.Dot(cur) <= -1+reverseEps {
		return
	}
	if turnRate <= 0 {
		s.Heading = dir
		return
	}
	from := math.Atan2(cur.Z, cur.X)
	diff := math.Atan2(dir.Z, dir.X) - from
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff < -math.Pi {
		diff += 2 * math.Pi
	}
	limit := turnRate * dt
	if diff > limit {
		diff = limit
	} else if diff < -limit {
		diff = -limit
	}
	a := from + diff
	s.Heading = arena.V(math.Cos(a), 0, math.Sin(a))
}

// place positions every non-head segment on the trail, or behind its predecessor while
// the trail is still too short.
func place(s *arena.Snake, stepLen, spacing float64) {
	for i := 1; i < len(s.Segments); i++ {
		idx := int(float64(i) * spacing / stepLen)
		if idx < len(s.Trail) {
			s.Segments[i].Pos = s.Trail[idx]
			continue
		}
		s.Segments[i].Pos = s.Segments[i-1].Pos.Sub(s.Heading.Scale(spacing))
	}
}

func shed(s *arena.Snake, dt, interval float64) *arena.Segment {
	if !s.Boosting || interval <= 0 {
		s.BoostClock = 0
		return nil
	}
	s.BoostClock += dt
	if s.BoostClock < interval {
		return nil
	}
	s.BoostClock -= interval
	tail := s.Segments[len(s.Segments)-1]
	s.Segments = s.Segments[:len(s.Segments)-1]
	s.Score -= tail.Value
	if len(s.Segments) == 1 {
		s.Boosting = false
		s.BoostClock = 0
	}
	return tail
}

// Grow appends a segment of value v at the tail position.
func Grow(s *arena.Snake, v int) {
	at := s.HeadPos()
	if t := s.Tail(); t != nil {
		at = t.Pos
	}
	s.Segments = append(s.Segments, &arena.Segment{Pos: at, Value: v, Owner: s.ID})
	s.Score += v
}

// MergeTail collapses equal adjacent pairs, tail first, until none remain. The head-side
// segment of a pair doubles and the tail-side one is removed. Mass is conserved.
func MergeTail(s *arena.Snake) {
	for {
		merged := false
		for i := len(s.Segments) - 1; i >= 1; i-- {
			if s.Segments[i].Value != s.Segments[i-1].Value {
				continue
			}
			s.Segments[i-1].Value *= 2
			s.Score += s.Segments[i-1].Value
			s.Segments = append(s.Segments[:i], s.Segments[i+1:]...)
			merged = true
			break
		}
		if !merged {
			return
		}
	}
}

// SeedTrail rebuilds the trail by walking the polyline through the current segment
// positions in steps of stepLen, so a body reported from elsewhere keeps its shape
// when stepped locally.
func SeedTrail(s *arena.Snake, stepLen float64) {
	s.Trail = s.Trail[:0]
	if len(s.Segments) == 0 || stepLen <= 0 {
		return
	}
	s.Trail = append(s.Trail, s.Segments[0].Pos)
	carry := 0.0
	for i := 1; i < len(s.Segments); i++ {
		from, to := s.Segments[i-1].Pos, s.Segments[i].Pos
		d := from.Dist(to)
		if d == 0 {
			continue
		}
		dir := to.Sub(from).Scale(1 / d)
		at := stepLen - carry
		for ; at <= d; at += stepLen {
			s.Trail = append(s.Trail, from.Add(dir.Scale(at)))
		}
		carry = d - (at - stepLen)
	}
}
