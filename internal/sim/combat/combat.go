// Package combat resolves collisions once per tick, after movement.
//
// Detection reads a frozen view of every alive snake taken before any outcome is applied,
// so results do not depend on the order snakes are visited in.
package combat

import (
	"sort"

	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/economy"
	"cubes2048.io/internal/sim/snake"
	"cubes2048.io/internal/sim/tuning"
)

type Params struct {
	ContactRadius float64
	SelfRadius    float64
	// SelfSkip is the first own segment index a head can collide with.
	SelfSkip int

	// Mutable restricts which snakes outcomes may change. Outcomes touching any other
	// snake are skipped. Nil allows all.
	Mutable func(*arena.Snake) bool
}

func ParamsFromTuning(t tuning.Tuning) Params {
	return Params{
		ContactRadius: t.Combat.ContactRadius,
		SelfRadius:    t.Combat.SelfRadius,
		SelfSkip:      t.Combat.SelfSkip,
	}
}

type frozenSeg struct {
	seg   *arena.Segment
	pos   arena.Vec3
	value int
}

type frozen struct {
	s    *arena.Snake
	head arena.Vec3
	hv   int
	segs []frozenSeg
}

type death struct {
	cause  Cause
	killer string
	// killerHead ranks competing killers.
	killerHead int
}

type claim struct {
	attacker *frozen
	owner    *frozen
	seg      frozenSeg
	dist     float64
}

// Resolve detects and applies every collision of this tick. Dead snakes drop their
// segments through e.
func Resolve(a *arena.Arena, e *economy.Economy, p Params) []Event {
	view := freeze(a)
	mutable := func(s *arena.Snake) bool { return p.Mutable == nil || p.Mutable(s) }

	dead := map[string]death{}

	// Phase 1: boundary and self collisions.
	for _, f := range view {
		if !a.InBounds(f.head) {
			dead[f.s.ID] = death{cause: CauseBoundary}
			continue
		}
		for i := max(p.SelfSkip, 1); i < len(f.segs); i++ {
			if f.head.Dist(f.segs[i].pos) < p.SelfRadius {
				dead[f.s.ID] = death{cause: CauseSelf}
				break
			}
		}
	}

	// Phase 2: head-to-head among phase-1 survivors, all pairs at once.
	alive := survivors(view, dead)
	headDeaths := map[string]death{}
	credit := func(victim, killer *frozen) {
		d, ok := headDeaths[victim.s.ID]
		if !ok || killer.hv > d.killerHead || (killer.hv == d.killerHead && killer.s.ID < d.killer) {
			headDeaths[victim.s.ID] = death{cause: CauseHead, killer: killer.s.ID, killerHead: killer.hv}
		}
	}
	for i := 0; i < len(alive); i++ {
		for j := i + 1; j < len(alive); j++ {
			x, y := alive[i], alive[j]
			if x.head.Dist(y.head) > p.ContactRadius {
				continue
			}
			switch {
			case x.hv > y.hv:
				credit(y, x)
			case y.hv > x.hv:
				credit(x, y)
			default:
				credit(x, y)
				credit(y, x)
			}
		}
	}
	for id, d := range headDeaths {
		dead[id] = d
	}

	// Phase 3: heads against other snakes' bodies.
	alive = survivors(view, dead)
	var claims []claim
	for _, att := range alive {
		var best *claim
		for _, own := range alive {
			if own == att {
				continue
			}
			for i := 1; i < len(own.segs); i++ {
				d := att.head.Dist(own.segs[i].pos)
				if d > p.ContactRadius {
					continue
				}
				if best == nil || d < best.dist || (d == best.dist && own.s.ID < best.owner.s.ID) {
					best = &claim{attacker: att, owner: own, seg: own.segs[i], dist: d}
				}
			}
		}
		if best != nil {
			claims = append(claims, *best)
		}
	}

	bySeg := map[*arena.Segment][]claim{}
	for _, c := range claims {
		if c.attacker.hv < c.seg.value {
			if _, ok := dead[c.attacker.s.ID]; !ok {
				dead[c.attacker.s.ID] = death{cause: CauseBody, killer: c.owner.s.ID}
			}
			continue
		}
		bySeg[c.seg.seg] = append(bySeg[c.seg.seg], c)
	}
	var winners []claim
	for _, cs := range bySeg {
		sort.Slice(cs, func(i, j int) bool {
			if cs[i].attacker.hv != cs[j].attacker.hv {
				return cs[i].attacker.hv > cs[j].attacker.hv
			}
			if cs[i].dist != cs[j].dist {
				return cs[i].dist < cs[j].dist
			}
			return cs[i].attacker.s.ID < cs[j].attacker.s.ID
		})
		winners = append(winners, cs[0])
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].attacker.s.ID < winners[j].attacker.s.ID })

	// Every claimed segment leaves its owner before any attacker grows, so one transfer
	// never removes or merges a segment another winner claimed.
	var events []Event
	var applied []claim
	for _, w := range winners {
		att, own := w.attacker.s, w.owner.s
		if !mutable(att) || !mutable(own) {
			continue
		}
		if !own.Remove(w.seg.seg) {
			continue
		}
		own.Score -= w.seg.value
		own.Rev++
		applied = append(applied, w)
	}
	for _, w := range applied {
		snake.Grow(w.attacker.s, w.seg.value)
	}
	for _, w := range applied {
		att := w.attacker.s
		snake.MergeTail(att)
		att.Rev++
		events = append(events, Event{Kind: KindTransfer, Victim: w.owner.s.ID, Killer: att.ID, Value: w.seg.value})
	}

	ids := make([]string, 0, len(dead))
	for id := range dead {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := a.Snake(id)
		if s == nil || !mutable(s) {
			continue
		}
		d := dead[id]
		events = append(events, Kill(s, e, d.cause, d.killer))
	}
	return events
}

// Kill marks s dead and drops every segment as a cube at its position. Killing an
// already dead snake is a no-op and returns a zero Event.
func Kill(s *arena.Snake, e *economy.Economy, cause Cause, killer string) Event {
	if !s.Alive {
		return Event{}
	}
	ev := Event{Kind: KindDeath, Cause: cause, Victim: s.ID, Killer: killer, Value: s.HeadValue()}
	if e != nil {
		ev.Dropped = len(e.DropSegments(s.Segments))
	}
	s.Alive = false
	s.Segments = nil
	s.Trail = nil
	s.Boosting = false
	s.BoostClock = 0
	s.Rev++
	return ev
}

func freeze(a *arena.Arena) []*frozen {
	var out []*frozen
	for _, s := range a.AliveSnakes() {
		f := &frozen{s: s, head: s.HeadPos(), hv: s.HeadValue(), segs: make([]frozenSeg, len(s.Segments))}
		for i, seg := range s.Segments {
			f.segs[i] = frozenSeg{seg: seg, pos: seg.Pos, value: seg.Value}
		}
		out = append(out, f)
	}
	return out
}

func survivors(view []*frozen, dead map[string]death) []*frozen {
	var out []*frozen
	for _, f := range view {
		if _, ok := dead[f.s.ID]; !ok {
			out = append(out, f)
		}
	}
	return out
}
