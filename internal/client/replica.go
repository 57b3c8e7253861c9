package client

import (
	"sort"

	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
)

// overwrite copies a server view of a player onto s. Segments are resized one at a
// time so surviving segments keep their identity; a dead player carries none.
func overwrite(s *arena.Snake, ps protocol.PlayerState) {
	n := len(ps.Segments)
	if !ps.Alive {
		n = 0
	}
	s.Resize(n)
	for i := 0; i < n; i++ {
		sw := ps.Segments[i]
		s.Segments[i].Pos = arena.FromArray(sw.Pos())
		s.Segments[i].Value = sw.Value()
	}
	if n > 0 {
		s.Segments[0].Pos = arena.FromArray(ps.Position)
		s.Segments[0].Value = ps.HeadValue
	}
	if dir := arena.FromArray(ps.Direction).Flat().Normalize(); !dir.IsZero() {
		s.Heading = dir
	}
	if ps.Name != "" {
		s.Name = ps.Name
	}
	s.Alive = ps.Alive && n > 0
	s.Score = ps.Score
	s.Rev = ps.Rev
	s.Trail = s.Trail[:0]
	if !s.Alive {
		s.Boosting = false
		s.BoostClock = 0
	}
}

// applyReplicas mirrors every player except self into a, removing replicas the
// snapshot no longer lists. It returns the ids of replicas that were alive and no longer are.
func applyReplicas(a *arena.Arena, self string, players map[string]protocol.PlayerState) []string {
	var died []string
	for id, ps := range players {
		if id == self {
			continue
		}
		r := a.Snake(id)
		if r == nil {
			r = &arena.Snake{ID: id, Remote: true}
			a.AddSnake(r)
		}
		wasAlive := r.Alive
		overwrite(r, ps)
		if wasAlive && !r.Alive {
			died = append(died, id)
		}
	}
	for _, s := range a.Snakes() {
		if s.ID == self {
			continue
		}
		if _, ok := players[s.ID]; !ok {
			a.RemoveSnake(s.ID)
		}
	}
	sort.Strings(died)
	return died
}
