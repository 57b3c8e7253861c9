package arena

import (
	"math"
	"sort"
)

// Arena is the registry of snakes and collectible cubes inside a square arena centred
// on the origin. It is not safe for concurrent use; one goroutine owns it.
type Arena struct {
	HalfExtent float64

	snakes map[string]*Snake
	cubes  map[int64]*Cube
}

func New(halfExtent float64) *Arena {
	return &Arena{
		HalfExtent: halfExtent,
		snakes:     map[string]*Snake{},
		cubes:      map[int64]*Cube{},
	}
}

func (a *Arena) AddSnake(s *Snake) { a.snakes[s.ID] = s }

func (a *Arena) RemoveSnake(id string) *Snake {
	s := a.snakes[id]
	delete(a.snakes, id)
	return s
}

func (a *Arena) Snake(id string) *Snake { return a.snakes[id] }

func (a *Arena) SnakeCount() int { return len(a.snakes) }

// Snakes returns every snake ordered by id.
func (a *Arena) Snakes() []*Snake {
	out := make([]*Snake, 0, len(a.snakes))
	for _, s := range a.snakes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AliveSnakes returns the alive snakes ordered by id.
func (a *Arena) AliveSnakes() []*Snake {
	all := a.Snakes()
	out := all[:0]
	for _, s := range all {
		if s.Alive && len(s.Segments) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (a *Arena) AddCube(c *Cube) { a.cubes[c.ID] = c }

func (a *Arena) RemoveCube(id int64) *Cube {
	c := a.cubes[id]
	delete(a.cubes, id)
	return c
}

func (a *Arena) Cube(id int64) *Cube { return a.cubes[id] }

func (a *Arena) CubeCount() int { return len(a.cubes) }

// Cubes returns every cube ordered by id.
func (a *Arena) Cubes() []*Cube {
	out := make([]*Cube, 0, len(a.cubes))
	for _, c := range a.cubes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReplaceCubes swaps the whole cube set.
func (a *Arena) ReplaceCubes(cs []*Cube) {
	a.cubes = make(map[int64]*Cube, len(cs))
	for _, c := range cs {
		a.cubes[c.ID] = c
	}
}

// CubesNear returns the cubes within r of p, closest first (ties by id).
func (a *Arena) CubesNear(p Vec3, r float64) []*Cube {
	var out []*Cube
	for _, c := range a.cubes {
		if c.Pos.Dist(p) <= r {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Pos.Dist(p), out[j].Pos.Dist(p)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// InBounds reports whether p lies within the arena half-extent on every axis.
func (a *Arena) InBounds(p Vec3) bool {
	return math.Abs(p.X) <= a.HalfExtent && math.Abs(p.Y) <= a.HalfExtent && math.Abs(p.Z) <= a.HalfExtent
}

type LeaderboardEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Score int    `json:"score"`
	Head  int    `json:"head_value"`
	Alive bool   `json:"alive"`
}

// Leaderboard returns the top n snakes by score (ties by id). n <= 0 means all.
func (a *Arena) Leaderboard(n int) []LeaderboardEntry {
	all := a.Snakes()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]LeaderboardEntry, 0, len(all))
	for _, s := range all {
		out = append(out, LeaderboardEntry{ID: s.ID, Name: s.Name, Score: s.Score, Head: s.HeadValue(), Alive: s.Alive})
	}
	return out
}
