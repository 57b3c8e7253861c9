package economy

import (
	"errors"
	"math"
	"testing"

	"cubes2048.io/internal/sim/arena"
)

func newEconomy(minCubes int) (*arena.Arena, *Economy) {
	a := arena.New(24)
	return a, New(a, Config{HalfExtent: 24, SpawnMargin: 2, CubeY: 0.5, MinCubes: minCubes, SpawnPerTick: 5, Seed: 1})
}

func at(x, z float64) *arena.Vec3 {
	v := arena.V(x, 0.5, z)
	return &v
}

func TestSpawn_DefaultsAndIDs(t *testing.T) {
	a, e := newEconomy(0)
	counts := map[int]int{}
	for i := 0; i < 2000; i++ {
		c := e.Spawn(SpawnOptions{})
		counts[c.Value]++
		if math.Abs(c.Pos.X) > 22 || math.Abs(c.Pos.Z) > 22 || c.Pos.Y != 0.5 {
			t.Fatalf("cube outside spawn area: %+v", c.Pos)
		}
	}
	if len(counts) != 3 || counts[2] < counts[4] || counts[4] < counts[8] {
		t.Fatalf("value distribution off: %v", counts)
	}
	if a.CubeCount() != 2000 {
		t.Fatalf("ids reused: count=%d", a.CubeCount())
	}

	c := e.Spawn(SpawnOptions{ID: 5000, Value: 16, Pos: at(1, 1)})
	if c.ID != 5000 || c.Value != 16 {
		t.Fatalf("explicit fields ignored: %+v", c)
	}
	if next := e.Spawn(SpawnOptions{}); next.ID != 5001 {
		t.Fatalf("issuer did not advance past explicit id: %d", next.ID)
	}
}

func TestCollect_ValueTooHighLeavesStateUnchanged(t *testing.T) {
	a, e := newEconomy(0)
	s := arena.NewSnake("a", arena.V(0, 0.5, 0), arena.V(1, 0, 0))
	a.AddSnake(s)
	c := e.Spawn(SpawnOptions{Pos: at(0, 0), Value: 4})

	err := e.Collect(s, c)
	if !errors.Is(err, ErrValueTooHigh) {
		t.Fatalf("err=%v want ErrValueTooHigh", err)
	}
	if a.Cube(c.ID) == nil || c.Value != 4 {
		t.Fatalf("cube mutated")
	}
	if len(s.Segments) != 1 || s.HeadValue() != 2 || s.Score != 0 {
		t.Fatalf("snake mutated: %+v", s)
	}
}

func TestCollect_EqualDoublesHead(t *testing.T) {
	a, e := newEconomy(0)
	s := arena.NewSnake("a", arena.V(0, 0.5, 0), arena.V(1, 0, 0))
	s.Segments[0].Value = 8
	a.AddSnake(s)
	c := e.Spawn(SpawnOptions{Pos: at(0, 0), Value: 8})
	before := s.Mass()

	if err := e.Collect(s, c); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if s.HeadValue() != 16 || len(s.Segments) != 1 {
		t.Fatalf("head=%d len=%d", s.HeadValue(), len(s.Segments))
	}
	if s.Mass() != before+8 || s.Score != 8 {
		t.Fatalf("mass=%d score=%d", s.Mass(), s.Score)
	}
	if a.Cube(c.ID) != nil {
		t.Fatalf("cube still registered")
	}
}

func TestCollect_LowerAppendsThenMerges(t *testing.T) {
	a, e := newEconomy(0)
	s := arena.NewSnake("a", arena.V(0, 0.5, 0), arena.V(1, 0, 0))
	s.Segments[0].Value = 8
	s.Segments = append(s.Segments, &arena.Segment{Pos: arena.V(-1, 0.5, 0), Value: 2, Owner: "a"})
	a.AddSnake(s)

	if err := e.Collect(s, e.Spawn(SpawnOptions{Pos: at(0, 0), Value: 4})); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(s.Segments) != 3 || s.Tail().Value != 4 {
		t.Fatalf("lower value must append: %d segments", len(s.Segments))
	}
	if err := e.Collect(s, e.Spawn(SpawnOptions{Pos: at(0, 0), Value: 4})); err != nil {
		t.Fatalf("collect: %v", err)
	}
	// 8,2,4,4 -> 8,2,8
	if len(s.Segments) != 3 || s.Tail().Value != 8 || s.Mass() != 18 {
		t.Fatalf("unexpected chain: len=%d tail=%d mass=%d", len(s.Segments), s.Tail().Value, s.Mass())
	}
}

func TestDrop_SpawnsAtPosition(t *testing.T) {
	a, e := newEconomy(0)
	c := e.Drop(arena.V(3, 0.5, -4), 32)
	if got := a.Cube(c.ID); got == nil || got.Value != 32 || got.Pos != arena.V(3, 0.5, -4) {
		t.Fatalf("drop=%+v", got)
	}
}

func TestReconcile_ContentionClosestThenLargerThenID(t *testing.T) {
	a, e := newEconomy(0)
	far := arena.NewSnake("a", arena.V(0.5, 0.5, 0), arena.V(1, 0, 0))
	far.Segments[0].Value = 64
	close1 := arena.NewSnake("b", arena.V(-0.2, 0.5, 0), arena.V(1, 0, 0))
	close1.Segments[0].Value = 4
	close2 := arena.NewSnake("c", arena.V(0.2, 0.5, 0), arena.V(1, 0, 0))
	close2.Segments[0].Value = 4
	for _, s := range []*arena.Snake{far, close1, close2} {
		a.AddSnake(s)
	}
	c := e.Spawn(SpawnOptions{Pos: at(0, 0), Value: 2})

	got := e.Reconcile(1, nil)
	if len(got) != 1 || got[0].CubeID != c.ID || got[0].SnakeID != "b" {
		t.Fatalf("collections=%+v", got)
	}

	// The closest head refuses a cube above its value; the next one takes it.
	big := e.Spawn(SpawnOptions{Pos: at(-0.1, 0), Value: 32})
	got = e.Reconcile(1, nil)
	if len(got) != 1 || got[0].CubeID != big.ID || got[0].SnakeID != "a" {
		t.Fatalf("collections=%+v", got)
	}
}

func TestReconcile_EligibilityAndRefill(t *testing.T) {
	a, e := newEconomy(12)
	remote := arena.NewSnake("r", arena.V(0, 0.5, 0), arena.V(1, 0, 0))
	remote.Remote = true
	a.AddSnake(remote)
	e.Spawn(SpawnOptions{Pos: at(0, 0), Value: 2})

	got := e.Reconcile(1, func(s *arena.Snake) bool { return !s.Remote })
	if len(got) != 0 {
		t.Fatalf("remote snake must not collect: %+v", got)
	}
	if a.CubeCount() != 6 {
		t.Fatalf("refill capped at 5 per call: count=%d", a.CubeCount())
	}
	e.Reconcile(1, func(s *arena.Snake) bool { return !s.Remote })
	e.Reconcile(1, func(s *arena.Snake) bool { return !s.Remote })
	if a.CubeCount() != 12 {
		t.Fatalf("population=%d want 12", a.CubeCount())
	}
}
