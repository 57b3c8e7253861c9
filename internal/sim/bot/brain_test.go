package bot

import (
	"testing"

	"cubes2048.io/internal/sim/arena"
)

var testConfig = Config{SenseRadius: 15, ValueRatio: 1.5, WallMargin: 2}

func snakeAt(id string, pos arena.Vec3, head int) *arena.Snake {
	s := arena.NewSnake(id, pos, arena.V(1, 0, 0))
	s.Segments[0].Value = head
	return s
}

func TestDecide_FarmsNearestEdibleCube(t *testing.T) {
	a := arena.New(24)
	self := snakeAt("bot", arena.V(0, 0.5, 0), 4)
	a.AddSnake(self)
	a.AddCube(&arena.Cube{ID: 1, Pos: arena.V(0, 0.5, 2), Value: 8})
	a.AddCube(&arena.Cube{ID: 2, Pos: arena.V(0, 0.5, -5), Value: 4})
	a.AddCube(&arena.Cube{ID: 3, Pos: arena.V(9, 0.5, 0), Value: 2})

	b := New(testConfig)
	dir, boost := b.Decide(self, a, 0.05)
	if b.State != Farming || boost {
		t.Fatalf("state=%v boost=%v", b.State, boost)
	}
	if dir.Dist(arena.V(0, 0, -1)) > 1e-9 {
		t.Fatalf("dir=%+v want toward cube 2", dir)
	}
}

func TestDecide_HuntsSmallerAndFleesLarger(t *testing.T) {
	a := arena.New(24)
	self := snakeAt("bot", arena.V(0, 0.5, 0), 16)
	prey := snakeAt("prey", arena.V(5, 0.5, 0), 4)
	a.AddSnake(self)
	a.AddSnake(prey)

	b := New(testConfig)
	dir, boost := b.Decide(self, a, 0.05)
	if b.State != Hunting || !boost || dir.Dist(arena.V(1, 0, 0)) > 1e-9 {
		t.Fatalf("state=%v boost=%v dir=%+v", b.State, boost, dir)
	}

	a.RemoveSnake("prey")
	a.AddSnake(snakeAt("threat", arena.V(0, 0.5, 5), 64))
	dir, boost = b.Decide(self, a, 0.05)
	if b.State != Fleeing || !boost || dir.Dist(arena.V(0, 0, -1)) > 1e-9 {
		t.Fatalf("state=%v boost=%v dir=%+v", b.State, boost, dir)
	}
}

func TestDecide_IgnoresFarSnakesAndSteersOffWalls(t *testing.T) {
	a := arena.New(24)
	self := snakeAt("bot", arena.V(23, 0.5, 0), 16)
	a.AddSnake(self)
	a.AddSnake(snakeAt("far", arena.V(-10, 0.5, 0), 2))

	b := New(testConfig)
	dir, _ := b.Decide(self, a, 0.05)
	if b.State != Farming {
		t.Fatalf("state=%v", b.State)
	}
	if dir.Dist(arena.V(-1, 0, 0)) > 1e-9 {
		t.Fatalf("dir=%+v want back toward centre", dir)
	}
}
