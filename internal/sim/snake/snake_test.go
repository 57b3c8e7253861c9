package snake

import (
	"math"
	"testing"

	"cubes2048.io/internal/sim/arena"
)

func testParams() Params {
	return Params{NormalSpeed: 5, BoostSpeed: 8, Spacing: 1, TrailMargin: 10, BoostDropInterval: 1}
}

func chain(id string, values ...int) *arena.Snake {
	s := arena.NewSnake(id, arena.V(0, 0.5, 0), arena.V(1, 0, 0))
	s.Segments[0].Value = values[0]
	for i, v := range values[1:] {
		s.Segments = append(s.Segments, &arena.Segment{Pos: arena.V(-float64(i+1), 0.5, 0), Value: v, Owner: id})
	}
	return s
}

func values(s *arena.Snake) []int {
	out := make([]int, len(s.Segments))
	for i, seg := range s.Segments {
		out[i] = seg.Value
	}
	return out
}

func near(a, b arena.Vec3) bool { return a.Dist(b) < 1e-9 }

func TestStep_AdvancesHeadAlongHeading(t *testing.T) {
	s := chain("a", 2)
	Step(s, 0.1, Input{}, testParams())
	if !near(s.HeadPos(), arena.V(0.5, 0.5, 0)) {
		t.Fatalf("head=%+v", s.HeadPos())
	}
	if len(s.Trail) != 1 || !near(s.Trail[0], s.HeadPos()) {
		t.Fatalf("trail=%+v", s.Trail)
	}
}

func TestStep_RejectsExactReverse(t *testing.T) {
	s := chain("a", 2)
	Step(s, 0.1, Input{Dir: arena.V(-1, 0, 0)}, testParams())
	if !near(s.Heading, arena.V(1, 0, 0)) {
		t.Fatalf("reverse accepted: heading=%+v", s.Heading)
	}
	Step(s, 0.1, Input{Dir: arena.V(0, 0, 3)}, testParams())
	if !near(s.Heading, arena.V(0, 0, 1)) {
		t.Fatalf("turn rejected: heading=%+v", s.Heading)
	}
}

func TestStep_TurnRateLimitsSteering(t *testing.T) {
	s := chain("a", 2)
	p := testParams()
	p.TurnRate = 1
	Step(s, 0.1, Input{Dir: arena.V(0, 0, 1)}, p)
	got := math.Atan2(s.Heading.Z, s.Heading.X)
	if math.Abs(got-0.1) > 1e-9 {
		t.Fatalf("angle=%v want 0.1", got)
	}
}

func TestStep_TrailBoundedAndSegmentsSpaced(t *testing.T) {
	s := chain("a", 8, 4, 2)
	p := testParams()
	for i := 0; i < 200; i++ {
		Step(s, 0.05, Input{}, p)
	}
	stepLen := p.NormalSpeed * 0.05
	maxLen := int(float64(len(s.Segments))*p.Spacing/stepLen) + p.TrailMargin
	if len(s.Trail) > maxLen {
		t.Fatalf("trail len=%d exceeds %d", len(s.Trail), maxLen)
	}
	for i := 1; i < len(s.Segments); i++ {
		d := s.Segments[i-1].Pos.Dist(s.Segments[i].Pos)
		if math.Abs(d-p.Spacing) > 1e-6 {
			t.Fatalf("gap %d=%v want %v", i, d, p.Spacing)
		}
	}
}

func TestStep_ColdStartPlacesBehindPredecessor(t *testing.T) {
	s := chain("a", 8, 4, 2)
	s.Trail = nil
	Step(s, 0.05, Input{}, testParams())
	// Trail holds one entry, so segments 1 and 2 fall back to predecessor offsets.
	if !near(s.Segments[1].Pos, s.HeadPos().Sub(arena.V(1, 0, 0))) {
		t.Fatalf("seg1=%+v head=%+v", s.Segments[1].Pos, s.HeadPos())
	}
	if !near(s.Segments[2].Pos, s.Segments[1].Pos.Sub(arena.V(1, 0, 0))) {
		t.Fatalf("seg2=%+v", s.Segments[2].Pos)
	}
}

func TestStep_BoostShedsTail(t *testing.T) {
	s := chain("a", 8, 4, 2)
	s.Score = 14
	p := testParams()
	var shed []*arena.Segment
	for i := 0; i < 30; i++ {
		if seg := Step(s, 0.1, Input{Boost: true}, p); seg != nil {
			shed = append(shed, seg)
		}
	}
	if len(shed) != 2 {
		t.Fatalf("shed=%d want 2", len(shed))
	}
	if shed[0].Value != 2 || shed[1].Value != 4 {
		t.Fatalf("shed order=%d,%d", shed[0].Value, shed[1].Value)
	}
	if len(s.Segments) != 1 || s.Boosting {
		t.Fatalf("boost must stop at one segment: len=%d boosting=%v", len(s.Segments), s.Boosting)
	}
	if s.Score != 8 {
		t.Fatalf("score=%d want 8", s.Score)
	}
}

func TestStep_BoostSpeed(t *testing.T) {
	s := chain("a", 4, 2)
	Step(s, 0.1, Input{Boost: true}, testParams())
	if !near(s.HeadPos(), arena.V(0.8, 0.5, 0)) {
		t.Fatalf("head=%+v", s.HeadPos())
	}
	single := chain("b", 2)
	Step(single, 0.1, Input{Boost: true}, testParams())
	if single.Boosting || !near(single.HeadPos(), arena.V(0.5, 0.5, 0)) {
		t.Fatalf("single-segment snake must not boost")
	}
}

func TestStep_DeadSnakeIsInert(t *testing.T) {
	s := chain("a", 2)
	s.Alive = false
	Step(s, 0.1, Input{}, testParams())
	if !near(s.HeadPos(), arena.V(0, 0.5, 0)) {
		t.Fatalf("dead snake moved")
	}
}

func TestGrow_AppendsAtTail(t *testing.T) {
	s := chain("a", 8, 4)
	Grow(s, 2)
	if got := values(s); len(got) != 3 || got[2] != 2 {
		t.Fatalf("values=%v", got)
	}
	if !near(s.Tail().Pos, s.Segments[1].Pos) || s.Tail().Owner != "a" || s.Score != 2 {
		t.Fatalf("tail=%+v score=%d", s.Tail(), s.Score)
	}
}

func TestMergeTail(t *testing.T) {
	cases := []struct {
		name  string
		in    []int
		want  []int
		score int
	}{
		{"transitive", []int{16, 2, 2, 2, 2}, []int{16, 8}, 4 + 4 + 8},
		{"into head", []int{4, 4}, []int{8}, 8},
		{"full chain", []int{8, 4, 2, 2}, []int{16}, 4 + 8 + 16},
		{"no pairs", []int{8, 4, 8, 2}, []int{8, 4, 8, 2}, 0},
		{"single", []int{2}, []int{2}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := chain("a", tc.in...)
			before := s.Mass()
			MergeTail(s)
			got := values(s)
			if len(got) != len(tc.want) {
				t.Fatalf("values=%v want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("values=%v want %v", got, tc.want)
				}
			}
			if s.Mass() != before {
				t.Fatalf("mass %d -> %d", before, s.Mass())
			}
			if s.Score != tc.score {
				t.Fatalf("score=%d want %d", s.Score, tc.score)
			}
			for i := 1; i < len(got); i++ {
				if got[i] == got[i-1] {
					t.Fatalf("adjacent equal values remain: %v", got)
				}
			}
		})
	}
}

func TestMergeTail_AfterGrowNoAdjacentEqual(t *testing.T) {
	s := chain("a", 2)
	for _, v := range []int{2, 2, 4, 2, 8, 2, 2, 4} {
		if v > s.HeadValue() {
			continue
		}
		before := s.Mass()
		Grow(s, v)
		MergeTail(s)
		if s.Mass() != before+v {
			t.Fatalf("mass=%d want %d", s.Mass(), before+v)
		}
		got := values(s)
		for i := 1; i < len(got); i++ {
			if got[i] == got[i-1] {
				t.Fatalf("adjacent equal values remain: %v", got)
			}
		}
	}
}

func TestSeedTrail_FollowsBody(t *testing.T) {
	s := chain("a", 8, 4, 2)
	SeedTrail(s, 0.25)
	if len(s.Trail) != 9 {
		t.Fatalf("trail len=%d want 9", len(s.Trail))
	}
	if !near(s.Trail[4], s.Segments[1].Pos) || !near(s.Trail[8], s.Segments[2].Pos) {
		t.Fatalf("trail=%+v", s.Trail)
	}
	Step(s, 0.05, Input{}, testParams())
	if d := s.Segments[0].Pos.Dist(s.Segments[1].Pos); math.Abs(d-1) > 1e-6 {
		t.Fatalf("gap after seeded step=%v", d)
	}
}
