package arena

// Segment is one valued cube of a snake. Pointer identity is segment identity;
// Owner is the owning snake's id, never a pointer back to it.
type Segment struct {
	Pos   Vec3
	Value int
	Owner string
}

type Snake struct {
	ID   string
	Name string
	Tag  string

	// Segments[0] is the head.
	Segments []*Segment
	Heading  Vec3
	Boosting bool
	Alive    bool
	Score    int

	// Trail holds past head positions, newest first.
	Trail []Vec3
	// BoostClock accumulates boosted seconds toward the next shed segment.
	BoostClock float64

	// Remote snakes are driven by a client; the server only dead-reckons them.
	Remote bool
	// Rev counts server-side mutations (combat transfers, deaths) of this snake.
	Rev   uint64
	Pilot Pilot
}

// NewSnake returns an alive single-segment snake with head value 2.
func NewSnake(id string, pos, heading Vec3) *Snake {
	s := &Snake{
		ID:      id,
		Heading: heading.Normalize(),
		Alive:   true,
	}
	if s.Heading.IsZero() {
		s.Heading = V(1, 0, 0)
	}
	s.Segments = []*Segment{{Pos: pos, Value: 2, Owner: id}}
	return s
}

func (s *Snake) Head() *Segment {
	if len(s.Segments) == 0 {
		return nil
	}
	return s.Segments[0]
}

func (s *Snake) HeadValue() int {
	if h := s.Head(); h != nil {
		return h.Value
	}
	return 0
}

func (s *Snake) HeadPos() Vec3 {
	if h := s.Head(); h != nil {
		return h.Pos
	}
	return Vec3{}
}

func (s *Snake) Tail() *Segment {
	if len(s.Segments) == 0 {
		return nil
	}
	return s.Segments[len(s.Segments)-1]
}

// Mass is the sum of all segment values.
func (s *Snake) Mass() int {
	m := 0
	for _, seg := range s.Segments {
		m += seg.Value
	}
	return m
}

// IndexOf returns the index of seg in s, or -1.
func (s *Snake) IndexOf(seg *Segment) int {
	for i, x := range s.Segments {
		if x == seg {
			return i
		}
	}
	return -1
}

// Remove excises seg from s. The head cannot be removed this way.
func (s *Snake) Remove(seg *Segment) bool {
	i := s.IndexOf(seg)
	if i <= 0 {
		return false
	}
	s.Segments = append(s.Segments[:i], s.Segments[i+1:]...)
	return true
}

// Resize grows or shrinks s to n segments one at a time. Segments that remain keep
// their identity; new ones start at the current tail position with value 0.
func (s *Snake) Resize(n int) {
	for len(s.Segments) > n {
		s.Segments[len(s.Segments)-1] = nil
		s.Segments = s.Segments[:len(s.Segments)-1]
	}
	for len(s.Segments) < n {
		at := Vec3{}
		if t := s.Tail(); t != nil {
			at = t.Pos
		}
		s.Segments = append(s.Segments, &Segment{Pos: at, Owner: s.ID})
	}
}

type Cube struct {
	ID    int64
	Pos   Vec3
	Value int
}
