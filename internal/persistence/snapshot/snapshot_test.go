package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	snap := SnapshotV1{
		Header:     Header{Version: 1, WorldID: "arena", Tick: 120},
		Seed:       7,
		TickRate:   20,
		HalfExtent: 24,
		NextCubeID: 42,
		Snakes: []SnakeV1{
			{
				ID: "p1", Name: "viper", Alive: true, Remote: true, Score: 14, Rev: 2,
				Heading:  [3]float64{1, 0, 0},
				Segments: []SegmentV1{{Pos: [3]float64{0, 0.5, 0}, Value: 8}, {Pos: [3]float64{-1, 0.5, 0}, Value: 4}},
			},
			{ID: "bot-1", Bot: true},
		},
		Cubes: []CubeV1{{ID: 41, Pos: [3]float64{3, 0.5, 3}, Value: 2}},
	}
	path := filepath.Join(t.TempDir(), "dumps", "120.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != snap.Header {
		t.Fatalf("header=%+v want %+v", h, snap.Header)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header != snap.Header || got.NextCubeID != 42 || len(got.Snakes) != 2 || len(got.Cubes) != 1 {
		t.Fatalf("got=%+v", got)
	}
	if got.Snakes[0].Segments[1].Value != 4 || got.Snakes[0].Heading != snap.Snakes[0].Heading {
		t.Fatalf("snake mismatch: %+v", got.Snakes[0])
	}
	if got.Mass() != 14 {
		t.Fatalf("mass=%d want 14", got.Mass())
	}
}
