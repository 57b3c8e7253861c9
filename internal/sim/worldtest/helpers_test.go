package worldtest

import (
	"encoding/json"
	"testing"

	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/tuning"
	"cubes2048.io/internal/sim/world"
)

func testConfig(seed int64, bots int) world.WorldConfig {
	tune := tuning.Defaults()
	tune.Economy.MinCubes = 12
	return world.WorldConfig{ID: "test", Seed: seed, Tuning: tune, Bots: bots}
}

// playerState lays segments out behind pos along -x.
func playerState(pos arena.Vec3, seq, baseRev uint64, values ...int) protocol.PlayerStateMsg {
	m := protocol.PlayerStateMsg{
		Position:  pos.Array(),
		Direction: protocol.Vec{1, 0, 0},
		HeadValue: values[0],
		Seq:       seq,
		BaseRev:   baseRev,
	}
	for i, v := range values {
		m.Segments = append(m.Segments, protocol.NewSegmentWire(pos.Sub(arena.V(float64(i), 0, 0)).Array(), v))
		m.Score += v
	}
	return m
}

func digest(t *testing.T, h *Harness) string {
	t.Helper()
	b, err := json.Marshal(h.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return string(b)
}
