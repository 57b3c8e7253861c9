package worldtest

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/sim/arena"
)

func TestSnapshot_ExportWriteReadRoundTrip(t *testing.T) {
	h := NewHarness(t, testConfig(7, 2), "p1")
	h.Send(playerState(arena.V(-4, 0.5, 2), 1, 0, 32, 2))
	h.StepFor(5)

	snap := h.Snapshot()
	if snap.Header.Tick != h.W.CurrentTick()-1 || snap.Header.WorldID != "test" {
		t.Fatalf("header=%+v tick=%d", snap.Header, h.W.CurrentTick())
	}
	var own *snapshot.SnakeV1
	for i := range snap.Snakes {
		if snap.Snakes[i].ID == "p1" {
			own = &snap.Snakes[i]
		}
	}
	if own == nil || !own.Remote || !own.Connected || own.AckSeq != 1 || len(own.Segments) != 2 {
		t.Fatalf("own snake=%+v", own)
	}

	path := filepath.Join(t.TempDir(), "dump.snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want, _ := json.Marshal(snap)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Fatalf("round trip mismatch:\n%s\n%s", want, have)
	}
	if got.Mass() != snap.Mass() {
		t.Fatalf("mass %d vs %d", got.Mass(), snap.Mass())
	}
}

func TestHarness_OwnStateEchoedWithAck(t *testing.T) {
	h := NewHarness(t, testConfig(5, 0), "p1")
	other := h.Join("p2", "bob")

	u := h.Send(playerState(arena.V(0, 0.5, 0), 4, 0, 8, 2))
	ps, ok := u.GameState.Players["p1"]
	if !ok || !ps.Alive || ps.AckSeq != 4 || ps.HeadValue != 8 || len(ps.Segments) != 2 {
		t.Fatalf("p1=%+v", ps)
	}
	if _, ok := h.LastStateFor(other).GameState.Players["p1"]; !ok {
		t.Fatalf("p2 does not see p1")
	}
	if bob := u.GameState.Players[other]; bob.Alive || bob.Name != "bob" {
		t.Fatalf("p2 must be a dead placeholder until its first state: %+v", bob)
	}
}
