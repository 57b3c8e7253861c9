package log

import (
	"path/filepath"
	"testing"

	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/world"
)

func TestTickLogger_WriteThenScan(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for tick := uint64(0); tick < 3; tick++ {
		e := world.TickLogEntry{Tick: tick, Players: 2, Cubes: 30}
		if tick == 1 {
			e.Events = []combat.Event{{Kind: combat.KindDeath, Cause: combat.CauseHead, Victim: "b", Killer: "a", Value: 4, Dropped: 2}}
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(filepath.Join(dir, "events"))
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []world.TickLogEntry
	for _, f := range files {
		if err := Scan(f, func(e world.TickLogEntry) error {
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}
	if len(got) != 3 || got[2].Tick != 2 {
		t.Fatalf("entries=%+v", got)
	}
	if len(got[1].Events) != 1 || got[1].Events[0].Killer != "a" || got[1].Events[0].Cause != combat.CauseHead {
		t.Fatalf("event lost: %+v", got[1])
	}
}

func TestTickLogger_SegmentsByTick(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	l.segmentTicks = 2
	// A restart mid-segment opens the segment it lands in.
	for _, tick := range []uint64{1, 2, 3, 4} {
		if err := l.WriteTick(world.TickLogEntry{Tick: tick}); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	eventsDir := filepath.Join(dir, "events")
	files, err := Files(eventsDir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	want := []string{SegmentPath(eventsDir, 1), SegmentPath(eventsDir, 2), SegmentPath(eventsDir, 4)}
	if len(files) != len(want) {
		t.Fatalf("files=%v want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files=%v want %v", files, want)
		}
	}
	var ticks []uint64
	for _, f := range files {
		if err := Scan(f, func(e world.TickLogEntry) error {
			ticks = append(ticks, e.Tick)
			return nil
		}); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}
	if len(ticks) != 4 || ticks[0] != 1 || ticks[3] != 4 {
		t.Fatalf("ticks=%v", ticks)
	}
}
