package main

import (
	"errors"
	"testing"

	"cubes2048.io/internal/sim/world"
)

type recordingLogger struct {
	ticks []uint64
	err   error
}

func (r *recordingLogger) WriteTick(e world.TickLogEntry) error {
	r.ticks = append(r.ticks, e.Tick)
	return r.err
}

func TestMultiTickLogger_ReportsEitherError(t *testing.T) {
	errDisk := errors.New("disk full")
	errIdx := errors.New("index locked")
	a := &recordingLogger{err: errDisk}
	b := &recordingLogger{}
	m := multiTickLogger{a: a, b: b}

	err := m.WriteTick(world.TickLogEntry{Tick: 7})
	if !errors.Is(err, errDisk) {
		t.Fatalf("err=%v want %v", err, errDisk)
	}
	if len(b.ticks) != 1 || b.ticks[0] != 7 {
		t.Fatalf("second logger skipped after first failed: %v", b.ticks)
	}

	a.err = nil
	b.err = errIdx
	if err := m.WriteTick(world.TickLogEntry{Tick: 8}); !errors.Is(err, errIdx) {
		t.Fatalf("err=%v want %v", err, errIdx)
	}
	b.err = nil
	if err := m.WriteTick(world.TickLogEntry{Tick: 9}); err != nil {
		t.Fatalf("err=%v", err)
	}
}
