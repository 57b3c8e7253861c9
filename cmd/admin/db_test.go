package main

import (
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"

	"cubes2048.io/internal/persistence/indexdb"
	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/world"
)

func writeIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index", "arena.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	entries := []world.TickLogEntry{
		{Tick: 1, Joins: []world.RecordedJoin{{PlayerID: "p1", Name: "viper"}, {PlayerID: "p2", Name: "asp"}}},
		{Tick: 5, Events: []combat.Event{
			{Kind: combat.KindTransfer, Victim: "p2", Killer: "p1", Value: 2},
			{Kind: combat.KindDeath, Cause: combat.CauseHead, Victim: "p2", Killer: "p1", Value: 4, Dropped: 3},
		}},
		{Tick: 9, Events: []combat.Event{
			{Kind: combat.KindDeath, Cause: combat.CauseBoundary, Victim: "p1", Value: 16, Dropped: 2},
		}, Leaderboard: []arena.LeaderboardEntry{
			{ID: "p1", Name: "viper", Score: 30, Head: 16},
			{ID: "p2", Name: "asp", Score: 0, Head: 2, Alive: true},
		}},
	}
	for _, e := range entries {
		if err := idx.WriteTick(e); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	idx.RecordDump("/tmp/9.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Tick: 9}})
	if err := idx.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}
	return path
}

func collect[T any](t *testing.T, db *sql.DB, q string, o queryOpts) []T {
	t.Helper()
	var out []T
	err := runQuery(db, q, o, func(v any) {
		r, ok := v.(T)
		if !ok {
			t.Fatalf("%s emitted %T", q, v)
		}
		out = append(out, r)
	})
	if err != nil {
		t.Fatalf("%s: %v", q, err)
	}
	return out
}

func TestRunQuery_IndexTables(t *testing.T) {
	db, err := sql.Open("sqlite", writeIndex(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	kills := collect[killRow](t, db, "kills", queryOpts{})
	if len(kills) != 2 || kills[0].Victim != "p1" || kills[0].Cause != "boundary" || kills[1].Killer != "p1" {
		t.Fatalf("kills=%+v", kills)
	}
	if got := collect[killRow](t, db, "kills", queryOpts{Player: "p2"}); len(got) != 1 || got[0].Tick != 5 {
		t.Fatalf("filtered kills=%+v", got)
	}

	killers := collect[killerRow](t, db, "killers", queryOpts{})
	if len(killers) != 1 || killers[0].Killer != "p1" || killers[0].Kills != 1 || killers[0].Best != 4 {
		t.Fatalf("killers=%+v", killers)
	}

	scores := collect[scoreRow](t, db, "scores", queryOpts{})
	if len(scores) != 2 || scores[0].Rank != 1 || scores[0].PlayerID != "p1" || scores[0].Tick != 9 || !scores[1].Alive {
		t.Fatalf("scores=%+v", scores)
	}

	sessions := collect[sessionRow](t, db, "sessions", queryOpts{Player: "p1"})
	if len(sessions) != 1 || sessions[0].Name != "viper" {
		t.Fatalf("sessions=%+v", sessions)
	}

	dumps := collect[dumpRow](t, db, "dumps", queryOpts{})
	if len(dumps) != 1 || dumps[0].Tick != 9 {
		t.Fatalf("dumps=%+v", dumps)
	}

	if err := runQuery(db, "agents", queryOpts{}, func(any) {}); err == nil {
		t.Fatalf("unknown query accepted")
	}
}

func TestListDumps_OrderedByTick(t *testing.T) {
	dir := t.TempDir()
	for _, tick := range []uint64{120, 20, 1000} {
		snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: 1, WorldID: "arena", Tick: tick}}
		if err := snapshot.WriteSnapshot(filepath.Join(dir, fmtTick(tick)), snap); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	paths, err := listDumps(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 3 || filepath.Base(paths[0]) != "20.snap.zst" || filepath.Base(paths[2]) != "1000.snap.zst" {
		t.Fatalf("paths=%v", paths)
	}
	h, err := snapshot.ReadHeader(paths[1])
	if err != nil || h.Tick != 120 {
		t.Fatalf("header=%+v err=%v", h, err)
	}
}

func fmtTick(tick uint64) string {
	return strconv.FormatUint(tick, 10) + ".snap.zst"
}
