package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/tuning"
	"cubes2048.io/internal/sim/world"
)

func TestSQLiteIndex_WritesTickTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{
		Tick:    10,
		Players: 2,
		Cubes:   30,
		Joins:   []world.RecordedJoin{{PlayerID: "p1", Name: "viper"}, {PlayerID: "p2", Name: "cobra", Resumed: true}},
		Leaves:  []string{"p2"},
		Reaped:  []string{"p3"},
		Events: []combat.Event{
			{Kind: combat.KindTransfer, Victim: "p2", Killer: "p1", Value: 4},
			{Kind: combat.KindDeath, Cause: combat.CauseHead, Victim: "p2", Killer: "p1", Value: 8, Dropped: 3},
		},
		Leaderboard: []arena.LeaderboardEntry{{ID: "p1", Name: "viper", Score: 40, Head: 16, Alive: true}},
	})
	idx.RecordDump("/dumps/10.snap.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Tick: 10},
		Snakes: []snapshot.SnakeV1{{ID: "p1", Segments: []snapshot.SegmentV1{{Value: 16}}}},
		Cubes:  []snapshot.CubeV1{{ID: 1, Value: 2}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	count := func(q string) int {
		t.Helper()
		var n int
		if err := db.QueryRow(q).Scan(&n); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
		return n
	}
	if n := count(`SELECT COUNT(*) FROM sessions`); n != 2 {
		t.Fatalf("sessions=%d want 2", n)
	}
	if n := count(`SELECT COUNT(*) FROM sessions WHERE resumed=1`); n != 1 {
		t.Fatalf("resumed sessions=%d want 1", n)
	}
	if n := count(`SELECT COUNT(*) FROM leaves WHERE reaped=1`); n != 1 {
		t.Fatalf("reaped=%d want 1", n)
	}

	var killer, cause string
	var value, dropped int
	if err := db.QueryRow(`SELECT killer,cause,value,dropped FROM kills WHERE kind='death'`).Scan(&killer, &cause, &value, &dropped); err != nil {
		t.Fatalf("kills: %v", err)
	}
	if killer != "p1" || cause != "head" || value != 8 || dropped != 3 {
		t.Fatalf("kill row: killer=%q cause=%q value=%d dropped=%d", killer, cause, value, dropped)
	}

	var score, rank int
	if err := db.QueryRow(`SELECT rank,score FROM scores WHERE player_id='p1'`).Scan(&rank, &score); err != nil {
		t.Fatalf("scores: %v", err)
	}
	if rank != 1 || score != 40 {
		t.Fatalf("score row: rank=%d score=%d", rank, score)
	}

	var mass int
	if err := db.QueryRow(`SELECT mass FROM dumps WHERE tick=10`).Scan(&mass); err != nil {
		t.Fatalf("dumps: %v", err)
	}
	if mass != 18 {
		t.Fatalf("mass=%d want 18", mass)
	}

	var digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='tuning_digest'`).Scan(&digest); err != nil || len(digest) != 64 {
		t.Fatalf("tuning digest=%q err=%v", digest, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	s.RecordDump("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropDumpTotal != 1 {
		t.Fatalf("drops tick=%d dump=%d want 1,1", st.DropTickTotal, st.DropDumpTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
