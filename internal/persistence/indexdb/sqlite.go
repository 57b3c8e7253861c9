package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/sim/tuning"
	"cubes2048.io/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the tick log: sessions, kills, scores and dumps.
// Writes are queued and batched on one goroutine; the JSONL log stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick atomic.Uint64
	dropDump atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqDump
)

type req struct {
	kind reqKind

	tick world.TickLogEntry
	dump dumpRow
}

type dumpRow struct {
	Tick   uint64
	Path   string
	Snakes int
	Cubes  int
	Mass   int
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
	DropDumpTotal uint64 `json:"drop_dump_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			players INTEGER NOT NULL,
			cubes INTEGER NOT NULL,
			inbound INTEGER NOT NULL,
			events INTEGER NOT NULL,
			collections INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			tick INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			resumed INTEGER NOT NULL,
			PRIMARY KEY (tick, player_id)
		);`,
		`CREATE TABLE IF NOT EXISTS leaves (
			tick INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			reaped INTEGER NOT NULL,
			PRIMARY KEY (tick, player_id, reaped)
		);`,
		`CREATE TABLE IF NOT EXISTS kills (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			cause TEXT NOT NULL,
			victim TEXT NOT NULL,
			killer TEXT NOT NULL,
			value INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_kills_killer ON kills(killer, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_kills_victim ON kills(victim, tick);`,
		`CREATE TABLE IF NOT EXISTS scores (
			tick INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			score INTEGER NOT NULL,
			head_value INTEGER NOT NULL,
			alive INTEGER NOT NULL,
			PRIMARY KEY (tick, rank)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_player ON scores(player_id, tick);`,
		`CREATE TABLE IF NOT EXISTS dumps (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			snakes INTEGER NOT NULL,
			cubes INTEGER NOT NULL,
			mass INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTick.Load(),
		DropDumpTotal: s.dropDump.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordDump(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := dumpRow{
		Tick:   snap.Header.Tick,
		Path:   path,
		Snakes: len(snap.Snakes),
		Cubes:  len(snap.Cubes),
		Mass:   snap.Mass(),
	}
	select {
	case s.ch <- req{kind: reqDump, dump: r}:
	default:
		s.dropDump.Add(1)
	}
}

// UpsertTuning stores the tuning values actually applied, with their digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows := [][2]string{
		{"schema_version", "1"},
		{"tuning_json", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"updated_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	for _, r := range rows {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,players,cubes,inbound,events,collections) VALUES(?,?,?,?,?,?)`)
	insertSession, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(tick,player_id,name,resumed) VALUES(?,?,?,?)`)
	insertLeave, _ := s.db.Prepare(`INSERT OR REPLACE INTO leaves(tick,player_id,reaped) VALUES(?,?,?)`)
	insertKill, _ := s.db.Prepare(`INSERT OR REPLACE INTO kills(tick,seq,kind,cause,victim,killer,value,dropped) VALUES(?,?,?,?,?,?,?,?)`)
	insertScore, _ := s.db.Prepare(`INSERT OR REPLACE INTO scores(tick,rank,player_id,name,score,head_value,alive) VALUES(?,?,?,?,?,?,?)`)
	insertDump, _ := s.db.Prepare(`INSERT OR REPLACE INTO dumps(tick,path,snakes,cubes,mass) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertSession, insertLeave, insertKill, insertScore, insertDump} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			tick := int64(e.Tick)
			if !exec(insertTick, tick, e.Players, e.Cubes, e.Inbound, len(e.Events), len(e.Collections)) {
				continue
			}
			for _, j := range e.Joins {
				if !exec(insertSession, tick, j.PlayerID, j.Name, boolInt(j.Resumed)) {
					break
				}
			}
			for _, id := range e.Leaves {
				if !exec(insertLeave, tick, id, 0) {
					break
				}
			}
			for _, id := range e.Reaped {
				if !exec(insertLeave, tick, id, 1) {
					break
				}
			}
			for i, ev := range e.Events {
				if !exec(insertKill, tick, i, string(ev.Kind), string(ev.Cause), ev.Victim, ev.Killer, ev.Value, ev.Dropped) {
					break
				}
			}
			for i, lb := range e.Leaderboard {
				if !exec(insertScore, tick, i+1, lb.ID, lb.Name, lb.Score, lb.Head, boolInt(lb.Alive)) {
					break
				}
			}

		case reqDump:
			d := r.dump
			exec(insertDump, int64(d.Tick), d.Path, d.Snakes, d.Cubes, d.Mass)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
