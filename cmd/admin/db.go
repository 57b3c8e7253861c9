package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type queryOpts struct {
	Tick   uint64
	Limit  int
	Player string
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "arena id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	tick := fs.Uint64("tick", 0, "leaderboard tick for scores (optional; defaults to latest)")
	limit := fs.Int("limit", 20, "result limit")
	player := fs.String("player", "", "player id filter (sessions, kills)")
	_ = fs.Parse(args)

	q := "kills"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "arena.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, queryOpts{Tick: *tick, Limit: *limit, Player: strings.TrimSpace(*player)}, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

type sessionRow struct {
	Tick     uint64 `json:"tick"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Resumed  bool   `json:"resumed,omitempty"`
}

type killRow struct {
	Tick    uint64 `json:"tick"`
	Kind    string `json:"kind"`
	Cause   string `json:"cause,omitempty"`
	Victim  string `json:"victim"`
	Killer  string `json:"killer,omitempty"`
	Value   int    `json:"value"`
	Dropped int    `json:"dropped,omitempty"`
}

type scoreRow struct {
	Tick      uint64 `json:"tick"`
	Rank      int    `json:"rank"`
	PlayerID  string `json:"player_id"`
	Name      string `json:"name,omitempty"`
	Score     int    `json:"score"`
	HeadValue int    `json:"head_value"`
	Alive     bool   `json:"alive"`
}

type dumpRow struct {
	Tick   uint64 `json:"tick"`
	Path   string `json:"path"`
	Snakes int    `json:"snakes"`
	Cubes  int    `json:"cubes"`
	Mass   int    `json:"mass"`
}

type killerRow struct {
	Killer string `json:"killer"`
	Kills  int    `json:"kills"`
	Best   int    `json:"best_victim_head"`
}

// runQuery runs one named read query against the index and emits each row.
func runQuery(db *sql.DB, q string, o queryOpts, emit func(any)) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	switch q {
	case "sessions":
		rows, err := db.Query(`SELECT tick,player_id,name,resumed FROM sessions WHERE (?='' OR player_id=?) ORDER BY tick DESC, player_id LIMIT ?`, o.Player, o.Player, o.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r sessionRow
			var resumed int
			if err := rows.Scan(&r.Tick, &r.PlayerID, &r.Name, &resumed); err != nil {
				return err
			}
			r.Resumed = resumed != 0
			emit(r)
		}
		return rows.Err()

	case "kills":
		rows, err := db.Query(`SELECT tick,kind,cause,victim,killer,value,dropped FROM kills WHERE kind='death' AND (?='' OR victim=? OR killer=?) ORDER BY tick DESC, seq LIMIT ?`, o.Player, o.Player, o.Player, o.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r killRow
			if err := rows.Scan(&r.Tick, &r.Kind, &r.Cause, &r.Victim, &r.Killer, &r.Value, &r.Dropped); err != nil {
				return err
			}
			emit(r)
		}
		return rows.Err()

	case "killers":
		rows, err := db.Query(`SELECT killer,COUNT(*),MAX(value) FROM kills WHERE kind='death' AND killer<>'' GROUP BY killer ORDER BY COUNT(*) DESC, killer LIMIT ?`, o.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r killerRow
			if err := rows.Scan(&r.Killer, &r.Kills, &r.Best); err != nil {
				return err
			}
			emit(r)
		}
		return rows.Err()

	case "scores":
		tick := o.Tick
		if tick == 0 {
			lt, err := latestScoreTick(db)
			if err != nil {
				return err
			}
			if lt == 0 {
				return fmt.Errorf("no leaderboard recorded")
			}
			tick = lt
		}
		rows, err := db.Query(`SELECT tick,rank,player_id,name,score,head_value,alive FROM scores WHERE tick=? ORDER BY rank LIMIT ?`, tick, o.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r scoreRow
			var alive int
			if err := rows.Scan(&r.Tick, &r.Rank, &r.PlayerID, &r.Name, &r.Score, &r.HeadValue, &alive); err != nil {
				return err
			}
			r.Alive = alive != 0
			emit(r)
		}
		return rows.Err()

	case "dumps":
		rows, err := db.Query(`SELECT tick,path,snakes,cubes,mass FROM dumps ORDER BY tick DESC LIMIT ?`, o.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r dumpRow
			if err := rows.Scan(&r.Tick, &r.Path, &r.Snakes, &r.Cubes, &r.Mass); err != nil {
				return err
			}
			emit(r)
		}
		return rows.Err()

	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta WHERE key<>'tuning_json' ORDER BY key`)
		if err != nil {
			return err
		}
		defer rows.Close()
		out := map[string]string{}
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out[k] = v
		}
		if err := rows.Err(); err != nil {
			return err
		}
		emit(out)
		return nil
	}
	return fmt.Errorf("unknown query %q (sessions|kills|killers|scores|dumps|meta)", q)
}

func latestScoreTick(db *sql.DB) (uint64, error) {
	if db == nil {
		return 0, fmt.Errorf("nil db")
	}
	var t int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(tick),0) FROM scores`).Scan(&t); err != nil {
		return 0, err
	}
	if t < 0 {
		return 0, nil
	}
	return uint64(t), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
