package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/world"
	"cubes2048.io/internal/transport/ws"
)

// arenaState mirrors the server's /admin/v1/state response.
type arenaState struct {
	WorldID     string                   `json:"world_id"`
	Tick        uint64                   `json:"tick"`
	Leaderboard []arena.LeaderboardEntry `json:"leaderboard"`
	Metrics     world.WorldMetrics       `json:"metrics"`
	Transport   ws.Stats                 `json:"transport"`
}

type dumpResult struct {
	OK    bool   `json:"ok"`
	Tick  uint64 `json:"tick"`
	Error string `json:"error,omitempty"`
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	asJSON := fs.Bool("json", false, "print the raw response")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: 5 * time.Second}
	st, err := fetchState(cl, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	if *asJSON {
		printJSON(st)
		return
	}
	printState(os.Stdout, st)
}

func fetchState(cl *http.Client, base string) (arenaState, error) {
	var st arenaState
	resp, err := cl.Get(adminURL(base, "/admin/v1/state"))
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return st, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

func printState(w io.Writer, st arenaState) {
	m := st.Metrics
	fmt.Fprintf(w, "arena %s tick %d  players=%d bots=%d conns=%d alive=%d cubes=%d observers=%d step=%.2fms\n",
		st.WorldID, st.Tick, m.Players, m.Bots, st.Transport.Connections, m.AliveSnakes, m.Cubes, m.Observers, m.StepMS)
	fmt.Fprintf(w, "deaths=%d transfers=%d collections=%d reaped=%d stale=%d desync=%d malformed=%d rate_limited=%d\n\n",
		m.DeathsTotal, m.TransfersTotal, m.CollectionsTotal, m.ReapedTotal, m.StaleStateTotal, m.DesyncTotal,
		st.Transport.Malformed, st.Transport.RateLimited)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tSCORE\tHEAD\tALIVE")
	for i, e := range st.Leaderboard {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%v\n", i+1, e.ID, e.Name, e.Score, e.Head, e.Alive)
	}
	_ = tw.Flush()
}

func dumpCmd(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: 10 * time.Second}
	tick, err := requestDump(cl, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dump:", err)
		os.Exit(1)
	}
	fmt.Printf("dump queued at tick %d\n", tick)
}

func requestDump(cl *http.Client, base string) (uint64, error) {
	resp, err := cl.Post(adminURL(base, "/admin/v1/dump"), "application/json", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var r dumpResult
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("status %d: decode: %w", resp.StatusCode, err)
	}
	if !r.OK {
		if r.Error == "" {
			r.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return r.Tick, errors.New(r.Error)
	}
	return r.Tick, nil
}
