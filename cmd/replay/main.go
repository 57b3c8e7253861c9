package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	persistlog "cubes2048.io/internal/persistence/log"
	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/world"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "debug dump to inspect (.snap.zst, optional)")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		fromTick  = flag.Uint64("from_tick", 0, "first tick to read (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "last tick to read (inclusive, optional)")
		feed      = flag.Bool("feed", true, "print the kill feed")
	)
	flag.Parse()

	if *snapPath == "" && *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot or -events")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printSnapshot(os.Stdout, snap)
	}

	if *eventsDir == "" {
		return
	}
	files, err := persistlog.Files(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	var out io.Writer
	if *feed {
		out = os.Stdout
	}
	sum, err := summarize(files, *fromTick, *toTick, out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	sum.print(os.Stdout)
}

func printSnapshot(w io.Writer, snap snapshot.SnapshotV1) {
	fmt.Fprintf(w, "dump v%d world=%s tick=%d seed=%d tick_rate=%d half_extent=%.1f snakes=%d cubes=%d mass=%d next_cube=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.TickRate, snap.HalfExtent,
		len(snap.Snakes), len(snap.Cubes), snap.Mass(), snap.NextCubeID)
	for _, s := range snap.Snakes {
		kind := "player"
		if s.Bot {
			kind = "bot"
		}
		values := make([]int, len(s.Segments))
		for i, seg := range s.Segments {
			values[i] = seg.Value
		}
		fmt.Fprintf(w, "  %-8s %-36s alive=%-5v score=%-6d rev=%-4d ack=%-6d %v\n", kind, s.ID, s.Alive, s.Score, s.Rev, s.AckSeq, values)
	}
}

var errStop = errors.New("stop")

type summary struct {
	Ticks       int
	FirstTick   uint64
	LastTick    uint64
	Joins       int
	Resumes     int
	Leaves      int
	Reaped      int
	Transfers   int
	Collections int

	DeathsByCause map[combat.Cause]int
	Kills         map[string]int
	Leaderboard   []arena.LeaderboardEntry
	LeaderTick    uint64
}

// summarize folds every tick entry in [from, to] of files into a summary, writing
// one kill-feed line per death to feed when it is non-nil.
func summarize(files []string, from, to uint64, feed io.Writer) (summary, error) {
	sum := summary{DeathsByCause: map[combat.Cause]int{}, Kills: map[string]int{}}
	for _, path := range files {
		err := persistlog.Scan(path, func(e world.TickLogEntry) error {
			if e.Tick < from {
				return nil
			}
			if to != 0 && e.Tick > to {
				return errStop
			}
			sum.add(e, feed)
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (s *summary) add(e world.TickLogEntry, feed io.Writer) {
	if s.Ticks == 0 {
		s.FirstTick = e.Tick
	}
	s.Ticks++
	s.LastTick = e.Tick
	for _, j := range e.Joins {
		if j.Resumed {
			s.Resumes++
		} else {
			s.Joins++
		}
	}
	s.Leaves += len(e.Leaves)
	s.Reaped += len(e.Reaped)
	s.Collections += len(e.Collections)
	for _, ev := range e.Events {
		switch ev.Kind {
		case combat.KindTransfer:
			s.Transfers++
		case combat.KindDeath:
			s.DeathsByCause[ev.Cause]++
			if ev.Killer != "" {
				s.Kills[ev.Killer]++
			}
			if feed == nil {
				continue
			}
			if ev.Killer != "" {
				fmt.Fprintf(feed, "[%d] %s ate %s (%s, head %d)\n", e.Tick, ev.Killer, ev.Victim, ev.Cause, ev.Value)
			} else {
				fmt.Fprintf(feed, "[%d] %s died (%s, head %d)\n", e.Tick, ev.Victim, ev.Cause, ev.Value)
			}
		}
	}
	if len(e.Leaderboard) > 0 {
		s.Leaderboard = e.Leaderboard
		s.LeaderTick = e.Tick
	}
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "ticks=%d range=[%d,%d] joins=%d resumes=%d leaves=%d reaped=%d transfers=%d collections=%d\n",
		s.Ticks, s.FirstTick, s.LastTick, s.Joins, s.Resumes, s.Leaves, s.Reaped, s.Transfers, s.Collections)

	causes := make([]string, 0, len(s.DeathsByCause))
	for c := range s.DeathsByCause {
		causes = append(causes, string(c))
	}
	sort.Strings(causes)
	for _, c := range causes {
		fmt.Fprintf(w, "deaths cause=%s count=%d\n", c, s.DeathsByCause[combat.Cause(c)])
	}

	killers := make([]string, 0, len(s.Kills))
	for k := range s.Kills {
		killers = append(killers, k)
	}
	sort.Slice(killers, func(i, j int) bool {
		if s.Kills[killers[i]] != s.Kills[killers[j]] {
			return s.Kills[killers[i]] > s.Kills[killers[j]]
		}
		return killers[i] < killers[j]
	})
	for _, k := range killers {
		fmt.Fprintf(w, "kills %s=%d\n", k, s.Kills[k])
	}

	if len(s.Leaderboard) > 0 {
		fmt.Fprintf(w, "leaderboard @%d\n", s.LeaderTick)
		for i, e := range s.Leaderboard {
			fmt.Fprintf(w, "  %2d. %-36s score=%-6d head=%-5d alive=%v\n", i+1, e.ID, e.Score, e.Head, e.Alive)
		}
	}
}
