package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cubes2048.io/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "dump":
			dumpCmd(os.Args[2:])
			return
		case "dumps":
			dumpsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "arena id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// dumpsCmd lists the debug dumps on disk with their headers.
func dumpsCmd(args []string) {
	fs := flag.NewFlagSet("dumps", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "arena", "arena id")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "worlds", *worldID, "dumps")
	paths, err := listDumps(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list dumps:", err)
		os.Exit(1)
	}
	for _, p := range paths {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(p), err)
			continue
		}
		printJSON(struct {
			Path string `json:"path"`
			snapshot.Header
		}{Path: p, Header: h})
	}
}

// listDumps returns the <tick>.snap.zst files in dir ordered by tick.
func listDumps(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type dump struct {
		tick uint64
		path string
	}
	var ds []dump
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		ds = append(ds, dump{tick, filepath.Join(dir, e.Name())})
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].tick < ds[j].tick })
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.path
	}
	return out, nil
}
