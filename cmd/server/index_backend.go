package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cubes2048.io/internal/persistence/indexdb"
	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/sim/tuning"
	"cubes2048.io/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	Close() error
	Stats() indexdb.Stats
	UpsertTuning(tune tuning.Tuning) error
	RecordDump(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CUBES_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "arena.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported CUBES_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
