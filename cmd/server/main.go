package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "cubes2048.io/internal/persistence/log"
	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/sim/tuning"
	"cubes2048.io/internal/sim/world"
	"cubes2048.io/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "arena", "arena id")
		seed       = flag.Int64("seed", 2048, "arena seed")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		bots       = flag.Int("bots", -1, "server bots (default: tuning bots.count)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (sessions, kills, scores)")
		dumpEvery  = flag.Int("dump_every_ticks", 0, "write a debug dump every N ticks (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.LoadOrDefault(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	// Optional read-model index (does not affect the simulation).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	w, err := world.New(world.WorldConfig{
		ID:             *worldID,
		Seed:           *seed,
		Tuning:         tune,
		Bots:           *bots,
		DumpEveryTicks: *dumpEvery,
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	var tl world.TickLogger = tickLog
	if idx != nil {
		tl = multiTickLogger{a: tickLog, b: idx}
	}
	w.SetTickLogger(tl)

	// Dump writer.
	dumpCh := make(chan snapshot.SnapshotV1, 2)
	w.SetDumpSink(dumpCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-dumpCh:
				path := filepath.Join(worldDir, "dumps", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("dump write: %v", err)
					continue
				}
				logger.Printf("dump: tick=%d snakes=%d cubes=%d path=%s", snap.Header.Tick, len(snap.Snakes), len(snap.Cubes), path)
				if idx != nil {
					idx.RecordDump(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(w, logger)
	mux := newMux(handlerConfig{
		WorldID:         *worldID,
		EnableAdminHTTP: envBool("CUBES_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprofHTTP: envBool("CUBES_ENABLE_PPROF_HTTP", false),
	}, w, wsSrv, idx, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (tick=%dHz arena=±%.0f bots=%d)", *addr, tune.TickRateHz, tune.Arena.HalfExtent, w.Metrics().Bots)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteTick(entry)
	}
	if m.b != nil {
		errB = m.b.WriteTick(entry)
	}
	return errors.Join(errA, errB)
}
