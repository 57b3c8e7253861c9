package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cubes2048.io/internal/client"
	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/bot"
	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/snake"
	"cubes2048.io/internal/sim/tuning"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "bot", "player name")
		id         = flag.String("id", "", "requested player id (optional)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		frameHz    = flag.Int("fps", 60, "local simulation rate")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "spawn seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.LoadOrDefault(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	conn := client.NewConn(client.ConnConfig{
		URL:            *url,
		ID:             *id,
		Name:           *name,
		ReconnectDelay: tune.Sync.ReconnectDelay(),
	}, logger)

	brain := bot.New(bot.ConfigFromTuning(tune))
	var lastState bot.State
	input := client.InputFunc(func(self *arena.Snake, a *arena.Arena, dt float64) (in snake.Input) {
		in.Dir, in.Boost = brain.Decide(self, a, dt)
		if brain.State != lastState {
			logger.Printf("state: %s -> %s (head %d)", lastState, brain.State, self.HeadValue())
			lastState = brain.State
		}
		return in
	})

	hooks := client.Hooks{
		OnWelcome: func(w protocol.WelcomeMsg) {
			logger.Printf("WELCOME id=%s tick_rate=%d arena=±%.0f", w.ID, w.TickRateHz, w.ArenaHalfExtent)
		},
		OnEvent: func(ev combat.Event) {
			if ev.Killer != "" {
				logger.Printf("kill feed: %s -> %s (%s)", ev.Killer, ev.Victim, ev.Cause)
				return
			}
			logger.Printf("kill feed: %s died (%s, head %d)", ev.Victim, ev.Cause, ev.Value)
		},
		OnRestart: func(own *arena.Snake) {
			logger.Printf("restart at %.1f,%.1f", own.HeadPos().X, own.HeadPos().Z)
		},
	}
	sess := client.NewSession(client.Config{Tuning: tune, FrameHz: *frameHz, Seed: *seed}, conn, input, hooks, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := conn.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("conn stopped: %v", err)
		}
	}()
	if err := sess.Run(ctx); err != nil && err != context.Canceled {
		logger.Printf("session stopped: %v", err)
	}
	logger.Printf("bye: dropped=%d malformed=%d", conn.Dropped(), conn.Malformed())
}
