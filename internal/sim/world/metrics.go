package world

import "cubes2048.io/internal/sim/arena"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players     int `json:"players"`
	Bots        int `json:"bots"`
	Clients     int `json:"clients"`
	Observers   int `json:"observers"`
	AliveSnakes int `json:"alive_snakes"`
	Cubes       int `json:"cubes"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	InboundTotal     uint64 `json:"inbound_total"`
	StaleStateTotal  uint64 `json:"stale_state_total"`
	DesyncTotal      uint64 `json:"desync_total"`
	DeathsTotal      uint64 `json:"deaths_total"`
	TransfersTotal   uint64 `json:"transfers_total"`
	CollectionsTotal uint64 `json:"collections_total"`
	ReapedTotal      uint64 `json:"reaped_total"`

	ObserverDropsTotal uint64 `json:"observer_drops_total"`

	Leaderboard []arena.LeaderboardEntry `json:"leaderboard"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

type counters struct {
	inbound     uint64
	stale       uint64
	desync      uint64
	deaths      uint64
	transfers   uint64
	collections uint64
	reaped      uint64

	observerDrops uint64
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(nextTick uint64, stepMS float64) {
	m := WorldMetrics{
		Tick:      nextTick,
		Players:   len(w.players),
		Clients:   len(w.clients),
		Observers: len(w.observers),
		Cubes:     w.arena.CubeCount(),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:           stepMS,
		InboundTotal:     w.counters.inbound,
		StaleStateTotal:  w.counters.stale,
		DesyncTotal:      w.counters.desync,
		DeathsTotal:      w.counters.deaths,
		TransfersTotal:   w.counters.transfers,
		CollectionsTotal: w.counters.collections,
		ReapedTotal:      w.counters.reaped,

		ObserverDropsTotal: w.counters.observerDrops,
		Leaderboard:        w.arena.Leaderboard(w.cfg.Tuning.Sync.LeaderboardSize),
	}
	for _, p := range w.players {
		if p.Bot {
			m.Bots++
		}
	}
	m.Players -= m.Bots
	m.AliveSnakes = len(w.arena.AliveSnakes())
	w.metrics.Store(m)
}
