package world

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/economy"
	"cubes2048.io/internal/sim/snake"
)

type JoinRequest struct {
	Connect protocol.PlayerConnectMsg
	Out     chan []byte
	Resp    chan JoinResponse
}

// LeaveRequest detaches the connection that owns Out. A leave from a connection that has
// since been replaced by a resume is ignored. A nil Out detaches whatever is attached.
type LeaveRequest struct {
	PlayerID string
	Out      chan []byte
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Resumed bool
}

// Inbound is one decoded client message, tagged with the session's player id.
type Inbound struct {
	PlayerID string
	Msg      protocol.Message
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
	Resumed  bool   `json:"resumed,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick        uint64                   `json:"tick"`
	Joins       []RecordedJoin           `json:"joins,omitempty"`
	Leaves      []string                 `json:"leaves,omitempty"`
	Reaped      []string                 `json:"reaped,omitempty"`
	Inbound     int                      `json:"inbound,omitempty"`
	Events      []combat.Event           `json:"events,omitempty"`
	Collections []economy.Collection     `json:"collections,omitempty"`
	Leaderboard []arena.LeaderboardEntry `json:"leaderboard,omitempty"`
	Players     int                      `json:"players"`
	Cubes       int                      `json:"cubes"`
}

// player is the session-side record of a snake: connection bookkeeping the arena does not hold.
type player struct {
	ID          string
	Name        string
	Bot         bool
	ResumeToken string

	// DisconnectedAt is zero while a client is attached.
	DisconnectedAt time.Time
	// RespawnAt is set for dead bots.
	RespawnAt time.Time

	AckSeq      uint64
	LastStateAt time.Time
	LastHead    arena.Vec3
}

type clientState struct {
	Out chan []byte
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig

	tick    atomic.Uint64
	metrics atomic.Value

	arena   *arena.Arena
	econ    *economy.Economy
	rng     *rand.Rand
	move    snake.Params
	botMove snake.Params
	fight   combat.Params

	players   map[string]*player
	clients   map[string]*clientState
	observers map[string]*observerClient

	inbox chan Inbound
	join  chan JoinRequest
	leave chan LeaveRequest
	admin chan adminDumpReq
	stop  chan struct{}

	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string

	now      func() time.Time
	logger   *log.Logger
	counters counters

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger TickLogger
	dumpSink   chan<- snapshot.SnapshotV1
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	t := cfg.Tuning

	a := arena.New(t.Arena.HalfExtent)
	w := &World{
		cfg:       cfg,
		arena:     a,
		econ:      economy.New(a, economy.ConfigFromTuning(t, cfg.Seed)),
		rng:       rand.New(rand.NewSource(cfg.Seed ^ 0x2048)),
		move:      snake.ParamsFromTuning(t),
		fight:     combat.ParamsFromTuning(t),
		players:   map[string]*player{},
		clients:   map[string]*clientState{},
		observers: map[string]*observerClient{},
		inbox:     make(chan Inbound, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan LeaveRequest, 64),
		admin:     make(chan adminDumpReq, 8),
		stop:      make(chan struct{}),

		observerJoin:  make(chan ObserverJoinRequest, 32),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 32),

		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	w.botMove = w.move
	w.botMove.TurnRate = t.Bots.TurnRate

	w.econ.Refill()
	for i := 0; i < cfg.Bots; i++ {
		w.addBot(i + 1)
	}
	w.publishMetrics(0, 0)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                { w.tickLogger = l }
func (w *World) SetDumpSink(ch chan<- snapshot.SnapshotV1) { w.dumpSink = ch }
func (w *World) SetLogger(l *log.Logger) {
	if l != nil {
		w.logger = l
	}
}

func (w *World) Inbox() chan<- Inbound      { return w.inbox }
func (w *World) Join() chan<- JoinRequest   { return w.join }
func (w *World) Leave() chan<- LeaveRequest { return w.leave }
func (w *World) CurrentTick() uint64        { return w.tick.Load() }
func (w *World) Config() WorldConfig        { return w.cfg }

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Tuning.TickDuration())
	defer ticker.Stop()

	var pendingInbound []Inbound
	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest
	var pendingDumps []adminDumpReq
	var pendingObsJoins []ObserverJoinRequest
	var pendingObsSubs []ObserverSubscribeRequest
	var pendingObsLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.leave:
			pendingLeaves = append(pendingLeaves, req)
		case in := <-w.inbox:
			pendingInbound = append(pendingInbound, in)
		case req := <-w.admin:
			pendingDumps = append(pendingDumps, req)
		case req := <-w.observerJoin:
			pendingObsJoins = append(pendingObsJoins, req)
		case req := <-w.observerSub:
			pendingObsSubs = append(pendingObsSubs, req)
		case id := <-w.observerLeave:
			pendingObsLeaves = append(pendingObsLeaves, id)
		case <-ticker.C:
			w.applyObserverChanges(pendingObsJoins, pendingObsSubs, pendingObsLeaves)
			w.step(pendingJoins, pendingLeaves, pendingInbound)
			w.handleAdminDumpRequests(pendingDumps)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingInbound = pendingInbound[:0]
			pendingDumps = pendingDumps[:0]
			pendingObsJoins = pendingObsJoins[:0]
			pendingObsSubs = pendingObsSubs[:0]
			pendingObsLeaves = pendingObsLeaves[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) step(joins []JoinRequest, leaves []LeaveRequest, inbound []Inbound) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	now := w.now()
	dt := w.cfg.Tuning.TickDT()

	entry := TickLogEntry{Tick: nowTick, Inbound: len(inbound)}

	// Leaves and joins apply at the tick boundary, before inbound messages.
	for _, req := range leaves {
		if w.handleLeave(req, now) {
			entry.Leaves = append(entry.Leaves, req.PlayerID)
		}
	}
	for _, req := range joins {
		resp := w.handleJoin(req, now)
		if req.Resp != nil {
			req.Resp <- resp
		}
		entry.Joins = append(entry.Joins, RecordedJoin{PlayerID: resp.Welcome.ID, Name: req.Connect.Name, Resumed: resp.Resumed})
	}

	// Inbound messages in receive order.
	for _, in := range inbound {
		w.counters.inbound++
		if ev, ok := w.applyInbound(in, now); ok {
			entry.Events = append(entry.Events, ev)
		}
	}

	reaped, reapEvents := w.reap(now)
	entry.Reaped = reaped
	entry.Events = append(entry.Events, reapEvents...)
	w.respawnBots(now)

	// Movement.
	for _, s := range w.arena.AliveSnakes() {
		var in snake.Input
		params := w.move
		switch {
		case s.Remote:
			in = snake.Input{Dir: s.Heading, Boost: s.Boosting}
		case s.Pilot != nil:
			in.Dir, in.Boost = s.Pilot.Decide(s, w.arena, dt)
			params = w.botMove
		}
		if shed := snake.Step(s, dt, in, params); shed != nil {
			w.econ.Drop(shed.Pos, shed.Value)
		}
	}

	// Combat, then economy.
	events := combat.Resolve(w.arena, w.econ, w.fight)
	entry.Events = append(entry.Events, events...)
	entry.Collections = w.econ.Reconcile(w.fight.ContactRadius, func(s *arena.Snake) bool { return !s.Remote })
	w.counters.collections += uint64(len(entry.Collections))
	for _, ev := range entry.Events {
		w.noteEvent(ev, now)
	}

	// Broadcast the full state, marshalled once.
	if len(w.clients) > 0 {
		msg := protocol.GameStateUpdateMsg{Type: protocol.TypeGameStateUpdate, Tick: nowTick, GameState: w.BuildGameState()}
		if b, err := json.Marshal(msg); err == nil {
			for _, cl := range w.clients {
				sendLatest(cl.Out, b)
			}
		} else {
			w.logger.Printf("marshal game state tick=%d: %v", nowTick, err)
		}
	}

	entry.Players = w.arena.SnakeCount()
	entry.Cubes = w.arena.CubeCount()
	if nowTick%uint64(w.cfg.LeaderboardEveryTicks) == 0 {
		entry.Leaderboard = w.arena.Leaderboard(w.cfg.Tuning.Sync.LeaderboardSize)
	}
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logger.Printf("tick log: %v", err)
		}
	}
	w.broadcastObservers(entry)

	if w.dumpSink != nil && nowTick != 0 && w.cfg.DumpEveryTicks > 0 && nowTick%uint64(w.cfg.DumpEveryTicks) == 0 {
		select {
		case w.dumpSink <- w.ExportSnapshot(nowTick):
		default:
			// Drop the dump if the sink is backed up.
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.publishMetrics(nextTick, stepMS)
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []LeaveRequest, inbound []Inbound) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, inbound)
	return tick
}

func (w *World) noteEvent(ev combat.Event, now time.Time) {
	switch ev.Kind {
	case combat.KindDeath:
		w.counters.deaths++
		if ev.Killer != "" {
			w.logger.Printf("kill: %s -> %s (%s, head %d)", ev.Killer, ev.Victim, ev.Cause, ev.Value)
		} else {
			w.logger.Printf("death: %s (%s, head %d)", ev.Victim, ev.Cause, ev.Value)
		}
		if p := w.players[ev.Victim]; p != nil && p.Bot {
			p.RespawnAt = now.Add(w.cfg.Tuning.Sync.RestartDelay())
		}
	case combat.KindTransfer:
		w.counters.transfers++
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
