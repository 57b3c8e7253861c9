// Package client keeps a local, predicted copy of the arena in step with the server.
//
// The own snake is simulated locally and reported to the server; every other snake is a
// replica overwritten wholesale by each game_state_update.
package client

import (
	"context"
	"io"
	"log"
	"math/rand"
	"time"

	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/economy"
	"cubes2048.io/internal/sim/snake"
	"cubes2048.io/internal/sim/tuning"
)

// CauseServer marks an own-snake death learned from the server rather than detected locally.
const CauseServer combat.Cause = "server"

// Transport is the session's view of the network task. Conn implements it.
type Transport interface {
	Welcomes() <-chan protocol.WelcomeMsg
	States() <-chan protocol.GameStateUpdateMsg
	Send(m protocol.Message) bool
}

// InputSource supplies the steering request for the own snake every frame.
type InputSource interface {
	Input(self *arena.Snake, a *arena.Arena, dt float64) snake.Input
}

// InputFunc adapts a plain function to InputSource.
type InputFunc func(self *arena.Snake, a *arena.Arena, dt float64) snake.Input

func (f InputFunc) Input(self *arena.Snake, a *arena.Arena, dt float64) snake.Input {
	return f(self, a, dt)
}

// FromPilot steers the own snake with p, for headless clients.
func FromPilot(p arena.Pilot) InputSource {
	return InputFunc(func(self *arena.Snake, a *arena.Arena, dt float64) snake.Input {
		dir, boost := p.Decide(self, a, dt)
		return snake.Input{Dir: dir, Boost: boost}
	})
}

// Hooks are optional callbacks, all invoked on the session goroutine.
type Hooks struct {
	OnWelcome func(protocol.WelcomeMsg)
	// OnState runs after a snapshot has been applied.
	OnState func(tick uint64, a *arena.Arena)
	// OnEvent is the kill feed: own deaths as detected, and replica deaths as seen in
	// snapshots.
	OnEvent func(combat.Event)
	// OnRestart runs when the own snake respawns after RestartDelay.
	OnRestart func(own *arena.Snake)
}

type Config struct {
	Tuning tuning.Tuning
	// FrameHz is the local simulation rate. Default 60.
	FrameHz int
	Seed    int64
}

type Session struct {
	cfg   Config
	tr    Transport
	input InputSource
	hooks Hooks
	log   *log.Logger

	arena *arena.Arena
	econ  *economy.Economy
	rng   *rand.Rand
	move  snake.Params
	fight combat.Params

	self string
	own  *arena.Snake
	// known holds the cube ids of the last snapshot; only those are reported as collected.
	known map[int64]struct{}
	// collected holds reported cube ids that snapshots still list; they are not recreated.
	collected map[int64]struct{}

	seq        uint64
	adoptedRev uint64
	lastSend   time.Time
	restartAt  time.Time
	lastTick   uint64

	now func() time.Time
}

func NewSession(cfg Config, tr Transport, input InputSource, hooks Hooks, logger *log.Logger) *Session {
	if cfg.Tuning == (tuning.Tuning{}) {
		cfg.Tuning = tuning.Defaults()
	}
	if cfg.FrameHz <= 0 {
		cfg.FrameHz = 60
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	t := cfg.Tuning
	a := arena.New(t.Arena.HalfExtent)
	ecfg := economy.ConfigFromTuning(t, cfg.Seed)
	// The server owns the population; local cubes are drops awaiting the next snapshot.
	ecfg.MinCubes = 0

	s := &Session{
		cfg:   cfg,
		tr:    tr,
		input: input,
		hooks: hooks,
		log:   logger,
		arena: a,
		econ:  economy.New(a, ecfg),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		move:  snake.ParamsFromTuning(t),
		fight: combat.ParamsFromTuning(t),
		known: map[int64]struct{}{},
		now:   time.Now,

		collected: map[int64]struct{}{},
	}
	s.fight.Mutable = func(sn *arena.Snake) bool { return sn.ID == s.self }
	return s
}

func (s *Session) Arena() *arena.Arena { return s.arena }
func (s *Session) Self() *arena.Snake  { return s.own }
func (s *Session) ID() string          { return s.self }

// Seq is the sequence number of the last player_state sent.
func (s *Session) Seq() uint64 { return s.seq }

func (s *Session) frameDT() float64 { return 1.0 / float64(s.cfg.FrameHz) }

// Run owns the local arena until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FrameHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w := <-s.tr.Welcomes():
			s.HandleWelcome(w)
		case u := <-s.tr.States():
			s.ApplyState(u)
		case <-ticker.C:
			s.Frame()
		}
	}
}

// HandleWelcome adopts the id the server assigned. The first welcome spawns the own
// snake; later ones (reconnects) keep it, renaming it if the id changed.
func (s *Session) HandleWelcome(w protocol.WelcomeMsg) {
	if w.ArenaHalfExtent > 0 {
		s.arena.HalfExtent = w.ArenaHalfExtent
	}
	switch {
	case s.own == nil:
		s.self = w.ID
		s.spawnOwn()
	case s.self != w.ID:
		s.arena.RemoveSnake(s.self)
		s.arena.RemoveSnake(w.ID)
		s.self = w.ID
		s.own.ID = w.ID
		for _, seg := range s.own.Segments {
			seg.Owner = w.ID
		}
		s.arena.AddSnake(s.own)
	}
	// Any newer server revision, including the one of a resumed snake, is adopted.
	s.adoptedRev = 0
	// Reports queued on the lost connection may never have arrived.
	for id := range s.collected {
		s.tr.Send(protocol.CollectCubeMsg{CubeID: id})
	}
	if s.hooks.OnWelcome != nil {
		s.hooks.OnWelcome(w)
	}
}

func (s *Session) spawnOwn() {
	t := s.cfg.Tuning
	span := s.arena.HalfExtent - t.Economy.SpawnMargin
	if span < 1 {
		span = s.arena.HalfExtent / 2
	}
	pos := arena.V((s.rng.Float64()*2-1)*span, t.Arena.CubeY, (s.rng.Float64()*2-1)*span)
	heading := arena.V(s.rng.Float64()*2-1, 0, s.rng.Float64()*2-1)
	s.own = arena.NewSnake(s.self, pos, heading)
	s.arena.AddSnake(s.own)
	s.restartAt = time.Time{}
}

// ApplyState applies one server snapshot wholesale.
func (s *Session) ApplyState(u protocol.GameStateUpdateMsg) {
	s.lastTick = u.Tick
	for _, id := range applyReplicas(s.arena, s.self, u.GameState.Players) {
		if s.hooks.OnEvent != nil {
			s.hooks.OnEvent(combat.Event{Kind: combat.KindDeath, Cause: CauseServer, Victim: id, Value: u.GameState.Players[id].HeadValue})
		}
	}

	s.arena.ReplaceCubes(nil)
	clear(s.known)
	for _, c := range u.GameState.CollectibleCubes {
		s.known[c.ID] = struct{}{}
		if _, ok := s.collected[c.ID]; ok {
			continue
		}
		pos := arena.FromArray(c.Position)
		s.econ.Spawn(economy.SpawnOptions{ID: c.ID, Pos: &pos, Value: c.Value})
	}
	for id := range s.collected {
		if _, ok := s.known[id]; !ok {
			delete(s.collected, id)
		}
	}

	if ps, ok := u.GameState.Players[s.self]; ok && s.own != nil && ps.Rev > s.adoptedRev {
		wasAlive := s.own.Alive
		overwrite(s.own, ps)
		s.own.Remote = false
		s.adoptedRev = ps.Rev
		if s.own.Alive {
			s.restartAt = time.Time{}
			snake.SeedTrail(s.own, s.move.NormalSpeed*s.frameDT())
		} else if wasAlive {
			s.died(combat.Event{Kind: combat.KindDeath, Cause: CauseServer, Victim: s.self, Value: s.own.HeadValue()})
		}
	}

	if s.hooks.OnState != nil {
		s.hooks.OnState(u.Tick, s.arena)
	}
}

// Frame advances the own snake by one local frame.
func (s *Session) Frame() {
	if s.own == nil {
		return
	}
	now := s.now()
	if !s.own.Alive {
		if !s.restartAt.IsZero() && !now.Before(s.restartAt) {
			s.spawnOwn()
			if s.hooks.OnRestart != nil {
				s.hooks.OnRestart(s.own)
			}
		}
		return
	}

	dt := s.frameDT()
	var in snake.Input
	if s.input != nil {
		in = s.input.Input(s.own, s.arena, dt)
	}
	if shed := snake.Step(s.own, dt, in, s.move); shed != nil {
		s.econ.Drop(shed.Pos, shed.Value)
	}

	// Only outcomes confined to the own snake apply; the server settles the rest.
	for _, ev := range combat.Resolve(s.arena, s.econ, s.fight) {
		if ev.Kind == combat.KindDeath && ev.Victim == s.self {
			s.tr.Send(protocol.PlayerDeathMsg{ID: s.self})
			s.died(ev)
		}
	}
	if !s.own.Alive {
		return
	}

	own := func(sn *arena.Snake) bool { return sn == s.own }
	for _, c := range s.econ.Reconcile(s.fight.ContactRadius, own) {
		if _, ok := s.known[c.CubeID]; ok {
			delete(s.known, c.CubeID)
			s.collected[c.CubeID] = struct{}{}
			s.tr.Send(protocol.CollectCubeMsg{CubeID: c.CubeID})
		}
	}

	if s.lastSend.IsZero() || now.Sub(s.lastSend) >= s.cfg.Tuning.Sync.SendInterval() {
		s.lastSend = now
		s.seq++
		s.tr.Send(s.stateMsg())
	}
}

func (s *Session) died(ev combat.Event) {
	s.restartAt = s.now().Add(s.cfg.Tuning.Sync.RestartDelay())
	s.log.Printf("died: %s (%s, head %d)", s.self, ev.Cause, ev.Value)
	if s.hooks.OnEvent != nil {
		s.hooks.OnEvent(ev)
	}
}

func (s *Session) stateMsg() protocol.PlayerStateMsg {
	own := s.own
	m := protocol.PlayerStateMsg{
		ID:        s.self,
		Position:  own.HeadPos().Array(),
		Direction: own.Heading.Array(),
		HeadValue: own.HeadValue(),
		Segments:  make([]protocol.SegmentWire, len(own.Segments)),
		Boosting:  own.Boosting,
		Score:     own.Score,
		Seq:       s.seq,
		BaseRev:   s.adoptedRev,
	}
	for i, seg := range own.Segments {
		m.Segments[i] = protocol.NewSegmentWire(seg.Pos.Array(), seg.Value)
	}
	return m
}
