package world

import (
	"time"

	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/combat"
	"cubes2048.io/internal/sim/snake"
)

// applyInbound applies one client message. Player identity always comes from the
// session, never from the message body.
func (w *World) applyInbound(in Inbound, now time.Time) (combat.Event, bool) {
	p := w.players[in.PlayerID]
	s := w.arena.Snake(in.PlayerID)
	if p == nil || s == nil || p.Bot {
		return combat.Event{}, false
	}
	switch m := in.Msg.(type) {
	case protocol.PlayerStateMsg:
		w.applyPlayerState(p, s, m, now)
	case protocol.CollectCubeMsg:
		if w.arena.RemoveCube(m.CubeID) != nil {
			w.counters.collections++
		}
	case protocol.PlayerDeathMsg:
		if ev := combat.Kill(s, w.econ, combat.CauseReported, ""); ev.Kind != "" {
			return ev, true
		}
	}
	return combat.Event{}, false
}

// applyPlayerState overwrites the sender's snake with its own report. A report built on
// a revision older than the server's (the server has since transferred or killed) is stale
// and dropped; the client adopts the newer revision from the next broadcast.
func (w *World) applyPlayerState(p *player, s *arena.Snake, m protocol.PlayerStateMsg, now time.Time) {
	if m.BaseRev < s.Rev {
		w.counters.stale++
		return
	}
	if m.Seq != 0 && m.Seq <= p.AckSeq {
		return
	}

	head := arena.FromArray(m.Position)
	if s.Alive && !p.LastStateAt.IsZero() {
		elapsed := now.Sub(p.LastStateAt).Seconds()
		if minDT := w.cfg.Tuning.TickDT(); elapsed < minDT {
			elapsed = minDT
		}
		allowed := w.cfg.Tuning.Sync.DesyncSlack*w.cfg.Tuning.Movement.BoostSpeed*elapsed + w.cfg.Tuning.Movement.Spacing
		if jump := head.Dist(p.LastHead); jump > allowed {
			w.counters.desync++
			w.logger.Printf("%s: player=%s jump=%.2f allowed=%.2f", protocol.ErrStateDesync, p.ID, jump, allowed)
		}
	}

	s.Resize(len(m.Segments))
	for i, sw := range m.Segments {
		s.Segments[i].Pos = arena.FromArray(sw.Pos())
		s.Segments[i].Value = sw.Value()
	}
	// The reported head position wins over segment 0.
	s.Segments[0].Pos = head
	s.Segments[0].Value = m.HeadValue
	if dir := arena.FromArray(m.Direction).Flat().Normalize(); !dir.IsZero() {
		s.Heading = dir
	}
	s.Boosting = m.Boosting && len(s.Segments) > 1
	s.Score = m.Score
	s.Alive = true
	s.Remote = true

	speed := w.move.NormalSpeed
	if s.Boosting {
		speed = w.move.BoostSpeed
	}
	snake.SeedTrail(s, speed*w.cfg.Tuning.TickDT())

	if m.Seq > p.AckSeq {
		p.AckSeq = m.Seq
	}
	p.LastStateAt = now
	p.LastHead = head
}
