package world

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/bot"
	"cubes2048.io/internal/sim/combat"
)

// CauseReaped marks a snake removed because its client stayed away too long.
const CauseReaped combat.Cause = "reaped"

func (w *World) welcome(p *player) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ID:              p.ID,
		ResumeToken:     p.ResumeToken,
		TickRateHz:      w.cfg.Tuning.TickRateHz,
		ArenaHalfExtent: w.cfg.Tuning.Arena.HalfExtent,
	}
}

func newResumeToken() string { return "resume_" + uuid.New().String() }

// handleJoin attaches a connection. A matching resume token reattaches the existing
// player (token rotated); otherwise a new player is created under the requested id when
// it is free, or a fresh uuid. A new player's snake stays dead until its first player_state.
func (w *World) handleJoin(req JoinRequest, now time.Time) JoinResponse {
	c := req.Connect
	token := strings.TrimSpace(c.ResumeToken)
	if token != "" {
		for _, p := range w.players {
			if p.Bot || p.ResumeToken != token {
				continue
			}
			if c.ID != "" && c.ID != p.ID {
				continue
			}
			p.ResumeToken = newResumeToken()
			p.DisconnectedAt = time.Time{}
			if req.Out != nil {
				w.clients[p.ID] = &clientState{Out: req.Out}
			}
			w.logger.Printf("resume: player=%s", p.ID)
			return JoinResponse{Welcome: w.welcome(p), Resumed: true}
		}
	}

	id := strings.TrimSpace(c.ID)
	if id == "" || w.players[id] != nil {
		id = uuid.New().String()
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "player"
	}
	p := &player{ID: id, Name: name, ResumeToken: newResumeToken()}
	w.players[id] = p

	s := arena.NewSnake(id, w.spawnPoint(), w.randomHeading())
	s.Name = name
	s.Remote = true
	s.Alive = false
	s.Segments = nil
	w.arena.AddSnake(s)

	if req.Out != nil {
		w.clients[id] = &clientState{Out: req.Out}
	}
	w.logger.Printf("join: player=%s name=%q", id, name)
	return JoinResponse{Welcome: w.welcome(p)}
}

// handleLeave detaches the client; the snake lives on until reaped.
func (w *World) handleLeave(req LeaveRequest, now time.Time) bool {
	id := req.PlayerID
	p := w.players[id]
	if p == nil || p.Bot {
		return false
	}
	cl := w.clients[id]
	if cl == nil || (req.Out != nil && cl.Out != req.Out) {
		return false
	}
	delete(w.clients, id)
	p.DisconnectedAt = now
	return true
}

// reap removes players whose client has been gone longer than ReapAfter. A still-alive
// snake drops its segments first.
func (w *World) reap(now time.Time) ([]string, []combat.Event) {
	after := w.cfg.Tuning.Sync.ReapAfter()
	var ids []string
	var events []combat.Event
	for _, s := range w.arena.Snakes() {
		p := w.players[s.ID]
		if p == nil || p.Bot || p.DisconnectedAt.IsZero() || now.Sub(p.DisconnectedAt) < after {
			continue
		}
		if ev := combat.Kill(s, w.econ, CauseReaped, ""); ev.Kind != "" {
			events = append(events, ev)
		}
		w.arena.RemoveSnake(s.ID)
		delete(w.players, s.ID)
		delete(w.clients, s.ID)
		ids = append(ids, s.ID)
		w.counters.reaped++
		w.logger.Printf("reap: player=%s", s.ID)
	}
	return ids, events
}

func (w *World) addBot(n int) {
	id := fmt.Sprintf("bot-%d", n)
	p := &player{ID: id, Name: fmt.Sprintf("Bot %d", n), Bot: true}
	w.players[id] = p
	w.spawnBot(p)
}

func (w *World) spawnBot(p *player) {
	s := arena.NewSnake(p.ID, w.spawnPoint(), w.randomHeading())
	s.Name = p.Name
	s.Tag = "bot"
	s.Pilot = bot.New(bot.ConfigFromTuning(w.cfg.Tuning))
	w.arena.AddSnake(s)
	p.RespawnAt = time.Time{}
}

func (w *World) respawnBots(now time.Time) {
	for _, s := range w.arena.Snakes() {
		p := w.players[s.ID]
		if p == nil || !p.Bot || s.Alive || p.RespawnAt.IsZero() || now.Before(p.RespawnAt) {
			continue
		}
		w.spawnBot(p)
	}
}

func (w *World) spawnPoint() arena.Vec3 {
	t := w.cfg.Tuning
	span := t.Arena.HalfExtent - t.Economy.SpawnMargin - t.Bots.SenseRadius/3
	if span < 1 {
		span = t.Arena.HalfExtent / 2
	}
	return arena.V((w.rng.Float64()*2-1)*span, t.Arena.CubeY, (w.rng.Float64()*2-1)*span)
}

func (w *World) randomHeading() arena.Vec3 {
	return arena.V(w.rng.Float64()*2-1, 0, w.rng.Float64()*2-1).Normalize()
}
