package world

import (
	"encoding/json"

	"cubes2048.io/internal/observerproto"
	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/combat"
)

type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
	Top       int
	Cubes     bool
}

type ObserverSubscribeRequest struct {
	SessionID string
	Top       int
	Cubes     bool
}

type observerClient struct {
	out   chan []byte
	top   int
	cubes bool
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) applyObserverChanges(joins []ObserverJoinRequest, subs []ObserverSubscribeRequest, leaves []string) {
	for _, req := range joins {
		if req.SessionID == "" || req.Out == nil {
			continue
		}
		w.observers[req.SessionID] = &observerClient{out: req.Out, top: req.Top, cubes: req.Cubes}
	}
	for _, req := range subs {
		if o := w.observers[req.SessionID]; o != nil {
			o.top = req.Top
			o.cubes = req.Cubes
		}
	}
	for _, id := range leaves {
		delete(w.observers, id)
	}
}

// broadcastObservers sends one frame per observer. Frames carry kill-feed lines, so a full
// queue drops the frame instead of replacing an older one.
func (w *World) broadcastObservers(entry TickLogEntry) {
	if len(w.observers) == 0 {
		return
	}
	base := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            entry.Tick,
		Players:         w.arena.SnakeCount(),
		AliveSnakes:     len(w.arena.AliveSnakes()),
		CubeCount:       w.arena.CubeCount(),
	}
	base.Leaves = append(base.Leaves, entry.Leaves...)
	base.Leaves = append(base.Leaves, entry.Reaped...)
	for _, j := range entry.Joins {
		base.Joins = append(base.Joins, observerproto.JoinInfo{ID: j.PlayerID, Name: j.Name, Resumed: j.Resumed})
	}
	for _, ev := range entry.Events {
		if ev.Kind != combat.KindDeath {
			continue
		}
		base.Kills = append(base.Kills, observerproto.Kill{Victim: ev.Victim, Killer: ev.Killer, Cause: string(ev.Cause), Value: ev.Value})
	}
	var cubes []protocol.CubeState
	for _, o := range w.observers {
		if o.cubes {
			cubes = w.BuildGameState().CollectibleCubes
			break
		}
	}

	for id, o := range w.observers {
		f := base
		for _, e := range w.arena.Leaderboard(o.top) {
			f.Leaderboard = append(f.Leaderboard, observerproto.Standing{ID: e.ID, Name: e.Name, Score: e.Score, HeadValue: e.Head, Alive: e.Alive})
		}
		if o.cubes {
			f.Cubes = cubes
		}
		b, err := json.Marshal(f)
		if err != nil {
			w.logger.Printf("marshal observer frame %s tick=%d: %v", id, entry.Tick, err)
			continue
		}
		select {
		case o.out <- b:
		default:
			w.counters.observerDrops++
		}
	}
}
