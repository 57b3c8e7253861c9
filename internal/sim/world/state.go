package world

import (
	"context"
	"errors"

	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/arena"
)

// BuildGameState renders the arena as the broadcast snapshot. Dead snakes carry no segments.
func (w *World) BuildGameState() protocol.GameState {
	gs := protocol.GameState{
		Players:          make(map[string]protocol.PlayerState, w.arena.SnakeCount()),
		CollectibleCubes: make([]protocol.CubeState, 0, w.arena.CubeCount()),
	}
	for _, s := range w.arena.Snakes() {
		ps := protocol.PlayerState{
			Name:      s.Name,
			Position:  s.HeadPos().Array(),
			Direction: s.Heading.Array(),
			HeadValue: s.HeadValue(),
			Alive:     s.Alive,
			Score:     s.Score,
			Rev:       s.Rev,
		}
		if p := w.players[s.ID]; p != nil {
			ps.AckSeq = p.AckSeq
		}
		// Dead snakes serialise an empty list, never null.
		ps.Segments = []protocol.SegmentWire{}
		if s.Alive {
			ps.Segments = make([]protocol.SegmentWire, len(s.Segments))
			for i, seg := range s.Segments {
				ps.Segments[i] = protocol.NewSegmentWire(seg.Pos.Array(), seg.Value)
			}
		}
		gs.Players[s.ID] = ps
	}
	for _, c := range w.arena.Cubes() {
		gs.CollectibleCubes = append(gs.CollectibleCubes, protocol.CubeState{ID: c.ID, Position: c.Pos.Array(), Value: c.Value})
	}
	return gs
}

// ExportSnapshot captures the arena for a debug dump. Dumps are never loaded back into a world.
func (w *World) ExportSnapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:     snapshot.Header{Version: 1, WorldID: w.cfg.ID, Tick: tick},
		Seed:       w.cfg.Seed,
		TickRate:   w.cfg.Tuning.TickRateHz,
		HalfExtent: w.cfg.Tuning.Arena.HalfExtent,
		NextCubeID: w.econ.NextID(),
	}
	for _, s := range w.arena.Snakes() {
		sv := snapshot.SnakeV1{
			ID:       s.ID,
			Name:     s.Name,
			Alive:    s.Alive,
			Remote:   s.Remote,
			Boosting: s.Boosting,
			Score:    s.Score,
			Rev:      s.Rev,
			Heading:  s.Heading.Array(),
		}
		if p := w.players[s.ID]; p != nil {
			sv.Bot = p.Bot
			sv.AckSeq = p.AckSeq
			sv.Connected = w.clients[s.ID] != nil
		}
		for _, seg := range s.Segments {
			sv.Segments = append(sv.Segments, snapshot.SegmentV1{Pos: seg.Pos.Array(), Value: seg.Value})
		}
		snap.Snakes = append(snap.Snakes, sv)
	}
	for _, c := range w.arena.Cubes() {
		snap.Cubes = append(snap.Cubes, snapshot.CubeV1{ID: c.ID, Pos: c.Pos.Array(), Value: c.Value})
	}
	return snap
}

// Leaderboard is the current top-N by score, as last published by the world loop.
func (w *World) Leaderboard() []arena.LeaderboardEntry {
	return w.Metrics().Leaderboard
}

type adminDumpReq struct {
	Resp chan adminDumpResp
}

type adminDumpResp struct {
	Tick uint64
	Err  string
}

// RequestDump asks the world loop goroutine to enqueue a debug dump.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestDump(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin dump not available")
	}
	resp := make(chan adminDumpResp, 1)
	req := adminDumpReq{Resp: resp}

	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminDumpRequests(reqs []adminDumpReq) {
	if w == nil || len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	dumpTick := uint64(0)
	if cur > 0 {
		dumpTick = cur - 1
	}

	errStr := ""
	if w.dumpSink == nil {
		errStr = "dump sink not configured"
	} else {
		select {
		case w.dumpSink <- w.ExportSnapshot(dumpTick):
		default:
			errStr = "dump sink backpressure"
		}
	}

	resp := adminDumpResp{Tick: dumpTick, Err: errStr}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}
