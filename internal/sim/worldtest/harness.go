package worldtest

import (
	"testing"

	"cubes2048.io/internal/persistence/snapshot"
	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues a JoinRequest via StepOnce()
// - Send()/SendFor() deliver client messages via StepOnce()
// - Per-player Out channels carry game_state_update JSON
//
// It avoids world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	DefaultPlayerID string

	sessions map[string]*session
}

// NewHarness builds a world from cfg and joins one player with the requested id.
func NewHarness(t *testing.T, cfg world.WorldConfig, playerID string) *Harness {
	t.Helper()

	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	h := &Harness{
		T:        t,
		W:        w,
		sessions: map[string]*session{},
	}
	if playerID != "" {
		h.DefaultPlayerID = h.Join(playerID, playerID)
	}
	return h
}

type session struct {
	ID        string
	Out       chan []byte
	lastState protocol.GameStateUpdateMsg
}

func (h *Harness) Join(id, name string) string {
	h.T.Helper()

	out := make(chan []byte, 1)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{
		Connect: protocol.PlayerConnectMsg{Type: protocol.TypePlayerConnect, ID: id, Name: name},
		Out:     out,
		Resp:    resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.ID == "" {
		h.T.Fatalf("join returned empty player id")
	}
	s := &session{ID: jr.Welcome.ID, Out: out}
	h.sessions[s.ID] = s
	h.drainAll()
	return s.ID
}

func (h *Harness) LastState() protocol.GameStateUpdateMsg {
	return h.LastStateFor(h.DefaultPlayerID)
}

func (h *Harness) LastStateFor(id string) protocol.GameStateUpdateMsg {
	h.T.Helper()
	s := h.sessions[id]
	if s == nil {
		h.T.Fatalf("unknown player id: %q", id)
	}
	return s.lastState
}

// Send delivers msgs from the default player in one tick and returns the resulting snapshot.
func (h *Harness) Send(msgs ...protocol.Message) protocol.GameStateUpdateMsg {
	return h.SendFor(h.DefaultPlayerID, msgs...)
}

func (h *Harness) SendFor(id string, msgs ...protocol.Message) protocol.GameStateUpdateMsg {
	h.T.Helper()
	in := make([]world.Inbound, 0, len(msgs))
	for _, m := range msgs {
		in = append(in, world.Inbound{PlayerID: id, Msg: m})
	}
	h.W.StepOnce(nil, nil, in)
	h.drainAll()
	return h.LastStateFor(id)
}

func (h *Harness) StepNoop() {
	h.T.Helper()
	h.W.StepOnce(nil, nil, nil)
	h.drainAll()
}

func (h *Harness) StepFor(n int) {
	for i := 0; i < n; i++ {
		h.StepNoop()
	}
}

// Snapshot exports the arena as of the last completed tick.
func (h *Harness) Snapshot() snapshot.SnapshotV1 {
	cur := h.W.CurrentTick()
	if cur == 0 {
		return h.W.ExportSnapshot(0)
	}
	return h.W.ExportSnapshot(cur - 1)
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		select {
		case b := <-s.Out:
			m, err := protocol.Decode(b)
			if err != nil {
				h.T.Fatalf("decode game_state_update: %v", err)
			}
			if u, ok := m.(protocol.GameStateUpdateMsg); ok {
				s.lastState = u
			}
		default:
		}
	}
}
