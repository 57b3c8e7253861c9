package observerproto

import "cubes2048.io/internal/protocol"

// Version is the observer protocol version (separate from the player WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Top is the leaderboard length carried in every frame.
	Top int `json:"top"`
	// Cubes asks for the full collectible cube list in every frame.
	Cubes bool `json:"cubes,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	ArenaParams     ArenaParams `json:"arena_params"`
}

type ArenaParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	HalfExtent float64 `json:"half_extent"`
	Seed       int64   `json:"seed"`
	MinCubes   int     `json:"min_cubes"`
	Bots       int     `json:"bots"`
}

// Server -> Client. Sent every tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Players     int `json:"players"`
	AliveSnakes int `json:"alive_snakes"`
	CubeCount   int `json:"cube_count"`

	Leaderboard []Standing           `json:"leaderboard"`
	Kills       []Kill               `json:"kills,omitempty"`
	Joins       []JoinInfo           `json:"joins,omitempty"`
	Leaves      []string             `json:"leaves,omitempty"`
	Cubes       []protocol.CubeState `json:"cubes,omitempty"`
}

type Standing struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Score     int    `json:"score"`
	HeadValue int    `json:"head_value"`
	Alive     bool   `json:"alive"`
}

// Kill is one kill-feed line. Killer is empty for boundary, self-collision and reported deaths.
type Kill struct {
	Victim string `json:"victim"`
	Killer string `json:"killer,omitempty"`
	Cause  string `json:"cause"`
	Value  int    `json:"value"`
}

type JoinInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Resumed bool   `json:"resumed,omitempty"`
}

// Normalize clamps subscription settings to the supported range.
func (s *SubscribeMsg) Normalize() {
	if s.Top <= 0 {
		s.Top = 10
	}
	if s.Top > 100 {
		s.Top = 100
	}
}
