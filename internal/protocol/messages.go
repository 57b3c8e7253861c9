package protocol

// Vec is a position or direction on the wire: [x, y, z].
type Vec [3]float64

// SegmentWire is one snake segment on the wire: [x, y, z, value].
type SegmentWire [4]float64

func (s SegmentWire) Pos() Vec   { return Vec{s[0], s[1], s[2]} }
func (s SegmentWire) Value() int { return int(s[3]) }

func NewSegmentWire(p Vec, v int) SegmentWire {
	return SegmentWire{p[0], p[1], p[2], float64(v)}
}

// player_connect (client -> server)
type PlayerConnectMsg struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	ResumeToken string `json:"resume_token,omitempty"`
}

// player_state (client -> server)
type PlayerStateMsg struct {
	Type      string        `json:"type"`
	ID        string        `json:"id"`
	Position  Vec           `json:"position"`
	Direction Vec           `json:"direction"`
	HeadValue int           `json:"head_value"`
	Segments  []SegmentWire `json:"segments"`
	Boosting  bool          `json:"boosting,omitempty"`
	Score     int           `json:"score,omitempty"`

	// Seq increases with every player_state a client sends. BaseRev is the last server
	// revision of this snake the client adopted.
	Seq     uint64 `json:"seq,omitempty"`
	BaseRev uint64 `json:"base_rev,omitempty"`
}

// collect_cube (client -> server)
type CollectCubeMsg struct {
	Type   string `json:"type"`
	CubeID int64  `json:"cube_id"`
}

// player_death (client -> server)
type PlayerDeathMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// welcome (server -> client), sent once after player_connect.
type WelcomeMsg struct {
	Type            string  `json:"type"`
	ID              string  `json:"id"`
	ResumeToken     string  `json:"resume_token"`
	TickRateHz      int     `json:"tick_rate_hz"`
	ArenaHalfExtent float64 `json:"arena_half_extent"`
}

// game_state_update (server -> client): full-state replace.
type GameStateUpdateMsg struct {
	Type      string    `json:"type"`
	Tick      uint64    `json:"tick"`
	GameState GameState `json:"game_state"`
}

type GameState struct {
	Players          map[string]PlayerState `json:"players"`
	CollectibleCubes []CubeState            `json:"collectible_cubes"`
}

type PlayerState struct {
	Name      string        `json:"name,omitempty"`
	Position  Vec           `json:"position"`
	Direction Vec           `json:"direction"`
	HeadValue int           `json:"head_value"`
	Segments  []SegmentWire `json:"segments"`
	Alive     bool          `json:"alive"`
	Score     int           `json:"score"`
	Rev       uint64        `json:"rev,omitempty"`
	AckSeq    uint64        `json:"ack_seq,omitempty"`
}

type CubeState struct {
	ID       int64 `json:"id"`
	Position Vec   `json:"position"`
	Value    int   `json:"value"`
}
