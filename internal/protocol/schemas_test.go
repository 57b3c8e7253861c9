package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cubes2048.io/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validateEncoded(t *testing.T, s *jsonschema.Schema, m protocol.Message) {
	t.Helper()
	b, err := protocol.Encode(m)
	if err != nil {
		t.Fatalf("encode %s: %v", m.MessageType(), err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", m.MessageType(), err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate %s: %v\n%s", m.MessageType(), err, b)
	}
}

func TestSchemas_ValidateEncodedMessages(t *testing.T) {
	validateEncoded(t, compileSchema(t, "player_connect.schema.json"), protocol.PlayerConnectMsg{
		ID:          "4821",
		Name:        "viper",
		ResumeToken: "resume_4821_1",
	})
	validateEncoded(t, compileSchema(t, "player_connect.schema.json"), protocol.PlayerConnectMsg{})

	validateEncoded(t, compileSchema(t, "player_state.schema.json"), protocol.PlayerStateMsg{
		ID:        "4821",
		Position:  protocol.Vec{1, 0.5, -2},
		Direction: protocol.Vec{0, 0, 1},
		HeadValue: 8,
		Segments: []protocol.SegmentWire{
			protocol.NewSegmentWire(protocol.Vec{1, 0.5, -3}, 4),
			protocol.NewSegmentWire(protocol.Vec{1, 0.5, -4}, 2),
		},
		Boosting: true,
		Score:    14,
		Seq:      7,
		BaseRev:  3,
	})

	validateEncoded(t, compileSchema(t, "collect_cube.schema.json"), protocol.CollectCubeMsg{CubeID: 17})
	validateEncoded(t, compileSchema(t, "player_death.schema.json"), protocol.PlayerDeathMsg{ID: "4821"})
	validateEncoded(t, compileSchema(t, "welcome.schema.json"), protocol.WelcomeMsg{
		ID:              "4821",
		ResumeToken:     "resume_4821_1",
		TickRateHz:      20,
		ArenaHalfExtent: 24,
	})

	validateEncoded(t, compileSchema(t, "game_state_update.schema.json"), protocol.GameStateUpdateMsg{
		Tick: 42,
		GameState: protocol.GameState{
			Players: map[string]protocol.PlayerState{
				"4821": {
					Name:      "viper",
					Position:  protocol.Vec{0, 0.5, 0},
					Direction: protocol.Vec{1, 0, 0},
					HeadValue: 4,
					Segments:  []protocol.SegmentWire{protocol.NewSegmentWire(protocol.Vec{-1, 0.5, 0}, 2)},
					Alive:     true,
					Score:     6,
					Rev:       2,
					AckSeq:    9,
				},
				"bot-1": {Position: protocol.Vec{3, 0.5, 3}, Direction: protocol.Vec{0, 0, -1}, Segments: []protocol.SegmentWire{}},
			},
			CollectibleCubes: []protocol.CubeState{{ID: 1, Position: protocol.Vec{5, 0.5, 5}, Value: 2}},
		},
	})
}

func TestSchemas_RejectBadSamples(t *testing.T) {
	s := compileSchema(t, "player_state.schema.json")

	var noSegments any
	_ = json.Unmarshal([]byte(`{
	  "type":"player_state",
	  "id":"4821",
	  "position":[0,0,0],
	  "direction":[1,0,0],
	  "head_value":2,
	  "segments":[]
	}`), &noSegments)
	if err := s.Validate(noSegments); err == nil {
		t.Fatalf("expected empty segments to be rejected")
	}

	var shortVec any
	_ = json.Unmarshal([]byte(`{
	  "type":"player_state",
	  "id":"4821",
	  "position":[0,0],
	  "direction":[1,0,0],
	  "head_value":2,
	  "segments":[[0,0,0,2]]
	}`), &shortVec)
	if err := s.Validate(shortVec); err == nil {
		t.Fatalf("expected 2-component position to be rejected")
	}
}
