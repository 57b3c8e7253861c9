package protocol

import "encoding/json"

// Message types.
const (
	TypePlayerConnect   = "player_connect"
	TypePlayerState     = "player_state"
	TypeCollectCube     = "collect_cube"
	TypePlayerDeath     = "player_death"
	TypeGameStateUpdate = "game_state_update"
	TypeWelcome         = "welcome"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Message is one decoded wire message. The concrete type is one of the *Msg structs in
// messages.go; switch on it rather than on the type string.
type Message interface {
	MessageType() string
}

func (PlayerConnectMsg) MessageType() string   { return TypePlayerConnect }
func (PlayerStateMsg) MessageType() string     { return TypePlayerState }
func (CollectCubeMsg) MessageType() string     { return TypeCollectCube }
func (PlayerDeathMsg) MessageType() string     { return TypePlayerDeath }
func (GameStateUpdateMsg) MessageType() string { return TypeGameStateUpdate }
func (WelcomeMsg) MessageType() string         { return TypeWelcome }

// Encode marshals m with its type tag filled in.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case PlayerConnectMsg:
		v.Type = TypePlayerConnect
		return json.Marshal(v)
	case PlayerStateMsg:
		v.Type = TypePlayerState
		return json.Marshal(v)
	case CollectCubeMsg:
		v.Type = TypeCollectCube
		return json.Marshal(v)
	case PlayerDeathMsg:
		v.Type = TypePlayerDeath
		return json.Marshal(v)
	case GameStateUpdateMsg:
		v.Type = TypeGameStateUpdate
		return json.Marshal(v)
	case WelcomeMsg:
		v.Type = TypeWelcome
		return json.Marshal(v)
	}
	return json.Marshal(m)
}
