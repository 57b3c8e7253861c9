package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// Decode parses one inbound frame into its concrete message. Every failure wraps
// ErrMalformed so callers can drop the frame and keep the connection.
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	base, err := DecodeBase(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch base.Type {
	case TypePlayerConnect:
		return decodeAs[PlayerConnectMsg](b)
	case TypePlayerState:
		m, err := decodeAs[PlayerStateMsg](b)
		if err != nil {
			return nil, err
		}
		if err := validatePlayerState(m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeCollectCube:
		return decodeAs[CollectCubeMsg](b)
	case TypePlayerDeath:
		return decodeAs[PlayerDeathMsg](b)
	case TypeGameStateUpdate:
		m, err := decodeAs[GameStateUpdateMsg](b)
		if err != nil {
			return nil, err
		}
		if m.GameState.Players == nil {
			m.GameState.Players = map[string]PlayerState{}
		}
		return m, nil
	case TypeWelcome:
		return decodeAs[WelcomeMsg](b)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, base.Type)
	}
}

func decodeAs[T Message](b []byte) (T, error) {
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrMalformed, out.MessageType(), err)
	}
	return out, nil
}

func validatePlayerState(m PlayerStateMsg) error {
	if len(m.Segments) == 0 {
		return fmt.Errorf("%w: player_state without segments", ErrMalformed)
	}
	if !IsPowerOfTwo(m.HeadValue) {
		return fmt.Errorf("%w: head_value %d", ErrMalformed, m.HeadValue)
	}
	for i, s := range m.Segments {
		if !IsPowerOfTwo(s.Value()) || s[3] != math.Trunc(s[3]) {
			return fmt.Errorf("%w: segment %d value %v", ErrMalformed, i, s[3])
		}
	}
	return nil
}

// IsPowerOfTwo reports whether v is a cube value: a power of two >= 2.
func IsPowerOfTwo(v int) bool {
	return v >= 2 && v&(v-1) == 0
}
