package protocol

import "errors"

// ErrMalformed wraps every decode/validation failure of an inbound message.
// The message is dropped; the connection stays open.
var ErrMalformed = errors.New("malformed message")

const (
	// Protocol/transport validation.
	ErrMalformedMessage = "E_MALFORMED_MESSAGE"
	ErrUnknownType      = "E_UNKNOWN_TYPE"
	ErrHandshake        = "E_HANDSHAKE"
	ErrRateLimit        = "E_RATE_LIMIT"

	// Network.
	ErrConnectionLost = "E_CONNECTION_LOST"

	// Game rules.
	ErrValueTooHigh = "E_VALUE_TOO_HIGH"
	ErrStaleState   = "E_STALE_STATE"
	ErrStateDesync  = "E_STATE_DESYNC"
)

var knownCodes = map[string]struct{}{
	ErrMalformedMessage: {},
	ErrUnknownType:      {},
	ErrHandshake:        {},
	ErrRateLimit:        {},
	ErrConnectionLost:   {},
	ErrValueTooHigh:     {},
	ErrStaleState:       {},
	ErrStateDesync:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
