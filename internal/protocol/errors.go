package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session state.
	ErrNoSession  = "E_NO_SESSION"
	ErrNotPlaying = "E_NOT_PLAYING"
	ErrNoHistory  = "E_NO_HISTORY"

	// Rule/command layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrUnknownAbility = "E_UNKNOWN_ABILITY"
	ErrUnknownActor   = "E_UNKNOWN_ACTOR"
	ErrCooldown       = "E_COOLDOWN"
	ErrNoResource     = "E_NO_RESOURCE"
	ErrInvalidTarget  = "E_INVALID_TARGET"
	ErrUnknownChoice  = "E_UNKNOWN_CHOICE"
	ErrRateLimit      = "E_RATE_LIMIT"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrNoSession:       {},
	ErrNotPlaying:      {},
	ErrNoHistory:       {},
	ErrBadRequest:      {},
	ErrUnknownAbility:  {},
	ErrUnknownActor:    {},
	ErrCooldown:        {},
	ErrNoResource:      {},
	ErrInvalidTarget:   {},
	ErrUnknownChoice:   {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
