package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Room routing/state.
	ErrRoomNotFound    = "E_ROOM_NOT_FOUND"
	ErrRoomQuarantined = "E_ROOM_QUARANTINED"

	// Transaction layer.
	ErrValidation     = "E_VALIDATION"
	ErrNotFound       = "E_NOT_FOUND"
	ErrBusy           = "E_BUSY"
	ErrDepUnavailable = "E_DEP_UNAVAILABLE"
	ErrInvariant      = "E_INVARIANT"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRoomNotFound:    {},
	ErrRoomQuarantined: {},
	ErrValidation:      {},
	ErrNotFound:        {},
	ErrBusy:            {},
	ErrDepUnavailable:  {},
	ErrInvariant:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Retryable reports whether a caller may usefully retry a failed transaction
// without changing it. Only gate-contention failures qualify.
func Retryable(code string) bool {
	return code == ErrBusy
}
