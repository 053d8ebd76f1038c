package voice

import "errors"

// Sentinel errors surfaced by Registry, translated by the dispatcher into
// the §7 error taxonomy (invalid_voice, name_occupied).
var (
	ErrInvalidVoice = errors.New("invalid_voice")
	ErrNameOccupied = errors.New("name_occupied")
	ErrUnknownAgent = errors.New("unknown_agent")
)
