package dispatcher

// toolError is the §6/§7 `{error: <kind>, message, …context}` shape
// every tool handler returns on a known domain failure — never a bare
// transport fault, per §7's "Silent fallbacks are forbidden" policy.
type toolError struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Context map[string]any `json:"-"`
}

func newToolError(kind, message string) toolError {
	return toolError{Error: kind, Message: message}
}

// asMap flattens a toolError into a plain map so handlers can merge in
// kind-specific context fields (session_name, session_voice, …) before
// marshalling the response.
func (e toolError) asMap() map[string]any {
	out := map[string]any{
		"success": false,
		"error":   e.Error,
		"message": e.Message,
	}
	for k, v := range e.Context {
		out[k] = v
	}
	return out
}

const (
	errInvalidVoice      = "invalid_voice"
	errNameOccupied      = "name_occupied"
	errMicBusy           = "mic_busy"
	errMuted             = "muted"
	errTimeout           = "timeout"
	errCancelled         = "cancelled"
	errEngineUnavailable = "engine_unavailable"
)
