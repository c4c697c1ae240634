package arena

// Event names carried over the realtime channel. The hub prefixes nothing;
// these strings are the wire values.
const (
	EventSessionState = "session_state"
	EventProgress     = "progress"
	EventGraceStarted = "grace_started"
	EventSessionEnded = "session_ended"
	EventKicked       = "kicked"
)

// Broadcaster fans coordinator events out to connected clients. The
// coordinator never blocks on it; implementations must drop or buffer.
type Broadcaster interface {
	SessionEvent(sessionID, event string, payload any)
	SessionListChanged()
}

// NopBroadcaster is the default until a hub is attached, and what tests use
// when they only care about state.
type NopBroadcaster struct{}

func (NopBroadcaster) SessionEvent(string, string, any) {}
func (NopBroadcaster) SessionListChanged()              {}
