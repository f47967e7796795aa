package domain

// TelemetryEvent is one validated playback event from the embedded player.
// The renderer bridge decodes the player's loosely-typed payloads into these
// tagged variants before anything downstream sees them.
type TelemetryEvent interface {
	telemetryEvent()
}

// ProgressEvent carries the playback position in seconds
type ProgressEvent struct {
	Seconds float64
}

// StateEvent carries a raw player state code
type StateEvent struct {
	Code int
}

// VideoDataEvent carries full track metadata plus the enclosing playlist.
// It is the only event that may change the canonical track identity.
type VideoDataEvent struct {
	Details    VideoDetails
	PlaylistID string
}

// QueueEvent replaces the playback queue wholesale
type QueueEvent struct {
	Items []QueueItem
}

// AdStateEvent reports whether an advertisement is currently playing
type AdStateEvent struct {
	Playing bool
}

func (ProgressEvent) telemetryEvent()  {}
func (StateEvent) telemetryEvent()     {}
func (VideoDataEvent) telemetryEvent() {}
func (QueueEvent) telemetryEvent()     {}
func (AdStateEvent) telemetryEvent()   {}
