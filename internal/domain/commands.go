package domain

import "fmt"

// Remote-control command vocabulary. Commands are forwarded verbatim to the
// embedded player; anything outside this set is rejected, never dropped
// silently.
const (
	CommandPlayPause  = "playPause"
	CommandNext       = "next"
	CommandPrevious   = "previous"
	CommandThumbsUp   = "thumbsUp"
	CommandThumbsDown = "thumbsDown"
	CommandVolumeUp   = "volumeUp"
	CommandVolumeDown = "volumeDown"
	CommandNavigate   = "navigate"
)

var commandVocabulary = map[string]bool{
	CommandPlayPause:  true,
	CommandNext:       true,
	CommandPrevious:   true,
	CommandThumbsUp:   true,
	CommandThumbsDown: true,
	CommandVolumeUp:   true,
	CommandVolumeDown: true,
	CommandNavigate:   true,
}

// RemoteCommand is a remote-control request bound for the embedded player.
// Value is only meaningful for navigate (the target endpoint).
type RemoteCommand struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Validate checks the command against the fixed vocabulary
func (c RemoteCommand) Validate() error {
	if !commandVocabulary[c.Name] {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
	if c.Name == CommandNavigate && c.Value == "" {
		return fmt.Errorf("%w: navigate requires an endpoint", ErrUnknownCommand)
	}
	return nil
}
