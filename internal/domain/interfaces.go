package domain

import "context"

// Renderer is the outbound half of the embedded-player collaborator:
// validated remote-control commands are handed to it verbatim
type Renderer interface {
	// Execute forwards a remote-control command to the player
	Execute(ctx context.Context, cmd RemoteCommand) error
}

// StateSource is the read side of the player state hub.
// Consumers hold only a callback registration, never the hub itself.
type StateSource interface {
	// Subscribe registers a callback invoked with a snapshot on every state
	// change, in registration order. The returned function cancels the
	// subscription. Callbacks must not call back into the hub.
	Subscribe(fn func(PlaybackState)) (cancel func())

	// Snapshot returns a read-only copy of the current canonical state
	Snapshot() PlaybackState
}

// Settings is the persisted key/value settings collaborator. Values are
// opaque strings; encrypted secrets are stored as hex blobs.
type Settings interface {
	// Get returns the stored value and whether the key exists
	Get(key string) (string, bool)

	// Set stores a value and notifies change watchers
	Set(key, value string) error

	// Delete removes a key and notifies change watchers with an empty value
	Delete(key string) error

	// OnChange registers a watcher for every key change, including changes
	// applied externally to the backing file. Returns a cancel function.
	OnChange(fn func(key, value string)) (cancel func())
}

// SecretCipher encrypts and decrypts small secrets with an OS-backed key.
// Decryption failure is never an error; it resolves to absent.
type SecretCipher interface {
	// EncryptString returns an opaque hex blob, or ErrEncryptionUnavailable
	EncryptString(ctx context.Context, plaintext string) (string, error)

	// DecryptString returns the cleartext, or ok=false for any blob that
	// cannot be decrypted (corrupt, wrong key, empty)
	DecryptString(blob string) (string, bool)
}

// Integration is a toggleable consumer of player state (companion gateway,
// presence). Enable is idempotent; Disable tears down external resources.
type Integration interface {
	Enable() error
	Disable()
}

// Fetcher retrieves remote artwork bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
