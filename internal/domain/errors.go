package domain

import "errors"

// Error taxonomy. Decryption failures are deliberately absent: a blob that
// does not decrypt resolves to the type's zero value and is never surfaced.
var (
	// ErrEncryptionUnavailable means the OS keying facility cannot provide a
	// key. The secret being stored must be treated as permanently disabled;
	// cleartext is never written as a fallback.
	ErrEncryptionUnavailable = errors.New("encryption unavailable")

	// ErrPairingClosed is returned to a client requesting a token outside
	// the pairing window.
	ErrPairingClosed = errors.New("pairing window closed")

	// ErrInvalidToken is returned when a presented token is missing,
	// unknown, or revoked.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnknownCommand is returned for a remote-control command outside
	// the fixed vocabulary.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMalformedTelemetry marks a single telemetry event that failed
	// validation. The event is dropped; canonical state is never reset.
	ErrMalformedTelemetry = errors.New("malformed telemetry")
)
