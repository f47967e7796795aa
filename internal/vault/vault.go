package vault

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"

	"tunelink/internal/domain"
)

// KeyProvider yields the vault encryption key. The key lives in an OS-backed
// facility and is never written to application-controlled storage.
type KeyProvider interface {
	// Key returns the 32-byte vault key, or an error wrapping
	// domain.ErrEncryptionUnavailable when the facility cannot serve it
	Key(ctx context.Context) ([]byte, error)
}

// Vault encrypts and decrypts small secrets (flags, timestamps, token
// lists) with XChaCha20-Poly1305. Blobs are hex strings carrying the random
// nonce followed by the sealed payload.
//
// Decryption failure is by design not an error: a blob that cannot be
// opened resolves to absent so a corrupt or foreign value can never block
// startup.
type Vault struct {
	logger *zap.Logger
	keys   KeyProvider

	mu   sync.Mutex
	aead cipher.AEAD // lazily built from the provider key
}

// New creates a vault over the given key provider
func New(logger *zap.Logger, keys KeyProvider) *Vault {
	return &Vault{logger: logger, keys: keys}
}

// Encrypt seals plaintext into an opaque hex blob.
// When the key facility is unavailable the caller must treat the secret as
// permanently disabled; cleartext is never stored as a fallback.
func (v *Vault) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	aead, err := v.sealer(ctx)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", domain.ErrEncryptionUnavailable, err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure (bad hex, wrong
// key, truncation, tampering) returns ok=false, never an error.
func (v *Vault) Decrypt(ctx context.Context, blob string) ([]byte, bool) {
	if blob == "" {
		return nil, false
	}

	aead, err := v.sealer(ctx)
	if err != nil {
		return nil, false
	}

	raw, err := hex.DecodeString(blob)
	if err != nil || len(raw) < aead.NonceSize() {
		return nil, false
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}

// EncryptString seals a string value
func (v *Vault) EncryptString(ctx context.Context, plaintext string) (string, error) {
	return v.Encrypt(ctx, []byte(plaintext))
}

// DecryptString opens a blob as a string; absent on any failure
func (v *Vault) DecryptString(blob string) (string, bool) {
	plaintext, ok := v.Decrypt(context.Background(), blob)
	if !ok {
		return "", false
	}
	return string(plaintext), true
}

// EncryptBool seals a boolean flag
func (v *Vault) EncryptBool(ctx context.Context, value bool) (string, error) {
	s := "false"
	if value {
		s = "true"
	}
	return v.EncryptString(ctx, s)
}

// DecryptBool opens a blob as a boolean; false on any failure
func (v *Vault) DecryptBool(blob string) bool {
	s, ok := v.DecryptString(blob)
	return ok && s == "true"
}

// EncryptTime seals an absolute timestamp
func (v *Vault) EncryptTime(ctx context.Context, t time.Time) (string, error) {
	return v.EncryptString(ctx, t.UTC().Format(time.RFC3339Nano))
}

// DecryptTime opens a blob as a timestamp; absent on any failure
func (v *Vault) DecryptTime(blob string) (time.Time, bool) {
	s, ok := v.DecryptString(blob)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (v *Vault) sealer(ctx context.Context) (cipher.AEAD, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.aead != nil {
		return v.aead, nil
	}

	key, err := v.keys.Key(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain vault key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncryptionUnavailable, err)
	}

	v.aead = aead
	return aead, nil
}
