package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/settings"
)

// TokenStore holds issued companion tokens in the settings store as a single
// encrypted blob. All mutations are read-modify-write under one mutex so
// concurrent issuance and revocation never lose updates.
//
// An undecryptable blob reads as an empty collection: previously paired
// clients lose access and must pair again, which beats refusing to start.
type TokenStore struct {
	logger   *zap.Logger
	cipher   domain.SecretCipher
	settings domain.Settings

	mu  sync.Mutex
	now func() time.Time
}

// NewTokenStore creates a token store over the settings-backed blob
func NewTokenStore(logger *zap.Logger, cipher domain.SecretCipher, store domain.Settings) *TokenStore {
	return &TokenStore{
		logger:   logger,
		cipher:   cipher,
		settings: store,
		now:      time.Now,
	}
}

// Issue mints a token with a random high-entropy id and persists it.
// The token value is returned exactly once; it is never listed afterwards.
func (t *TokenStore) Issue(ctx context.Context, label string) (domain.AuthToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token := domain.AuthToken{
		ID:       uuid.NewString(),
		Label:    label,
		IssuedAt: t.now().UTC(),
	}

	tokens := append(t.loadLocked(), token)
	if err := t.persistLocked(ctx, tokens); err != nil {
		return domain.AuthToken{}, fmt.Errorf("persist token: %w", err)
	}

	t.logger.Info("Companion token issued",
		zap.String("label", label))
	return token, nil
}

// Revoke removes a token. Revocation is effective immediately: the next
// Validate call reads the persisted collection fresh.
func (t *TokenStore) Revoke(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tokens := t.loadLocked()
	remaining := lo.Filter(tokens, func(tok domain.AuthToken, _ int) bool {
		return tok.ID != id
	})
	if len(remaining) == len(tokens) {
		return nil
	}

	if err := t.persistLocked(ctx, remaining); err != nil {
		return fmt.Errorf("persist revocation: %w", err)
	}
	t.logger.Info("Companion token revoked")
	return nil
}

// Validate reports whether a token id matches a non-revoked entry
func (t *TokenStore) Validate(id string) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	return lo.ContainsBy(t.loadLocked(), func(tok domain.AuthToken) bool {
		return tok.ID == id
	})
}

// List returns the issued tokens with their ids blanked, for display
func (t *TokenStore) List() []domain.AuthToken {
	t.mu.Lock()
	defer t.mu.Unlock()

	return lo.Map(t.loadLocked(), func(tok domain.AuthToken, _ int) domain.AuthToken {
		tok.ID = ""
		return tok
	})
}

func (t *TokenStore) loadLocked() []domain.AuthToken {
	blob, ok := t.settings.Get(settings.KeyAuthTokens)
	if !ok {
		return nil
	}

	cleartext, ok := t.cipher.DecryptString(blob)
	if !ok {
		t.logger.Warn("Token collection unreadable, treating as empty")
		return nil
	}

	var tokens []domain.AuthToken
	if err := json.Unmarshal([]byte(cleartext), &tokens); err != nil {
		t.logger.Warn("Token collection malformed, treating as empty",
			zap.Error(err))
		return nil
	}
	return tokens
}

func (t *TokenStore) persistLocked(ctx context.Context, tokens []domain.AuthToken) error {
	cleartext, err := json.Marshal(tokens)
	if err != nil {
		return err
	}

	blob, err := t.cipher.EncryptString(ctx, string(cleartext))
	if err != nil {
		return err
	}
	return t.settings.Set(settings.KeyAuthTokens, blob)
}
