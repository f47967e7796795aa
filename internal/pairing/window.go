package pairing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/settings"
)

// WindowTTL is how long a pairing window stays open. Only the absolute open
// time is persisted; remaining time is always recomputed from it so the TTL
// survives a process restart without granting an unbounded window.
const WindowTTL = 300 * time.Second

// Cipher is the vault surface the controller needs
type Cipher interface {
	EncryptBool(ctx context.Context, value bool) (string, error)
	DecryptBool(blob string) bool
	EncryptTime(ctx context.Context, t time.Time) (string, error)
	DecryptTime(blob string) (time.Time, bool)
}

// Controller owns the pairing window state machine. The window opens only by
// explicit request and closes by expiry, explicit close, or feature disable.
// Both persisted fields are encrypted; an undecryptable or half-written pair
// reads as closed and is cleared on the spot.
type Controller struct {
	logger   *zap.Logger
	cipher   Cipher
	settings domain.Settings

	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	openedAt   time.Time // zero when closed
	timer      *time.Timer
	generation uint64 // invalidates armed timers on every transition
}

// NewController creates a closed controller. Call Reconcile to restore a
// window persisted by an earlier run.
func NewController(logger *zap.Logger, cipher Cipher, store domain.Settings) *Controller {
	return &Controller{
		logger:   logger,
		cipher:   cipher,
		settings: store,
		ttl:      WindowTTL,
		now:      time.Now,
	}
}

// IsOpen reports whether the pairing window is currently open
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.openedAt.IsZero()
}

// Remaining returns the time left before expiry, zero when closed
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openedAt.IsZero() {
		return 0
	}
	remaining := c.ttl - c.now().Sub(c.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Open transitions the window to open and persists the encrypted flag and
// open timestamp. Opening while already open is a no-op so an armed timer is
// never silently extended.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.openedAt.IsZero() {
		c.logger.Debug("Pairing window already open, ignoring")
		return nil
	}

	openedAt := c.now()

	flagBlob, err := c.cipher.EncryptBool(ctx, true)
	if err != nil {
		return err
	}
	timeBlob, err := c.cipher.EncryptTime(ctx, openedAt)
	if err != nil {
		return err
	}

	if err := c.settings.Set(settings.KeyPairingEnabled, flagBlob); err != nil {
		return err
	}
	if err := c.settings.Set(settings.KeyPairingOpenedAt, timeBlob); err != nil {
		return err
	}

	c.openedAt = openedAt
	c.armLocked(c.ttl)
	c.logger.Info("Pairing window opened",
		zap.Duration("ttl", c.ttl))
	return nil
}

// Close transitions the window to closed, cancels any armed timer and clears
// the persisted fields. Closing a closed window is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked("explicit close")
}

// Reconcile restores the persisted window state. It runs once at process
// start and again whenever the persisted fields change under us. The
// algorithm is idempotent:
//
//  1. Decrypt the flag and timestamp independently. Failure of either reads
//     as closed and clears both fields (self-healing after a partial write).
//  2. If the window was open and the TTL has elapsed, close and clear now.
//  3. Otherwise arm a one-shot timer for the remaining time.
func (c *Controller) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	flagBlob, _ := c.settings.Get(settings.KeyPairingEnabled)
	timeBlob, _ := c.settings.Get(settings.KeyPairingOpenedAt)

	if flagBlob == "" && timeBlob == "" {
		if !c.openedAt.IsZero() {
			c.closeLocked("persisted state cleared")
		}
		return
	}

	enabled := c.cipher.DecryptBool(flagBlob)
	openedAt, timeOK := c.cipher.DecryptTime(timeBlob)

	if !enabled || !timeOK {
		c.logger.Warn("Pairing window state unreadable, repairing to closed")
		c.closeLocked("unreadable persisted state")
		return
	}

	elapsed := c.now().Sub(openedAt)
	if elapsed >= c.ttl {
		c.logger.Info("Persisted pairing window already expired",
			zap.Duration("elapsed", elapsed))
		c.closeLocked("expired while away")
		return
	}

	c.openedAt = openedAt
	c.armLocked(c.ttl - elapsed)
	c.logger.Info("Pairing window restored",
		zap.Duration("remaining", c.ttl-elapsed))
}

// armLocked arms the one-shot expiry timer. The generation counter makes
// cancellation and firing mutually exclusive: a timer that fires after a
// transition finds a newer generation and does nothing.
func (c *Controller) armLocked(after time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	generation := c.generation
	c.timer = time.AfterFunc(after, func() {
		c.expire(generation)
	})
}

func (c *Controller) expire(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.closeLocked("ttl expired")
}

func (c *Controller) closeLocked(reason string) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	wasOpen := !c.openedAt.IsZero()
	c.openedAt = time.Time{}

	if err := c.settings.Delete(settings.KeyPairingEnabled); err != nil {
		c.logger.Warn("Failed to clear pairing flag", zap.Error(err))
	}
	if err := c.settings.Delete(settings.KeyPairingOpenedAt); err != nil {
		c.logger.Warn("Failed to clear pairing timestamp", zap.Error(err))
	}

	if wasOpen {
		c.logger.Info("Pairing window closed",
			zap.String("reason", reason))
	}
}
