package playerstate

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"tunelink/internal/domain"
)

// Hub is the single authoritative in-memory store of the canonical playback
// state. All mutations flow through the Apply* operations; every successful
// mutation fans the full current snapshot out to all subscribers
// synchronously, in registration order.
type Hub struct {
	logger *zap.Logger

	// mu serializes mutations and fan-out. Holding it through the fan-out
	// gives every subscriber a strictly ordered snapshot stream; the
	// trade-off is that callbacks must not call back into the hub.
	mu     sync.Mutex
	state  domain.PlaybackState
	subs   []subscriber
	nextID uint64
}

type subscriber struct {
	id uint64
	fn func(domain.PlaybackState)
}

// NewHub creates an empty hub with no known track
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		state:  domain.PlaybackState{TrackState: domain.TrackStateUnknown},
	}
}

// ApplyProgress updates the playback position in seconds
func (h *Hub) ApplyProgress(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: progress %v", domain.ErrMalformedTelemetry, seconds)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.PositionSeconds = seconds
	h.broadcastLocked()
	return nil
}

// ApplyState updates the track state from a raw player state code.
// Transient and unrecognized codes map to Unknown but never touch the
// track's metadata; only ApplyVideoData changes track identity.
func (h *Hub) ApplyState(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.TrackState = domain.TrackStateFromCode(code)
	h.broadcastLocked()
}

// ApplyVideoData replaces the track metadata and playlist
func (h *Hub) ApplyVideoData(details domain.VideoDetails, playlistID string) error {
	if details.VideoID == "" {
		return fmt.Errorf("%w: video data without videoId", domain.ErrMalformedTelemetry)
	}
	if details.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration %v", domain.ErrMalformedTelemetry, details.DurationSeconds)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.VideoID = details.VideoID
	h.state.PlaylistID = playlistID
	h.state.Title = details.Title
	h.state.Author = details.Author
	h.state.DurationSeconds = details.DurationSeconds
	h.state.Thumbnails = append([]domain.Thumbnail(nil), details.Thumbnails...)
	if best, ok := domain.LargestThumbnail(details.Thumbnails); ok {
		h.state.ThumbnailURL = best.URL
	} else {
		h.state.ThumbnailURL = ""
	}
	h.broadcastLocked()
	return nil
}

// ApplyQueue replaces the playback queue wholesale
func (h *Hub) ApplyQueue(items []domain.QueueItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Queue = append([]domain.QueueItem(nil), items...)
	h.broadcastLocked()
}

// ApplyAdState updates the advertisement flag
func (h *Hub) ApplyAdState(playing bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.AdPlaying = playing
	h.broadcastLocked()
}

// Subscribe registers a callback that receives a snapshot on every state
// change. Notification order follows registration order. The returned
// function cancels the subscription.
func (h *Hub) Subscribe(fn func(domain.PlaybackState)) (cancel func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs = append(h.subs, subscriber{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns a read-only copy of the current canonical state
func (h *Hub) Snapshot() domain.PlaybackState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() domain.PlaybackState {
	snap := h.state
	snap.Thumbnails = append([]domain.Thumbnail(nil), h.state.Thumbnails...)
	snap.Queue = append([]domain.QueueItem(nil), h.state.Queue...)
	return snap
}

// broadcastLocked delivers the current snapshot to every subscriber. A
// panicking subscriber is isolated so delivery continues to the rest.
func (h *Hub) broadcastLocked() {
	snap := h.snapshotLocked()
	for _, s := range h.subs {
		h.notify(s, snap)
	}
}

func (h *Hub) notify(s subscriber, snap domain.PlaybackState) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("State subscriber panicked, continuing fan-out",
				zap.Uint64("subscriber", s.id),
				zap.Any("panic", r))
		}
	}()
	s.fn(snap)
}
