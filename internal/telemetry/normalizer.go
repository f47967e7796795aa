package telemetry

import (
	"context"

	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/playerstate"
	"tunelink/internal/settings"
)

// Normalizer drains decoded player events and folds them into the state hub.
// Malformed events are logged and dropped so one bad payload can never
// desynchronize the canonical state from the player.
type Normalizer struct {
	logger   *zap.Logger
	hub      *playerstate.Hub
	settings domain.Settings
	events   <-chan domain.TelemetryEvent
}

// NewNormalizer creates a normalizer over a decoded event stream
func NewNormalizer(
	logger *zap.Logger,
	hub *playerstate.Hub,
	store domain.Settings,
	events <-chan domain.TelemetryEvent,
) *Normalizer {
	return &Normalizer{
		logger:   logger,
		hub:      hub,
		settings: store,
		events:   events,
	}
}

// Start launches the event processing loop in a goroutine.
// It returns immediately (non-blocking).
func (n *Normalizer) Start(ctx context.Context) error {
	n.logger.Info("Telemetry normalizer starting...")
	go n.runLoop(ctx)
	return nil
}

func (n *Normalizer) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Telemetry loop stopped")
			return

		case event, ok := <-n.events:
			if !ok {
				n.logger.Info("Telemetry events channel closed")
				return
			}
			n.Apply(event)
		}
	}
}

// Apply folds a single event into the hub. Application is strictly in the
// order events arrive; intermediate loading and buffering codes pass through
// without disturbing track identity.
func (n *Normalizer) Apply(event domain.TelemetryEvent) {
	switch ev := event.(type) {
	case domain.ProgressEvent:
		if err := n.hub.ApplyProgress(ev.Seconds); err != nil {
			n.logger.Warn("Dropping malformed progress event",
				zap.Float64("seconds", ev.Seconds),
				zap.Error(err))
		}

	case domain.StateEvent:
		n.hub.ApplyState(ev.Code)

	case domain.VideoDataEvent:
		if err := n.hub.ApplyVideoData(ev.Details, ev.PlaylistID); err != nil {
			n.logger.Warn("Dropping malformed video data event",
				zap.String("videoId", ev.Details.VideoID),
				zap.Error(err))
			return
		}
		n.recordLastPlayed(ev.Details.VideoID, ev.PlaylistID)

	case domain.QueueEvent:
		n.hub.ApplyQueue(ev.Items)

	case domain.AdStateEvent:
		n.hub.ApplyAdState(ev.Playing)

	default:
		n.logger.Warn("Unknown telemetry event type")
	}
}

// recordLastPlayed persists the track identity so playback can resume after
// a restart. Persistence failures are logged, never propagated: resume is a
// convenience, not a correctness requirement.
func (n *Normalizer) recordLastPlayed(videoID, playlistID string) {
	if err := n.settings.Set(settings.KeyLastVideoID, videoID); err != nil {
		n.logger.Warn("Failed to record last video", zap.Error(err))
		return
	}
	if err := n.settings.Set(settings.KeyLastPlaylistID, playlistID); err != nil {
		n.logger.Warn("Failed to record last playlist", zap.Error(err))
	}
}
