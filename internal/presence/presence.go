package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"tunelink/internal/domain"
)

const updateBuffer = 8

// Presence mirrors the canonical playback state to the local presence
// socket. It degrades silently: when the socket is unreachable the feature
// goes inert and the hub never notices.
type Presence struct {
	logger *zap.Logger
	client *Client
	states domain.StateSource
	now    func() time.Time

	mu          sync.Mutex
	unsubscribe func()
	done        chan struct{}
}

// New creates a disabled presence integration
func New(logger *zap.Logger, client *Client, states domain.StateSource) *Presence {
	return &Presence{
		logger: logger,
		client: client,
		states: states,
		now:    time.Now,
	}
}

// Enable subscribes to the hub and starts publishing. Enabling twice is a
// no-op.
func (p *Presence) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unsubscribe != nil {
		return nil
	}

	updates := make(chan domain.PlaybackState, updateBuffer)
	done := make(chan struct{})

	// The hub fan-out must never block on socket I/O; a full buffer drops
	// the oldest snapshot since only the newest matters here
	p.unsubscribe = p.states.Subscribe(func(snap domain.PlaybackState) {
		for {
			select {
			case updates <- snap:
				return
			case <-done:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	p.done = done

	go p.runLoop(updates, done)

	// Publish whatever is playing right now
	updates <- p.states.Snapshot()

	p.logger.Info("Presence integration enabled")
	return nil
}

// Disable unsubscribes and tears down the socket connection
func (p *Presence) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unsubscribe == nil {
		return
	}
	p.unsubscribe()
	p.unsubscribe = nil
	close(p.done)
	p.done = nil

	if err := p.client.ClearActivity(); err != nil {
		p.logger.Debug("Could not clear activity on disable", zap.Error(err))
	}
	p.client.Close()
	p.logger.Info("Presence integration disabled")
}

func (p *Presence) runLoop(updates <-chan domain.PlaybackState, done <-chan struct{}) {
	unreachable := false
	for {
		select {
		case <-done:
			return

		case snap := <-updates:
			err := p.client.SetActivity(p.deriveActivity(snap))
			if err != nil && !unreachable {
				p.logger.Warn("Presence service unreachable, going inert",
					zap.Error(err))
			}
			if err == nil && unreachable {
				p.logger.Info("Presence service reachable again")
			}
			unreachable = err != nil
		}
	}
}

// deriveActivity maps a snapshot to an activity payload, nil when no track
// is known so the published presence is cleared
func (p *Presence) deriveActivity(snap domain.PlaybackState) *Activity {
	if !snap.HasTrack() {
		return nil
	}

	activity := &Activity{
		Details: snap.Title,
		State:   snap.Author,
		Assets: &Assets{
			LargeImage: snap.ThumbnailURL,
			LargeText:  snap.Title,
		},
	}

	// The end time is estimated for every known track, not just a playing
	// one, so a paused track still shows where it would finish.
	if snap.DurationSeconds > 0 {
		remaining := time.Duration((snap.DurationSeconds - snap.PositionSeconds) * float64(time.Second))
		activity.Timestamps = &Timestamps{
			End: p.now().Add(remaining).UnixMilli(),
		}
	}

	switch snap.TrackState {
	case domain.TrackStatePlaying:
		activity.Assets.SmallImage = "play"
		activity.Assets.SmallText = "Playing"
	case domain.TrackStatePaused:
		activity.Assets.SmallImage = "pause"
		activity.Assets.SmallText = "Paused"
	case domain.TrackStateBuffering:
		activity.Assets.SmallImage = "play"
		activity.Assets.SmallText = "Buffering"
	}

	return activity
}
