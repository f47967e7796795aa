package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tunelink/internal/domain"
)

// Raw event kinds emitted by the embedded player shim
const (
	KindProgress  = "progress"
	KindState     = "stateChanged"
	KindVideoData = "videoDataChanged"
	KindQueue     = "queueChanged"
	KindAdState   = "adStateChanged"
)

// videoDataPayload is the wire shape of a video-data event
type videoDataPayload struct {
	Details    domain.VideoDetails `json:"videoDetails"`
	PlaylistID string              `json:"playlistId"`
}

// Bridge is the boundary to the embedded web player. Inbound, it decodes the
// player's loosely-typed telemetry payloads into tagged variants and rejects
// malformed ones before they reach the normalizer. Outbound, it carries
// validated remote-control commands back to the embedding shell.
type Bridge struct {
	logger   *zap.Logger
	events   chan domain.TelemetryEvent
	commands chan domain.RemoteCommand

	mu              sync.Mutex
	lastDropWarning time.Time
}

// NewBridge creates a bridge with bounded event buffering
func NewBridge(logger *zap.Logger) *Bridge {
	return &Bridge{
		logger:   logger,
		events:   make(chan domain.TelemetryEvent, 64),
		commands: make(chan domain.RemoteCommand, 16),
	}
}

// Events returns the validated telemetry stream consumed by the normalizer
func (b *Bridge) Events() <-chan domain.TelemetryEvent {
	return b.events
}

// Commands returns the outbound remote-control stream. The embedding shell
// drains this channel and forwards each command to the player view.
func (b *Bridge) Commands() <-chan domain.RemoteCommand {
	return b.commands
}

// Execute validates a remote-control command and queues it for the player
func (b *Bridge) Execute(ctx context.Context, cmd domain.RemoteCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	select {
	case b.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleRaw decodes one raw telemetry payload. A payload that fails to
// decode returns ErrMalformedTelemetry and is dropped; it never resets
// anything downstream.
func (b *Bridge) HandleRaw(kind string, payload json.RawMessage) error {
	ev, err := decode(kind, payload)
	if err != nil {
		b.logger.Warn("Dropping malformed telemetry event",
			zap.String("kind", kind),
			zap.Error(err))
		return err
	}

	// Non-blocking send: a slow consumer must not stall the player shim.
	// Dropped events are tolerable; the next snapshot supersedes them.
	select {
	case b.events <- ev:
	default:
		b.logChannelFullWarning()
	}
	return nil
}

func decode(kind string, payload json.RawMessage) (domain.TelemetryEvent, error) {
	switch kind {
	case KindProgress:
		var seconds float64
		if err := json.Unmarshal(payload, &seconds); err != nil {
			return nil, fmt.Errorf("%w: progress: %v", domain.ErrMalformedTelemetry, err)
		}
		return domain.ProgressEvent{Seconds: seconds}, nil

	case KindState:
		var code int
		if err := json.Unmarshal(payload, &code); err != nil {
			return nil, fmt.Errorf("%w: state code: %v", domain.ErrMalformedTelemetry, err)
		}
		return domain.StateEvent{Code: code}, nil

	case KindVideoData:
		var vd videoDataPayload
		if err := json.Unmarshal(payload, &vd); err != nil {
			return nil, fmt.Errorf("%w: video data: %v", domain.ErrMalformedTelemetry, err)
		}
		if vd.Details.VideoID == "" {
			return nil, fmt.Errorf("%w: video data without videoId", domain.ErrMalformedTelemetry)
		}
		return domain.VideoDataEvent{Details: vd.Details, PlaylistID: vd.PlaylistID}, nil

	case KindQueue:
		var items []domain.QueueItem
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, fmt.Errorf("%w: queue: %v", domain.ErrMalformedTelemetry, err)
		}
		return domain.QueueEvent{Items: items}, nil

	case KindAdState:
		var playing bool
		if err := json.Unmarshal(payload, &playing); err != nil {
			return nil, fmt.Errorf("%w: ad state: %v", domain.ErrMalformedTelemetry, err)
		}
		return domain.AdStateEvent{Playing: playing}, nil

	default:
		return nil, fmt.Errorf("%w: unknown event kind %q", domain.ErrMalformedTelemetry, kind)
	}
}

// logChannelFullWarning rate-limits the "events channel full" warning to
// avoid log spam during rapid track skipping
func (b *Bridge) logChannelFullWarning() {
	b.mu.Lock()
	defer b.mu.Unlock()

	const warningInterval = 5 * time.Second
	now := time.Now()
	if now.Sub(b.lastDropWarning) >= warningInterval {
		b.logger.Warn("Telemetry channel full, dropping event",
			zap.String("note", "expected during rapid track skipping"))
		b.lastDropWarning = now
	}
}
