package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/playerstate"
	"tunelink/internal/settings"
)

// memSettings is an in-memory Settings for tests
type memSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]string)}
}

func (m *memSettings) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memSettings) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memSettings) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memSettings) OnChange(fn func(key, value string)) (cancel func()) {
	return func() {}
}

func sampleVideoData() domain.VideoDataEvent {
	return domain.VideoDataEvent{
		Details: domain.VideoDetails{
			VideoID:         "dQw4w9WgXcQ",
			Title:           "Never Gonna Give You Up",
			Author:          "Rick Astley",
			DurationSeconds: 213,
		},
		PlaylistID: "RDdQw4w9WgXcQ",
	}
}

func TestNormalizer_AppliesEventsInOrder(t *testing.T) {
	hub := playerstate.NewHub(zap.NewNop())
	n := NewNormalizer(zap.NewNop(), hub, newMemSettings(), nil)

	n.Apply(sampleVideoData())
	n.Apply(domain.StateEvent{Code: domain.RawStatePlaying})
	n.Apply(domain.ProgressEvent{Seconds: 42.5})

	snap := hub.Snapshot()
	if snap.TrackState != domain.TrackStatePlaying {
		t.Errorf("state = %v, want playing", snap.TrackState)
	}
	if snap.PositionSeconds != 42.5 {
		t.Errorf("position = %v, want 42.5", snap.PositionSeconds)
	}
	if snap.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("video = %q", snap.VideoID)
	}
}

func TestNormalizer_RecordsLastPlayed(t *testing.T) {
	hub := playerstate.NewHub(zap.NewNop())
	store := newMemSettings()
	n := NewNormalizer(zap.NewNop(), hub, store, nil)

	n.Apply(sampleVideoData())

	if v, _ := store.Get(settings.KeyLastVideoID); v != "dQw4w9WgXcQ" {
		t.Errorf("last video = %q", v)
	}
	if v, _ := store.Get(settings.KeyLastPlaylistID); v != "RDdQw4w9WgXcQ" {
		t.Errorf("last playlist = %q", v)
	}
}

func TestNormalizer_MalformedEventsAreDropped(t *testing.T) {
	hub := playerstate.NewHub(zap.NewNop())
	store := newMemSettings()
	n := NewNormalizer(zap.NewNop(), hub, store, nil)

	n.Apply(sampleVideoData())
	n.Apply(domain.ProgressEvent{Seconds: -3})
	n.Apply(domain.VideoDataEvent{Details: domain.VideoDetails{Title: "no id"}})

	snap := hub.Snapshot()
	if snap.PositionSeconds != 0 {
		t.Errorf("negative progress leaked through: %v", snap.PositionSeconds)
	}
	if snap.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("malformed video data replaced track identity: %q", snap.VideoID)
	}
	if v, _ := store.Get(settings.KeyLastVideoID); v != "dQw4w9WgXcQ" {
		t.Errorf("malformed video data was recorded: %q", v)
	}
}

func TestNormalizer_TransientCodesViaLoop(t *testing.T) {
	hub := playerstate.NewHub(zap.NewNop())
	events := make(chan domain.TelemetryEvent, 16)
	n := NewNormalizer(zap.NewNop(), hub, newMemSettings(), events)

	done := make(chan domain.PlaybackState, 16)
	hub.Subscribe(func(s domain.PlaybackState) {
		if s.TrackState == domain.TrackStatePlaying {
			select {
			case done <- s:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events <- sampleVideoData()
	for _, code := range []int{-1, 5, -1, 3, 1} {
		events <- domain.StateEvent{Code: code}
	}

	select {
	case snap := <-done:
		if snap.VideoID != "dQw4w9WgXcQ" {
			t.Errorf("track identity lost across transient codes: %q", snap.VideoID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playing state")
	}
}
