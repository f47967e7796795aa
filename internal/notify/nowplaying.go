package notify

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // thumbnail format support
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/settings"
)

const (
	iconSize     = 256
	iconFilename = "now_playing.png"
	fetchTimeout = 10 * time.Second
	trackBuffer  = 8
)

// NowPlaying raises a desktop notification when the track changes. The
// feature is gated per event by the notifications setting, never by a
// restart, and a repeated track never re-notifies.
type NowPlaying struct {
	logger   *zap.Logger
	fetcher  domain.Fetcher
	settings domain.Settings
	states   domain.StateSource
	cacheDir string
	notify   func(title, message, icon string) error

	mu          sync.Mutex
	lastVideoID string
	unsubscribe func()
	done        chan struct{}
}

// NewNowPlaying creates a stopped notifier writing its icon under cacheDir
func NewNowPlaying(
	logger *zap.Logger,
	fetch domain.Fetcher,
	store domain.Settings,
	states domain.StateSource,
	cacheDir string,
) *NowPlaying {
	return &NowPlaying{
		logger:   logger,
		fetcher:  fetch,
		settings: store,
		states:   states,
		cacheDir: cacheDir,
		notify:   beeep.Notify,
	}
}

// Start subscribes to the hub. Starting twice is a no-op.
func (n *NowPlaying) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.unsubscribe != nil {
		return nil
	}

	tracks := make(chan domain.PlaybackState, trackBuffer)
	done := make(chan struct{})

	// Only track changes matter; fetching artwork must never block fan-out
	n.unsubscribe = n.states.Subscribe(func(snap domain.PlaybackState) {
		if !snap.HasTrack() || !n.isNewTrack(snap.VideoID) {
			return
		}
		select {
		case tracks <- snap:
		case <-done:
		default:
			n.logger.Debug("Notification queue full, dropping track")
		}
	})
	n.done = done

	go n.runLoop(tracks, done)

	n.logger.Info("Now-playing notifications started")
	return nil
}

// Stop unsubscribes from the hub. The hub lock is never taken while holding
// ours: the subscriber callback locks in the opposite order.
func (n *NowPlaying) Stop(ctx context.Context) error {
	n.mu.Lock()
	unsubscribe := n.unsubscribe
	done := n.done
	n.unsubscribe = nil
	n.done = nil
	n.mu.Unlock()

	if unsubscribe == nil {
		return nil
	}
	unsubscribe()
	close(done)
	return nil
}

func (n *NowPlaying) runLoop(tracks <-chan domain.PlaybackState, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case snap := <-tracks:
			n.announce(snap)
		}
	}
}

// isNewTrack records the video id and reports whether it changed
func (n *NowPlaying) isNewTrack(videoID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if videoID == n.lastVideoID {
		return false
	}
	n.lastVideoID = videoID
	return true
}

func (n *NowPlaying) announce(snap domain.PlaybackState) {
	enabled, _ := n.settings.Get(settings.KeyNowPlayingNotify)
	if enabled != "true" {
		return
	}

	icon := n.prepareIcon(snap.ThumbnailURL)

	if err := n.notify(snap.Title, snap.Author, icon); err != nil {
		n.logger.Warn("Desktop notification failed", zap.Error(err))
		return
	}
	n.logger.Debug("Now-playing notification raised",
		zap.String("videoId", snap.VideoID))
}

// prepareIcon fetches the cover, downscales it and writes it to the cache
// dir. Any failure degrades to a notification without artwork.
func (n *NowPlaying) prepareIcon(url string) string {
	if url == "" || n.cacheDir == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	data, err := n.fetcher.Fetch(ctx, url)
	if err != nil {
		n.logger.Debug("Cover fetch failed", zap.Error(err))
		return ""
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		n.logger.Debug("Cover decode failed", zap.Error(err))
		return ""
	}

	icon := imaging.Fit(img, iconSize, iconSize, imaging.Lanczos)

	if err := os.MkdirAll(n.cacheDir, 0o755); err != nil {
		n.logger.Debug("Cache dir unavailable", zap.Error(err))
		return ""
	}
	path := filepath.Join(n.cacheDir, iconFilename)
	if err := imaging.Save(icon, path); err != nil {
		n.logger.Debug("Cover save failed", zap.Error(err))
		return ""
	}
	return path
}
