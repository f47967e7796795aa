package domain

import (
	"time"

	"github.com/samber/lo"
)

// TrackState is the canonical playback state of the current track
type TrackState int

const (
	// TrackStateUnknown indicates the player has no usable state for the track
	TrackStateUnknown TrackState = iota
	// TrackStatePlaying indicates the track is playing
	TrackStatePlaying
	// TrackStatePaused indicates the track is paused
	TrackStatePaused
	// TrackStateBuffering indicates the track is buffering
	TrackStateBuffering
)

// String returns a human-readable name for the track state
func (s TrackState) String() string {
	switch s {
	case TrackStatePlaying:
		return "Playing"
	case TrackStatePaused:
		return "Paused"
	case TrackStateBuffering:
		return "Buffering"
	default:
		return "Unknown"
	}
}

// Raw player state codes emitted by the embedded web player.
// Observed flows that must not desync the canonical state:
//
//	play button:       -1 -> 5 -> -1 -> 3 -> 1
//	first-ever play:   -1 -> 3 -> 1
//	previous/next:     -1 -> 5 -> -1 -> 5 -> -1 -> 3 -> 1
//
// Code 5 only appears while a new song is loading; it maps to a transient
// Unknown and must never clear previously known track metadata.
const (
	RawStateUnknown   = -1
	RawStatePlaying   = 1
	RawStatePaused    = 2
	RawStateBuffering = 3
	RawStateLoading   = 5
)

// TrackStateFromCode maps a raw player state code to the canonical state.
// Unrecognized codes degrade to Unknown; the mapping is intentionally lossy.
func TrackStateFromCode(code int) TrackState {
	switch code {
	case RawStatePlaying:
		return TrackStatePlaying
	case RawStatePaused:
		return TrackStatePaused
	case RawStateBuffering:
		return TrackStateBuffering
	default:
		return TrackStateUnknown
	}
}

// Thumbnail is one cover-art rendition offered by the player
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Area returns the pixel area of the thumbnail
func (t Thumbnail) Area() int {
	return t.Width * t.Height
}

// LargestThumbnail returns the thumbnail covering the largest area.
// Ties keep the first thumbnail seen in input order.
func LargestThumbnail(thumbnails []Thumbnail) (Thumbnail, bool) {
	if len(thumbnails) == 0 {
		return Thumbnail{}, false
	}
	return lo.MaxBy(thumbnails, func(a, b Thumbnail) bool {
		return a.Area() > b.Area()
	}), true
}

// VideoDetails is the metadata blob attached to a video-data telemetry event
type VideoDetails struct {
	VideoID         string      `json:"videoId"`
	Title           string      `json:"title"`
	Author          string      `json:"author"`
	DurationSeconds float64     `json:"durationSeconds"`
	Thumbnails      []Thumbnail `json:"thumbnails"`
}

// QueueItem is one entry of the upcoming playback queue.
// The queue is replaced wholesale on every queue event; Index is the
// playback order position.
type QueueItem struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
	Length  string `json:"length"`
	Index   int    `json:"index"`
}

// PlaybackState is the single reconciled view of what is currently playing.
// The hub owns the only mutable instance; everyone else gets value copies.
type PlaybackState struct {
	TrackState      TrackState  `json:"trackState"`
	VideoID         string      `json:"videoId"`
	PlaylistID      string      `json:"playlistId"`
	Title           string      `json:"title"`
	Author          string      `json:"author"`
	DurationSeconds float64     `json:"durationSeconds"`
	PositionSeconds float64     `json:"positionSeconds"`
	ThumbnailURL    string      `json:"thumbnailUrl"`
	Thumbnails      []Thumbnail `json:"thumbnails"`
	AdPlaying       bool        `json:"adPlaying"`
	Queue           []QueueItem `json:"queue"`
}

// HasTrack reports whether a track identity is currently known
func (s PlaybackState) HasTrack() bool {
	return s.VideoID != ""
}

// AuthToken is a long-lived companion credential. Once issued it is
// independent of the pairing window; only explicit revocation removes it.
type AuthToken struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	IssuedAt time.Time `json:"issuedAt"`
}
