package presence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/playerstate"
)

type recordedFrame struct {
	op   uint32
	body json.RawMessage
}

// fakeSocket services one pipe end like a presence daemon would: it answers
// the handshake and records every frame
func fakeSocket(t *testing.T, conn net.Conn) <-chan recordedFrame {
	t.Helper()

	frames := make(chan recordedFrame, 16)
	go func() {
		defer close(frames)
		for {
			header := make([]byte, 8)
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			op := binary.LittleEndian.Uint32(header[0:4])
			size := binary.LittleEndian.Uint32(header[4:8])
			body := make([]byte, size)
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}

			frames <- recordedFrame{op: op, body: body}

			if op == opHandshake {
				reply := []byte(`{"cmd":"DISPATCH","evt":"READY"}`)
				replyHeader := make([]byte, 8)
				binary.LittleEndian.PutUint32(replyHeader[0:4], opFrame)
				binary.LittleEndian.PutUint32(replyHeader[4:8], uint32(len(reply)))
				if _, err := conn.Write(append(replyHeader, reply...)); err != nil {
					return
				}
			}
		}
	}()
	return frames
}

func pipeClient(t *testing.T) (*Client, <-chan recordedFrame) {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	c := NewClient(zap.NewNop())
	c.dial = func() (net.Conn, error) { return client, nil }
	return c, fakeSocket(t, server)
}

func waitFrame(t *testing.T, frames <-chan recordedFrame) recordedFrame {
	t.Helper()
	select {
	case frame, ok := <-frames:
		if !ok {
			t.Fatal("socket closed before frame arrived")
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return recordedFrame{}
	}
}

func TestClient_HandshakeThenActivity(t *testing.T) {
	client, frames := pipeClient(t)

	err := client.SetActivity(&Activity{Details: "Some Song", State: "Some Artist"})
	if err != nil {
		t.Fatalf("SetActivity failed: %v", err)
	}

	handshake := waitFrame(t, frames)
	if handshake.op != opHandshake {
		t.Fatalf("first frame op = %d, want handshake", handshake.op)
	}
	var hs handshakeBody
	if err := json.Unmarshal(handshake.body, &hs); err != nil {
		t.Fatalf("decode handshake: %v", err)
	}
	if hs.Version != 1 || hs.ClientID == "" {
		t.Errorf("handshake = %+v", hs)
	}

	frame := waitFrame(t, frames)
	if frame.op != opFrame {
		t.Fatalf("second frame op = %d, want frame", frame.op)
	}
	var cmd activityCommand
	if err := json.Unmarshal(frame.body, &cmd); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if cmd.Cmd != "SET_ACTIVITY" || cmd.Nonce == "" {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Args.Activity == nil || cmd.Args.Activity.Details != "Some Song" {
		t.Errorf("activity = %+v", cmd.Args.Activity)
	}
}

func TestClient_ClearSendsNullActivity(t *testing.T) {
	client, frames := pipeClient(t)

	if err := client.ClearActivity(); err != nil {
		t.Fatalf("ClearActivity failed: %v", err)
	}

	waitFrame(t, frames) // handshake
	frame := waitFrame(t, frames)

	var cmd activityCommand
	if err := json.Unmarshal(frame.body, &cmd); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if cmd.Args.Activity != nil {
		t.Errorf("clear carried an activity: %+v", cmd.Args.Activity)
	}
}

func TestDeriveActivity(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	p := New(zap.NewNop(), NewClient(zap.NewNop()), playerstate.NewHub(zap.NewNop()))
	p.now = func() time.Time { return base }

	tests := []struct {
		name string
		snap domain.PlaybackState
		want func(t *testing.T, got *Activity)
	}{
		{
			name: "no track clears presence",
			snap: domain.PlaybackState{TrackState: domain.TrackStatePlaying},
			want: func(t *testing.T, got *Activity) {
				if got != nil {
					t.Errorf("expected nil activity, got %+v", got)
				}
			},
		},
		{
			name: "playing track carries end timestamp",
			snap: domain.PlaybackState{
				TrackState:      domain.TrackStatePlaying,
				VideoID:         "abc",
				Title:           "Some Song",
				Author:          "Some Artist",
				DurationSeconds: 200,
				PositionSeconds: 50,
				ThumbnailURL:    "https://img.example/cover.jpg",
			},
			want: func(t *testing.T, got *Activity) {
				if got.Details != "Some Song" || got.State != "Some Artist" {
					t.Errorf("labels = %q / %q", got.Details, got.State)
				}
				if got.Assets.LargeImage != "https://img.example/cover.jpg" {
					t.Errorf("cover = %q", got.Assets.LargeImage)
				}
				wantEnd := base.Add(150 * time.Second).UnixMilli()
				if got.Timestamps == nil || got.Timestamps.End != wantEnd {
					t.Errorf("timestamps = %+v, want end %d", got.Timestamps, wantEnd)
				}
			},
		},
		{
			name: "paused track keeps the estimated end",
			snap: domain.PlaybackState{
				TrackState:      domain.TrackStatePaused,
				VideoID:         "abc",
				Title:           "Some Song",
				DurationSeconds: 200,
				PositionSeconds: 50,
			},
			want: func(t *testing.T, got *Activity) {
				wantEnd := base.Add(150 * time.Second).UnixMilli()
				if got.Timestamps == nil || got.Timestamps.End != wantEnd {
					t.Errorf("timestamps = %+v, want end %d", got.Timestamps, wantEnd)
				}
				if got.Assets.SmallImage != "pause" {
					t.Errorf("badge = %q", got.Assets.SmallImage)
				}
			},
		},
		{
			name: "unknown duration omits timestamps",
			snap: domain.PlaybackState{
				TrackState: domain.TrackStateBuffering,
				VideoID:    "abc",
				Title:      "Some Song",
			},
			want: func(t *testing.T, got *Activity) {
				if got.Timestamps != nil {
					t.Errorf("zero-duration activity carries timestamps: %+v", got.Timestamps)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, p.deriveActivity(tt.snap))
		})
	}
}

func TestPresence_DegradesSilently(t *testing.T) {
	hub := playerstate.NewHub(zap.NewNop())

	client := NewClient(zap.NewNop())
	client.dial = func() (net.Conn, error) {
		return nil, errors.New("no socket")
	}

	p := New(zap.NewNop(), client, hub)
	if err := p.Enable(); err != nil {
		t.Fatalf("Enable must not fail on an unreachable socket: %v", err)
	}
	defer p.Disable()

	// The hub keeps fanning out to other subscribers
	seen := make(chan domain.PlaybackState, 4)
	hub.Subscribe(func(s domain.PlaybackState) { seen <- s })

	if err := hub.ApplyVideoData(domain.VideoDetails{
		VideoID: "abc", Title: "Some Song", DurationSeconds: 100,
	}, ""); err != nil {
		t.Fatalf("ApplyVideoData failed: %v", err)
	}

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("hub fan-out stalled behind the presence integration")
	}
}

func TestPresence_EnableDisableIdempotent(t *testing.T) {
	hub := playerstate.NewHub(zap.NewNop())
	client, _ := pipeClient(t)

	p := New(zap.NewNop(), client, hub)
	if err := p.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if err := p.Enable(); err != nil {
		t.Fatalf("second Enable failed: %v", err)
	}
	p.Disable()
	p.Disable()
}
