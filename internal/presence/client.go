package presence

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IPC opcodes of the local presence socket protocol
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
)

const (
	presenceClientID = "1199991318155230249"
	dialTimeout      = 2 * time.Second
	maxFrameSize     = 64 * 1024
)

// Activity is the rich-presence payload shown for the current track
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

// Timestamps carries the estimated track end in unix milliseconds
type Timestamps struct {
	End int64 `json:"end,omitempty"`
}

// Assets names the cover art and the play-state badge
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type handshakeBody struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

type activityCommand struct {
	Cmd   string       `json:"cmd"`
	Args  activityArgs `json:"args"`
	Nonce string       `json:"nonce"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

// Client speaks the presence IPC protocol over a unix socket: a 4-byte
// little-endian opcode, a 4-byte little-endian length, then a JSON body.
// The connection is dialed lazily and dropped on any write failure; the
// next update redials.
type Client struct {
	logger *zap.Logger
	dial   func() (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

// NewClient creates a client that dials the local presence socket
func NewClient(logger *zap.Logger) *Client {
	return &Client{logger: logger, dial: dialPresenceSocket}
}

// SetActivity publishes an activity, or clears it when activity is nil
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return err
	}

	cmd := activityCommand{
		Cmd:   "SET_ACTIVITY",
		Args:  activityArgs{PID: os.Getpid(), Activity: activity},
		Nonce: uuid.NewString(),
	}
	if err := c.writeLocked(opFrame, cmd); err != nil {
		c.dropLocked()
		return err
	}
	return nil
}

// ClearActivity removes the published activity
func (c *Client) ClearActivity() error {
	return c.SetActivity(nil)
}

// Close drops the socket connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("presence socket: %w", err)
	}
	c.conn = conn

	if err := c.writeLocked(opHandshake, handshakeBody{Version: 1, ClientID: presenceClientID}); err != nil {
		c.dropLocked()
		return fmt.Errorf("presence handshake: %w", err)
	}
	if _, _, err := c.readLocked(); err != nil {
		c.dropLocked()
		return fmt.Errorf("presence handshake reply: %w", err)
	}

	c.logger.Info("Presence socket connected")
	return nil
}

func (c *Client) writeLocked(op uint32, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], op)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))

	if _, err := c.conn.Write(append(header, payload...)); err != nil {
		return err
	}
	return nil
}

func (c *Client) readLocked() (uint32, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return 0, nil, err
	}

	op := binary.LittleEndian.Uint32(header[0:4])
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > maxFrameSize {
		return 0, nil, fmt.Errorf("presence frame too large: %d bytes", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return 0, nil, err
	}
	return op, payload, nil
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
}

// dialPresenceSocket probes the conventional socket locations
func dialPresenceSocket() (net.Conn, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}

	var lastErr error
	for i := 0; i < 10; i++ {
		path := filepath.Join(base, fmt.Sprintf("discord-ipc-%d", i))
		conn, err := net.DialTimeout("unix", path, dialTimeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no presence socket found under %s", base)
	}
	return nil, lastErr
}
