package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	readLimit    = 1 << 20
	eventBuffer  = 32
	closeMessage = "session ended"
)

// Conn is an open pipeline session.
type Conn interface {
	// Events yields pipeline frames until the connection ends.
	Events() <-chan Event
	// Send writes a command. Writes are serialized.
	Send(ctx context.Context, cmd Command) error
	Close() error
}

// Dialer opens pipeline sessions over a websocket.
type Dialer struct {
	url    string
	logger *slog.Logger
}

// NewDialer creates a Dialer for the pipeline endpoint at url.
func NewDialer(url string, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{url: url, logger: logger}
}

// Open dials the pipeline and sends the configure frame. The returned Conn
// stays open until Close is called, the peer hangs up or ctx ends.
func (d *Dialer) Open(ctx context.Context, cfg Configure) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial pipeline: %w", err)
	}
	ws.SetReadLimit(readLimit)

	if err := wsjson.Write(ctx, ws, Command{Type: CommandConfigure, Configure: &cfg}); err != nil {
		_ = ws.Close(websocket.StatusInternalError, "configure failed")
		return nil, fmt.Errorf("send configure: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	c := &wsConn{
		ws:     ws,
		events: make(chan Event, eventBuffer),
		cancel: cancel,
		logger: d.logger.With("session_id", cfg.SessionID),
	}
	go c.readLoop(readCtx)

	d.logger.Info("Pipeline session opened", "session_id", cfg.SessionID, "room_url", cfg.RoomURL)
	return c, nil
}

type wsConn struct {
	ws     *websocket.Conn
	events chan Event
	cancel context.CancelFunc
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

func (c *wsConn) Send(ctx context.Context, cmd Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wsjson.Write(ctx, c.ws, cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	return nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		err := c.ws.Close(websocket.StatusNormalClosure, closeMessage)
		c.cancel()
		if err != nil && !isClosed(err) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *wsConn) readLoop(ctx context.Context) {
	defer close(c.events)
	for {
		var ev Event
		if err := wsjson.Read(ctx, c.ws, &ev); err != nil {
			switch {
			case ctx.Err() != nil, isClosed(err):
				c.logger.Debug("Pipeline read loop stopped", "error", err)
			default:
				c.logger.Warn("Pipeline read error", "error", err)
			}
			return
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func isClosed(err error) bool {
	return websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}
