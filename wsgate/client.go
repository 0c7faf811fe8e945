package wsgate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hardikdarji921/esp32-datalogger/hub"
)

// client is one connected viewer. The write mutex serializes the
// event writer and the ping loop; gorilla/websocket does not allow
// concurrent writers on one connection.
type client struct {
	conn *websocket.Conn
	sub  *hub.Subscription
	cfg  Config

	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, sub *hub.Subscription, cfg Config) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		conn:   conn,
		sub:    sub,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// close tears the viewer down. Safe to call from any goroutine, any
// number of times.
func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.sub.Unsubscribe()
		_ = c.conn.Close()
	})
}

func (c *client) writeEvent(event hub.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// writeLoop sends the replayed snapshots, then streams live events
// until the subscription or the connection dies.
func (c *client) writeLoop(replay []hub.Event) {
	defer c.close()

	for _, event := range replay {
		if err := c.writeEvent(event); err != nil {
			return
		}
	}

	for {
		event, err := c.sub.Receive(c.ctx)
		if err != nil {
			return
		}
		if err := c.writeEvent(event); err != nil {
			return
		}
	}
}

// readLoop consumes inbound frames so pong and close handling work.
// Viewers do not send application data; anything read is discarded.
func (c *client) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	readWait := 2 * c.cfg.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingLoop keeps the connection alive and detects dead viewers.
func (c *client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.close()
				return
			}
		}
	}
}
