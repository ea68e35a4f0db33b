package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 1 << 16
)

type frame struct {
	kind int
	data []byte
}

// client is one websocket connection. readPump and writePump each run in
// their own goroutine. Only writePump writes to or closes conn.
type client struct {
	id     string
	conn   *websocket.Conn
	codec  Codec
	srv    *Server
	logger *slog.Logger

	send      chan frame
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue hands b to the write pump without blocking. It reports false if
// the client is gone or its buffer is full.
func (c *client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame{kind: c.codec.FrameType(), data: b}:
		return true
	default:
		return false
	}
}

func (c *client) sendMessage(t string, payload any) {
	b, err := c.codec.Encode(t, payload)
	if err != nil {
		c.logger.Error("encode message", "type", t, "err", err)
		return
	}
	if !c.enqueue(b) {
		c.logger.Debug("message dropped", "type", t)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) readPump() {
	defer func() {
		c.close()
		c.srv.disconnect(c)
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("read failed", "err", err)
			}
			return
		}
		env, err := c.codec.Decode(msg)
		if err != nil {
			c.logger.Debug("bad message", "err", err)
			continue
		}
		c.srv.dispatch(c, env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
				c.logger.Debug("write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
