package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Connection is one client's persistent websocket. Its ID doubles as the
// racer's public identity for the session.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	manager *Manager

	ConnectedAt time.Time

	sendMu sync.Mutex // guards closed and sends into Send
	closed bool
}

// ConnConfig holds per-connection websocket tuning.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the default websocket configuration.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // snapshots carry a full roster
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// respond marshals and enqueues a response for a request seq. Drops on
// backpressure like every other outbound write.
func (c *Connection) respond(seq int64, data any) {
	c.enqueue(Response{Type: messageTypeResponse, Seq: seq, Data: data})
}

func (c *Connection) respondErr(seq int64, err error) {
	c.enqueue(Response{Type: messageTypeResponse, Seq: seq, Error: wireError(err)})
}

func (c *Connection) enqueue(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.ID).Msg("failed to marshal outbound message")
		return
	}
	if !c.deliver(payload) {
		log.Warn().Str("conn_id", c.ID).Msg("send buffer full, dropping response")
	}
}

// deliver enqueues payload unless the connection is already shutting down.
// Reports false only when the send buffer is full.
func (c *Connection) deliver(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// shutdown marks the connection closed and releases the write pump. Safe to
// call at most once; unregister guarantees that.
func (c *Connection) shutdown() {
	c.sendMu.Lock()
	c.closed = true
	close(c.Send)
	c.sendMu.Unlock()
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("conn_id", c.ID).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes client requests and hands them to the handler one at a
// time, so all of a connection's operations are processed in order.
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}

		c.manager.handler.HandleMessage(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
