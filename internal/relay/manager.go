package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MessageHandler receives decoded frames and disconnect notifications from
// the connection pumps.
type MessageHandler interface {
	HandleMessage(c *Connection, data []byte)
	HandleDisconnect(connID string)
}

// Manager owns every live websocket connection and implements the
// room.Broadcaster fan-out. Outbound delivery only ever enqueues onto a
// connection's buffered send channel; a full buffer means the connection is
// slow or dead and gets closed rather than blocking the sender.
//
// Events and responses share each connection's send channel, so a client
// sees its join response before the lobby update that follows it.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	upgrader websocket.Upgrader
	config   ConnConfig
	handler  MessageHandler
}

// NewManager creates a connection manager. SetHandler must be called before
// the first upgrade.
func NewManager(config ConnConfig) *Manager {
	return &Manager{
		conns: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// SetHandler wires the message handler. Separate from NewManager because the
// handler's registry needs the manager as its broadcaster.
func (m *Manager) SetHandler(h MessageHandler) {
	m.handler = h
}

// Upgrade promotes an HTTP request to a managed websocket connection.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) error {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		Conn:        ws,
		Send:        make(chan []byte, m.config.SendBuffer),
		manager:     m,
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.conns[c.ID] = c
	total := len(m.conns)
	m.mu.Unlock()

	go c.writePump()
	go c.readPump()

	log.Info().Str("conn_id", c.ID).Int("total_connections", total).Msg("websocket connection established")
	return nil
}

// unregister drops a connection and runs the disconnect handling step.
func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	if _, ok := m.conns[c.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, c.ID)
	m.mu.Unlock()
	c.shutdown()

	if m.handler != nil {
		m.handler.HandleDisconnect(c.ID)
	}
	log.Info().Str("conn_id", c.ID).Msg("websocket connection closed")
}

// Broadcast sends one event to a set of connections, marshaling once.
// Implements room.Broadcaster.
func (m *Manager) Broadcast(connIDs []string, event string, data any) {
	payload, err := json.Marshal(Event{Type: messageTypeEvent, Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event")
		return
	}

	m.mu.RLock()
	targets := make([]*Connection, 0, len(connIDs))
	for _, id := range connIDs {
		if c, ok := m.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if !c.deliver(payload) {
			// slow or dead consumer; close instead of blocking the room
			log.Warn().Str("conn_id", c.ID).Str("event", event).Msg("send buffer full, closing connection")
			c.Conn.Close()
		}
	}
}

// Send delivers one event to a single connection. Implements
// room.Broadcaster.
func (m *Manager) Send(connID string, event string, data any) {
	m.Broadcast([]string{connID}, event, data)
}

// ConnectionCount reports live connections.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
