package relay

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pixelderby/raceroom/internal/room"
)

// ResultsRecorder persists race outcomes. Optional; a nil recorder disables
// persistence.
type ResultsRecorder interface {
	Record(roomID string, w room.Winner) error
}

// Handler dispatches decoded client requests onto the room registry and
// relays host snapshots. One Handler serves all connections; per-room
// atomicity lives in the registry, and each connection's requests arrive in
// order from its read pump.
type Handler struct {
	registry *room.Registry
	throttle *snapshotThrottle
	results  ResultsRecorder
}

// NewHandler creates the request dispatcher.
func NewHandler(registry *room.Registry, throttle *snapshotThrottle, results ResultsRecorder) *Handler {
	return &Handler{
		registry: registry,
		throttle: throttle,
		results:  results,
	}
}

// HandleMessage decodes one request frame and executes it. Malformed frames
// are logged and dropped; they must never take down the connection or leak
// into other rooms.
func (h *Handler) HandleMessage(c *Connection, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed request frame")
		return
	}

	switch req.Op {
	case OpCreateRoom:
		h.createRoom(c, req)
	case OpJoinRoom:
		h.joinRoom(c, req)
	case OpPeekRoom:
		h.peekRoom(c, req)
	case OpStartRace:
		h.startRace(c, req)
	case OpSyncState:
		h.syncState(c, req)
	case OpBoostRacer:
		h.boostRacer(c, req)
	case OpResetRoom:
		h.resetRoom(c, req)
	case OpCloseRoom:
		h.closeRoom(c, req)
	case OpSetTitle:
		h.setTitle(c, req)
	default:
		log.Warn().Str("conn_id", c.ID).Str("op", req.Op).Msg("unknown operation")
	}
}

// HandleDisconnect runs the synchronous disconnect step for a departed
// connection.
func (h *Handler) HandleDisconnect(connID string) {
	if roomID, closed := h.registry.Disconnect(connID); closed {
		h.throttle.forget(roomID)
	}
}

func (h *Handler) createRoom(c *Connection, req Request) {
	var body createRoomRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed createRoom payload")
		return
	}
	c.respond(req.Seq, h.registry.CreateRoom(c.ID, body.Name, body.Title))
}

func (h *Handler) joinRoom(c *Connection, req Request) {
	var body joinRoomRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed joinRoom payload")
		return
	}
	result, err := h.registry.Join(body.RoomID, c.ID, body.Name)
	if err != nil {
		c.respondErr(req.Seq, err)
		return
	}
	c.respond(req.Seq, result)
}

func (h *Handler) peekRoom(c *Connection, req Request) {
	var body roomIDRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed peekRoom payload")
		return
	}
	result, ok := h.registry.Peek(body.RoomID)
	if !ok {
		c.respondErr(req.Seq, errRoomNotAvailable)
		return
	}
	c.respond(req.Seq, result)
}

func (h *Handler) startRace(c *Connection, req Request) {
	var body roomIDRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		return
	}
	h.registry.Start(body.RoomID, c.ID)
}

// syncState fans a host snapshot out to the whole room. The relay trusts the
// host's physics completely; the only checks are structural: the payload
// decodes and the sender is the room's host connection.
func (h *Handler) syncState(c *Connection, req Request) {
	var body syncStateRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed syncState payload")
		return
	}

	hostID, members, ok := h.registry.SyncInfo(body.RoomID)
	if !ok || hostID != c.ID {
		// stray snapshot for a deleted room, or a non-host sender
		return
	}

	var snap Snapshot
	if err := json.Unmarshal(body.Snapshot, &snap); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Str("room_id", body.RoomID).Msg("undecodable snapshot")
		return
	}

	finished := snap.Status == SnapshotStatusFinished
	if !h.throttle.allow(body.RoomID, finished) {
		return
	}

	if finished {
		h.recordWinner(body.RoomID, snap)
	}

	// verbatim fan-out of the exact bytes the host produced
	c.manager.Broadcast(members, EventGameStateUpdate, body.Snapshot)
}

// recordWinner freezes the race's first finisher on the room and appends it
// to the results store. Write-once per race: repeated finished snapshots are
// fanned out but change nothing here.
func (h *Handler) recordWinner(roomID string, snap Snapshot) {
	winner := snap.Winner
	if winner == nil {
		for i := range snap.Racers {
			if snap.Racers[i].Place == 1 {
				winner = &room.Winner{
					ID:         snap.Racers[i].ID,
					Name:       snap.Racers[i].Name,
					ColorIndex: snap.Racers[i].ColorIndex,
				}
				break
			}
		}
	}
	if winner == nil {
		return
	}
	if !h.registry.SetWinner(roomID, *winner) {
		return
	}

	log.Info().Str("room_id", roomID).Str("winner", winner.Name).Msg("race finished")
	if h.results != nil {
		if err := h.results.Record(roomID, *winner); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("failed to record race result")
		}
	}
}

func (h *Handler) boostRacer(c *Connection, req Request) {
	var body boostRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		return
	}
	h.registry.Boost(body.RoomID, body.RacerID)
}

func (h *Handler) resetRoom(c *Connection, req Request) {
	var body resetRoomRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed resetRoom payload")
		return
	}
	result, err := h.registry.Reset(body.RoomID, c.ID, body.HostName, body.Title)
	if err != nil {
		c.respondErr(req.Seq, err)
		return
	}
	h.throttle.forget(body.RoomID)
	c.respond(req.Seq, result)
}

func (h *Handler) closeRoom(c *Connection, req Request) {
	var body roomIDRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed closeRoom payload")
		return
	}
	if err := h.registry.Close(body.RoomID, c.ID); err != nil {
		c.respondErr(req.Seq, err)
		return
	}
	h.throttle.forget(body.RoomID)
	c.respond(req.Seq, map[string]bool{"success": true})
}

func (h *Handler) setTitle(c *Connection, req Request) {
	var body setTitleRequest
	if err := json.Unmarshal(req.Data, &body); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed setTitle payload")
		return
	}
	title, err := h.registry.SetTitle(body.RoomID, c.ID, body.Title)
	if err != nil {
		c.respondErr(req.Seq, err)
		return
	}
	c.respond(req.Seq, map[string]any{"success": true, "title": title})
}
