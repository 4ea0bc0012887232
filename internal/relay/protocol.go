package relay

import (
	"encoding/json"
	"errors"

	"github.com/pixelderby/raceroom/internal/room"
)

// Client-to-server operation names.
const (
	OpCreateRoom = "createRoom"
	OpJoinRoom   = "joinRoom"
	OpPeekRoom   = "peekRoom"
	OpStartRace  = "startRace"
	OpSyncState  = "syncState"
	OpBoostRacer = "boostRacer"
	OpResetRoom  = "resetRoom"
	OpCloseRoom  = "closeRoom"
	OpSetTitle   = "setTitle"
)

// EventGameStateUpdate carries a host snapshot; relay-originated, unlike the
// lifecycle events named in the room package.
const EventGameStateUpdate = "gameStateUpdate"

const (
	messageTypeResponse = "response"
	messageTypeEvent    = "event"
)

// Request is the envelope for every client operation. Ops that expect a
// response carry a client-chosen seq echoed back on the Response.
type Request struct {
	Op   string          `json:"op"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response answers one Request.
type Response struct {
	Type  string `json:"type"`
	Seq   int64  `json:"seq"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Event is a server-initiated broadcast.
type Event struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type createRoomRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type joinRoomRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type roomIDRequest struct {
	RoomID string `json:"roomId"`
}

type syncStateRequest struct {
	RoomID   string          `json:"roomId"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type boostRequest struct {
	RoomID  string `json:"roomId"`
	RacerID string `json:"racerId"`
}

type resetRoomRequest struct {
	RoomID   string `json:"roomId"`
	HostName string `json:"hostName"`
	Title    string `json:"title"`
}

type setTitleRequest struct {
	RoomID string `json:"roomId"`
	Title  string `json:"title"`
}

// Snapshot is the host-authoritative race state. The relay fans the raw
// bytes out verbatim; this decoded form exists only to read the status flag
// and the winner. Physics fields are never validated server-side.
type Snapshot struct {
	Racers         []SnapshotRacer `json:"racers"`
	CameraPosition float64         `json:"cameraPosition"`
	Status         string          `json:"status"`
	Winner         *room.Winner    `json:"winner,omitempty"`
}

// SnapshotRacer is one racer's simulation state inside a Snapshot.
type SnapshotRacer struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	IsHost     bool    `json:"isHost"`
	ColorIndex int     `json:"colorIndex"`
	Position   float64 `json:"position"`
	Speed      float64 `json:"speed"`
	Finished   bool    `json:"finished"`
	Place      int     `json:"place,omitempty"`
}

// SnapshotStatusFinished marks the terminal snapshot of a race. It bypasses
// the fan-out throttle and freezes the winner.
const SnapshotStatusFinished = "finished"

// SnapshotStatusRacing marks an in-flight snapshot.
const SnapshotStatusRacing = "racing"

// errRoomNotAvailable is the peek-only failure for absent or non-lobby rooms.
var errRoomNotAvailable = errors.New("room not available")

// wireError maps domain errors to the strings clients display. The texts
// match what racing clients already alert on.
func wireError(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, room.ErrRaceInProgress):
		return "Race already started"
	case errors.Is(err, room.ErrNotAuthorized):
		return "Not authorized"
	case errors.Is(err, room.ErrInvalidState):
		return "Cannot rename during race"
	case errors.Is(err, errRoomNotAvailable):
		return "Room not available"
	default:
		return "Internal error"
	}
}
