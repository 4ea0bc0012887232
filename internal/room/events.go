package room

// Server-to-client event names emitted by the registry. The relay owns the
// envelope; these are the lifecycle events whose payloads originate here.
const (
	EventUpdateLobby   = "updateLobby"
	EventRaceCountdown = "raceCountdown"
	EventRaceStarted   = "raceStarted"
	EventApplyBoost    = "applyBoost"
	EventRoomReset     = "roomReset"
	EventRoomClosed    = "roomClosed"
)

// Broadcaster delivers events to connections. Implementations must only
// enqueue: the registry calls these while holding room state and relies on
// delivery being non-blocking and lossy under backpressure.
type Broadcaster interface {
	Broadcast(connIDs []string, event string, data any)
	Send(connID string, event string, data any)
}

// LobbyUpdate is the payload of an updateLobby event and the shared shape of
// roster responses.
type LobbyUpdate struct {
	Racers []Racer `json:"racers"`
	Title  string  `json:"title"`
}

// CreateResult answers a createRoom request.
type CreateResult struct {
	RoomID string  `json:"roomId"`
	IsHost bool    `json:"isHost"`
	Racers []Racer `json:"racers"`
	Title  string  `json:"title"`
}

// JoinResult answers a successful joinRoom request.
type JoinResult struct {
	Success bool    `json:"success"`
	Racers  []Racer `json:"racers"`
	Title   string  `json:"title"`
}

// PeekResult answers a peekRoom request for a joinable room.
type PeekResult struct {
	Racers []Racer `json:"racers"`
	Title  string  `json:"title"`
	Count  int     `json:"count"`
	Status Status  `json:"status"`
}

// ResetResult answers a successful resetRoom request.
type ResetResult struct {
	Success bool    `json:"success"`
	Racers  []Racer `json:"racers"`
	Title   string  `json:"title"`
}

// ResetEvent is the payload of a roomReset event.
type ResetEvent struct {
	RoomID string  `json:"roomId"`
	HostID string  `json:"hostId"`
	Racers []Racer `json:"racers"`
	Title  string  `json:"title"`
}
