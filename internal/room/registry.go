package room

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const roomIDLength = 5

// Settings holds the tunables the registry needs from configuration.
type Settings struct {
	MaxRacers         int
	PaletteSize       int
	CountdownStart    int
	CountdownInterval time.Duration
	BoostCooldown     time.Duration
}

// Registry is the owned store of live rooms. The connection layer receives
// an instance and every room operation goes through it; there is no ambient
// process-wide state.
//
// Lock order is always registry.mu before room.mu, never the reverse.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	connRoom map[string]string // connection id -> room id; one room per connection

	settings Settings
	clock    clockwork.Clock
	bc       Broadcaster
}

// NewRegistry creates an empty registry.
func NewRegistry(settings Settings, clock clockwork.Clock, bc Broadcaster) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		connRoom: make(map[string]string),
		settings: settings,
		clock:    clock,
		bc:       bc,
	}
}

// CreateRoom makes a new room with connID as host and broadcasts the first
// lobby update. A connection already in a room leaves it first, preserving
// the one-room-per-connection invariant.
func (reg *Registry) CreateRoom(connID, name, title string) CreateResult {
	reg.Disconnect(connID)

	reg.mu.Lock()
	id := reg.generateRoomID()
	rm := &Room{
		id:             id,
		hostID:         connID,
		title:          SanitizeTitle(title),
		status:         StatusLobby,
		racers:         []Racer{{ID: connID, Name: SanitizeName(name), IsHost: true, ColorIndex: 0}},
		boostCooldowns: make(map[string]time.Time),
	}
	reg.rooms[id] = rm
	reg.connRoom[connID] = id
	reg.mu.Unlock()

	rm.mu.Lock()
	view := rm.view()
	rm.mu.Unlock()

	reg.bc.Broadcast([]string{connID}, EventUpdateLobby, LobbyUpdate{Racers: view.Racers, Title: view.Title})
	log.Info().Str("room_id", id).Str("conn_id", connID).Str("title", view.Title).Msg("room created")

	return CreateResult{RoomID: id, IsHost: true, Racers: view.Racers, Title: view.Title}
}

// Join appends a racer to a lobby room and broadcasts the updated roster.
func (reg *Registry) Join(roomID, connID, name string) (JoinResult, error) {
	reg.Disconnect(connID)

	reg.mu.Lock()
	rm, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return JoinResult{}, ErrRoomNotFound
	}

	rm.mu.Lock()
	if len(rm.racers) >= reg.settings.MaxRacers {
		rm.mu.Unlock()
		reg.mu.Unlock()
		return JoinResult{}, ErrRoomFull
	}
	if rm.status != StatusLobby {
		rm.mu.Unlock()
		reg.mu.Unlock()
		return JoinResult{}, ErrRaceInProgress
	}

	racer := Racer{
		ID:         connID,
		Name:       SanitizeName(name),
		ColorIndex: len(rm.racers) % reg.settings.PaletteSize,
	}
	rm.racers = append(rm.racers, racer)
	reg.connRoom[connID] = roomID
	view := rm.view()
	members := rm.memberIDs()
	rm.mu.Unlock()
	reg.mu.Unlock()

	reg.bc.Broadcast(members, EventUpdateLobby, LobbyUpdate{Racers: view.Racers, Title: view.Title})
	log.Info().Str("room_id", roomID).Str("conn_id", connID).Str("name", racer.Name).Msg("racer joined")

	return JoinResult{Success: true, Racers: view.Racers, Title: view.Title}, nil
}

// Peek returns a read-only preview of a joinable room. Rooms that are absent
// or past the lobby are reported identically so the endpoint leaks nothing
// about running races.
func (reg *Registry) Peek(roomID string) (PeekResult, bool) {
	reg.mu.RLock()
	rm, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return PeekResult{}, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.status != StatusLobby {
		return PeekResult{}, false
	}
	view := rm.view()
	return PeekResult{Racers: view.Racers, Title: view.Title, Count: len(view.Racers), Status: view.Status}, true
}

// Start begins the countdown for a lobby room. Host-only; any other call is
// a silent no-op, which makes double starts idempotent.
func (reg *Registry) Start(roomID, connID string) {
	reg.mu.RLock()
	rm, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	if rm.hostID != connID || rm.status != StatusLobby {
		rm.mu.Unlock()
		return
	}
	rm.status = StatusCountdown
	rm.winner = nil
	rm.boostCooldowns = make(map[string]time.Time)
	stop := make(chan struct{})
	rm.countdownStop = stop
	rm.mu.Unlock()

	log.Info().Str("room_id", roomID).Msg("countdown started")
	go reg.runCountdown(rm, stop)
}

// runCountdown emits the start value immediately, the remaining values at
// the configured interval, then flips the room to racing. Self-terminating;
// reset and close cancel it through the stop channel.
func (reg *Registry) runCountdown(rm *Room, stop chan struct{}) {
	value := reg.settings.CountdownStart
	reg.bc.Broadcast(reg.membersOf(rm), EventRaceCountdown, value)

	ticker := reg.clock.NewTicker(reg.settings.CountdownInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			// stop takes priority over a tick that raced it
			select {
			case <-stop:
				return
			default:
			}

			value--
			if value > 0 {
				reg.bc.Broadcast(reg.membersOf(rm), EventRaceCountdown, value)
				continue
			}

			rm.mu.Lock()
			if rm.status != StatusCountdown {
				// reset or close won the race
				rm.mu.Unlock()
				return
			}
			rm.status = StatusRacing
			rm.countdownStop = nil
			members := rm.memberIDs()
			roomID := rm.id
			rm.mu.Unlock()

			reg.bc.Broadcast(members, EventRaceStarted, struct{}{})
			log.Info().Str("room_id", roomID).Msg("race started")
			return
		}
	}
}

func (reg *Registry) membersOf(rm *Room) []string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.memberIDs()
}

// Boost validates and rate-limits a boost request, forwarding accepted ones
// to the host connection only. Every rejection is silent: an invalid target
// or a request inside the cooldown window is an expected race between client
// intent and authoritative state, not a failure.
func (reg *Registry) Boost(roomID, racerID string) {
	reg.mu.RLock()
	rm, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	if rm.status != StatusRacing || rm.racerIndex(racerID) < 0 {
		rm.mu.Unlock()
		return
	}
	now := reg.clock.Now()
	if last, ok := rm.boostCooldowns[racerID]; ok && now.Sub(last) < reg.settings.BoostCooldown {
		rm.mu.Unlock()
		return
	}
	rm.boostCooldowns[racerID] = now
	hostID := rm.hostID
	rm.mu.Unlock()

	reg.bc.Send(hostID, EventApplyBoost, racerID)
}

// SetTitle renames a lobby room and broadcasts the updated lobby.
func (reg *Registry) SetTitle(roomID, connID, title string) (string, error) {
	reg.mu.RLock()
	rm, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return "", ErrNotAuthorized
	}

	rm.mu.Lock()
	if rm.hostID != connID {
		rm.mu.Unlock()
		return "", ErrNotAuthorized
	}
	if rm.status != StatusLobby {
		rm.mu.Unlock()
		return "", ErrInvalidState
	}
	rm.title = SanitizeTitle(title)
	view := rm.view()
	members := rm.memberIDs()
	rm.mu.Unlock()

	reg.bc.Broadcast(members, EventUpdateLobby, LobbyUpdate{Racers: view.Racers, Title: view.Title})
	return view.Title, nil
}

// Reset rebuilds a room back to an empty lobby holding only the (possibly
// renamed) host. Everyone else is evicted and must rejoin through the entry
// flow; the pre-reset membership still receives the reset and lobby events
// so evicted clients learn what happened.
func (reg *Registry) Reset(roomID, connID, hostName, title string) (ResetResult, error) {
	reg.mu.Lock()
	rm, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return ResetResult{}, ErrNotAuthorized
	}

	rm.mu.Lock()
	if rm.hostID != connID {
		rm.mu.Unlock()
		reg.mu.Unlock()
		return ResetResult{}, ErrNotAuthorized
	}

	if rm.countdownStop != nil {
		close(rm.countdownStop)
		rm.countdownStop = nil
	}

	oldMembers := rm.memberIDs()
	for _, id := range oldMembers {
		if id != connID {
			delete(reg.connRoom, id)
		}
	}

	nextTitle := title
	if nextTitle == "" {
		nextTitle = rm.title
	}
	rm.status = StatusLobby
	rm.winner = nil
	rm.boostCooldowns = make(map[string]time.Time)
	rm.title = SanitizeTitle(nextTitle)
	rm.racers = []Racer{{ID: connID, Name: SanitizeName(hostName), IsHost: true, ColorIndex: 0}}
	view := rm.view()
	rm.mu.Unlock()
	reg.mu.Unlock()

	reg.bc.Broadcast(oldMembers, EventRoomReset, ResetEvent{RoomID: roomID, HostID: connID, Racers: view.Racers, Title: view.Title})
	reg.bc.Broadcast(oldMembers, EventUpdateLobby, LobbyUpdate{Racers: view.Racers, Title: view.Title})
	log.Info().Str("room_id", roomID).Msg("room reset")

	return ResetResult{Success: true, Racers: view.Racers, Title: view.Title}, nil
}

// Close deletes a room and broadcasts closure. Host-only.
func (reg *Registry) Close(roomID, connID string) error {
	reg.mu.Lock()
	rm, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return ErrNotAuthorized
	}

	rm.mu.Lock()
	if rm.hostID != connID {
		rm.mu.Unlock()
		reg.mu.Unlock()
		return ErrNotAuthorized
	}
	if rm.countdownStop != nil {
		close(rm.countdownStop)
		rm.countdownStop = nil
	}
	members := rm.memberIDs()
	rm.mu.Unlock()

	delete(reg.rooms, roomID)
	for _, id := range members {
		delete(reg.connRoom, id)
	}
	reg.mu.Unlock()

	reg.bc.Broadcast(members, EventRoomClosed, struct{}{})
	log.Info().Str("room_id", roomID).Msg("room closed")
	return nil
}

// Disconnect removes a departed connection from its room, completing within
// this call: roster update broadcast, and room teardown with a closure
// broadcast when the host left. There is no host migration.
//
// Returns the room id the connection was in and whether that room was torn
// down, so the transport layer can release per-room state.
func (reg *Registry) Disconnect(connID string) (roomID string, closed bool) {
	reg.mu.Lock()
	roomID, ok := reg.connRoom[connID]
	if !ok {
		reg.mu.Unlock()
		return "", false
	}
	delete(reg.connRoom, connID)

	rm := reg.rooms[roomID]
	rm.mu.Lock()
	if i := rm.racerIndex(connID); i >= 0 {
		rm.racers = append(rm.racers[:i], rm.racers[i+1:]...)
	}
	wasHost := rm.hostID == connID
	if wasHost && rm.countdownStop != nil {
		close(rm.countdownStop)
		rm.countdownStop = nil
	}
	remaining := rm.memberIDs()
	view := rm.view()
	rm.mu.Unlock()

	if wasHost {
		delete(reg.rooms, roomID)
		for _, id := range remaining {
			delete(reg.connRoom, id)
		}
	}
	reg.mu.Unlock()

	reg.bc.Broadcast(remaining, EventUpdateLobby, LobbyUpdate{Racers: view.Racers, Title: view.Title})
	if wasHost {
		reg.bc.Broadcast(remaining, EventRoomClosed, struct{}{})
		log.Info().Str("room_id", roomID).Str("conn_id", connID).Msg("host left, room closed")
		return roomID, true
	}

	log.Info().Str("room_id", roomID).Str("conn_id", connID).Msg("racer left")
	return roomID, false
}

// SyncInfo reports what the relay needs to fan out a host snapshot.
func (reg *Registry) SyncInfo(roomID string) (hostID string, members []string, ok bool) {
	reg.mu.RLock()
	rm, found := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !found {
		return "", nil, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.hostID, rm.memberIDs(), true
}

// SetWinner records the race's first finisher. Write-once: only the first
// call during a race succeeds; the slot is freed again by Reset.
func (reg *Registry) SetWinner(roomID string, w Winner) bool {
	reg.mu.RLock()
	rm, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.status != StatusRacing || rm.winner != nil {
		return false
	}
	rm.winner = &w
	return true
}

// Winner returns the recorded winner for the current race, if any.
func (reg *Registry) Winner(roomID string) (Winner, bool) {
	reg.mu.RLock()
	rm, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !ok {
		return Winner{}, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.winner == nil {
		return Winner{}, false
	}
	return *rm.winner, true
}

// Stats reports live room and racer counts.
func (reg *Registry) Stats() (rooms, racers int) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms), len(reg.connRoom)
}

// generateRoomID draws a fresh 5-character code, regenerating on collision.
// Caller must hold reg.mu.
func (reg *Registry) generateRoomID() string {
	buf := make([]byte, roomIDLength)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		id := make([]byte, roomIDLength)
		for i, b := range buf {
			id[i] = roomIDAlphabet[int(b)%len(roomIDAlphabet)]
		}
		if _, taken := reg.rooms[string(id)]; !taken {
			return string(id)
		}
	}
}
