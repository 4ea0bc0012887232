package room

import (
	"sync"
	"time"
)

// Status is the server-tracked room lifecycle state.
//
// There is deliberately no finished status: race completion is carried inside
// host snapshots and clients leave the racing screen only through an explicit
// reset or close. The server tracks just enough to gate joins, starts and
// title edits.
type Status string

const (
	StatusLobby     Status = "lobby"
	StatusCountdown Status = "countdown"
	StatusRacing    Status = "racing"
)

// Racer is one roster entry. Simulation fields (position, speed, place)
// never live here; they exist only inside host snapshots.
type Racer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsHost     bool   `json:"isHost"`
	ColorIndex int    `json:"colorIndex"`
}

// Winner is the immutable record of a race's first finisher.
type Winner struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ColorIndex int    `json:"colorIndex"`
}

// Room holds one session's state. All fields are guarded by mu; every
// read-modify-write on a room happens under it.
type Room struct {
	mu sync.Mutex

	id     string
	hostID string
	title  string
	status Status
	racers []Racer

	winner         *Winner
	boostCooldowns map[string]time.Time

	// closes the countdown goroutine on reset/close; nil outside countdown
	countdownStop chan struct{}
}

// View is a point-in-time copy of a room's shareable state.
type View struct {
	ID     string
	HostID string
	Title  string
	Status Status
	Racers []Racer
}

// view copies the shareable state. Caller must hold r.mu.
func (r *Room) view() View {
	racers := make([]Racer, len(r.racers))
	copy(racers, r.racers)
	return View{
		ID:     r.id,
		HostID: r.hostID,
		Title:  r.title,
		Status: r.status,
		Racers: racers,
	}
}

// memberIDs returns the connection ids of everyone in the room.
// Caller must hold r.mu.
func (r *Room) memberIDs() []string {
	ids := make([]string, len(r.racers))
	for i, rc := range r.racers {
		ids[i] = rc.ID
	}
	return ids
}

func (r *Room) racerIndex(racerID string) int {
	for i, rc := range r.racers {
		if rc.ID == racerID {
			return i
		}
	}
	return -1
}
