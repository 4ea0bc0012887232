package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pixelderby/raceroom/internal/room"
)

// Service composes the relay: connection manager, room registry and request
// handler, wired around one shared clock.
type Service struct {
	manager  *Manager
	handler  *Handler
	registry *room.Registry
}

// Config holds relay service configuration.
type Config struct {
	Connection          ConnConfig
	Rooms               room.Settings
	SnapshotMinInterval time.Duration
}

// ResultsLister serves the optional results endpoint.
type ResultsLister interface {
	Recent(limit int) ([]Result, error)
}

// Result is one recorded race outcome.
type Result struct {
	RoomID     string    `json:"roomId"`
	WinnerID   string    `json:"winnerId"`
	WinnerName string    `json:"winnerName"`
	ColorIndex int       `json:"colorIndex"`
	RecordedAt time.Time `json:"recordedAt"`
}

// NewService wires the relay. results may be nil to disable persistence.
func NewService(cfg Config, clock clockwork.Clock, results ResultsRecorder) *Service {
	manager := NewManager(cfg.Connection)
	registry := room.NewRegistry(cfg.Rooms, clock, manager)
	handler := NewHandler(registry, newSnapshotThrottle(cfg.SnapshotMinInterval, clock), results)
	manager.SetHandler(handler)

	return &Service{
		manager:  manager,
		handler:  handler,
		registry: registry,
	}
}

// Registry exposes the room registry, mainly for tests and stats.
func (s *Service) Registry() *room.Registry {
	return s.registry
}

// RegisterRoutes mounts the websocket and observability endpoints.
func (s *Service) RegisterRoutes(mux *http.ServeMux, results ResultsLister) {
	mux.HandleFunc("/ws", s.handleConnection)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/stats", s.handleStats)
	if results != nil {
		mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
			handleResults(w, results)
		})
	}
	log.Info().Msg("relay routes registered")
}

func (s *Service) handleConnection(w http.ResponseWriter, r *http.Request) {
	// the upgrader has already replied to the client on failure
	if err := s.manager.Upgrade(w, r); err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	rooms, racers := s.registry.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"connections": s.manager.ConnectionCount(),
		"rooms":       rooms,
		"racers":      racers,
	})
}

func handleResults(w http.ResponseWriter, results ResultsLister) {
	entries, err := results.Recent(20)
	if err != nil {
		log.Error().Err(err).Msg("failed to load results")
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": entries})
}
