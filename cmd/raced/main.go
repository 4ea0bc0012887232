package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pixelderby/raceroom/internal/config"
	"github.com/pixelderby/raceroom/internal/relay"
	"github.com/pixelderby/raceroom/internal/results"
	"github.com/pixelderby/raceroom/internal/room"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(getEnv("RACEROOM_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var store *results.Store
	if cfg.Results.Path != "" {
		store, err = results.Open(cfg.Results.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Results.Path).Msg("failed to open results store")
		}
		defer store.Close()
	}

	service := relay.NewService(relay.Config{
		Connection: relay.DefaultConnConfig(),
		Rooms: room.Settings{
			MaxRacers:         cfg.Rooms.MaxRacers,
			PaletteSize:       cfg.Rooms.PaletteSize,
			CountdownStart:    cfg.Race.CountdownStart,
			CountdownInterval: cfg.CountdownInterval(),
			BoostCooldown:     cfg.BoostCooldown(),
		},
		SnapshotMinInterval: cfg.SnapshotMinInterval(),
	}, clockwork.NewRealClock(), recorderOrNil(store))

	mux := http.NewServeMux()
	service.RegisterRoutes(mux, listerOrNil(store))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: c.Handler(mux),
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("raceroom server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// recorderOrNil avoids handing the relay a typed nil interface.
func recorderOrNil(store *results.Store) relay.ResultsRecorder {
	if store == nil {
		return nil
	}
	return store
}

func listerOrNil(store *results.Store) relay.ResultsLister {
	if store == nil {
		return nil
	}
	return store
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
