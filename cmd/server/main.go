package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/config"
	"github.com/sundialgames/weekender-backend/internal/coordinator"
	"github.com/sundialgames/weekender-backend/internal/history"
	"github.com/sundialgames/weekender-backend/internal/persist"
	"github.com/sundialgames/weekender-backend/internal/profile"
	"github.com/sundialgames/weekender-backend/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("data dir unavailable")
	}

	eventsPath := filepath.Join(cfg.DataDir, "events.log")
	actionsPath := filepath.Join(cfg.DataDir, "actions.log")
	profilesPath := filepath.Join(cfg.DataDir, "profiles.json")

	// Rehydrate the event index before the coordinator accepts traffic, so
	// history queries and the sequence counter survive restarts.
	hist := history.NewIndex()
	replayed := 0
	if err := persist.ReplayEvents(eventsPath, func(ev internal.RoomEvent) {
		hist.Record(ev)
		replayed++
	}); err != nil {
		log.Fatal().Err(err).Str("path", eventsPath).Msg("event replay failed")
	}
	log.Info().Int("events", replayed).Uint64("sequence", hist.Sequence()).Msg("event history rehydrated")

	profiles := profile.NewStore()
	var savedProfiles []internal.Profile
	if err := persist.LoadSnapshot(profilesPath, &savedProfiles); err != nil {
		log.Fatal().Err(err).Str("path", profilesPath).Msg("profile snapshot load failed")
	}
	profiles.Restore(savedProfiles)
	log.Info().Int("profiles", len(savedProfiles)).Msg("profiles rehydrated")

	snapshots := persist.NewSnapshotWriter(profilesPath, cfg.SnapshotDebounce, func() any {
		return profiles.Snapshot()
	})
	profiles.SetOnChange(snapshots.Request)

	eventLog, err := persist.OpenAppendLog(eventsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", eventsPath).Msg("event log open failed")
	}
	actionLog, err := persist.OpenAppendLog(actionsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", actionsPath).Msg("action log open failed")
	}

	coord := coordinator.New(coordinator.Options{ReconnectWindow: cfg.ReconnectWindow}, profiles, hist)
	coord.AttachSinks(eventLog, actionLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go coord.RunSweepLoop(ctx, cfg.SweepInterval)

	srv := server.NewServer(cfg, coord).HTTPServer()
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	snapshots.Flush()
	eventLog.Close()
	actionLog.Close()
	log.Info().Msg("bye")
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
