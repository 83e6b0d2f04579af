package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/circuitlab/racesim/internal/api"
	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/database"
	"github.com/circuitlab/racesim/internal/storage"
	gormstorage "github.com/circuitlab/racesim/internal/storage/gorm"
	"github.com/circuitlab/racesim/internal/storage/memory"
	wsstorage "github.com/circuitlab/racesim/internal/storage/websocket"
	"github.com/circuitlab/racesim/internal/track"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/spf13/viper"
)

// arena size used when no boundary image is configured
const (
	arenaWidth  = 1920
	arenaHeight = 1080
)

func initStorage(storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg, Logger)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "gorm", "sqlite":
		db, err := database.OpenMemory(ProgramName)
		if err != nil {
			return nil, fmt.Errorf("failed to open in-memory database: %w", err)
		}
		logger.Info("GORM storage backend initialized", "dialect", db.Dialector.Name())
		return gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: logger,
			Config: storageCfg.Gorm,
		}), nil

	case "websocket":
		wsCfg := storageCfg.WebSocket
		wsCfg.URL = httpToWS(wsCfg.URL)
		logger.Info("WebSocket storage backend initialized", "url", wsCfg.URL)
		return wsstorage.New(wsCfg, logger), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// uploadGeneration posts the export of s to the configured replay server.
func uploadGeneration(ctx context.Context, backend storage.Backend, s core.GenerationSummary) error {
	exp, ok := backend.(storage.Exporter)
	if !ok {
		return fmt.Errorf("storage backend %T cannot export", backend)
	}
	serverURL := viper.GetString("api.serverUrl")
	if serverURL == "" {
		return errors.New("api.serverUrl is not set")
	}

	client := api.New(serverURL, viper.GetString("api.apiKey"))
	if err := client.Healthcheck(ctx); err != nil {
		Logger.Info("Replay server is offline", "url", serverURL)
		return err
	}
	Logger.Info("Replay server is online", "url", serverURL)

	meta := api.UploadMetadata{
		Generation: s.Generation,
		Reason:     string(s.Reason),
		EndTick:    s.EndTick,
		Tag:        viper.GetString("api.tag"),
	}
	if best, ok := s.Best(); ok {
		meta.BestFitness = best.Fitness
	}
	filename := fmt.Sprintf("%s_gen%04d_%s.json", ProgramName, s.Generation, SessionStartTime.Format("20060102_150405"))
	if viper.GetBool("storage.memory.compressExport") {
		filename += ".gz"
	}

	start := time.Now()
	if err := client.Upload(ctx, exp, filename, meta); err != nil {
		return err
	}
	Logger.Info("Uploaded generation", "generation", s.Generation, "file", filename, "duration", time.Since(start))
	return nil
}

// loadTrack reads the configured boundary image, or builds a walled arena
// when none is set.
func loadTrack(logger *slog.Logger) (track.Map, []core.Checkpoint, error) {
	cfg, err := config.GetTrackConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.MapPath != "" {
		m, cps, err := track.Load(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load track: %w", err)
		}
		logger.Info("Loaded track", "path", cfg.MapPath, "width", m.Width(), "height", m.Height(), "checkpoints", len(cps))
		return m, cps, nil
	}

	m, err := track.New(arenaWidth, arenaHeight)
	if err != nil {
		return nil, nil, err
	}
	m.Outline(0, 0, arenaWidth-1, arenaHeight-1)
	cps, err := track.Checkpoints(cfg.Checkpoints)
	if err != nil {
		return nil, nil, err
	}
	logger.Warn("No track.mapPath set, using walled arena", "width", arenaWidth, "height", arenaHeight)
	return m, cps, nil
}

// report prints what the backend kept about the run.
func report(w io.Writer, backend storage.Backend, flags *flagSet, generation int) error {
	if generation == 0 {
		return nil
	}

	switch b := backend.(type) {
	case *memory.Backend:
		if rec, ok := b.Generation(generation); ok && rec.Summary != nil {
			if best, ok := rec.Summary.Best(); ok {
				fmt.Fprintf(w, "generation %d: best %s fitness %.1f (%s after %d ticks)\n",
					generation, best.AgentID, best.Fitness, rec.Summary.Reason, rec.Summary.EndTick)
			}
		}

	case *gormstorage.Backend:
		limit, _ := flags.GetInt("leaderboard")
		if limit > 0 {
			standings, err := b.Leaderboard(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "agent        best fitness  generations  finishes")
			for _, s := range standings {
				fmt.Fprintf(w, "%-12s %12.1f  %11d  %8d\n", s.AgentID, s.BestFitness, s.Generations, s.Finishes)
			}
		}
	}
	return nil
}
