package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/dispatcher"
	"github.com/circuitlab/racesim/internal/engine"
	"github.com/circuitlab/racesim/internal/influx"
	"github.com/circuitlab/racesim/internal/logging"
	"github.com/circuitlab/racesim/internal/monitor"
	intOtel "github.com/circuitlab/racesim/internal/otel"
	"github.com/circuitlab/racesim/internal/policy"
	"github.com/circuitlab/racesim/internal/population"
	"github.com/circuitlab/racesim/internal/registry"
	"github.com/circuitlab/racesim/internal/session"
	"github.com/circuitlab/racesim/internal/storage"
	"github.com/circuitlab/racesim/internal/worker"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	ProgramName = "racesim"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// Progress is the generation/tick attached to every log record
	Progress = &logging.Progress{}

	SessionStartTime = time.Now()
)

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if v, _ := flags.GetBool("version"); v {
		fmt.Printf("%s %s (built %s)\n", ProgramName, Version, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		Logger.Error("Run failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *flagSet) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info", Console: os.Stderr})
	Logger = SlogManager.Logger()

	configDir, _ := flags.GetString("config")
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}
	if err := flags.bind(); err != nil {
		return err
	}

	logFile, err := logging.OpenLogFile(viper.GetString("logsDir"), ProgramName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err)
	} else {
		defer logFile.Close()
		Logger.Info("Begin logging in logs directory", "path", logFile.Name())
	}

	closeLogging := setupLogging(ctx, logFile)
	defer closeLogging()

	Logger.Info("Starting up", "version", Version, "buildDate", BuildDate)

	sim := config.GetSimulationConfig()
	boundary, checkpoints, err := loadTrack(Logger)
	if err != nil {
		return err
	}

	reg, err := registry.New(config.GetTeams())
	if err != nil {
		return fmt.Errorf("failed to create assignment registry: %w", err)
	}
	sess := session.NewContext(reg)
	if scale, _ := flags.GetFloat64("time-scale"); flags.Changed("time-scale") {
		sess.SetTimeScale(scale)
	}

	var fallback io.Writer
	if logFile != nil {
		fallback = logFile
	}
	zlog := zerologger(fallback)

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer eventDispatcher.Close()

	backend, err := initStorage(config.GetStorageConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	influxManager := initInflux(ctx, zlog, fallback)
	if influxManager != nil {
		defer influxManager.Close()
	}

	deps := worker.Dependencies{Logger: Logger}
	if influxManager != nil {
		deps.Metrics = influxManager
	}
	workerManager := worker.NewManager(deps, backend)
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Worker handlers registered with dispatcher")

	observers := engine.Observers{
		progressObserver{Progress},
		worker.NewPublisher(eventDispatcher, viper.GetInt("telemetry.frameInterval"), Logger),
	}
	recorder, err := intOtel.NewRecorder(OTelProvider.Meter(ProgramName))
	if err != nil {
		Logger.Warn("Failed to create metric recorder", "error", err)
	} else {
		observers = append(observers, recorder)
	}

	eng, err := engine.New(engine.Dependencies{
		Track:       boundary,
		Checkpoints: checkpoints,
		Config:      sim,
		Session:     sess,
		Observer:    observers,
		Logger:      Logger,
		RealTime:    viper.GetBool("simulation.realTime"),
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	pop, err := population.New(config.GetPopulationConfig(), sim.PopulationSize, len(sim.Radar.Angles))
	if err != nil {
		return fmt.Errorf("failed to create population: %w", err)
	}

	statusMonitor, statusFile := startMonitor(sess, backend, workerManager)
	last, runErr := runGenerations(ctx, eng, pop, sim.Generations, viper.GetString("simulation.driver"))

	statusMonitor.Stop()
	if statusFile != nil {
		statusFile.Close()
	}

	// drain telemetry before reporting from the backend
	eventDispatcher.Close()
	if d := workerManager.GetLastDBWriteDuration(); d > 0 {
		Logger.Debug("Last DB write", "duration", d)
	}

	if err := report(os.Stdout, backend, flags, sess.Generation()); err != nil {
		Logger.Error("Failed to write report", "error", err)
	}
	if upload, _ := flags.GetBool("upload"); upload && last.Generation > 0 {
		// ctx may already be cancelled by the interrupt that ended the run
		uploadCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := uploadGeneration(uploadCtx, backend, last)
		cancel()
		if err != nil {
			Logger.Error("Failed to upload generation", "error", err, "generation", last.Generation)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		Logger.Info("Interrupted, shutting down")
		return nil
	}
	return runErr
}

// setupLogging builds the final handler chain and returns its cleanup.
func setupLogging(ctx context.Context, logFile *os.File) func() {
	var err error
	var fileWriter io.Writer
	if logFile != nil {
		fileWriter = logFile
	}

	OTelProvider, err = intOtel.New(ctx, intOtel.Config{
		OTelConfig: config.GetOTelConfig(),
		LogWriter:  fileWriter,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		OTelProvider, _ = intOtel.New(ctx, intOtel.Config{})
	}

	opts := logging.Options{
		Level:   viper.GetString("logLevel"),
		Console: os.Stderr,
		Context: Progress.Attrs,
	}
	if fileWriter != nil {
		opts.File = fileWriter
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider.Enabled() {
		otelLogProvider = OTelProvider.LoggerProvider()
		opts.Provider = otelLogProvider
	}
	if viper.GetBool("graylog.enabled") {
		addr := viper.GetString("graylog.address")
		gw, err := logging.NewGraylogWriter(addr)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			opts.Graylog = gw
			Logger.Info("Graylog sink enabled", "address", addr)
		}
	}

	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := SlogManager.Flush(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "log flush failed:", err)
		}
		if err := OTelProvider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "otel shutdown failed:", err)
		}
	}
}

// startMonitor rewrites logsDir/status.json once per second while running.
func startMonitor(sess *session.Context, backend storage.Backend, writes monitor.WriteDurationProvider) (*monitor.Service, *os.File) {
	deps := monitor.Dependencies{
		Logger:   Logger,
		Progress: Progress,
		Session:  sess,
		Writes:   writes,
	}
	if q, ok := backend.(monitor.QueueLengthProvider); ok {
		deps.Queues = q
	}

	path := filepath.Join(viper.GetString("logsDir"), "status.json")
	f, err := os.Create(path)
	if err != nil {
		Logger.Warn("Failed to create status file", "error", err, "path", path)
		f = nil
	} else {
		deps.File = f
	}

	s := monitor.NewService(deps)
	s.Start()
	return s, f
}

// zerologger returns the zerolog logger used by the dispatcher and influx.
func zerologger(file io.Writer) zerolog.Logger {
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if file != nil {
		w = file
	}
	lvl, err := zerolog.ParseLevel(viper.GetString("logLevel"))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", ProgramName).Logger()
}

// initInflux returns nil when influx is disabled.
func initInflux(ctx context.Context, zlog zerolog.Logger, fallback io.Writer) *influx.Manager {
	m := influx.NewManager(config.GetInfluxConfig(), zlog.With().Str("component", "influx").Logger(), fallback)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := m.Connect(connectCtx)
	switch {
	case errors.Is(err, influx.ErrDisabled):
		return nil
	case err != nil:
		Logger.Error("Failed to set up InfluxDB", "error", err)
		return nil
	}
	return m
}

// runGenerations evaluates and evolves the population until the budget is
// spent or ctx is cancelled.
func runGenerations(ctx context.Context, eng *engine.Engine, pop *population.Population, generations int, driver string) (core.GenerationSummary, error) {
	var last core.GenerationSummary
	for g := 0; generations <= 0 || g < generations; g++ {
		agents, err := driverAgents(pop, driver)
		if err != nil {
			return last, err
		}

		summary, err := eng.Run(ctx, agents)
		if summary.Generation > 0 {
			last = summary
		}
		if err != nil {
			return last, err
		}

		best, _ := summary.Best()
		Logger.Info("Generation finished",
			"generation", summary.Generation,
			"reason", summary.Reason,
			"ticks", summary.EndTick,
			"best", best.AgentID,
			"bestFitness", best.Fitness,
		)
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel logs", "error", err)
		}

		pop.Evolve()
	}
	return last, nil
}

// driverAgents returns the population's agents, driven by their own linear
// policies or all by the scripted controller.
func driverAgents(pop *population.Population, driver string) ([]engine.Agent, error) {
	agents := pop.Agents()
	switch strings.ToLower(driver) {
	case "", "linear":
	case "scripted":
		scripted := policy.NewScripted()
		for i := range agents {
			agents[i].Policy = scripted
		}
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
	return agents, nil
}

type progressObserver struct {
	p *logging.Progress
}

func (o progressObserver) OnGenerationStart(s core.GenerationStart) { o.p.Set(s.Generation, 0) }
func (o progressObserver) OnTick(f core.Frame, _ []core.VehicleEvent) {
	o.p.Set(f.Generation, f.Tick)
}
func (o progressObserver) OnGenerationEnd(core.GenerationSummary) {}
