package main

import (
	"fmt"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type flagSet struct {
	*pflag.FlagSet
}

// flagBindings maps command line flags onto config keys.
var flagBindings = map[string]string{
	"log-level":   "logLevel",
	"logs-dir":    "logsDir",
	"generations": "simulation.generations",
	"population":  "simulation.populationSize",
	"timeout":     "simulation.timeoutTicks",
	"seed":        "simulation.seed",
	"real-time":   "simulation.realTime",
	"driver":      "simulation.driver",
	"map":         "track.mapPath",
	"storage":     "storage.type",
	"ws-url":      "storage.websocket.url",
	"server-url":  "api.serverUrl",
}

func newFlagSet() *flagSet {
	fs := pflag.NewFlagSet(ProgramName, pflag.ContinueOnError)
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.Bool("version", false, "print version and exit")

	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("logs-dir", "./racelogs", "directory for log files")
	fs.Int("generations", 50, "generations to run, 0 runs until interrupted")
	fs.Int("population", 20, "agents per generation")
	fs.Int("timeout", 1200, "tick budget per generation")
	fs.Uint64("seed", 1, "population random seed")
	fs.Bool("real-time", false, "pace ticks at simulation.tickRate scaled by --time-scale")
	fs.Float64("time-scale", 1, "real-time speed multiplier")
	fs.String("driver", "linear", "policy driving the cars: linear or scripted")
	fs.String("map", "", "boundary PNG, empty for a walled arena")
	fs.String("storage", "memory", "telemetry backend: memory, gorm or websocket")
	fs.String("ws-url", "", "websocket backend URL")

	fs.String("server-url", "", "replay server for --upload")
	fs.Bool("upload", false, "upload the last generation to the replay server")
	fs.Int("leaderboard", 10, "agents to list after the run (gorm storage), 0 disables")

	return &flagSet{fs}
}

// bind lets explicitly set flags override the config file.
func (f *flagSet) bind() error {
	for name, key := range flagBindings {
		if err := viper.BindPFlag(key, f.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}
