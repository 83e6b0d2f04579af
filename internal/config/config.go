package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "racesim.cfg.json"

// VehicleConfig holds body and control tunables for every car.
type VehicleConfig struct {
	Size             float64 `json:"size" mapstructure:"size"`
	Wheelbase        float64 `json:"wheelbase" mapstructure:"wheelbase"`
	MaxSteeringAngle float64 `json:"maxSteeringAngle" mapstructure:"maxSteeringAngle"`
	DefaultSpeed     float64 `json:"defaultSpeed" mapstructure:"defaultSpeed"`
	MinSpeed         float64 `json:"minSpeed" mapstructure:"minSpeed"`
	HeadingDelta     float64 `json:"headingDelta" mapstructure:"headingDelta"`
	SpeedDelta       float64 `json:"speedDelta" mapstructure:"speedDelta"`
	ClampMin         float64 `json:"clampMin" mapstructure:"clampMin"`
	ClampFar         float64 `json:"clampFar" mapstructure:"clampFar"`
	// StrictVerticalClamp bounds y by the map height instead of the map width.
	StrictVerticalClamp bool `json:"strictVerticalClamp" mapstructure:"strictVerticalClamp"`
}

// HalfSize is the corner radius and center offset of the car sprite.
func (v VehicleConfig) HalfSize() float64 {
	return v.Size / 2
}

// RadarConfig holds the forward sensor geometry.
type RadarConfig struct {
	Angles        []int   `json:"angles" mapstructure:"angles"`
	BaseRange     float64 `json:"baseRange" mapstructure:"baseRange"`
	PerSpeedRange float64 `json:"perSpeedRange" mapstructure:"perSpeedRange"`
	Divisor       int     `json:"divisor" mapstructure:"divisor"`
}

// MaxRange is the longest ray for a vehicle moving at speed.
func (r RadarConfig) MaxRange(speed float64) float64 {
	return r.BaseRange + r.PerSpeedRange*speed
}

// RewardConfig holds the fitness weights.
type RewardConfig struct {
	Checkpoint       float64 `json:"checkpoint" mapstructure:"checkpoint"`
	WrongCheckpoint  float64 `json:"wrongCheckpoint" mapstructure:"wrongCheckpoint"`
	TimePenalty      float64 `json:"timePenalty" mapstructure:"timePenalty"`
	CompletionBase   float64 `json:"completionBase" mapstructure:"completionBase"`
	TimeRewardFactor float64 `json:"timeRewardFactor" mapstructure:"timeRewardFactor"`
	FinishDecay      float64 `json:"finishDecay" mapstructure:"finishDecay"`
	OscillationUnit  float64 `json:"oscillationUnit" mapstructure:"oscillationUnit"`
}

// OscillationConfig tunes steering reversal detection.
type OscillationConfig struct {
	Deadband      float64 `json:"deadband" mapstructure:"deadband"`
	CooldownTicks int     `json:"cooldownTicks" mapstructure:"cooldownTicks"`
	FreeChanges   int     `json:"freeChanges" mapstructure:"freeChanges"`
}

// SpawnConfig is the start pose shared by every car.
type SpawnConfig struct {
	X       float64 `json:"x" mapstructure:"x"`
	Y       float64 `json:"y" mapstructure:"y"`
	Heading float64 `json:"heading" mapstructure:"heading"`
}

// Simulation bundles everything the engine needs besides the track.
type Simulation struct {
	Vehicle        VehicleConfig
	Radar          RadarConfig
	Reward         RewardConfig
	Oscillation    OscillationConfig
	Spawn          SpawnConfig
	TimeoutTicks   int
	Generations    int
	PopulationSize int
	TickRate       int
}

// DefaultSimulation returns the built-in tunables.
func DefaultSimulation() Simulation {
	return Simulation{
		Vehicle: VehicleConfig{
			Size:             26,
			Wheelbase:        20,
			MaxSteeringAngle: 30,
			DefaultSpeed:     20,
			MinSpeed:         12,
			HeadingDelta:     10,
			SpeedDelta:       2,
			ClampMin:         20,
			ClampFar:         120,
		},
		Radar: RadarConfig{
			Angles:        []int{-90, -45, 0, 45, 90},
			BaseRange:     300,
			PerSpeedRange: 2,
			Divisor:       30,
		},
		Reward: RewardConfig{
			Checkpoint:       2000,
			WrongCheckpoint:  -4000,
			TimePenalty:      -0.1,
			CompletionBase:   5000,
			TimeRewardFactor: 10,
			FinishDecay:      0.9,
			OscillationUnit:  50,
		},
		Oscillation: OscillationConfig{
			Deadband:      5,
			CooldownTicks: 10,
			FreeChanges:   3,
		},
		Spawn: SpawnConfig{
			X:       1630,
			Y:       140,
			Heading: 135,
		},
		TimeoutTicks:   30 * 40,
		Generations:    50,
		PopulationSize: 20,
		TickRate:       60,
	}
}

// PopulationConfig tunes the built-in hill-climbing population.
type PopulationConfig struct {
	Seed             uint64
	Elite            int
	MutationRate     float64
	MutationScale    float64
	ComplexityWeight float64
}

// CheckpointConfig is one (x, y, radius) entry of the track path.
type CheckpointConfig struct {
	X      float64 `json:"x" mapstructure:"x"`
	Y      float64 `json:"y" mapstructure:"y"`
	Radius float64 `json:"radius" mapstructure:"radius"`
}

// TrackConfig locates the boundary image and the checkpoint path.
type TrackConfig struct {
	MapPath     string
	BorderColor string
	Checkpoints []CheckpointConfig
}

// MemoryConfig holds in-memory storage backend settings
type MemoryConfig struct {
	MaxGenerations int  `json:"maxGenerations" mapstructure:"maxGenerations"`
	FrameInterval  int  `json:"frameInterval" mapstructure:"frameInterval"`
	CompressExport bool `json:"compressExport" mapstructure:"compressExport"`
}

// GormConfig holds settings for the in-memory SQLite telemetry store.
type GormConfig struct {
	BatchSize     int           `json:"batchSize" mapstructure:"batchSize"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	FrameInterval int           `json:"frameInterval" mapstructure:"frameInterval"`
}

// WebSocketConfig holds streaming backend settings.
type WebSocketConfig struct {
	URL            string        `json:"url" mapstructure:"url"`
	Secret         string        `json:"secret" mapstructure:"secret"`
	AckTimeout     time.Duration `json:"ackTimeout" mapstructure:"ackTimeout"`
	ReconnectDelay time.Duration `json:"reconnectDelay" mapstructure:"reconnectDelay"`
}

// StorageConfig selects and configures the telemetry backend.
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	Gorm      GormConfig
	WebSocket WebSocketConfig
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// ServerURL joins protocol, host and port.
func (c InfluxConfig) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

var defaultCheckpoints = []CheckpointConfig{
	{X: 1500, Y: 336, Radius: 30},
	{X: 360, Y: 380, Radius: 32},
	{X: 1500, Y: 980, Radius: 30},
	{X: 1750, Y: 400, Radius: 30},
}

var defaultTeams = []string{
	"apex", "meridian", "vortex", "halcyon", "ironclad",
	"solstice", "kestrel", "nimbus", "torque", "zenith",
}

func setDefaults() {
	d := DefaultSimulation()

	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./racelogs")

	viper.SetDefault("vehicle.size", d.Vehicle.Size)
	viper.SetDefault("vehicle.wheelbase", d.Vehicle.Wheelbase)
	viper.SetDefault("vehicle.maxSteeringAngle", d.Vehicle.MaxSteeringAngle)
	viper.SetDefault("vehicle.defaultSpeed", d.Vehicle.DefaultSpeed)
	viper.SetDefault("vehicle.minSpeed", d.Vehicle.MinSpeed)
	viper.SetDefault("vehicle.headingDelta", d.Vehicle.HeadingDelta)
	viper.SetDefault("vehicle.speedDelta", d.Vehicle.SpeedDelta)
	viper.SetDefault("vehicle.clampMin", d.Vehicle.ClampMin)
	viper.SetDefault("vehicle.clampFar", d.Vehicle.ClampFar)
	viper.SetDefault("vehicle.strictVerticalClamp", false)

	viper.SetDefault("radar.angles", d.Radar.Angles)
	viper.SetDefault("radar.baseRange", d.Radar.BaseRange)
	viper.SetDefault("radar.perSpeedRange", d.Radar.PerSpeedRange)
	viper.SetDefault("radar.divisor", d.Radar.Divisor)

	viper.SetDefault("reward.checkpoint", d.Reward.Checkpoint)
	viper.SetDefault("reward.wrongCheckpoint", d.Reward.WrongCheckpoint)
	viper.SetDefault("reward.timePenalty", d.Reward.TimePenalty)
	viper.SetDefault("reward.completionBase", d.Reward.CompletionBase)
	viper.SetDefault("reward.timeRewardFactor", d.Reward.TimeRewardFactor)
	viper.SetDefault("reward.finishDecay", d.Reward.FinishDecay)
	viper.SetDefault("reward.oscillationUnit", d.Reward.OscillationUnit)

	viper.SetDefault("oscillation.deadband", d.Oscillation.Deadband)
	viper.SetDefault("oscillation.cooldownTicks", d.Oscillation.CooldownTicks)
	viper.SetDefault("oscillation.freeChanges", d.Oscillation.FreeChanges)

	viper.SetDefault("spawn.x", d.Spawn.X)
	viper.SetDefault("spawn.y", d.Spawn.Y)
	viper.SetDefault("spawn.heading", d.Spawn.Heading)

	viper.SetDefault("simulation.timeoutTicks", d.TimeoutTicks)
	viper.SetDefault("simulation.generations", d.Generations)
	viper.SetDefault("simulation.populationSize", d.PopulationSize)
	viper.SetDefault("simulation.tickRate", d.TickRate)
	viper.SetDefault("simulation.seed", 1)

	viper.SetDefault("population.elite", 3)
	viper.SetDefault("population.mutationRate", 0.2)
	viper.SetDefault("population.mutationScale", 0.5)
	viper.SetDefault("population.complexityWeight", 1.0)

	viper.SetDefault("track.mapPath", "")
	viper.SetDefault("track.borderColor", "255,255,255,255")
	cps := make([]map[string]any, len(defaultCheckpoints))
	for i, c := range defaultCheckpoints {
		cps[i] = map[string]any{"x": c.X, "y": c.Y, "radius": c.Radius}
	}
	viper.SetDefault("track.checkpoints", cps)

	viper.SetDefault("teams.names", defaultTeams)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.maxGenerations", 5)
	viper.SetDefault("storage.memory.frameInterval", 1)
	viper.SetDefault("storage.memory.compressExport", true)
	viper.SetDefault("storage.gorm.batchSize", 500)
	viper.SetDefault("storage.gorm.flushInterval", "2s")
	viper.SetDefault("storage.gorm.frameInterval", 5)
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/ws/race")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.ackTimeout", "10s")
	viper.SetDefault("storage.websocket.reconnectDelay", "2s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "racesim")
	viper.SetDefault("influx.bucket", "generations")

	viper.SetDefault("telemetry.frameInterval", 1)

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.tag", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "racesim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
// Defaults are registered even when the file cannot be read.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimulationConfig assembles the engine tunables from individual keys so
// partial sections in the file still inherit per-key defaults.
func GetSimulationConfig() Simulation {
	return Simulation{
		Vehicle: VehicleConfig{
			Size:                viper.GetFloat64("vehicle.size"),
			Wheelbase:           viper.GetFloat64("vehicle.wheelbase"),
			MaxSteeringAngle:    viper.GetFloat64("vehicle.maxSteeringAngle"),
			DefaultSpeed:        viper.GetFloat64("vehicle.defaultSpeed"),
			MinSpeed:            viper.GetFloat64("vehicle.minSpeed"),
			HeadingDelta:        viper.GetFloat64("vehicle.headingDelta"),
			SpeedDelta:          viper.GetFloat64("vehicle.speedDelta"),
			ClampMin:            viper.GetFloat64("vehicle.clampMin"),
			ClampFar:            viper.GetFloat64("vehicle.clampFar"),
			StrictVerticalClamp: viper.GetBool("vehicle.strictVerticalClamp"),
		},
		Radar: RadarConfig{
			Angles:        viper.GetIntSlice("radar.angles"),
			BaseRange:     viper.GetFloat64("radar.baseRange"),
			PerSpeedRange: viper.GetFloat64("radar.perSpeedRange"),
			Divisor:       viper.GetInt("radar.divisor"),
		},
		Reward: RewardConfig{
			Checkpoint:       viper.GetFloat64("reward.checkpoint"),
			WrongCheckpoint:  viper.GetFloat64("reward.wrongCheckpoint"),
			TimePenalty:      viper.GetFloat64("reward.timePenalty"),
			CompletionBase:   viper.GetFloat64("reward.completionBase"),
			TimeRewardFactor: viper.GetFloat64("reward.timeRewardFactor"),
			FinishDecay:      viper.GetFloat64("reward.finishDecay"),
			OscillationUnit:  viper.GetFloat64("reward.oscillationUnit"),
		},
		Oscillation: OscillationConfig{
			Deadband:      viper.GetFloat64("oscillation.deadband"),
			CooldownTicks: viper.GetInt("oscillation.cooldownTicks"),
			FreeChanges:   viper.GetInt("oscillation.freeChanges"),
		},
		Spawn: SpawnConfig{
			X:       viper.GetFloat64("spawn.x"),
			Y:       viper.GetFloat64("spawn.y"),
			Heading: viper.GetFloat64("spawn.heading"),
		},
		TimeoutTicks:   viper.GetInt("simulation.timeoutTicks"),
		Generations:    viper.GetInt("simulation.generations"),
		PopulationSize: viper.GetInt("simulation.populationSize"),
		TickRate:       viper.GetInt("simulation.tickRate"),
	}
}

// GetPopulationConfig returns the population section plus simulation.seed.
func GetPopulationConfig() PopulationConfig {
	return PopulationConfig{
		Seed:             viper.GetUint64("simulation.seed"),
		Elite:            viper.GetInt("population.elite"),
		MutationRate:     viper.GetFloat64("population.mutationRate"),
		MutationScale:    viper.GetFloat64("population.mutationScale"),
		ComplexityWeight: viper.GetFloat64("population.complexityWeight"),
	}
}

// GetTrackConfig returns the track section.
func GetTrackConfig() (TrackConfig, error) {
	cfg := TrackConfig{
		MapPath:     viper.GetString("track.mapPath"),
		BorderColor: viper.GetString("track.borderColor"),
	}
	if err := viper.UnmarshalKey("track.checkpoints", &cfg.Checkpoints); err != nil {
		return cfg, fmt.Errorf("decode track.checkpoints: %w", err)
	}
	return cfg, nil
}

// GetTeams returns the configured team names.
func GetTeams() []string {
	return viper.GetStringSlice("teams.names")
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			MaxGenerations: viper.GetInt("storage.memory.maxGenerations"),
			FrameInterval:  viper.GetInt("storage.memory.frameInterval"),
			CompressExport: viper.GetBool("storage.memory.compressExport"),
		},
		Gorm: GormConfig{
			BatchSize:     viper.GetInt("storage.gorm.batchSize"),
			FlushInterval: viper.GetDuration("storage.gorm.flushInterval"),
			FrameInterval: viper.GetInt("storage.gorm.frameInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:            viper.GetString("storage.websocket.url"),
			Secret:         viper.GetString("storage.websocket.secret"),
			AckTimeout:     viper.GetDuration("storage.websocket.ackTimeout"),
			ReconnectDelay: viper.GetDuration("storage.websocket.reconnectDelay"),
		},
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}
