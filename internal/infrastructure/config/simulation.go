package config

// SimulationConfig holds the world-construction and tick-pacing parameters
// read by Init (spec.md §4.10) and the scheduler (§4.13).
type SimulationConfig struct {
	// MapWidth and MapHeight size the heightmap's initial chunk extent
	// in meters.
	MapWidth  int `mapstructure:"map_width" validate:"min=1"`
	MapHeight int `mapstructure:"map_height" validate:"min=1"`

	// TickHz is the fixed real-time rate the scheduler paces ticks at
	// (spec.md §4.13, 20 Hz by default).
	TickHz int `mapstructure:"tick_hz" validate:"min=1"`

	// Seed feeds internal/infrastructure/rng.Provider; never read from
	// wall-clock so two runs with the same seed and the same command log
	// reach the same state.
	Seed uint64 `mapstructure:"seed"`

	// ReplayEnabled turns on commandlog.CommandLog's in-memory recording
	// at Init.
	ReplayEnabled bool `mapstructure:"replay_enabled"`
}
