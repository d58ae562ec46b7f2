package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "simcore"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "simcore"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "simcore.db"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Simulation defaults
	if cfg.Simulation.MapWidth == 0 {
		cfg.Simulation.MapWidth = 1000
	}
	if cfg.Simulation.MapHeight == 0 {
		cfg.Simulation.MapHeight = 1000
	}
	if cfg.Simulation.TickHz == 0 {
		cfg.Simulation.TickHz = 20
	}

	// Network defaults
	if cfg.Network.TCPAddress == "" {
		cfg.Network.TCPAddress = "localhost:4450"
	}
	if cfg.Network.UDPAddress == "" {
		cfg.Network.UDPAddress = "localhost:4450"
	}
	if cfg.Network.FBA == 0 {
		cfg.Network.FBA = 8
	}
	if cfg.Network.WorldFragmentSize == 0 {
		cfg.Network.WorldFragmentSize = 32 * 1024
	}
	if cfg.Network.HandshakeTimeout == 0 {
		cfg.Network.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Network.HistoryRetention == 0 {
		cfg.Network.HistoryRetention = 20000
	}
	if cfg.Network.UDPSilenceTimeout == 0 {
		cfg.Network.UDPSilenceTimeout = 30 * time.Second
	}

	// Daemon defaults
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = "/tmp/simcore-server.pid"
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = 30 * time.Second
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.Rotation.MaxSize == 0 {
		cfg.Logging.Rotation.MaxSize = 100 // MB
	}
	if cfg.Logging.Rotation.MaxBackups == 0 {
		cfg.Logging.Rotation.MaxBackups = 3
	}
	if cfg.Logging.Rotation.MaxAge == 0 {
		cfg.Logging.Rotation.MaxAge = 28 // days
	}

	// Metrics defaults
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "localhost"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
