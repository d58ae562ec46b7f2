package config

import "time"

// DaemonConfig holds cmd/simcore-server process-lifecycle configuration.
type DaemonConfig struct {
	// PIDFile is the lock file internal/infrastructure/pidfile uses to
	// refuse a second concurrent server instance.
	PIDFile string `mapstructure:"pid_file"`

	// ShutdownTimeout bounds how long the server waits for in-flight
	// ticks and client connections to drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}
