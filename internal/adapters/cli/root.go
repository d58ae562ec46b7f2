// Package cli provides the cobra command trees for cmd/simcore-server and
// cmd/simcore-client (SPEC_FULL.md §4.16), grounded on the teacher's
// internal/adapters/cli package layout (package-level flag vars, one
// NewXCommand constructor per command, a shared Execute helper).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simcore/simcore/internal/infrastructure/config"
)

// configPath is shared by both command trees' --config flag.
var configPath string

// loadConfig reads configPath (or the package defaults when empty) into a
// validated Config, applying SetDefaults the same way config.LoadConfig
// always does.
func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}

// Execute runs cmd and, on failure, prints the error to stderr and exits
// with status 1, the same top-level error handling the teacher's
// cli.Execute uses.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
