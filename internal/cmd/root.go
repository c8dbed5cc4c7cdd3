// Package cmd wires the smartosctl developer CLI: thin cobra wrappers over
// the launcher, scheduler and thread pool packages for manual exercise and
// scripting, plus persistent config management.
package cmd

import (
	"fmt"
	"os"

	"github.com/sifat29/smartos/internal/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	jsonFlag  bool
	logLevel  string
	configDir string
)

// NewRootCmd assembles the full smartosctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := newRootCmd()
	addRunLoaderCommand(cmd)
	addRunSchedulerCommand(cmd)
	addConfigCommand(cmd)
	addPoolDemoCommand(cmd)
	return cmd
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "smartosctl",
		Short:         "Developer CLI for the smartos demand-paged loader and scheduler",
		Version:       fmt.Sprintf("smartosctl v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configDir != "" {
				config.SetDir(configDir)
			}
			return nil
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pflags := rootCmd.PersistentFlags()
	pflags.BoolVar(&jsonFlag, "json", false, "Output as JSON")
	pflags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pflags.StringVar(&configDir, "config-dir", "", "Override config directory (default: ~/.smartos)")

	if v := os.Getenv("SMARTOS_HOME"); v != "" && configDir == "" {
		configDir = v
	}

	return rootCmd
}
