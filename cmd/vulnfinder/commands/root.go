package commands

import (
	"github.com/spf13/cobra"

	"github.com/vulnfinder/vulnfinder/pkg/config"
	"github.com/vulnfinder/vulnfinder/pkg/logging"
	"github.com/vulnfinder/vulnfinder/pkg/version"
)

const cliExecutable = "vulnfinder"

// NewCommand constructs the top-level vulnfinder CLI command, wiring global
// flags, configuration loading, and logging setup.
func NewCommand() *cobra.Command {
	var (
		configFile string
		logLevel   string
		manager    = config.NewManager()
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Vulnfinder is an authorized-use network inventory and vulnerability-awareness scanner",
		Long: `Vulnfinder probes TCP services across hosts you are authorized to scan,
fingerprints what it finds, and correlates observed versions against a local
CVE database. It performs no exploitation and sends no attack payloads.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return err
			}
			level := manager.Get().Log.Level
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}
			return logging.ConfigureGlobalLogging(level)
		},
	}
	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(NewScanCommand(manager))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand prints build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Info())
		},
	}
}
