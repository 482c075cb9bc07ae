package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulnfinder/vulnfinder/cmd/vulnfinder/internal/bind"
	"github.com/vulnfinder/vulnfinder/pkg/config"
	"github.com/vulnfinder/vulnfinder/pkg/engine"
	"github.com/vulnfinder/vulnfinder/pkg/report"
	"github.com/vulnfinder/vulnfinder/pkg/ui"
)

// NewScanCommand defines the 'scan' command.
func NewScanCommand(manager *config.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Probe targets for open TCP ports and known-vulnerable service versions",
		Long: `Expands the given targets (IPs, CIDR blocks, IPv4 ranges, hostnames),
probes the selected TCP ports concurrently, and correlates fingerprinted
services against the local CVE database.

Scanning requires explicit authorization for every target. Pass
--i-own-or-am-authorized to assert that you own the targets or have
written permission to scan them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bind.BindScanOptions(cmd, args, manager.Get().Scan)
			if err != nil {
				return err
			}
			return runScan(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("ports", "p", "", "Comma-separated ports to probe (default 22,53,80,443,445,3389)")
	flags.String("ports-file", "", "File with additional ports, one per line")
	flags.Duration("timeout", 2*time.Second, "Per-probe timeout covering connect and banner read")
	flags.IntP("concurrency", "j", 64, "Number of concurrent probes")
	flags.Bool("evidence", false, "Collect and report service banners")
	flags.String("cve-db", "", "Path to the CVE database JSON file")
	flags.StringP("output", "o", "", "Write the report to a file instead of stdout")
	flags.String("format", "", "Report format: text, json, or yaml")
	flags.Bool("json", false, "Shorthand for --format json")
	flags.Bool("show-closed", false, "Include closed and filtered ports in the report")
	flags.Bool("no-ui", false, "Disable the live dashboard")
	flags.Bool("i-own-or-am-authorized", false, "Assert you are authorized to scan every target")

	return cmd
}

func runScan(cmd *cobra.Command, opts bind.ScanOptions) error {
	logger := log.With().Str("command", "scan").Logger()
	logger.Info().Strs("targets", opts.Engine.Targets).Msg("Initializing scan")

	var engineOpts []engine.Option
	if sink := selectSink(opts); sink != nil {
		engineOpts = append(engineOpts, engine.WithSink(sink))
	}

	eng := engine.New(engineOpts...)
	result, err := eng.Run(cmd.Context(), opts.Engine)
	if err != nil {
		if errors.Is(err, engine.ErrUnauthorized) {
			fmt.Fprintln(os.Stderr, "Error: refusing to scan without --i-own-or-am-authorized.")
			fmt.Fprintln(os.Stderr, "Only scan systems you own or have written permission to test.")
		}
		return err
	}

	renderOpts := report.Options{
		ShowEvidence: opts.Engine.CollectEvidence,
		ShowClosed:   opts.ShowClosed,
	}
	if opts.Output != "" {
		return report.WriteFile(opts.Output, result, opts.Format, renderOpts)
	}
	return report.Render(cmd.OutOrStdout(), result, opts.Format, renderOpts)
}

// selectSink picks the progress surface: the live dashboard on an interactive
// terminal, a plain printer otherwise, nothing when the report itself goes to
// stdout in a machine format.
func selectSink(opts bind.ScanOptions) engine.EventSink {
	machineToStdout := opts.Output == "" && opts.Format != report.FormatText
	if machineToStdout {
		return nil
	}
	if !opts.NoUI && isatty.IsTerminal(os.Stdout.Fd()) {
		return ui.NewDashboard(os.Stdout)
	}
	return ui.NewPlainPrinter(os.Stderr)
}
