package bind

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnfinder/vulnfinder/pkg/config"
	"github.com/vulnfinder/vulnfinder/pkg/engine"
	"github.com/vulnfinder/vulnfinder/pkg/report"
)

// ScanOptions holds everything the scan command needs after flag binding.
type ScanOptions struct {
	Engine     engine.Config
	Output     string
	Format     report.Format
	ShowClosed bool
	NoUI       bool
}

// BindScanOptions reads the scan command's flags, layered over config-file
// defaults, and constructs a validated ScanOptions.
//
// Flags read:
//   - --ports, --ports-file: port selection
//   - --timeout, --concurrency, --evidence: probe behavior
//   - --cve-db: CVE database path
//   - --output, --format, --json: report destination and shape
//   - --show-closed, --no-ui: presentation
//   - --i-own-or-am-authorized: the authorization assertion
func BindScanOptions(cmd *cobra.Command, args []string, defaults config.ScanConfig) (ScanOptions, error) {
	opts := ScanOptions{
		Engine: engine.Config{
			Targets:         args,
			Ports:           defaults.Ports,
			PortsFile:       defaults.PortsFile,
			Timeout:         defaults.Timeout,
			Concurrency:     defaults.Concurrency,
			CollectEvidence: defaults.Evidence,
			CVEDBPath:       defaults.CVEDB,
		},
		Output: defaults.Output,
	}

	flags := cmd.Flags()
	if flags.Changed("ports") {
		opts.Engine.Ports, _ = flags.GetString("ports")
	}
	if flags.Changed("ports-file") {
		opts.Engine.PortsFile, _ = flags.GetString("ports-file")
	}
	if flags.Changed("timeout") {
		opts.Engine.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("concurrency") {
		opts.Engine.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("evidence") {
		opts.Engine.CollectEvidence, _ = flags.GetBool("evidence")
	}
	if flags.Changed("cve-db") {
		opts.Engine.CVEDBPath, _ = flags.GetString("cve-db")
	}
	if flags.Changed("output") {
		opts.Output, _ = flags.GetString("output")
	}

	opts.Engine.Authorized, _ = flags.GetBool("i-own-or-am-authorized")
	opts.ShowClosed, _ = flags.GetBool("show-closed")
	opts.NoUI, _ = flags.GetBool("no-ui")

	if opts.Engine.Timeout <= 0 {
		opts.Engine.Timeout = 2 * time.Second
	}

	formatName := defaults.Format
	if flags.Changed("format") {
		formatName, _ = flags.GetString("format")
	}
	if jsonFlag, _ := flags.GetBool("json"); jsonFlag {
		formatName = "json"
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return opts, err
	}
	opts.Format = format

	return opts, nil
}
