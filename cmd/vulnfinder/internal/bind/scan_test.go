package bind

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnfinder/vulnfinder/pkg/config"
	"github.com/vulnfinder/vulnfinder/pkg/report"
)

func newScanTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "scan"}
	cmd.Flags().String("ports", "", "")
	cmd.Flags().String("ports-file", "", "")
	cmd.Flags().Duration("timeout", 2*time.Second, "")
	cmd.Flags().Int("concurrency", 64, "")
	cmd.Flags().Bool("evidence", false, "")
	cmd.Flags().String("cve-db", "", "")
	cmd.Flags().String("output", "", "")
	cmd.Flags().String("format", "text", "")
	cmd.Flags().Bool("json", false, "")
	cmd.Flags().Bool("show-closed", false, "")
	cmd.Flags().Bool("no-ui", false, "")
	cmd.Flags().Bool("i-own-or-am-authorized", false, "")
	return cmd
}

func TestBindScanOptions_Defaults(t *testing.T) {
	cmd := newScanTestCommand()
	defaults := config.DefaultConfig().Scan

	opts, err := BindScanOptions(cmd, []string{"10.0.0.0/30"}, defaults)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.0/30"}, opts.Engine.Targets)
	assert.Equal(t, 2*time.Second, opts.Engine.Timeout)
	assert.Equal(t, 64, opts.Engine.Concurrency)
	assert.False(t, opts.Engine.Authorized)
	assert.Equal(t, report.FormatText, opts.Format)
}

func TestBindScanOptions_FlagsOverrideConfig(t *testing.T) {
	cmd := newScanTestCommand()
	require.NoError(t, cmd.Flags().Set("ports", "22,80"))
	require.NoError(t, cmd.Flags().Set("timeout", "500ms"))
	require.NoError(t, cmd.Flags().Set("concurrency", "8"))
	require.NoError(t, cmd.Flags().Set("evidence", "true"))
	require.NoError(t, cmd.Flags().Set("i-own-or-am-authorized", "true"))

	defaults := config.ScanConfig{
		Ports:       "443",
		Timeout:     5 * time.Second,
		Concurrency: 128,
		Format:      "text",
	}

	opts, err := BindScanOptions(cmd, []string{"127.0.0.1"}, defaults)
	require.NoError(t, err)

	assert.Equal(t, "22,80", opts.Engine.Ports)
	assert.Equal(t, 500*time.Millisecond, opts.Engine.Timeout)
	assert.Equal(t, 8, opts.Engine.Concurrency)
	assert.True(t, opts.Engine.CollectEvidence)
	assert.True(t, opts.Engine.Authorized)
}

func TestBindScanOptions_ConfigDefaultsApply(t *testing.T) {
	cmd := newScanTestCommand()
	defaults := config.ScanConfig{
		Ports:       "8080",
		Timeout:     3 * time.Second,
		Concurrency: 16,
		CVEDB:       "/etc/vulnfinder/cve_db.json",
		Format:      "yaml",
	}

	opts, err := BindScanOptions(cmd, []string{"127.0.0.1"}, defaults)
	require.NoError(t, err)

	assert.Equal(t, "8080", opts.Engine.Ports)
	assert.Equal(t, 3*time.Second, opts.Engine.Timeout)
	assert.Equal(t, "/etc/vulnfinder/cve_db.json", opts.Engine.CVEDBPath)
	assert.Equal(t, report.FormatYAML, opts.Format)
}

func TestBindScanOptions_JSONShorthand(t *testing.T) {
	cmd := newScanTestCommand()
	require.NoError(t, cmd.Flags().Set("json", "true"))

	opts, err := BindScanOptions(cmd, []string{"127.0.0.1"}, config.DefaultConfig().Scan)
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, opts.Format)
}

func TestBindScanOptions_BadFormat(t *testing.T) {
	cmd := newScanTestCommand()
	require.NoError(t, cmd.Flags().Set("format", "xml"))

	_, err := BindScanOptions(cmd, []string{"127.0.0.1"}, config.DefaultConfig().Scan)
	require.Error(t, err)
}
