// internal/commands/root_test.go
package georaft

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/georaft/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag in the command tree so runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	b := new(bytes.Buffer)
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		cfgFile = ""
		currentConfig = nil
		viper.Reset()
		_ = logging.Close()
	})
	_, err := rootCmd.ExecuteC()
	return b.String(), err
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCmd(t *testing.T) {
	out, err := execute(t, "nonexistent")
	require.Error(t, err)
	assert.Contains(t, out, `unknown command "nonexistent" for "georaft"`)
}

func TestPersistentPreRunELayersFileAndFlags(t *testing.T) {
	path := writeTempConfig(t, strings.Join([]string{
		"port: 9191",
		"collectInterval: 4s",
		"benchmark:",
		"  totalRounds: 9",
	}, "\n"))

	out, err := execute(t, "--config", path, "--debug", "config", "show")
	require.NoError(t, err)

	cfg := GetConfig()
	require.NotNil(t, cfg)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, 9, cfg.Benchmark.Rounds())
	assert.Equal(t, path, cfg.ConfigPath)
	assert.Contains(t, out, "Config file: "+path)
	assert.Contains(t, out, ":9191")
	assert.Contains(t, out, "4s")
}

func TestMissingExplicitConfigFails(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := writeTempConfig(t, strings.Join([]string{
		"queries:",
		"  - name: tps",
		"    source: graphite",
		"    expr: rate(tx_total[1m])",
	}, "\n"))
	_, err := execute(t, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetVersionInfo(t *testing.T) {
	prev := []string{appVersion, appCommit, appDate}
	t.Cleanup(func() { SetVersionInfo(prev[0], prev[1], prev[2]) })

	SetVersionInfo("1.2.3", "abc123", "2026-10-01")
	assert.Equal(t, "1.2.3", appVersion)
	assert.Equal(t, "abc123", appCommit)
	assert.Equal(t, "2026-10-01", appDate)
}
