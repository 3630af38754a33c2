// internal/commands/root.go
package georaft

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/mwiater/georaft/internal/appconfig"
	"github.com/mwiater/georaft/internal/client"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	loadedFile    string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "georaft",
	Short:        "georaft: benchmark orchestration and performance telemetry for geo-distributed Fabric networks",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(cmd); err != nil {
			return err
		}

		for _, name := range []string{"debug", "jsonMode"} {
			if !cmd.Flags().Changed(name) {
				_ = cmd.Flags().Set(name, strconv.FormatBool(viper.GetBool(name)))
			}
		}

		cfg, err := appconfig.Decode(viper.GetViper())
		if err != nil {
			return err
		}
		cfg.ConfigPath = loadedFile
		currentConfig = &cfg

		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.SetDebug(currentConfig.Debug)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (YAML or JSON)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("jsonMode", false, "print raw JSON instead of formatted output")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("server", "", "georaft server URL used by client commands")
}

// initConfig registers defaults, environment overrides and flag bindings on the global viper.
// It runs once every command tree is built, so subcommand flags exist by then.
func initConfig() {
	v := viper.GetViper()
	appconfig.SetDefaults(v)
	appconfig.BindEnv(v)

	_ = v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("jsonMode", rootCmd.PersistentFlags().Lookup("jsonMode"))
	_ = v.BindPFlag("logFile", rootCmd.PersistentFlags().Lookup("logFile"))
	_ = v.BindPFlag("serverURL", rootCmd.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("host", serveCmd.Flags().Lookup("host"))
	_ = v.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("autoStartMonitoring", serveCmd.Flags().Lookup("autoStartMonitoring"))
}

// ensureConfigLoaded reads the config file. A missing file is only an error when --config was given.
func ensureConfigLoaded(cmd *cobra.Command) error {
	loadedFile = ""
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	loadedFile = viper.ConfigFileUsed()
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// JSONModeEnabled returns true if JSON mode is enabled.
func JSONModeEnabled() bool { return viper.GetBool("jsonMode") }

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// config returns the merged configuration, falling back to defaults outside a command run.
func config() appconfig.Config {
	if currentConfig != nil {
		return *currentConfig
	}
	return appconfig.Default()
}

// newClient builds a control-plane client for the configured server.
func newClient() *client.Client {
	return client.New(config().ClientURL(), 0)
}
