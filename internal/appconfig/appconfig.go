// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.yaml"
	// EnvPrefix is prepended to every environment override (GEORAFT_PORT, ...).
	EnvPrefix = "GEORAFT"

	defaultHost                 = "0.0.0.0"
	defaultPort                 = 8080
	defaultPrometheusURL        = "http://localhost:9090"
	defaultMonitoringServiceURL = "http://localhost:3000"
	defaultServerURL            = "http://localhost:8080"
	defaultFetchTimeout         = 3 * time.Second
	defaultCollectInterval      = 2 * time.Second
	defaultRegionInterval       = 5 * time.Second
	defaultMaxSamples           = 50
	defaultMaxRuns              = 100
	defaultMaxDays              = 30
	defaultMaxTrend             = 20
	defaultTotalRounds          = 7
	defaultBenchmarkTimeout     = time.Hour
	defaultBenchmarkCommand     = "npx"
	defaultBenchmarkWorkDir     = "caliper"
	defaultSubscriberBuffer     = 64
)

var defaultBenchmarkArgs = []string{
	"caliper", "launch", "manager",
	"--caliper-bind-sut", "fabric:2.2",
	"--caliper-benchconfig", "large-scale-benchmark.yaml",
	"--caliper-networkconfig", "network-config.yaml",
	"--caliper-workspace", "./",
	"--caliper-flow-only-test",
}

// Config represents the top-level application configuration.
type Config struct {
	Host                 string          `mapstructure:"host" json:"host"`
	Port                 int             `mapstructure:"port" json:"port"`
	ServerURL            string          `mapstructure:"serverURL" json:"serverURL"`
	PrometheusURL        string          `mapstructure:"prometheusURL" json:"prometheusURL"`
	MonitoringServiceURL string          `mapstructure:"monitoringServiceURL" json:"monitoringServiceURL"`
	FetchTimeout         time.Duration   `mapstructure:"fetchTimeout" json:"fetchTimeout"`
	CollectInterval      time.Duration   `mapstructure:"collectInterval" json:"collectInterval"`
	RegionInterval       time.Duration   `mapstructure:"regionInterval" json:"regionInterval"`
	MaxSamples           int             `mapstructure:"maxSamples" json:"maxSamples"`
	MaxRuns              int             `mapstructure:"maxRuns" json:"maxRuns"`
	MaxDays              int             `mapstructure:"maxDays" json:"maxDays"`
	MaxTrend             int             `mapstructure:"maxTrend" json:"maxTrend"`
	SubscriberBuffer     int             `mapstructure:"subscriberBuffer" json:"subscriberBuffer"`
	AutoStartMonitoring  bool            `mapstructure:"autoStartMonitoring" json:"autoStartMonitoring"`
	Debug                bool            `mapstructure:"debug" json:"debug"`
	JSONMode             bool            `mapstructure:"jsonMode" json:"jsonMode"`
	LogFile              string          `mapstructure:"logFile" json:"logFile,omitempty"`
	Benchmark            BenchmarkConfig `mapstructure:"benchmark" json:"benchmark"`
	Queries              []Query         `mapstructure:"queries" json:"queries"`
	RegionQueries        []RegionQuery   `mapstructure:"regionQueries" json:"regionQueries"`
	ConfigPath           string          `mapstructure:"-" json:"-"`
}

// BenchmarkConfig describes how the external benchmark process is launched.
type BenchmarkConfig struct {
	Command     string        `mapstructure:"command" json:"command"`
	Args        []string      `mapstructure:"args" json:"args"`
	WorkDir     string        `mapstructure:"workDir" json:"workDir"`
	TotalRounds int           `mapstructure:"totalRounds" json:"totalRounds"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Query binds one metric source expression to a Performance Store series.
type Query struct {
	Name   string  `mapstructure:"name" json:"name"`
	Source string  `mapstructure:"source" json:"source"`
	Expr   string  `mapstructure:"expr" json:"expr"`
	Series string  `mapstructure:"series" json:"series,omitempty"`
	Scale  float64 `mapstructure:"scale" json:"scale,omitempty"`
}

// RegionQuery is a Prometheus expression grouped by a region label that feeds one RegionalStat field.
type RegionQuery struct {
	Field string  `mapstructure:"field" json:"field"`
	Expr  string  `mapstructure:"expr" json:"expr"`
	Label string  `mapstructure:"label" json:"label,omitempty"`
	Scale float64 `mapstructure:"scale" json:"scale,omitempty"`
}

// ScaleFactor returns the multiplier applied to raw query values.
func (q Query) ScaleFactor() float64 {
	if q.Scale == 0 {
		return 1
	}
	return q.Scale
}

// ScaleFactor returns the multiplier applied to raw query values.
func (q RegionQuery) ScaleFactor() float64 {
	if q.Scale == 0 {
		return 1
	}
	return q.Scale
}

// RegionLabel returns the label used to split results per region.
func (q RegionQuery) RegionLabel() string {
	if strings.TrimSpace(q.Label) == "" {
		return "region"
	}
	return q.Label
}

// ListenAddr returns the host:port pair the control plane binds to.
func (c Config) ListenAddr() string {
	host := c.Host
	if strings.TrimSpace(host) == "" {
		host = defaultHost
	}
	port := c.Port
	if port <= 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// FetchTimeoutDuration bounds every metric source call.
func (c Config) FetchTimeoutDuration() time.Duration {
	if c.FetchTimeout <= 0 {
		return defaultFetchTimeout
	}
	return c.FetchTimeout
}

// CollectIntervalDuration is the local metrics collection period.
func (c Config) CollectIntervalDuration() time.Duration {
	if c.CollectInterval <= 0 {
		return defaultCollectInterval
	}
	return c.CollectInterval
}

// RegionIntervalDuration is the cross-region snapshot period.
func (c Config) RegionIntervalDuration() time.Duration {
	if c.RegionInterval <= 0 {
		return defaultRegionInterval
	}
	return c.RegionInterval
}

// SampleCapacity is the ring size per metric series.
func (c Config) SampleCapacity() int { return positiveOr(c.MaxSamples, defaultMaxSamples) }

// RunCapacity is the size of the bounded run history.
func (c Config) RunCapacity() int { return positiveOr(c.MaxRuns, defaultMaxRuns) }

// DayCapacity is the number of daily averages retained.
func (c Config) DayCapacity() int { return positiveOr(c.MaxDays, defaultMaxDays) }

// TrendCapacity is the per-region trend length.
func (c Config) TrendCapacity() int { return positiveOr(c.MaxTrend, defaultMaxTrend) }

// SubscriberBufferSize is the per-subscriber event queue length.
func (c Config) SubscriberBufferSize() int {
	return positiveOr(c.SubscriberBuffer, defaultSubscriberBuffer)
}

// ClientURL returns the control plane base URL used by CLI client commands.
func (c Config) ClientURL() string {
	if u := strings.TrimSpace(c.ServerURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	return defaultServerURL
}

// LogFilePath returns the path to the application log file; empty disables file logging.
func (c Config) LogFilePath() string {
	return strings.TrimSpace(c.LogFile)
}

// CommandPath returns the benchmark executable.
func (b BenchmarkConfig) CommandPath() string {
	if cmd := strings.TrimSpace(b.Command); cmd != "" {
		return cmd
	}
	return defaultBenchmarkCommand
}

// CommandArgs returns the benchmark arguments.
func (b BenchmarkConfig) CommandArgs() []string {
	if b.Args == nil {
		return append([]string(nil), defaultBenchmarkArgs...)
	}
	return append([]string(nil), b.Args...)
}

// Rounds returns the number of rounds used to compute progress.
func (b BenchmarkConfig) Rounds() int { return positiveOr(b.TotalRounds, defaultTotalRounds) }

// TimeoutDuration is the hard limit for a single benchmark process.
func (b BenchmarkConfig) TimeoutDuration() time.Duration {
	if b.Timeout <= 0 {
		return defaultBenchmarkTimeout
	}
	return b.Timeout
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	var problems []string
	for i, q := range c.Queries {
		if strings.TrimSpace(q.Name) == "" {
			problems = append(problems, fmt.Sprintf("queries[%d]: name is required", i))
		}
		switch q.Source {
		case "prometheus", "monitoring":
		default:
			problems = append(problems, fmt.Sprintf("queries[%d]: unknown source %q", i, q.Source))
		}
	}
	for i, q := range c.RegionQueries {
		switch q.Field {
		case "tps", "latency", "transactions", "errorRate", "optimization", "throughput":
		default:
			problems = append(problems, fmt.Sprintf("regionQueries[%d]: unknown field %q", i, q.Field))
		}
		if strings.TrimSpace(q.Expr) == "" {
			problems = append(problems, fmt.Sprintf("regionQueries[%d]: expr is required", i))
		}
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// SetDefaults registers every default on v so that file, env and flags layer on top.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", defaultHost)
	v.SetDefault("port", defaultPort)
	v.SetDefault("serverURL", defaultServerURL)
	v.SetDefault("prometheusURL", defaultPrometheusURL)
	v.SetDefault("monitoringServiceURL", defaultMonitoringServiceURL)
	v.SetDefault("fetchTimeout", defaultFetchTimeout)
	v.SetDefault("collectInterval", defaultCollectInterval)
	v.SetDefault("regionInterval", defaultRegionInterval)
	v.SetDefault("maxSamples", defaultMaxSamples)
	v.SetDefault("maxRuns", defaultMaxRuns)
	v.SetDefault("maxDays", defaultMaxDays)
	v.SetDefault("maxTrend", defaultMaxTrend)
	v.SetDefault("subscriberBuffer", defaultSubscriberBuffer)
	v.SetDefault("autoStartMonitoring", true)
	v.SetDefault("debug", false)
	v.SetDefault("jsonMode", false)
	v.SetDefault("benchmark.command", defaultBenchmarkCommand)
	v.SetDefault("benchmark.args", defaultBenchmarkArgs)
	v.SetDefault("benchmark.workDir", defaultBenchmarkWorkDir)
	v.SetDefault("benchmark.totalRounds", defaultTotalRounds)
	v.SetDefault("benchmark.timeout", defaultBenchmarkTimeout)
	v.SetDefault("queries", defaultQueryMaps())
	v.SetDefault("regionQueries", defaultRegionQueryMaps())
}

// BindEnv wires GEORAFT_* overrides plus the variable names the dashboard historically read.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("prometheusURL", EnvPrefix+"_PROMETHEUSURL", "PROMETHEUS_URL")
	_ = v.BindEnv("monitoringServiceURL", EnvPrefix+"_MONITORINGSERVICEURL", "MONITORING_SERVICE_URL")
}

// Decode materializes the merged viper state into a Config.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration at path (YAML or JSON) layered over defaults and the environment.
// A missing file at the default path is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit {
			return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
		}
	}
	return Decode(v)
}

// Default returns the configuration with only defaults applied.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Decode(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
