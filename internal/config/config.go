// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultServerPort is the port Selenium servers and grid hubs listen on.
	DefaultServerPort = 4444
	// DefaultTimeoutSeconds bounds page loads and element lookups.
	DefaultTimeoutSeconds = 60
	// DefaultPollInterval is how often a bounded wait re-checks its condition.
	DefaultPollInterval = 250 * time.Millisecond
	// DefaultCapabilitiesURL lists the platforms Sauce Labs currently offers.
	DefaultCapabilitiesURL = "https://saucelabs.com/rest/v1/info/platforms/webdriver"
)

// Config is the raw, unvalidated configuration as assembled from defaults,
// environment, flags and an optional config file. Resolve turns it into Settings.
type Config struct {
	Selenium  SeleniumConfig  `mapstructure:"selenium" yaml:"selenium"`
	Local     LocalConfig     `mapstructure:"local" yaml:"local"`
	Cloud     CloudConfig     `mapstructure:"cloud" yaml:"cloud"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
}

// SeleniumConfig holds the options that pick and address the browser. Field
// names mirror the command-line flags.
type SeleniumConfig struct {
	BrowserLocation string        `mapstructure:"browser_location" yaml:"browser_location"`
	Browser         string        `mapstructure:"browser" yaml:"browser"`
	Build           string        `mapstructure:"build" yaml:"build,omitempty"`
	BrowserVersion  string        `mapstructure:"browser_version" yaml:"browser_version,omitempty"`
	OS              string        `mapstructure:"os" yaml:"os,omitempty"`
	GridAddress     string        `mapstructure:"grid_address" yaml:"grid_address,omitempty"`
	GridPort        int           `mapstructure:"grid_port" yaml:"grid_port"`
	RemoteAddress   string        `mapstructure:"remote_address" yaml:"remote_address,omitempty"`
	RemotePort      int           `mapstructure:"remote_port" yaml:"remote_port"`
	Timeout         int           `mapstructure:"timeout" yaml:"timeout"`
	SauceUsername   string        `mapstructure:"sauce_username" yaml:"sauce_username,omitempty"`
	SauceAPIKey     string        `mapstructure:"sauce_apikey" yaml:"-"`
	BaseURL         string        `mapstructure:"baseurl" yaml:"baseurl,omitempty"`
	ArtifactDir     string        `mapstructure:"artifact_dir" yaml:"artifact_dir,omitempty"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ConfigFile      string        `mapstructure:"config" yaml:"-"`
}

// LocalConfig tunes browsers started on this machine.
type LocalConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ChromePath      string   `mapstructure:"chrome_path" yaml:"chrome_path,omitempty"`
	ChromeArgs      []string `mapstructure:"chrome_args" yaml:"chrome_args,omitempty"`
	GeckoDriverPath string   `mapstructure:"geckodriver_path" yaml:"geckodriver_path"`
	SeleniumJarPath string   `mapstructure:"selenium_jar_path" yaml:"selenium_jar_path,omitempty"`
	ServicePort     int      `mapstructure:"service_port" yaml:"service_port"`
}

// CloudConfig addresses the hosted browser farm and its capability listing.
type CloudConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	CapabilitiesURL string        `mapstructure:"capabilities_url" yaml:"capabilities_url"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	VerifyPlatform  bool          `mapstructure:"verify_platform" yaml:"verify_platform"`
}

// ArtifactsConfig controls how failure artifacts are written.
type ArtifactsConfig struct {
	// Encoding for HTML snapshots. Characters the encoding cannot represent are dropped.
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file,omitempty"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color for each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers a default for every known key. Viper only consults the
// environment for keys it knows about, so nothing may be left out here.
func SetDefaults(v *viper.Viper) {
	// -- Selenium --
	v.SetDefault("selenium.browser_location", string(KindLocal))
	v.SetDefault("selenium.browser", string(BrowserFirefox))
	v.SetDefault("selenium.build", "")
	v.SetDefault("selenium.browser_version", "")
	v.SetDefault("selenium.os", "")
	v.SetDefault("selenium.grid_address", "")
	v.SetDefault("selenium.grid_port", DefaultServerPort)
	v.SetDefault("selenium.remote_address", "")
	v.SetDefault("selenium.remote_port", DefaultServerPort)
	v.SetDefault("selenium.timeout", DefaultTimeoutSeconds)
	v.SetDefault("selenium.sauce_username", "")
	v.SetDefault("selenium.sauce_apikey", "")
	v.SetDefault("selenium.baseurl", "")
	v.SetDefault("selenium.artifact_dir", "")
	v.SetDefault("selenium.poll_interval", DefaultPollInterval)
	v.SetDefault("selenium.config", "")

	// -- Local --
	v.SetDefault("local.headless", true)
	v.SetDefault("local.chrome_path", "")
	v.SetDefault("local.chrome_args", []string{})
	v.SetDefault("local.geckodriver_path", "geckodriver")
	v.SetDefault("local.selenium_jar_path", "")
	v.SetDefault("local.service_port", 0)

	// -- Cloud --
	v.SetDefault("cloud.host", "ondemand.saucelabs.com")
	v.SetDefault("cloud.port", 80)
	v.SetDefault("cloud.capabilities_url", DefaultCapabilitiesURL)
	v.SetDefault("cloud.cache_ttl", "10m")
	v.SetDefault("cloud.verify_platform", true)

	// -- Artifacts --
	v.SetDefault("artifacts.encoding", "utf-8")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "selharness")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "blue")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")
}
