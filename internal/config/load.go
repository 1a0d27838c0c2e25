// File: internal/config/load.go
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envAliases are the legacy variable names honored in addition to the
// SECTION_KEY form derived from every config key.
var envAliases = map[string][]string{
	"selenium.remote_address": {"SELENIUM_REMOTE_ADDRESS", "REMOTE_SELENIUM_ADDRESS"},
	"selenium.sauce_username": {"SELENIUM_SAUCE_USERNAME", "SAUCE_USERNAME"},
	"selenium.sauce_apikey":   {"SELENIUM_SAUCE_APIKEY", "SAUCE_APIKEY"},
}

// LoadOptions selects the sources Load reads besides defaults and environment.
type LoadOptions struct {
	// Flags, when set, are bound to their config keys.
	Flags *pflag.FlagSet
	// ConfigFile overrides the path given by --config / SELENIUM_CONFIG.
	ConfigFile string
}

// Load assembles a Config. Precedence, highest first: config file, explicitly
// set flags, environment, defaults. A key present in the file always wins over
// the same option given on the command line.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if opts.Flags != nil {
		if err := BindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	path := opts.ConfigFile
	if path == "" {
		path = v.GetString("selenium.config")
	}
	if path != "" {
		if err := overlayFile(v, path); err != nil {
			return nil, err
		}
	}
	return NewConfigFromViper(v)
}

// BindEnv enables SECTION_KEY environment lookups and the legacy aliases.
func BindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
}

// overlayFile reads the config file into its own viper and re-applies every
// key it contains as an override, which puts it above flags.
func overlayFile(v *viper.Viper, path string) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand config path %q: %w", path, err)
	}
	fv := viper.New()
	fv.SetConfigFile(expanded)
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	for _, key := range fv.AllKeys() {
		v.Set(key, fv.Get(key))
	}
	return nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// decodeHook extends viper's default hooks so a string list may also be
// given as a JSON array, which keeps elements containing commas intact.
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		jsonSliceHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

func jsonSliceHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
		return data, nil
	}
	raw, ok := data.(string)
	if raw = strings.TrimSpace(raw); !ok || !strings.HasPrefix(raw, "[") {
		return data, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON list %q: %w", raw, err)
	}
	return out, nil
}

// encodeList renders a string list in the JSON form jsonSliceHook reads back.
func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return ""
	}
	return string(b)
}

// EnvName returns the environment variable consulted for a config key.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Environ renders cfg as KEY=value pairs that Load reads back through the
// environment. Used to hand resolved settings to child test processes.
func Environ(cfg *Config) []string {
	s := cfg.Selenium
	pairs := map[string]string{
		"selenium.browser_location": s.BrowserLocation,
		"selenium.browser":          s.Browser,
		"selenium.build":            s.Build,
		"selenium.browser_version":  s.BrowserVersion,
		"selenium.os":               s.OS,
		"selenium.grid_address":     s.GridAddress,
		"selenium.grid_port":        strconv.Itoa(s.GridPort),
		"selenium.remote_address":   s.RemoteAddress,
		"selenium.remote_port":      strconv.Itoa(s.RemotePort),
		"selenium.timeout":          strconv.Itoa(s.Timeout),
		"selenium.sauce_username":   s.SauceUsername,
		"selenium.sauce_apikey":     s.SauceAPIKey,
		"selenium.baseurl":          s.BaseURL,
		"selenium.artifact_dir":     s.ArtifactDir,
		"selenium.poll_interval":    s.PollInterval.String(),
		"local.headless":            strconv.FormatBool(cfg.Local.Headless),
		"local.chrome_path":         cfg.Local.ChromePath,
		"local.chrome_args":         encodeList(cfg.Local.ChromeArgs),
		"local.geckodriver_path":    cfg.Local.GeckoDriverPath,
		"local.selenium_jar_path":   cfg.Local.SeleniumJarPath,
		"local.service_port":        strconv.Itoa(cfg.Local.ServicePort),
		"cloud.host":                cfg.Cloud.Host,
		"cloud.port":                strconv.Itoa(cfg.Cloud.Port),
		"cloud.capabilities_url":    cfg.Cloud.CapabilitiesURL,
		"cloud.cache_ttl":           cfg.Cloud.CacheTTL.String(),
		"cloud.verify_platform":     strconv.FormatBool(cfg.Cloud.VerifyPlatform),
		"artifacts.encoding":        cfg.Artifacts.Encoding,
		"logger.level":              cfg.Logger.Level,
		"logger.format":             cfg.Logger.Format,
		"logger.add_source":         strconv.FormatBool(cfg.Logger.AddSource),
		"logger.service_name":       cfg.Logger.ServiceName,
		"logger.log_file":           cfg.Logger.LogFile,
		"logger.max_size":           strconv.Itoa(cfg.Logger.MaxSize),
		"logger.max_backups":        strconv.Itoa(cfg.Logger.MaxBackups),
		"logger.max_age":            strconv.Itoa(cfg.Logger.MaxAge),
		"logger.compress":           strconv.FormatBool(cfg.Logger.Compress),
		"logger.colors.debug":       cfg.Logger.Colors.Debug,
		"logger.colors.info":        cfg.Logger.Colors.Info,
		"logger.colors.warn":        cfg.Logger.Colors.Warn,
		"logger.colors.error":       cfg.Logger.Colors.Error,
		"logger.colors.fatal":       cfg.Logger.Colors.Fatal,
	}
	env := make([]string, 0, len(pairs))
	for key, val := range pairs {
		env = append(env, EnvName(key)+"="+val)
	}
	return env
}
