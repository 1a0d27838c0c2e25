// File: internal/config/flags.go
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps each command-line flag to the config key it feeds.
var flagKeys = map[string]string{
	"browser-location": "selenium.browser_location",
	"browser":          "selenium.browser",
	"build":            "selenium.build",
	"browser-version":  "selenium.browser_version",
	"os":               "selenium.os",
	"grid-address":     "selenium.grid_address",
	"grid-port":        "selenium.grid_port",
	"remote-address":   "selenium.remote_address",
	"remote-port":      "selenium.remote_port",
	"timeout":          "selenium.timeout",
	"sauce-username":   "selenium.sauce_username",
	"sauce-apikey":     "selenium.sauce_apikey",
	"baseurl":          "selenium.baseurl",
	"artifact-dir":     "selenium.artifact_dir",
	"headless":         "local.headless",
	"config":           "selenium.config",
}

// choiceValue is a string flag restricted to a fixed set of values.
type choiceValue struct {
	value   *string
	choices []string
}

func newChoiceValue(def string, choices []string, p *string) *choiceValue {
	*p = def
	return &choiceValue{value: p, choices: choices}
}

func (c *choiceValue) String() string { return *c.value }
func (c *choiceValue) Type() string   { return "string" }

func (c *choiceValue) Set(s string) error {
	for _, choice := range c.choices {
		if strings.EqualFold(choice, s) {
			*c.value = s
			return nil
		}
	}
	return fmt.Errorf("invalid choice: '%s' (choose from %s)", s, strings.Join(c.choices, ", "))
}

// RegisterFlags defines the harness flags on fs. Defaults match SetDefaults.
func RegisterFlags(fs *pflag.FlagSet) {
	var location, browser, os string
	fs.Var(newChoiceValue(string(KindLocal), LocationChoices(), &location), "browser-location",
		"Run the browser in this location (local, remote, grid, cloud)")
	fs.Var(newChoiceValue(string(BrowserFirefox), BrowserChoices(), &browser), "browser",
		"Run this type of browser")
	fs.String("build", "", "build identifier (for continuous integration)")
	fs.String("browser-version", "", "Run this version of the browser (grid or cloud)")
	fs.Var(newChoiceValue("", OSChoices(), &os), "os",
		"Run the browser on this operating system (required for grid or cloud)")
	fs.String("grid-address", "", "host that selenium grid is listening on")
	fs.Int("grid-port", DefaultServerPort, "port that selenium grid is listening on")
	fs.String("remote-address", "", "host that selenium server is listening on")
	fs.Int("remote-port", DefaultServerPort, "port that selenium server is listening on")
	fs.Int("timeout", DefaultTimeoutSeconds, "timeout (in seconds) for page loads, etc.")
	fs.String("sauce-username", "", "username for sauce labs account")
	fs.String("sauce-apikey", "", "API Key for sauce labs account")
	fs.String("baseurl", "", "base url for the application under test")
	fs.String("artifact-dir", "", "directory for failure screenshots and HTML snapshots")
	fs.Bool("headless", true, "run local browsers headless")
	if fs.Lookup("config") == nil {
		fs.String("config", "", "config file (file values override flags)")
	}
}

// BindFlags binds every harness flag present in fs to its config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// MirrorFlags registers every flag of src on a standard library flag set, so
// a test binary's flag.Parse accepts them. The values are shared: setting the
// Go flag sets the pflag.
func MirrorFlags(src *pflag.FlagSet, dst *flag.FlagSet) {
	src.VisitAll(func(f *pflag.Flag) {
		if dst.Lookup(f.Name) != nil {
			return
		}
		dst.Var(f.Value, f.Name, f.Usage)
	})
}

// MarkChanged flags in src as changed for every flag that was explicitly set
// on the mirrored Go flag set. Viper only lets changed flags override the
// environment and defaults.
func MarkChanged(src *pflag.FlagSet, dst *flag.FlagSet) {
	dst.Visit(func(gf *flag.Flag) {
		if pf := src.Lookup(gf.Name); pf != nil {
			pf.Changed = true
		}
	})
}
