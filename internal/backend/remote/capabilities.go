// internal/backend/remote/capabilities.go
package remote

import (
	"fmt"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"

	"github.com/xkilldash9x/selharness/internal/config"
)

// Job describes the test a cloud session runs for. The farm shows it on its
// dashboard.
type Job struct {
	Name   string
	Tags   []string
	Public bool
}

// DesiredCapabilities builds the capabilities requested for loc.
func DesiredCapabilities(loc config.Location, local config.LocalConfig, job Job) selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": loc.BrowserName().WebDriverName()}

	switch l := loc.(type) {
	case config.Local:
		if l.Browser == config.BrowserFirefox && local.Headless {
			caps.AddFirefox(firefox.Capabilities{Args: []string{"-headless"}})
		}
	case config.Grid:
		caps["version"] = l.Version
		caps["platform"] = strings.ToUpper(string(l.OS))
	case config.Cloud:
		tags := job.Tags
		if tags == nil {
			tags = []string{}
		}
		caps["build"] = l.Build
		caps["name"] = job.Name
		caps["tags"] = tags
		caps["public"] = job.Public
		caps["restricted-public-info"] = !job.Public
		caps["platform"] = l.Platform
		caps["version"] = l.Version
	}
	return caps
}

// ExecutorURL returns the command executor for a non-local location.
func ExecutorURL(loc config.Location, cloud config.CloudConfig) (string, error) {
	switch l := loc.(type) {
	case config.Remote:
		return l.Endpoint.URL(), nil
	case config.Grid:
		return l.Endpoint.URL(), nil
	case config.Cloud:
		return l.ExecutorURL(cloud.Host, cloud.Port), nil
	}
	return "", fmt.Errorf("no executor URL for %s location", loc.Kind())
}
