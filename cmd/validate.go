// File: cmd/validate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/selharness/internal/config"
)

// settingsView is the printable form of resolved settings. Credentials are
// reduced to the user name.
type settingsView struct {
	Location     string `yaml:"location"`
	Browser      string `yaml:"browser"`
	BrowserName  string `yaml:"browser_name"`
	Version      string `yaml:"version,omitempty"`
	OS           string `yaml:"os,omitempty"`
	Platform     string `yaml:"platform,omitempty"`
	Executor     string `yaml:"executor,omitempty"`
	User         string `yaml:"user,omitempty"`
	Build        string `yaml:"build,omitempty"`
	BaseURL      string `yaml:"baseurl,omitempty"`
	Timeout      string `yaml:"timeout"`
	PollInterval string `yaml:"poll_interval"`
	ArtifactDir  string `yaml:"artifact_dir,omitempty"`
	Encoding     string `yaml:"encoding,omitempty"`
	Headless     *bool  `yaml:"headless,omitempty"`
}

func newSettingsView(s *config.Settings) settingsView {
	b := s.Location.BrowserName()
	v := settingsView{
		Location:     string(s.Location.Kind()),
		Browser:      string(b),
		BrowserName:  b.WebDriverName(),
		BaseURL:      s.BaseURL,
		Timeout:      s.Timeout.String(),
		PollInterval: s.PollInterval.String(),
		ArtifactDir:  s.ArtifactDir,
	}
	if s.ArtifactDir != "" {
		v.Encoding = s.Artifacts.Encoding
	}

	switch l := s.Location.(type) {
	case config.Local:
		headless := s.Local.Headless
		v.Headless = &headless
	case config.Remote:
		v.Executor = l.Endpoint.URL()
	case config.Grid:
		v.Version = l.Version
		v.OS = string(l.OS)
		v.Executor = l.Endpoint.URL()
	case config.Cloud:
		v.Version = l.Version
		v.OS = string(l.OS)
		v.Platform = l.Platform
		v.Executor = fmt.Sprintf("http://%s:%d/wd/hub", s.Cloud.Host, s.Cloud.Port)
		v.User = l.Credentials.Username
		v.Build = l.Build
	}
	return v
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Resolve and validate the browser settings",
		Long: `Resolve the settings from flags, environment and config file, check that
the chosen combination is usable (including the cloud capability listing) and
print the result as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(newSettingsView(settings)); err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			return enc.Close()
		},
	}
}
