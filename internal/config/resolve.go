// File: internal/config/resolve.go
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// CapabilityChecker answers whether a cloud farm currently offers an
// (OS, browser, version) combination. browser is the WebDriver browserName.
// On success it returns the provider's platform name for the OS.
type CapabilityChecker interface {
	CheckPlatform(ctx context.Context, os, browser, version string) (platform string, ok bool, err error)
}

// Settings is the validated, read-only outcome of configuration resolution.
// Build it with Resolve and pass it by pointer; nothing mutates it afterwards.
type Settings struct {
	Location     Location
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	ArtifactDir  string
	Artifacts    ArtifactsConfig
	Local        LocalConfig
	Cloud        CloudConfig
	Logger       LoggerConfig
}

// Resolve validates cfg and builds Settings. Checks run in a fixed order so
// the first missing option reported is stable: server address, cloud
// credentials, operating system. checker may be nil, which skips the cloud
// capability lookup.
func Resolve(ctx context.Context, cfg *Config, checker CapabilityChecker) (*Settings, error) {
	sel := cfg.Selenium

	kind, err := ParseLocationKind(sel.BrowserLocation)
	if err != nil {
		return nil, err
	}
	browser, err := ParseBrowser(sel.Browser)
	if err != nil {
		return nil, err
	}
	var os OS
	if sel.OS != "" {
		if os, err = ParseOS(sel.OS); err != nil {
			return nil, err
		}
	}
	if sel.Timeout <= 0 {
		return nil, &Error{Field: "timeout", Value: fmt.Sprint(sel.Timeout), Msg: "timeout must be a positive number of seconds"}
	}

	var loc Location
	switch kind {
	case KindLocal:
		loc, err = NewLocal(browser)
	case KindRemote:
		loc, err = NewRemote(browser, remoteEndpoint(sel))
	case KindGrid:
		loc, err = NewGrid(browser, sel.BrowserVersion, os, gridEndpoint(sel))
	case KindCloud:
		loc, err = resolveCloud(ctx, cfg, browser, os, checker)
	}
	if err != nil {
		return nil, err
	}

	artifactDir := ""
	if sel.ArtifactDir != "" {
		if artifactDir, err = homedir.Expand(sel.ArtifactDir); err != nil {
			return nil, &Error{Field: "artifact_dir", Value: sel.ArtifactDir, Msg: fmt.Sprintf("invalid artifact directory: %v", err)}
		}
	}

	poll := sel.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	return &Settings{
		Location:     loc,
		BaseURL:      strings.TrimSpace(sel.BaseURL),
		Timeout:      time.Duration(sel.Timeout) * time.Second,
		PollInterval: poll,
		ArtifactDir:  artifactDir,
		Artifacts:    cfg.Artifacts,
		Local:        cfg.Local,
		Cloud:        cfg.Cloud,
		Logger:       cfg.Logger,
	}, nil
}

func resolveCloud(ctx context.Context, cfg *Config, b Browser, os OS, checker CapabilityChecker) (Cloud, error) {
	sel := cfg.Selenium
	creds := Credentials{Username: sel.SauceUsername, APIKey: sel.SauceAPIKey}
	cloud, err := NewCloud(b, sel.BrowserVersion, os, creds, sel.Build)
	if err != nil {
		return Cloud{}, err
	}
	if checker == nil || !cfg.Cloud.VerifyPlatform {
		return cloud, nil
	}

	platform, ok, err := checker.CheckPlatform(ctx, string(os), b.WebDriverName(), cloud.Version)
	if err != nil {
		return Cloud{}, fmt.Errorf("failed to verify cloud capabilities: %w", err)
	}
	if !ok {
		combo := fmt.Sprintf("%s %s on %s", b, cloud.Version, os)
		if cloud.Version == "" {
			combo = fmt.Sprintf("%s on %s", b, os)
		}
		return Cloud{}, &Error{
			Field: "browser",
			Value: string(b),
			Msg:   fmt.Sprintf("cloud location does not offer %s", combo),
		}
	}
	cloud.Platform = platform
	return cloud, nil
}

// remoteEndpoint prefers the remote address and falls back to the grid one.
func remoteEndpoint(sel SeleniumConfig) Endpoint {
	if sel.RemoteAddress != "" {
		return Endpoint{Host: sel.RemoteAddress, Port: sel.RemotePort}
	}
	return Endpoint{Host: sel.GridAddress, Port: sel.GridPort}
}

// gridEndpoint prefers the grid address and falls back to the remote one.
func gridEndpoint(sel SeleniumConfig) Endpoint {
	if sel.GridAddress != "" {
		return Endpoint{Host: sel.GridAddress, Port: sel.GridPort}
	}
	return Endpoint{Host: sel.RemoteAddress, Port: sel.RemotePort}
}
