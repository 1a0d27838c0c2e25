// internal/launcher/launcher.go
package launcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/selharness/internal/backend/cdp"
	"github.com/xkilldash9x/selharness/internal/backend/remote"
	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/pkg/artifact"
	"github.com/xkilldash9x/selharness/pkg/webdriver"
)

// TestInfo identifies the test a session is opened for. Cloud locations
// report it to the farm.
type TestInfo struct {
	Name   string
	Tags   []string
	Public bool
}

// Opener starts a raw backend session for settings.
type Opener func(ctx context.Context, settings *config.Settings, info TestInfo, logger *zap.Logger) (webdriver.Driver, error)

// Launcher opens instrumented sessions from resolved settings.
type Launcher struct {
	settings *config.Settings
	logger   *zap.Logger
	recorder *artifact.Recorder
	openers  map[config.LocationKind]Opener
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithOpener replaces the backend used for a location kind.
func WithOpener(kind config.LocationKind, open Opener) Option {
	return func(l *Launcher) { l.openers[kind] = open }
}

// New creates a Launcher. The artifact recorder is created here so an invalid
// encoding fails before any browser starts.
func New(settings *config.Settings, logger *zap.Logger, opts ...Option) (*Launcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Launcher{
		settings: settings,
		logger:   logger.Named("launcher"),
		openers: map[config.LocationKind]Opener{
			config.KindLocal:  openLocal,
			config.KindRemote: openRemote,
			config.KindGrid:   openRemote,
			config.KindCloud:  openRemote,
		},
	}
	for _, opt := range opts {
		opt(l)
	}

	if settings.ArtifactDir != "" {
		rec, err := artifact.NewRecorder(settings.ArtifactDir, logger, artifact.WithEncoding(settings.Artifacts.Encoding))
		if err != nil {
			return nil, &config.Error{Field: "artifacts.encoding", Value: settings.Artifacts.Encoding, Msg: err.Error()}
		}
		l.recorder = rec
	}
	return l, nil
}

// Settings returns the settings sessions are opened with.
func (l *Launcher) Settings() *config.Settings {
	return l.settings
}

// Open starts a session for info and wraps it for failure capture.
func (l *Launcher) Open(ctx context.Context, info TestInfo) (*webdriver.Instrumented, error) {
	kind := l.settings.Location.Kind()
	open, ok := l.openers[kind]
	if !ok {
		return nil, fmt.Errorf("no backend for %s location", kind)
	}

	drv, err := open(ctx, l.settings, info, l.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s %s session: %w", kind, l.settings.Location.BrowserName(), err)
	}
	// What goes out is not always what comes back.
	l.logger.Info("Session started.",
		zap.String("test", info.Name),
		zap.String("location", string(kind)),
		zap.Any("actual_capabilities", drv.Capabilities()),
	)

	return webdriver.New(drv,
		webdriver.WithRecorder(l.recorder),
		webdriver.WithLogger(l.logger),
		webdriver.WithPollInterval(l.settings.PollInterval),
		webdriver.WithTimeout(l.settings.Timeout),
	), nil
}

// openLocal starts Chrome over CDP and every other local browser through its
// WebDriver service.
func openLocal(ctx context.Context, settings *config.Settings, info TestInfo, logger *zap.Logger) (webdriver.Driver, error) {
	if settings.Location.BrowserName() == config.BrowserChrome {
		s, err := cdp.Open(ctx, settings.Local, settings.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return openRemote(ctx, settings, info, logger)
}

func openRemote(ctx context.Context, settings *config.Settings, info TestInfo, logger *zap.Logger) (webdriver.Driver, error) {
	s, err := remote.Open(ctx, settings, remote.Job{Name: info.Name, Tags: info.Tags, Public: info.Public}, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}
