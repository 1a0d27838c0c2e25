// File: pkg/seleniumtest/harness.go

// Package seleniumtest wires browser sessions into a Go test binary. A suite
// calls Main from its TestMain and asks the Harness for one driver per test:
//
//	var h *seleniumtest.Harness
//
//	func TestMain(m *testing.M) {
//		seleniumtest.Main(m, func(got *seleniumtest.Harness) { h = got })
//	}
//
//	func TestLogin(t *testing.T) {
//		wd := h.Driver(t)
//		require.NoError(t, wd.Navigate(context.Background(), h.URL("/login")))
//	}
//
// Settings come from the same flags, SELENIUM_* environment variables and
// config file the selharness CLI reads.
package seleniumtest

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/selharness/internal/capabilities"
	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/internal/launcher"
	"github.com/xkilldash9x/selharness/internal/observability"
	"github.com/xkilldash9x/selharness/pkg/webdriver"
)

const (
	setupTimeout = 30 * time.Second
	quitTimeout  = 15 * time.Second
)

var (
	harnessFlags = pflag.NewFlagSet("selharness", pflag.ContinueOnError)
	registerOnce sync.Once

	mu      sync.Mutex
	goFlags *flag.FlagSet

	// osExit allows tests to observe Main's exit code.
	osExit = os.Exit
)

// RegisterFlags adds the harness flags (--browser, --browser-location, ...)
// to fs, normally flag.CommandLine. Values set on fs are read by Setup.
func RegisterFlags(fs *flag.FlagSet) {
	registerOnce.Do(func() { config.RegisterFlags(harnessFlags) })
	config.MirrorFlags(harnessFlags, fs)

	mu.Lock()
	goFlags = fs
	mu.Unlock()
}

// Harness hands out instrumented drivers built from settings resolved once
// per test process.
type Harness struct {
	settings *config.Settings
	launcher *launcher.Launcher
	logger   *zap.Logger
}

type setupOptions struct {
	cfg          *config.Config
	logger       *zap.Logger
	checker      config.CapabilityChecker
	launcherOpts []launcher.Option
}

// Option configures Setup.
type Option func(*setupOptions)

// WithConfig skips flag, environment and file loading and resolves cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *setupOptions) { o.cfg = cfg }
}

// WithLogger replaces the process logger built from the logger settings.
func WithLogger(l *zap.Logger) Option {
	return func(o *setupOptions) { o.logger = l }
}

// WithChecker replaces the cloud capability listing client.
func WithChecker(c config.CapabilityChecker) Option {
	return func(o *setupOptions) { o.checker = c }
}

// WithLauncherOptions passes options through to the session launcher.
func WithLauncherOptions(opts ...launcher.Option) Option {
	return func(o *setupOptions) { o.launcherOpts = append(o.launcherOpts, opts...) }
}

// Setup loads and resolves the harness settings. Flags registered with
// RegisterFlags must already be parsed. A configuration problem is returned
// as a *config.Error.
func Setup(opts ...Option) (*Harness, error) {
	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := loadConfig()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := o.logger
	if logger == nil {
		observability.Initialize(cfg.Logger, zapcore.Lock(os.Stderr))
		logger = observability.GetLogger()
	}

	checker := o.checker
	if checker == nil {
		checker = capabilities.New(cfg.Cloud.CapabilitiesURL,
			capabilities.WithTTL(cfg.Cloud.CacheTTL),
			capabilities.WithLogger(logger),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	settings, err := config.Resolve(ctx, cfg, checker)
	if err != nil {
		return nil, err
	}

	l, err := launcher.New(settings, logger, o.launcherOpts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Harness configured.",
		zap.String("location", string(settings.Location.Kind())),
		zap.String("browser", string(settings.Location.BrowserName())),
	)
	return &Harness{settings: settings, launcher: l, logger: logger}, nil
}

// loadConfig reads the registered flags, if any, over env and defaults.
func loadConfig() (*config.Config, error) {
	mu.Lock()
	fs := goFlags
	mu.Unlock()

	var lo config.LoadOptions
	if fs != nil {
		config.MarkChanged(harnessFlags, fs)
		lo.Flags = harnessFlags
	}
	return config.Load(lo)
}

// testRunner is satisfied by *testing.M.
type testRunner interface {
	Run() int
}

// Main registers the harness flags on flag.CommandLine, parses them, runs
// Setup, hands the Harness to configure and then runs the tests. It exits the
// process with the test status, or 2 if the configuration is invalid.
func Main(m *testing.M, configure func(*Harness), opts ...Option) {
	RegisterFlags(flag.CommandLine)
	if !flag.Parsed() {
		flag.Parse()
	}
	osExit(run(m, configure, opts...))
}

func run(m testRunner, configure func(*Harness), opts ...Option) int {
	h, err := Setup(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "selharness: %v\n", err)
		return 2
	}
	if configure != nil {
		configure(h)
	}
	code := m.Run()
	observability.Sync()
	return code
}

// Settings returns the resolved settings.
func (h *Harness) Settings() *config.Settings {
	return h.settings
}

// Logger returns the harness logger.
func (h *Harness) Logger() *zap.Logger {
	return h.logger
}

// Driver opens a session named after t and quits it when t finishes. A
// session that cannot be started fails t.
func (h *Harness) Driver(t testing.TB) *webdriver.Instrumented {
	t.Helper()

	wd, err := h.launcher.Open(context.Background(), launcher.TestInfo{Name: t.Name()})
	if err != nil {
		t.Fatalf("Failed to start browser session: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
		defer cancel()
		if err := wd.Quit(ctx); err != nil {
			t.Logf("Error quitting browser session for %s: %v", t.Name(), err)
		}
	})
	return wd
}

// URL resolves path against the configured base URL. Without a base URL the
// path is returned as is.
func (h *Harness) URL(path string) string {
	base := h.settings.BaseURL
	switch {
	case base == "":
		return path
	case path == "":
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
