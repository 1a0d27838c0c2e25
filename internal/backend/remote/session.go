// internal/backend/remote/session.go
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tebeka/selenium"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/pkg/webdriver"
)

// Session drives a browser through a WebDriver endpoint: a Selenium server,
// grid hub, cloud farm, or a driver service started on this machine. It
// implements webdriver.Driver.
type Session struct {
	wd      selenium.WebDriver
	svc     *selenium.Service
	timeout time.Duration
	caps    map[string]interface{}
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ webdriver.Driver = (*Session)(nil)

// Open starts a session for settings.Location. Local Firefox runs through a
// geckodriver service and local Internet Explorer through a Selenium
// standalone server; every other location connects to its executor URL.
func Open(ctx context.Context, settings *config.Settings, job Job, logger *zap.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("remote")

	var (
		svc *selenium.Service
		url string
		err error
	)
	if local, ok := settings.Location.(config.Local); ok {
		svc, url, err = startService(local.Browser, settings.Local)
	} else {
		url, err = ExecutorURL(settings.Location, settings.Cloud)
	}
	if err != nil {
		return nil, err
	}

	caps := DesiredCapabilities(settings.Location, settings.Local, job)
	logger.Debug("Requesting session.", zap.String("kind", string(settings.Location.Kind())), zap.Any("capabilities", caps))

	wd, err := selenium.NewRemote(caps, url)
	if err != nil {
		stopService(svc, logger)
		return nil, fmt.Errorf("failed to create %s session: %w", settings.Location.Kind(), mapError("newSession", err))
	}

	s := &Session{wd: wd, svc: svc, timeout: settings.Timeout, logger: logger}
	if err := s.applyTimeouts(); err != nil {
		_ = s.Quit(ctx)
		return nil, err
	}

	actual, err := wd.Capabilities()
	if err != nil {
		logger.Warn("Could not read session capabilities.", zap.Error(err))
		actual = caps
	}
	s.caps = map[string]interface{}(actual)
	return s, nil
}

// NewSession wraps an existing WebDriver client.
func NewSession(wd selenium.WebDriver, timeout time.Duration, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	caps, err := wd.Capabilities()
	if err != nil {
		caps = selenium.Capabilities{}
	}
	return &Session{wd: wd, timeout: timeout, caps: caps, logger: logger.Named("remote")}
}

func (s *Session) applyTimeouts() error {
	if err := s.wd.SetPageLoadTimeout(s.timeout); err != nil {
		return fmt.Errorf("failed to set page load timeout: %w", err)
	}
	if err := s.wd.SetImplicitWaitTimeout(s.timeout); err != nil {
		return fmt.Errorf("failed to set implicit wait timeout: %w", err)
	}
	return nil
}

func (s *Session) Capabilities() map[string]interface{} {
	return s.caps
}

// Execute runs cmd. The WebDriver client does not take a context; ctx is
// checked before the command is sent.
func (s *Session) Execute(ctx context.Context, cmd webdriver.Command) (webdriver.Result, error) {
	if err := ctx.Err(); err != nil {
		return webdriver.Result{}, err
	}
	res, err := s.execute(cmd)
	if err != nil {
		return webdriver.Result{}, mapError(cmd.Name, err)
	}
	return res, nil
}

func (s *Session) execute(cmd webdriver.Command) (webdriver.Result, error) {
	var (
		res webdriver.Result
		err error
	)
	switch cmd.Name {
	case webdriver.CmdNavigate:
		err = s.wd.Get(cmd.Value)
	case webdriver.CmdClick:
		err = s.withElement(cmd.Selector, func(el selenium.WebElement) error { return el.Click() })
	case webdriver.CmdSendKeys:
		err = s.withElement(cmd.Selector, func(el selenium.WebElement) error { return el.SendKeys(cmd.Value) })
	case webdriver.CmdText:
		err = s.withElement(cmd.Selector, func(el selenium.WebElement) (err error) {
			res.Text, err = el.Text()
			return err
		})
	case webdriver.CmdAttribute:
		err = s.withElement(cmd.Selector, func(el selenium.WebElement) (err error) {
			res.Text, err = el.GetAttribute(cmd.Value)
			return err
		})
	case webdriver.CmdTitle:
		res.Text, err = s.wd.Title()
	case webdriver.CmdScript:
		args := cmd.Args
		if args == nil {
			args = []interface{}{}
		}
		res.Value, err = s.wd.ExecuteScript(cmd.Value, args)
	case webdriver.CmdPresent:
		res.Bool, err = s.present(cmd.Selector)
	case webdriver.CmdCurrentURL:
		res.Text, err = s.wd.CurrentURL()
	case webdriver.CmdPageSource:
		res.Text, err = s.wd.PageSource()
	case webdriver.CmdScreenshot:
		res.Bytes, err = s.wd.Screenshot()
	default:
		err = fmt.Errorf("remote: %w: %s", webdriver.ErrUnsupportedCommand, cmd.Name)
	}
	return res, err
}

func (s *Session) withElement(selector string, fn func(selenium.WebElement) error) error {
	el, err := s.wd.FindElement(selenium.ByCSSSelector, selector)
	if err != nil {
		return err
	}
	return fn(el)
}

// present looks for selector without the implicit wait, then restores it.
func (s *Session) present(selector string) (bool, error) {
	if err := s.wd.SetImplicitWaitTimeout(0); err != nil {
		return false, err
	}
	defer func() {
		if err := s.wd.SetImplicitWaitTimeout(s.timeout); err != nil {
			s.logger.Warn("Failed to restore implicit wait timeout.", zap.Error(err))
		}
	}()
	els, err := s.wd.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

// mapError turns W3C error responses into *webdriver.RemoteError.
func mapError(name webdriver.CommandName, err error) error {
	var werr *selenium.Error
	if errors.As(err, &werr) {
		return &webdriver.RemoteError{Command: name, Code: werr.Err, Message: werr.Message, Err: err}
	}
	if errors.Is(err, webdriver.ErrUnsupportedCommand) {
		return err
	}
	return fmt.Errorf("remote %s: %w", name, err)
}

// Quit deletes the session and stops the local service, if any. It is safe
// to call twice.
func (s *Session) Quit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.wd.Quit()
	stopService(s.svc, s.logger)
	if err != nil {
		return fmt.Errorf("failed to quit session: %w", err)
	}
	return nil
}

// -- Local services --

// startService launches the driver service for a local browser and returns
// the executor URL to connect to.
func startService(b config.Browser, cfg config.LocalConfig) (*selenium.Service, string, error) {
	port := cfg.ServicePort
	if port == 0 {
		p, err := pickUnusedPort()
		if err != nil {
			return nil, "", fmt.Errorf("failed to pick a service port: %w", err)
		}
		port = p
	}

	switch b {
	case config.BrowserFirefox:
		svc, err := selenium.NewGeckoDriverService(cfg.GeckoDriverPath, port)
		if err != nil {
			return nil, "", fmt.Errorf("failed to start geckodriver %q: %w", cfg.GeckoDriverPath, err)
		}
		return svc, fmt.Sprintf("http://127.0.0.1:%d", port), nil
	case config.BrowserInternetExplorer:
		if cfg.SeleniumJarPath == "" {
			return nil, "", &config.Error{
				Field: "selenium_jar_path",
				Msg:   "local internetexplorer requires local.selenium_jar_path",
			}
		}
		svc, err := selenium.NewSeleniumService(cfg.SeleniumJarPath, port)
		if err != nil {
			return nil, "", fmt.Errorf("failed to start Selenium server %q: %w", cfg.SeleniumJarPath, err)
		}
		return svc, fmt.Sprintf("http://127.0.0.1:%d/wd/hub", port), nil
	}
	return nil, "", fmt.Errorf("no local WebDriver service for %s", b)
}

func stopService(svc *selenium.Service, logger *zap.Logger) {
	if svc == nil {
		return
	}
	if err := svc.Stop(); err != nil {
		logger.Warn("Failed to stop local WebDriver service.", zap.Error(err))
	}
}

func pickUnusedPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
