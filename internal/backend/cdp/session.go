// internal/backend/cdp/session.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/browser"
	cdpnode "github.com/chromedp/cdproto/cdp"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/pkg/webdriver"
)

const launchTimeout = 30 * time.Second

// Session is a local Chrome tab driven over the DevTools protocol. It
// implements webdriver.Driver.
type Session struct {
	id      string
	logger  *zap.Logger
	timeout time.Duration
	caps    map[string]interface{}

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var _ webdriver.Driver = (*Session)(nil)

// Open launches Chrome and returns a session on a fresh tab. timeout bounds
// every command, including page loads and element lookups. The browser
// outlives ctx; call Quit to close it.
func Open(ctx context.Context, cfg config.LocalConfig, timeout time.Duration, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	logger = logger.Named("cdp").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), AllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)
	s := &Session{
		id:          id,
		logger:      logger,
		timeout:     timeout,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	// The first Run on the tab context starts the browser; it must not run on a
	// derived context or the browser dies with it.
	var product string
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx,
			chromedp.Navigate("about:blank"),
			chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				_, product, _, _, _, err = browser.GetVersion().Do(ctx)
				return err
			}),
		)
	}()

	select {
	case err := <-started:
		if err != nil {
			s.shutdown()
			return nil, fmt.Errorf("browser failed to start or respond: %w", err)
		}
	case <-ctx.Done():
		s.shutdown()
		<-started
		return nil, ctx.Err()
	case <-time.After(launchTimeout):
		s.shutdown()
		<-started
		return nil, fmt.Errorf("browser did not start within %s", launchTimeout)
	}

	s.caps = map[string]interface{}{
		"browserName":    "chrome",
		"browserVersion": product,
		"headless":       cfg.Headless,
		"sessionId":      id,
	}
	logger.Info("Browser launched successfully and is responsive.", zap.String("product", product))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Capabilities() map[string]interface{} {
	return s.caps
}

// Execute runs cmd on the tab, bounded by the session timeout and by ctx.
func (s *Session) Execute(ctx context.Context, cmd webdriver.Command) (webdriver.Result, error) {
	action, res, err := s.action(cmd)
	if err != nil {
		return webdriver.Result{}, err
	}

	runCtx, cancel := context.WithTimeout(s.tabCtx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, action); err != nil {
		return webdriver.Result{}, mapError(ctx, cmd, err)
	}
	return res.result(), nil
}

// pending collects the outputs of one action.
type pending struct {
	text  string
	bytes []byte
	ok    bool
	nodes []*cdpnode.Node
	value interface{}
	kind  webdriver.CommandName
}

func (p *pending) result() webdriver.Result {
	switch p.kind {
	case webdriver.CmdPresent:
		return webdriver.Result{Bool: len(p.nodes) > 0}
	case webdriver.CmdScreenshot:
		return webdriver.Result{Bytes: p.bytes}
	case webdriver.CmdScript:
		return webdriver.Result{Value: p.value}
	}
	return webdriver.Result{Text: p.text}
}

func (s *Session) action(cmd webdriver.Command) (chromedp.Action, *pending, error) {
	p := &pending{kind: cmd.Name}
	sel := cmd.Selector

	switch cmd.Name {
	case webdriver.CmdNavigate:
		return chromedp.Navigate(cmd.Value), p, nil
	case webdriver.CmdClick:
		return chromedp.Click(sel, chromedp.ByQuery), p, nil
	case webdriver.CmdSendKeys:
		return chromedp.SendKeys(sel, cmd.Value, chromedp.ByQuery), p, nil
	case webdriver.CmdText:
		return chromedp.Text(sel, &p.text, chromedp.ByQuery), p, nil
	case webdriver.CmdAttribute:
		return chromedp.AttributeValue(sel, cmd.Value, &p.text, &p.ok, chromedp.ByQuery), p, nil
	case webdriver.CmdTitle:
		return chromedp.Title(&p.text), p, nil
	case webdriver.CmdScript:
		js, err := ScriptExpression(cmd.Value, cmd.Args)
		if err != nil {
			return nil, nil, err
		}
		return chromedp.Evaluate(js, &p.value), p, nil
	case webdriver.CmdPresent:
		return chromedp.Nodes(sel, &p.nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)), p, nil
	case webdriver.CmdCurrentURL:
		return chromedp.Location(&p.text), p, nil
	case webdriver.CmdPageSource:
		return chromedp.OuterHTML("html", &p.text, chromedp.ByQuery), p, nil
	case webdriver.CmdScreenshot:
		return chromedp.CaptureScreenshot(&p.bytes), p, nil
	}
	return nil, nil, fmt.Errorf("cdp: %w: %s", webdriver.ErrUnsupportedCommand, cmd.Name)
}

// ScriptExpression wraps a WebDriver-style script body, which reads its
// arguments from `arguments` and yields a value with `return`, into a single
// expression the DevTools protocol can evaluate.
func ScriptExpression(body string, args []interface{}) (string, error) {
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	return fmt.Sprintf("(function(){%s}).apply(null, %s)", body, encoded), nil
}

// mapError turns chromedp failures into the webdriver error taxonomy.
// Cancellation of the caller's context is returned as is.
func mapError(ctx context.Context, cmd webdriver.Command, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exc *cdpruntime.ExceptionDetails
	if errors.As(err, &exc) {
		return &webdriver.RemoteError{Command: cmd.Name, Code: "javascript error", Message: exc.Error(), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if cmd.Selector != "" {
			return &webdriver.RemoteError{
				Command: cmd.Name,
				Code:    "no such element",
				Message: fmt.Sprintf("no element matches %q", cmd.Selector),
				Err:     err,
			}
		}
		return &webdriver.RemoteError{Command: cmd.Name, Code: "timeout", Message: "command timed out", Err: err}
	}
	var protoErr *cdproto.Error
	if errors.As(err, &protoErr) {
		return &webdriver.RemoteError{Command: cmd.Name, Code: "unknown error", Message: protoErr.Message, Err: err}
	}
	return fmt.Errorf("cdp %s: %w", cmd.Name, err)
}

// Quit closes the tab and terminates the browser. It is safe to call twice.
func (s *Session) Quit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.tabCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		s.logger.Warn("Quit deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
		err = ctx.Err()
	}
	s.shutdown()
	s.logger.Debug("Session closed.")
	return err
}

func (s *Session) shutdown() {
	s.tabCancel()
	s.allocCancel()
}
