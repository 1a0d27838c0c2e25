// File: pkg/webdriver/instrumented.go
package webdriver

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/selharness/pkg/artifact"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultWaitTimeout  = 60 * time.Second
	// captureTimeout bounds artifact capture, which runs even when the
	// caller's context is already done.
	captureTimeout = 30 * time.Second
)

// Instrumented wraps a Driver so that guarded failures leave a screenshot and
// an HTML snapshot behind. Execute guards remote automation errors, Wait guards
// timeouts. Everything reached through Raw, and every call a wait condition
// makes, runs unguarded.
type Instrumented struct {
	driver   Driver
	recorder *artifact.Recorder
	logger   *zap.Logger
	poll     time.Duration
	timeout  time.Duration
}

// Option configures an Instrumented driver.
type Option func(*Instrumented)

// WithRecorder enables artifact capture. A nil recorder disables it.
func WithRecorder(r *artifact.Recorder) Option {
	return func(w *Instrumented) { w.recorder = r }
}

// WithLogger sets the logger used for capture failures.
func WithLogger(l *zap.Logger) Option {
	return func(w *Instrumented) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPollInterval sets how often Wait re-checks its condition.
func WithPollInterval(d time.Duration) Option {
	return func(w *Instrumented) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithTimeout sets the deadline Wait uses when called with a zero timeout.
func WithTimeout(d time.Duration) Option {
	return func(w *Instrumented) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// New wraps d.
func New(d Driver, opts ...Option) *Instrumented {
	w := &Instrumented{
		driver:  d,
		logger:  zap.NewNop(),
		poll:    defaultPollInterval,
		timeout: defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("webdriver")
	return w
}

// Raw returns the underlying driver. Calls made through it never capture.
func (w *Instrumented) Raw() Driver {
	return w.driver
}

// Capabilities returns the capabilities reported by the session.
func (w *Instrumented) Capabilities() map[string]interface{} {
	return w.driver.Capabilities()
}

// Execute runs cmd. When it fails with a *RemoteError and a recorder is
// configured, artifacts are captured before the error is returned. The error
// is returned unchanged in every case. Screenshot, page source and current
// URL commands pass straight through.
func (w *Instrumented) Execute(ctx context.Context, cmd Command) (Result, error) {
	res, err := w.driver.Execute(ctx, cmd)
	if err == nil || Exempt(cmd.Name) {
		return res, err
	}
	var re *RemoteError
	if errors.As(err, &re) {
		w.capture(ctx, err)
	}
	return res, err
}

// capture records artifacts for cause. Capture failures are logged and never
// replace cause.
func (w *Instrumented) capture(ctx context.Context, cause error) {
	if w.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	if _, err := w.recorder.Capture(ctx, rawSource{w.driver}); err != nil {
		w.logger.Warn("Failed to save failure artifacts.",
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

// Quit ends the session.
func (w *Instrumented) Quit(ctx context.Context) error {
	return w.driver.Quit(ctx)
}

// -- Guarded helpers --

func (w *Instrumented) Navigate(ctx context.Context, url string) error {
	_, err := w.Execute(ctx, Command{Name: CmdNavigate, Value: url})
	return err
}

func (w *Instrumented) Click(ctx context.Context, selector string) error {
	_, err := w.Execute(ctx, Command{Name: CmdClick, Selector: selector})
	return err
}

func (w *Instrumented) SendKeys(ctx context.Context, selector, keys string) error {
	_, err := w.Execute(ctx, Command{Name: CmdSendKeys, Selector: selector, Value: keys})
	return err
}

// Text returns the visible text of the element matching selector.
func (w *Instrumented) Text(ctx context.Context, selector string) (string, error) {
	res, err := w.Execute(ctx, Command{Name: CmdText, Selector: selector})
	return res.Text, err
}

// Attribute returns the named attribute of the element matching selector.
func (w *Instrumented) Attribute(ctx context.Context, selector, name string) (string, error) {
	res, err := w.Execute(ctx, Command{Name: CmdAttribute, Selector: selector, Value: name})
	return res.Text, err
}

func (w *Instrumented) Title(ctx context.Context) (string, error) {
	res, err := w.Execute(ctx, Command{Name: CmdTitle})
	return res.Text, err
}

// Script evaluates js in the page and returns its result.
func (w *Instrumented) Script(ctx context.Context, js string, args ...interface{}) (interface{}, error) {
	res, err := w.Execute(ctx, Command{Name: CmdScript, Value: js, Args: args})
	return res.Value, err
}

// Present reports whether an element matches selector, without waiting.
func (w *Instrumented) Present(ctx context.Context, selector string) (bool, error) {
	res, err := w.Execute(ctx, Command{Name: CmdPresent, Selector: selector})
	return res.Bool, err
}

// -- Unguarded accessors --

func (w *Instrumented) CurrentURL(ctx context.Context) (string, error) {
	return rawSource{w.driver}.CurrentURL(ctx)
}

func (w *Instrumented) PageSource(ctx context.Context) (string, error) {
	return rawSource{w.driver}.PageSource(ctx)
}

func (w *Instrumented) Screenshot(ctx context.Context) ([]byte, error) {
	return rawSource{w.driver}.Screenshot(ctx)
}

// rawSource adapts a Driver to artifact.Source.
type rawSource struct {
	d Driver
}

func (s rawSource) Screenshot(ctx context.Context) ([]byte, error) {
	res, err := s.d.Execute(ctx, Command{Name: CmdScreenshot})
	return res.Bytes, err
}

func (s rawSource) PageSource(ctx context.Context) (string, error) {
	res, err := s.d.Execute(ctx, Command{Name: CmdPageSource})
	return res.Text, err
}

func (s rawSource) CurrentURL(ctx context.Context) (string, error) {
	res, err := s.d.Execute(ctx, Command{Name: CmdCurrentURL})
	return res.Text, err
}
