// File: pkg/artifact/recorder.go
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Source is the browser state a Recorder reads. Implementations must not
// trigger another capture.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
}

// Artifact describes one captured failure.
type Artifact struct {
	Timestamp      time.Time
	ScreenshotPath string
	HTMLPath       string
	URL            string
	Title          string
}

// Recorder writes a screenshot and an HTML snapshot of the current page into
// a directory. A Recorder is safe for concurrent use; each capture picks its
// own timestamp-derived file names.
type Recorder struct {
	dir      string
	encoding string
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithEncoding sets the HTML snapshot encoding. See Encodings.
func WithEncoding(name string) Option {
	return func(r *Recorder) { r.encoding = name }
}

// NewRecorder creates a Recorder for dir. The directory is created lazily on
// the first capture.
func NewRecorder(dir string, logger *zap.Logger, opts ...Option) (*Recorder, error) {
	if dir == "" {
		return nil, errors.New("artifact directory must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		dir:      dir,
		encoding: "utf-8",
		logger:   logger.Named("artifact"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := newEncoder(r.encoding); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the directory artifacts are written to.
func (r *Recorder) Dir() string {
	return r.dir
}

// BaseName formats t as <unix-seconds>.<microseconds>.
func BaseName(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// Capture writes <dir>/<base>.png and <dir>/<base>.html from src and logs
// both paths with the page URL at error level. It keeps going after a
// failed step so that whatever can be saved is saved; the returned error
// joins every step that failed.
func (r *Recorder) Capture(ctx context.Context, src Source) (*Artifact, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", r.dir, err)
	}

	ts := r.now()
	base := filepath.Join(r.dir, BaseName(ts))
	a := &Artifact{Timestamp: ts}
	var errs []error

	if png, err := src.Screenshot(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to take screenshot: %w", err))
	} else if err := os.WriteFile(base+".png", png, 0o644); err != nil {
		errs = append(errs, fmt.Errorf("failed to write screenshot: %w", err))
	} else {
		a.ScreenshotPath = base + ".png"
	}

	if html, err := src.PageSource(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to read page source: %w", err))
	} else if encoded, err := Encode(html, r.encoding); err != nil {
		errs = append(errs, err)
	} else if err := os.WriteFile(base+".html", encoded, 0o644); err != nil {
		errs = append(errs, fmt.Errorf("failed to write page source: %w", err))
	} else {
		a.HTMLPath = base + ".html"
		a.Title = PageTitle(html)
	}

	if url, err := src.CurrentURL(ctx); err != nil {
		r.logger.Debug("Could not read current URL for artifact.", zap.Error(err))
	} else {
		a.URL = url
	}

	if a.ScreenshotPath != "" || a.HTMLPath != "" {
		r.logger.Error("Saved failure artifacts.",
			zap.String("screenshot", a.ScreenshotPath),
			zap.String("html", a.HTMLPath),
			zap.String("url", a.URL),
			zap.String("title", a.Title),
		)
	}
	return a, errors.Join(errs...)
}
