// File: pkg/webdriver/wait.go
package webdriver

import (
	"context"
	"strings"
	"time"
)

// Condition is polled by Wait until it returns true. It receives the raw
// driver, so failures inside it are never captured. A *RemoteError means
// "not yet"; any other error aborts the wait.
type Condition func(ctx context.Context, d Driver) (bool, error)

// Wait polls cond until it holds or timeout elapses; a zero timeout uses the
// configured default. On expiry it captures artifacts, if configured, and
// returns a *TimeoutError. A non-remote condition error is returned unchanged
// without capture, as is ctx.Err() when ctx ends first.
func (w *Instrumented) Wait(ctx context.Context, cond Condition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = w.timeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var last error
	for {
		ok, err := cond(ctx, w.driver)
		switch {
		case err == nil && ok:
			return nil
		case err != nil && !IsRemote(err):
			return err
		case err != nil:
			last = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			terr := &TimeoutError{Timeout: timeout, Last: last}
			w.capture(ctx, terr)
			return terr
		case <-ticker.C:
		}
	}
}

// WaitPresent waits until an element matches selector.
func (w *Instrumented) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return w.Wait(ctx, ElementPresent(selector), timeout)
}

// ElementPresent holds once an element matches selector.
func ElementPresent(selector string) Condition {
	return func(ctx context.Context, d Driver) (bool, error) {
		res, err := d.Execute(ctx, Command{Name: CmdPresent, Selector: selector})
		return res.Bool, err
	}
}

// TitleIs holds once the document title equals title.
func TitleIs(title string) Condition {
	return func(ctx context.Context, d Driver) (bool, error) {
		res, err := d.Execute(ctx, Command{Name: CmdTitle})
		return err == nil && res.Text == title, err
	}
}

// URLContains holds once the current URL contains substr.
func URLContains(substr string) Condition {
	return func(ctx context.Context, d Driver) (bool, error) {
		res, err := d.Execute(ctx, Command{Name: CmdCurrentURL})
		return err == nil && strings.Contains(res.Text, substr), err
	}
}
