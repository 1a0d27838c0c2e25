// File: cmd/probe.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selharness/internal/launcher"
	"github.com/xkilldash9x/selharness/internal/observability"
)

const probeQuitTimeout = 15 * time.Second

func newProbeCmd() *cobra.Command {
	var (
		selector string
		wait     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Open a session, load a page and optionally wait for an element",
		Long: `Open a browser session with the resolved settings, navigate to url and,
with --wait-selector, wait for a matching element. On failure a screenshot and
HTML snapshot are written to the artifact directory, when one is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			l, err := launcher.New(settings, logger, launcherOptions...)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			wd, err := l.Open(ctx, launcher.TestInfo{Name: "probe"})
			if err != nil {
				return err
			}
			defer func() {
				quitCtx, cancel := context.WithTimeout(context.Background(), probeQuitTimeout)
				defer cancel()
				if err := wd.Quit(quitCtx); err != nil {
					logger.Warn("Failed to quit probe session.", zap.Error(err))
				}
			}()

			if err := wd.Navigate(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to load %s: %w", args[0], err)
			}
			if selector != "" {
				if err := wd.WaitPresent(ctx, selector, wait); err != nil {
					return fmt.Errorf("element %q did not appear: %w", selector, err)
				}
			}

			title, err := wd.Title(ctx)
			if err != nil {
				return fmt.Errorf("failed to read page title: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s %q\n", args[0], title)
			return nil
		},
	}
	cmd.Flags().StringVar(&selector, "wait-selector", "", "CSS selector to wait for after the page loads")
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for --wait-selector (default: --timeout)")
	return cmd
}
