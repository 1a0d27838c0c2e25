// File: cmd/run.go
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/internal/observability"
)

// execCommandContext allows tests to replace the go tool.
var execCommandContext = exec.CommandContext

func newRunCmd() *cobra.Command {
	var goTool string
	cmd := &cobra.Command{
		Use:   "run [flags] [-- go test arguments]",
		Short: "Validate the settings and run go test with them",
		Long: `Resolve and validate the browser settings, export them as SELENIUM_*,
LOCAL_*, CLOUD_*, ARTIFACTS_* and LOGGER_* environment variables and run
go test. Arguments after -- are passed to go test unchanged. The exit status of
go test becomes the exit status of selharness.`,
		Example: `  selharness run --browser chrome --artifact-dir ./failures -- ./e2e/... -run TestLogin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, settings, err := resolveSettings(cmd)
			if err != nil {
				return err
			}

			goArgs := append([]string{"test"}, args...)
			observability.GetLogger().Info("Running tests.",
				zap.String("location", string(settings.Location.Kind())),
				zap.String("browser", string(settings.Location.BrowserName())),
				zap.Strings("args", goArgs),
			)

			child := execCommandContext(cmd.Context(), goTool, goArgs...)
			child.Env = append(os.Environ(), config.Environ(cfg)...)
			child.Stdin = cmd.InOrStdin()
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()

			if err := child.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					code := exitErr.ExitCode()
					if code < 0 {
						code = 1
					}
					return &ExitError{Code: code}
				}
				return fmt.Errorf("failed to run %s test: %w", goTool, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&goTool, "go", "go", "go tool used to run the tests")
	return cmd
}
