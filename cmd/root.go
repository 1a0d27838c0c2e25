// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/selharness/internal/capabilities"
	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/internal/launcher"
	"github.com/xkilldash9x/selharness/internal/observability"
)

type ctxKey int

const configKey ctxKey = iota

// Injection points for tests.
var (
	newChecker = func(cfg *config.Config, logger *zap.Logger) config.CapabilityChecker {
		return newCapabilitiesClient(cfg, logger)
	}
	launcherOptions []launcher.Option
)

// ExitError carries a child process exit status through cobra.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selharness",
		Short: "selharness configures and runs browser test suites.",
		Long: `selharness resolves where browser tests run (a local browser, a Selenium
server, a grid or a cloud farm), validates the choice and runs go test with the
resolved settings exported to the test binaries.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{Flags: cmd.Flags()})
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			observability.Initialize(cfg.Logger, zapcore.AddSync(cmd.ErrOrStderr()))
			observability.GetLogger().Debug("Starting selharness", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file (file values override flags)")
	config.RegisterFlags(cmd.PersistentFlags())
	cmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newCapabilitiesCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with ctx and logs a failure. An *ExitError is
// returned silently so the caller can propagate the child's status.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	return err
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// resolveSettings loads and validates the settings for cmd, including the
// cloud capability check.
func resolveSettings(cmd *cobra.Command) (*config.Config, *config.Settings, error) {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	logger := observability.GetLogger()
	settings, err := config.Resolve(cmd.Context(), cfg, newChecker(cfg, logger))
	if err != nil {
		return nil, nil, err
	}
	return cfg, settings, nil
}

func newCapabilitiesClient(cfg *config.Config, logger *zap.Logger) *capabilities.Client {
	return capabilities.New(cfg.Cloud.CapabilitiesURL,
		capabilities.WithTTL(cfg.Cloud.CacheTTL),
		capabilities.WithLogger(logger),
	)
}
