// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/internal/observability"
)

// resetForTest restores every injection point and the process logger.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	newChecker = func(cfg *config.Config, logger *zap.Logger) config.CapabilityChecker {
		return newCapabilitiesClient(cfg, logger)
	}
	newLister = func(cfg *config.Config) platformLister {
		return newCapabilitiesClient(cfg, observability.GetLogger())
	}
	launcherOptions = nil
	execCommandContext = exec.CommandContext
	t.Cleanup(observability.ResetForTest)
}

// newPristineRootCmd returns a fresh command tree with test state reset.
func newPristineRootCmd(t *testing.T) *cobra.Command {
	t.Helper()
	resetForTest(t)
	return NewRootCommand()
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := newPristineRootCmd(t)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
