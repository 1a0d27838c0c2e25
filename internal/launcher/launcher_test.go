// internal/launcher/launcher_test.go
package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/internal/mocks"
	"github.com/xkilldash9x/selharness/pkg/webdriver"
)

// resolveLocal resolves a local chrome configuration writing artifacts to dir.
func resolveLocal(t *testing.T, dir string) *config.Settings {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Selenium.Browser = "chrome"
	cfg.Selenium.ArtifactDir = dir
	cfg.Selenium.PollInterval = 20 * time.Millisecond
	settings, err := config.Resolve(context.Background(), cfg, nil)
	require.NoError(t, err)
	return settings
}

// stubDriver returns a MockDriver that serves capture commands and answers
// every presence check with "not there".
func stubDriver() *mocks.MockDriver {
	drv := &mocks.MockDriver{}
	drv.On("Capabilities").Return(map[string]interface{}{"browserName": "chrome", "browserVersion": "126"})
	drv.On("Execute", mock.Anything, webdriver.Command{Name: webdriver.CmdScreenshot}).Return(webdriver.Result{Bytes: []byte("png")}, nil)
	drv.On("Execute", mock.Anything, webdriver.Command{Name: webdriver.CmdPageSource}).Return(webdriver.Result{Text: "<html></html>"}, nil)
	drv.On("Execute", mock.Anything, webdriver.Command{Name: webdriver.CmdCurrentURL}).Return(webdriver.Result{Text: "about:blank"}, nil)
	drv.On("Execute", mock.Anything, mock.MatchedBy(func(c webdriver.Command) bool { return c.Name == webdriver.CmdPresent })).
		Return(webdriver.Result{Bool: false}, nil)
	drv.On("Quit", mock.Anything).Return(nil)
	return drv
}

func TestOpenLocalSessionTimesOutWithArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	settings := resolveLocal(t, dir)
	drv := stubDriver()

	var gotInfo TestInfo
	l, err := New(settings, zap.NewNop(), WithOpener(config.KindLocal,
		func(ctx context.Context, s *config.Settings, info TestInfo, logger *zap.Logger) (webdriver.Driver, error) {
			gotInfo = info
			assert.Equal(t, config.Local{Browser: config.BrowserChrome}, s.Location)
			return drv, nil
		}))
	require.NoError(t, err)

	ctx := context.Background()
	wd, err := l.Open(ctx, TestInfo{Name: "TestNeverTrue"})
	require.NoError(t, err)
	assert.Equal(t, "TestNeverTrue", gotInfo.Name)

	err = wd.WaitPresent(ctx, "#never", time.Second)
	var te *webdriver.TimeoutError
	require.ErrorAs(t, err, &te)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	exts := map[string]bool{}
	for _, e := range entries {
		exts[filepath.Ext(e.Name())] = true
	}
	assert.Equal(t, map[string]bool{".png": true, ".html": true}, exts)

	require.NoError(t, wd.Quit(ctx))
	drv.AssertCalled(t, "Quit", mock.Anything)
}

func TestOpenLogsActualCapabilities(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	settings := resolveLocal(t, "")
	drv := stubDriver()

	l, err := New(settings, zap.New(core), WithOpener(config.KindLocal,
		func(context.Context, *config.Settings, TestInfo, *zap.Logger) (webdriver.Driver, error) { return drv, nil }))
	require.NoError(t, err)

	_, err = l.Open(context.Background(), TestInfo{Name: "TestCaps"})
	require.NoError(t, err)

	entries := logs.FilterMessage("Session started.").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "TestCaps", fields["test"])
	assert.Equal(t, "local", fields["location"])
	assert.Equal(t, map[string]interface{}{"browserName": "chrome", "browserVersion": "126"}, fields["actual_capabilities"])
}

func TestOpenWithoutArtifactDirWritesNothing(t *testing.T) {
	settings := resolveLocal(t, "")
	drv := stubDriver()
	l, err := New(settings, nil, WithOpener(config.KindLocal,
		func(context.Context, *config.Settings, TestInfo, *zap.Logger) (webdriver.Driver, error) { return drv, nil }))
	require.NoError(t, err)

	wd, err := l.Open(context.Background(), TestInfo{})
	require.NoError(t, err)
	err = wd.WaitPresent(context.Background(), "#never", 50*time.Millisecond)
	assert.ErrorIs(t, err, webdriver.ErrTimeout)
	drv.AssertNotCalled(t, "Execute", mock.Anything, webdriver.Command{Name: webdriver.CmdScreenshot})
}

func TestOpenPropagatesBackendErrors(t *testing.T) {
	settings := resolveLocal(t, "")
	boom := errors.New("chrome not found")
	l, err := New(settings, nil, WithOpener(config.KindLocal,
		func(context.Context, *config.Settings, TestInfo, *zap.Logger) (webdriver.Driver, error) { return nil, boom }))
	require.NoError(t, err)

	_, err = l.Open(context.Background(), TestInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "local chrome")
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	settings := resolveLocal(t, t.TempDir())
	settings.Artifacts.Encoding = "ebcdic"
	_, err := New(settings, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestCloudSessionsReceiveTestInfo(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Selenium.BrowserLocation = "sauce"
	cfg.Selenium.Browser = "firefox"
	cfg.Selenium.OS = "linux"
	cfg.Selenium.SauceUsername = "u"
	cfg.Selenium.SauceAPIKey = "k"

	checker := &mocks.MockChecker{}
	checker.On("CheckPlatform", mock.Anything, "linux", "firefox", "").Return("Linux", true, nil)
	settings, err := config.Resolve(context.Background(), cfg, checker)
	require.NoError(t, err)
	checker.AssertExpectations(t)

	var got TestInfo
	l, err := New(settings, nil, WithOpener(config.KindCloud,
		func(_ context.Context, s *config.Settings, info TestInfo, _ *zap.Logger) (webdriver.Driver, error) {
			got = info
			assert.Equal(t, "Linux", s.Location.(config.Cloud).Platform)
			return stubDriver(), nil
		}))
	require.NoError(t, err)

	_, err = l.Open(context.Background(), TestInfo{Name: "TestCheckout", Tags: []string{"smoke"}, Public: true})
	require.NoError(t, err)
	assert.Equal(t, TestInfo{Name: "TestCheckout", Tags: []string{"smoke"}, Public: true}, got)
}
