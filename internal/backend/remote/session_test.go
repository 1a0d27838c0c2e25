// internal/backend/remote/session_test.go
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"

	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/pkg/webdriver"
)

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// fakeHub is a minimal W3C WebDriver endpoint serving one page.
type fakeHub struct {
	mu       sync.Mutex
	caps     map[string]interface{}
	timeouts []map[string]interface{}
	deleted  bool
	url      string
}

func (h *fakeHub) reply(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": value})
}

func (h *fakeHub) fail(w http.ResponseWriter, status int, code, msg string) {
	h.reply(w, status, map[string]interface{}{"error": code, "message": msg, "stacktrace": ""})
}

func (h *fakeHub) decode(r *http.Request) map[string]interface{} {
	body, _ := io.ReadAll(r.Body)
	out := map[string]interface{}{}
	_ = json.Unmarshal(body, &out)
	return out
}

func (h *fakeHub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wd/hub/session", func(w http.ResponseWriter, r *http.Request) {
		req := h.decode(r)
		h.mu.Lock()
		if desired, ok := req["desiredCapabilities"].(map[string]interface{}); ok {
			h.caps = desired
		}
		h.mu.Unlock()
		h.reply(w, http.StatusOK, map[string]interface{}{
			"sessionId":    "s1",
			"capabilities": map[string]interface{}{"browserName": "firefox", "browserVersion": "128.0"},
		})
	})
	mux.HandleFunc("GET /wd/hub/session/s1", func(w http.ResponseWriter, r *http.Request) {
		h.reply(w, http.StatusOK, map[string]interface{}{"browserName": "firefox", "browserVersion": "128.0"})
	})
	mux.HandleFunc("POST /wd/hub/session/s1/timeouts", func(w http.ResponseWriter, r *http.Request) {
		req := h.decode(r)
		h.mu.Lock()
		h.timeouts = append(h.timeouts, req)
		h.mu.Unlock()
		h.reply(w, http.StatusOK, nil)
	})
	mux.HandleFunc("POST /wd/hub/session/s1/url", func(w http.ResponseWriter, r *http.Request) {
		req := h.decode(r)
		h.mu.Lock()
		h.url, _ = req["url"].(string)
		h.mu.Unlock()
		h.reply(w, http.StatusOK, nil)
	})
	mux.HandleFunc("GET /wd/hub/session/s1/url", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.reply(w, http.StatusOK, h.url)
	})
	mux.HandleFunc("GET /wd/hub/session/s1/title", func(w http.ResponseWriter, r *http.Request) {
		h.reply(w, http.StatusOK, "Fixture")
	})
	mux.HandleFunc("POST /wd/hub/session/s1/element", func(w http.ResponseWriter, r *http.Request) {
		req := h.decode(r)
		if req["value"] == "#greeting" {
			h.reply(w, http.StatusOK, map[string]interface{}{elementKey: "e1"})
			return
		}
		h.fail(w, http.StatusNotFound, "no such element", "Unable to locate element: "+req["value"].(string))
	})
	mux.HandleFunc("POST /wd/hub/session/s1/elements", func(w http.ResponseWriter, r *http.Request) {
		req := h.decode(r)
		if req["value"] == "#greeting" {
			h.reply(w, http.StatusOK, []interface{}{map[string]interface{}{elementKey: "e1"}})
			return
		}
		h.reply(w, http.StatusOK, []interface{}{})
	})
	mux.HandleFunc("GET /wd/hub/session/s1/element/e1/text", func(w http.ResponseWriter, r *http.Request) {
		h.reply(w, http.StatusOK, "hello")
	})
	mux.HandleFunc("POST /wd/hub/session/s1/execute/sync", func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, http.StatusInternalServerError, "javascript error", "boom is not defined")
	})
	mux.HandleFunc("DELETE /wd/hub/session/s1", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.deleted = true
		h.mu.Unlock()
		h.reply(w, http.StatusOK, nil)
	})
	return mux
}

func gridSettings(t *testing.T, srv *httptest.Server) *config.Settings {
	t.Helper()
	host, port := splitHostPort(t, srv.URL)
	grid, err := config.NewGrid(config.BrowserFirefox, "128", config.OSLinux, config.Endpoint{Host: host, Port: port})
	require.NoError(t, err)
	return &config.Settings{Location: grid, Timeout: 3 * time.Second}
}

func splitHostPort(t *testing.T, raw string) (string, int) {
	t.Helper()
	u, err := neturl.Parse(raw)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func TestSessionAgainstFakeHub(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler())
	defer srv.Close()

	ctx := context.Background()
	s, err := Open(ctx, gridSettings(t, srv), Job{Name: "TestLogin"}, nil)
	require.NoError(t, err)

	hub.mu.Lock()
	assert.Equal(t, "firefox", hub.caps["browserName"])
	assert.Equal(t, "128", hub.caps["version"])
	assert.Equal(t, "LINUX", hub.caps["platform"])
	assert.NotEmpty(t, hub.timeouts, "page load and implicit wait are applied")
	hub.mu.Unlock()
	assert.Equal(t, "128.0", s.Capabilities()["browserVersion"])

	_, err = s.Execute(ctx, webdriver.Command{Name: webdriver.CmdNavigate, Value: "http://app.test/"})
	require.NoError(t, err)

	res, err := s.Execute(ctx, webdriver.Command{Name: webdriver.CmdCurrentURL})
	require.NoError(t, err)
	assert.Equal(t, "http://app.test/", res.Text)

	res, err = s.Execute(ctx, webdriver.Command{Name: webdriver.CmdTitle})
	require.NoError(t, err)
	assert.Equal(t, "Fixture", res.Text)

	res, err = s.Execute(ctx, webdriver.Command{Name: webdriver.CmdText, Selector: "#greeting"})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)

	res, err = s.Execute(ctx, webdriver.Command{Name: webdriver.CmdPresent, Selector: "#missing"})
	require.NoError(t, err)
	assert.False(t, res.Bool)

	_, err = s.Execute(ctx, webdriver.Command{Name: webdriver.CmdClick, Selector: "#missing"})
	var re *webdriver.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "no such element", re.Code)
	assert.Equal(t, webdriver.CmdClick, re.Command)

	_, err = s.Execute(ctx, webdriver.Command{Name: webdriver.CmdScript, Value: "return boom;"})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "javascript error", re.Code)

	_, err = s.Execute(ctx, webdriver.Command{Name: "maximize"})
	assert.ErrorIs(t, err, webdriver.ErrUnsupportedCommand)

	require.NoError(t, s.Quit(ctx))
	require.NoError(t, s.Quit(ctx), "second quit is a no-op")
	hub.mu.Lock()
	assert.True(t, hub.deleted)
	hub.mu.Unlock()
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler())
	defer srv.Close()

	s, err := Open(context.Background(), gridSettings(t, srv), Job{}, nil)
	require.NoError(t, err)
	defer s.Quit(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Execute(ctx, webdriver.Command{Name: webdriver.CmdTitle})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDesiredCapabilities(t *testing.T) {
	t.Run("remote uses catalogue browser name", func(t *testing.T) {
		loc, err := config.NewRemote(config.BrowserInternetExplorer, config.Endpoint{Host: "h"})
		require.NoError(t, err)
		caps := DesiredCapabilities(loc, config.LocalConfig{}, Job{})
		assert.Equal(t, selenium.Capabilities{"browserName": "internet explorer"}, caps)
	})

	t.Run("cloud carries job details", func(t *testing.T) {
		loc, err := config.NewCloud(config.BrowserChrome, "126", config.OSWindows,
			config.Credentials{Username: "u", APIKey: "k"}, "ci-7")
		require.NoError(t, err)
		loc.Platform = "Windows 10"

		caps := DesiredCapabilities(loc, config.LocalConfig{}, Job{Name: "TestCheckout", Tags: []string{"smoke"}, Public: true})
		assert.Equal(t, selenium.Capabilities{
			"browserName":            "chrome",
			"build":                  "ci-7",
			"name":                   "TestCheckout",
			"tags":                   []string{"smoke"},
			"public":                 true,
			"restricted-public-info": false,
			"platform":               "Windows 10",
			"version":                "126",
		}, caps)
	})

	t.Run("cloud defaults", func(t *testing.T) {
		loc, err := config.NewCloud(config.BrowserFirefox, "", config.OSMac,
			config.Credentials{Username: "u", APIKey: "k"}, "")
		require.NoError(t, err)
		caps := DesiredCapabilities(loc, config.LocalConfig{}, Job{})
		assert.Equal(t, []string{}, caps["tags"])
		assert.Equal(t, false, caps["public"])
		assert.Equal(t, true, caps["restricted-public-info"])
		assert.Equal(t, "mac", caps["platform"])
	})

	t.Run("local headless firefox", func(t *testing.T) {
		loc, err := config.NewLocal(config.BrowserFirefox)
		require.NoError(t, err)
		caps := DesiredCapabilities(loc, config.LocalConfig{Headless: true}, Job{})
		assert.Contains(t, caps, "moz:firefoxOptions")
	})
}

func TestExecutorURL(t *testing.T) {
	remote, err := config.NewRemote(config.BrowserChrome, config.Endpoint{Host: "selenium.internal"})
	require.NoError(t, err)
	url, err := ExecutorURL(remote, config.CloudConfig{})
	require.NoError(t, err)
	assert.Equal(t, "http://selenium.internal:4444/wd/hub", url)

	cloud, err := config.NewCloud(config.BrowserChrome, "", config.OSLinux, config.Credentials{Username: "u", APIKey: "k"}, "")
	require.NoError(t, err)
	url, err = ExecutorURL(cloud, config.CloudConfig{Host: "ondemand.saucelabs.com", Port: 80})
	require.NoError(t, err)
	assert.Equal(t, "http://u:k@ondemand.saucelabs.com:80/wd/hub", url)

	local, err := config.NewLocal(config.BrowserChrome)
	require.NoError(t, err)
	_, err = ExecutorURL(local, config.CloudConfig{})
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	werr := &selenium.Error{Err: "stale element reference", Message: "gone", HTTPCode: 404}
	err := mapError(webdriver.CmdClick, werr)
	var re *webdriver.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "stale element reference", re.Code)
	assert.Equal(t, "gone", re.Message)

	plain := errors.New("dial tcp: connection refused")
	err = mapError(webdriver.CmdClick, plain)
	assert.False(t, webdriver.IsRemote(err))
	assert.ErrorIs(t, err, plain)
}

func TestStartServiceRequiresJarForIE(t *testing.T) {
	_, _, err := startService(config.BrowserInternetExplorer, config.LocalConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
