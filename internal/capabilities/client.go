// internal/capabilities/client.go
package capabilities

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultTTL     = 10 * time.Minute
	defaultTimeout = 30 * time.Second
	fetchKey       = "platforms"
)

// Platform is one (OS, browser, version) combination offered by the farm.
type Platform struct {
	OS                string `json:"os"`
	APIName           string `json:"api_name"`
	LongName          string `json:"long_name"`
	ShortVersion      string `json:"short_version"`
	LongVersion       string `json:"long_version"`
	AutomationBackend string `json:"automation_backend"`
}

// Client reads the cloud provider's platform listing. Results are cached for
// the configured TTL and concurrent refreshes share a single request. A Client
// is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time

	group     singleflight.Group
	mu        sync.Mutex
	platforms []Platform
	fetchedAt time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTTL sets how long a fetched listing is reused. Zero disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithRateLimit throttles requests to the listing endpoint.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client for the listing at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
		ttl:        defaultTTL,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("capabilities")
	return c
}

// Platforms returns the current listing, from cache when it is fresh.
func (c *Client) Platforms(ctx context.Context) ([]Platform, error) {
	c.mu.Lock()
	if c.platforms != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		cached := c.platforms
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := c.group.DoChan(fetchKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout())
		defer cancel()
		platforms, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.platforms = platforms
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return platforms, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for platform listing: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Shared an in-flight platform listing fetch.")
		}
		return res.Val.([]Platform), nil
	}
}

func (c *Client) fetchTimeout() time.Duration {
	if c.httpClient != nil && c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return defaultTimeout
}

func (c *Client) fetch(ctx context.Context) ([]Platform, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	c.logger.Debug("Fetching platform listing.", zap.String("url", c.url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build platform listing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch platform listing: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform listing: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("platform listing returned status %d", resp.StatusCode)
	}

	var platforms []Platform
	if err := json.Unmarshal(body, &platforms); err != nil {
		return nil, fmt.Errorf("failed to decode platform listing: %w", err)
	}
	c.logger.Info("Fetched platform listing.", zap.Int("count", len(platforms)))
	return platforms, nil
}

// Supports reports whether the farm offers browser (a WebDriver browserName)
// on os, optionally pinned to version. os is matched by case-insensitive
// prefix against the listing ("windows" matches "Windows 10"; "mac" also
// matches "OS X"). An empty version matches the newest listed version.
func (c *Client) Supports(ctx context.Context, os, browser, version string) (Platform, bool, error) {
	platforms, err := c.Platforms(ctx)
	if err != nil {
		return Platform{}, false, err
	}
	matches := Filter(platforms, os, browser)
	if version == "" {
		if len(matches) == 0 {
			return Platform{}, false, nil
		}
		return matches[0], true, nil
	}
	for _, p := range matches {
		if p.ShortVersion == version {
			return p, true, nil
		}
	}
	return Platform{}, false, nil
}

// CheckPlatform adapts Supports to the resolver's capability check, returning
// the listed OS name as the platform capability.
func (c *Client) CheckPlatform(ctx context.Context, os, browser, version string) (string, bool, error) {
	p, ok, err := c.Supports(ctx, os, browser, version)
	if err != nil || !ok {
		return "", ok, err
	}
	return p.OS, true, nil
}

// Filter returns the platforms matching os and browser, newest version
// first. Empty arguments match everything.
func Filter(platforms []Platform, os, browser string) []Platform {
	var out []Platform
	for _, p := range platforms {
		if os != "" && !matchOS(p.OS, os) {
			continue
		}
		if browser != "" && !strings.EqualFold(p.APIName, browser) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return versionLess(out[j].ShortVersion, out[i].ShortVersion)
	})
	return out
}

func matchOS(listed, want string) bool {
	listed = strings.ToLower(listed)
	want = strings.ToLower(want)
	if strings.HasPrefix(listed, want) {
		return true
	}
	return want == "mac" && strings.HasPrefix(listed, "os x")
}

// versionLess orders dotted numeric versions; non-numeric parts compare as
// strings.
func versionLess(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		var ai, bi int
		_, aerr := fmt.Sscanf(as[i], "%d", &ai)
		_, berr := fmt.Sscanf(bs[i], "%d", &bi)
		if aerr == nil && berr == nil && ai != bi {
			return ai < bi
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
