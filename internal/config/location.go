// File: internal/config/location.go
package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// LocationKind names where the browser under test runs.
type LocationKind string

const (
	KindLocal  LocationKind = "local"
	KindRemote LocationKind = "remote"
	KindGrid   LocationKind = "grid"
	KindCloud  LocationKind = "cloud"
)

// ParseLocationKind accepts the documented kinds case-insensitively. "sauce" is
// kept as an alias for "cloud" so existing invocations keep working.
func ParseLocationKind(s string) (LocationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return KindLocal, nil
	case "remote":
		return KindRemote, nil
	case "grid":
		return KindGrid, nil
	case "cloud", "sauce":
		return KindCloud, nil
	}
	return "", invalidChoice("browser-location", s)
}

// LocationChoices lists the values accepted by --browser-location.
func LocationChoices() []string {
	return []string{"local", "remote", "grid", "cloud", "sauce"}
}

// Browser is a normalized (lower-case) browser identifier from the WebDriver
// desired-capabilities catalogue.
type Browser string

const (
	BrowserFirefox          Browser = "firefox"
	BrowserInternetExplorer Browser = "internetexplorer"
	BrowserEdge             Browser = "edge"
	BrowserChrome           Browser = "chrome"
	BrowserOpera            Browser = "opera"
	BrowserSafari           Browser = "safari"
	BrowserHTMLUnit         Browser = "htmlunit"
	BrowserHTMLUnitWithJS   Browser = "htmlunitwithjs"
	BrowserIPhone           Browser = "iphone"
	BrowserIPad             Browser = "ipad"
	BrowserAndroid          Browser = "android"
	BrowserPhantomJS        Browser = "phantomjs"
)

// browserCatalogue maps catalogue identifiers to the browserName capability a
// WebDriver endpoint expects.
var browserCatalogue = map[Browser]string{
	BrowserFirefox:          "firefox",
	BrowserInternetExplorer: "internet explorer",
	BrowserEdge:             "MicrosoftEdge",
	BrowserChrome:           "chrome",
	BrowserOpera:            "opera",
	BrowserSafari:           "safari",
	BrowserHTMLUnit:         "htmlunit",
	BrowserHTMLUnitWithJS:   "htmlunit",
	BrowserIPhone:           "iPhone",
	BrowserIPad:             "iPad",
	BrowserAndroid:          "android",
	BrowserPhantomJS:        "phantomjs",
}

// localBrowsers are the browsers with a driver that can be started on this machine.
var localBrowsers = map[Browser]bool{
	BrowserChrome:           true,
	BrowserFirefox:          true,
	BrowserInternetExplorer: true,
}

// ParseBrowser normalizes and validates a browser identifier.
func ParseBrowser(s string) (Browser, error) {
	b := Browser(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := browserCatalogue[b]; !ok {
		return "", invalidChoice("browser", s)
	}
	return b, nil
}

// BrowserChoices lists every catalogue browser, sorted.
func BrowserChoices() []string {
	out := make([]string, 0, len(browserCatalogue))
	for b := range browserCatalogue {
		out = append(out, string(b))
	}
	sort.Strings(out)
	return out
}

// WebDriverName returns the browserName capability for b.
func (b Browser) WebDriverName() string {
	return browserCatalogue[b]
}

// SupportsLocal reports whether b can be launched on the local machine.
func (b Browser) SupportsLocal() bool {
	return localBrowsers[b]
}

// OS is a normalized operating system identifier.
type OS string

const (
	OSWindows OS = "windows"
	OSMac     OS = "mac"
	OSLinux   OS = "linux"
)

// ParseOS normalizes and validates an operating system identifier.
func ParseOS(s string) (OS, error) {
	switch o := OS(strings.ToLower(strings.TrimSpace(s))); o {
	case OSWindows, OSMac, OSLinux:
		return o, nil
	}
	return "", invalidChoice("os", s)
}

// OSChoices lists the values accepted by --os.
func OSChoices() []string {
	return []string{string(OSWindows), string(OSMac), string(OSLinux)}
}

// Endpoint is the address of a WebDriver server or grid hub.
type Endpoint struct {
	Host string
	Port int
}

// URL returns the command executor URL for the endpoint.
func (e Endpoint) URL() string {
	return fmt.Sprintf("http://%s:%d/wd/hub", e.Host, e.Port)
}

// Credentials authenticate against a cloud browser farm.
type Credentials struct {
	Username string
	APIKey   string
}

// String redacts the key so credentials can be logged.
func (c Credentials) String() string {
	return c.Username + ":****"
}

// Location is the tagged variant describing where a session runs. The concrete
// types are Local, Remote, Grid and Cloud; each carries exactly the fields its
// kind requires and is built through its constructor.
type Location interface {
	Kind() LocationKind
	BrowserName() Browser
	isLocation()
}

// Local runs a browser on this machine.
type Local struct {
	Browser Browser
}

// Remote runs a browser on a single WebDriver server.
type Remote struct {
	Browser  Browser
	Endpoint Endpoint
}

// Grid runs a browser on a Selenium grid, pinned to a version and OS.
type Grid struct {
	Browser  Browser
	Version  string
	OS       OS
	Endpoint Endpoint
}

// Cloud runs a browser on a hosted browser farm.
type Cloud struct {
	Browser     Browser
	Version     string
	OS          OS
	Platform    string // provider platform name, e.g. "Windows 10"; falls back to OS
	Credentials Credentials
	Build       string
}

func (Local) Kind() LocationKind  { return KindLocal }
func (Remote) Kind() LocationKind { return KindRemote }
func (Grid) Kind() LocationKind   { return KindGrid }
func (Cloud) Kind() LocationKind  { return KindCloud }

func (l Local) BrowserName() Browser  { return l.Browser }
func (r Remote) BrowserName() Browser { return r.Browser }
func (g Grid) BrowserName() Browser   { return g.Browser }
func (c Cloud) BrowserName() Browser  { return c.Browser }

func (Local) isLocation()  {}
func (Remote) isLocation() {}
func (Grid) isLocation()   {}
func (Cloud) isLocation()  {}

// NewLocal builds a Local location; only browsers with a local driver qualify.
func NewLocal(b Browser) (Local, error) {
	if !b.SupportsLocal() {
		return Local{}, &Error{
			Field: "browser",
			Value: string(b),
			Msg:   fmt.Sprintf("WebDriver does not have a driver for local %s", b),
		}
	}
	return Local{Browser: b}, nil
}

// NewRemote builds a Remote location.
func NewRemote(b Browser, ep Endpoint) (Remote, error) {
	if ep.Host == "" {
		return Remote{}, errMissingAddress()
	}
	return Remote{Browser: b, Endpoint: withDefaultPort(ep)}, nil
}

// NewGrid builds a Grid location.
func NewGrid(b Browser, version string, os OS, ep Endpoint) (Grid, error) {
	if ep.Host == "" {
		return Grid{}, errMissingAddress()
	}
	if os == "" {
		return Grid{}, errMissingOS()
	}
	return Grid{Browser: b, Version: version, OS: os, Endpoint: withDefaultPort(ep)}, nil
}

// NewCloud builds a Cloud location. Platform defaults to the OS identifier
// until a capability listing narrows it down.
func NewCloud(b Browser, version string, os OS, creds Credentials, build string) (Cloud, error) {
	if creds.Username == "" || creds.APIKey == "" {
		field := "sauce_username"
		if creds.Username != "" {
			field = "sauce_apikey"
		}
		return Cloud{}, &Error{
			Field: field,
			Msg:   "'sauce' value for --browser-location requires --sauce-username and --sauce-apikey.",
		}
	}
	if os == "" {
		return Cloud{}, errMissingOS()
	}
	return Cloud{
		Browser:     b,
		Version:     version,
		OS:          os,
		Platform:    string(os),
		Credentials: creds,
		Build:       build,
	}, nil
}

// ExecutorURL returns the authenticated command executor URL for the farm at
// host:port. Credentials are percent-escaped as URL userinfo.
func (c Cloud) ExecutorURL(host string, port int) string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(c.Credentials.Username, c.Credentials.APIKey),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/wd/hub",
	}
	return u.String()
}

func withDefaultPort(ep Endpoint) Endpoint {
	if ep.Port <= 0 {
		ep.Port = DefaultServerPort
	}
	return ep
}

func errMissingAddress() error {
	return &Error{
		Field: "remote_address",
		Msg: "'grid' and 'remote' values for --browser-location " +
			"require --grid-address or --remote-address, respectively.",
	}
}

func errMissingOS() error {
	return &Error{
		Field: "os",
		Msg: "'grid' and 'sauce' values for --browser-location " +
			"require the --os option.",
	}
}
