// internal/backend/cdp/allocator.go
package cdp

import (
	"runtime"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/selharness/internal/config"
)

// Flags returns the Chrome command-line flags for cfg on the given GOOS.
// A false value removes a flag that chromedp would otherwise pass.
func Flags(cfg config.LocalConfig, goos string) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":           cfg.Headless,
		"hide-scrollbars":    cfg.Headless,
		"mute-audio":         cfg.Headless,
		"disable-gpu":        cfg.Headless,
		"disable-extensions": true,
		// Tests expect the browser to report itself as automated.
		"enable-automation": true,
	}

	// Custom arguments from config, "--name=value" or "--name".
	for _, arg := range cfg.ChromeArgs {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if goos == "linux" {
		for _, name := range []string{"no-sandbox", "disable-dev-shm-usage", "disable-setuid-sandbox"} {
			if _, set := flags[name]; !set {
				flags[name] = true
			}
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for a local Chrome.
func AllocatorOptions(cfg config.LocalConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := Flags(cfg, runtime.GOOS)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	return opts
}
