package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/entrhq/htmlshot/pkg/config"
	"github.com/playwright-community/playwright-go"
)

// executableNames are looked up on PATH in order.
var executableNames = []string{
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-dev",
	"google-chrome-unstable",
	"chromium",
	"chromium-browser",
	"microsoft-edge-stable",
	"microsoft-edge-beta",
	"microsoft-edge-dev",
	"chrome",
	"chrome-browser",
	"msedge",
	"microsoft-edge",
}

// installPaths are well-known per-OS locations checked after PATH.
var installPaths = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Google Chrome Beta.app/Contents/MacOS/Google Chrome Beta",
		"/Applications/Google Chrome Dev.app/Contents/MacOS/Google Chrome Dev",
		"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		"/Applications/Microsoft Edge Beta.app/Contents/MacOS/Microsoft Edge Beta",
		"/Applications/Microsoft Edge Dev.app/Contents/MacOS/Microsoft Edge Dev",
		"/Applications/Microsoft Edge Canary.app/Contents/MacOS/Microsoft Edge Canary",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
	},
}

// Indirections so tests can control discovery.
var (
	lookPath             = exec.LookPath
	getenv               = os.Getenv
	goos                 = runtime.GOOS
	playwrightExecutable = installedChromium
)

var errNoExecutable = errors.New("could not auto detect a chrome executable")

// FindExecutable resolves the browser binary: the configured path, $CHROME,
// the usual names on PATH, well-known install locations, and finally the
// Chromium managed by playwright when UsePlaywright is set.
func FindExecutable(cfg config.BrowserConfig) (string, error) {
	if cfg.Executable != "" {
		if !fileExists(cfg.Executable) {
			return "", &ProcessSpawnError{Executable: cfg.Executable, Err: os.ErrNotExist}
		}
		return cfg.Executable, nil
	}

	if path := getenv("CHROME"); path != "" && fileExists(path) {
		return path, nil
	}

	for _, name := range executableNames {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}

	for _, path := range installPaths[goos] {
		if fileExists(path) {
			return path, nil
		}
	}

	if cfg.UsePlaywright {
		path, err := playwrightExecutable()
		if err != nil {
			return "", &ProcessSpawnError{Err: fmt.Errorf("playwright chromium: %w", err)}
		}
		return path, nil
	}

	return "", &ProcessSpawnError{Err: errNoExecutable}
}

// installedChromium installs playwright's Chromium if needed and returns the
// path to its executable.
func installedChromium() (string, error) {
	// Discard output to keep the CLI summary clean
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return "", fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return "", fmt.Errorf("failed to start playwright: %w", err)
	}
	defer func() { _ = pw.Stop() }()

	path := pw.Chromium.ExecutablePath()
	if !fileExists(path) {
		return "", fmt.Errorf("chromium not found at %s", path)
	}
	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
