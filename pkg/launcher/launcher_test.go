package launcher

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"
	"time"

	"github.com/entrhq/htmlshot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDebuggerURL(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{
			line: "DevTools listening on ws://127.0.0.1:9222/devtools/browser/6a1c1f3e-0000-4a43-8f1e-3c0a2b5c9d11",
			want: "ws://127.0.0.1:9222/devtools/browser/6a1c1f3e-0000-4a43-8f1e-3c0a2b5c9d11",
			ok:   true,
		},
		{
			line: "[0101/000000.000:ERROR:gpu_init.cc(523)] Passthrough is not supported",
			ok:   false,
		},
		{
			line: "listening on ws://localhost:1/devtools/page/abc",
			ok:   false,
		},
	}

	for _, tt := range tests {
		got, ok := ParseDebuggerURL(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got)
	}
}

func TestArgs(t *testing.T) {
	cfg := config.BrowserConfig{Headless: true, ExtraArgs: []string{"--window-size=800,600"}}
	args := Args(cfg, "/tmp/profile")

	assert.Equal(t, "--remote-debugging-port=0", args[0])
	assert.Equal(t, "--user-data-dir=/tmp/profile", args[1])
	assert.Contains(t, args, "--headless")
	assert.Contains(t, args, "--enable-logging=stderr")
	assert.Equal(t, "--window-size=800,600", args[len(args)-1])

	cfg.Headless = false
	assert.NotContains(t, Args(cfg, "/tmp/profile"), "--headless")
}

func stubDiscovery(t *testing.T) {
	t.Helper()
	origLook, origEnv, origOS, origPW := lookPath, getenv, goos, playwrightExecutable
	t.Cleanup(func() {
		lookPath, getenv, goos, playwrightExecutable = origLook, origEnv, origOS, origPW
	})
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	getenv = func(string) string { return "" }
	goos = "plan9"
	playwrightExecutable = func() (string, error) { return "", errors.New("not installed") }
}

func fakeBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	return path
}

func TestFindExecutable(t *testing.T) {
	t.Run("configured path", func(t *testing.T) {
		stubDiscovery(t)
		bin := fakeBinary(t)
		got, err := FindExecutable(config.BrowserConfig{Executable: bin})
		require.NoError(t, err)
		assert.Equal(t, bin, got)
	})

	t.Run("configured path missing", func(t *testing.T) {
		stubDiscovery(t)
		_, err := FindExecutable(config.BrowserConfig{Executable: "/nonexistent/chrome"})
		var spawnErr *ProcessSpawnError
		require.True(t, errors.As(err, &spawnErr))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("CHROME variable", func(t *testing.T) {
		stubDiscovery(t)
		bin := fakeBinary(t)
		getenv = func(key string) string {
			if key == "CHROME" {
				return bin
			}
			return ""
		}
		got, err := FindExecutable(config.BrowserConfig{})
		require.NoError(t, err)
		assert.Equal(t, bin, got)
	})

	t.Run("PATH lookup order", func(t *testing.T) {
		stubDiscovery(t)
		var asked []string
		lookPath = func(name string) (string, error) {
			asked = append(asked, name)
			if name == "chromium" {
				return "/usr/bin/chromium", nil
			}
			return "", exec.ErrNotFound
		}
		got, err := FindExecutable(config.BrowserConfig{})
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/chromium", got)
		assert.Equal(t, "google-chrome-stable", asked[0])
	})

	t.Run("playwright fallback", func(t *testing.T) {
		stubDiscovery(t)
		playwrightExecutable = func() (string, error) { return "/pw/chromium/chrome", nil }

		got, err := FindExecutable(config.BrowserConfig{UsePlaywright: true})
		require.NoError(t, err)
		assert.Equal(t, "/pw/chromium/chrome", got)

		_, err = FindExecutable(config.BrowserConfig{})
		assert.ErrorIs(t, err, errNoExecutable)
	})

	t.Run("nothing found", func(t *testing.T) {
		stubDiscovery(t)
		_, err := FindExecutable(config.BrowserConfig{UsePlaywright: true})
		var spawnErr *ProcessSpawnError
		require.True(t, errors.As(err, &spawnErr))
		assert.Contains(t, err.Error(), "playwright")
	})
}

func TestProfileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	name := profileName("htmlshot", now)
	assert.Regexp(t, regexp.MustCompile(`^htmlshot_20240309_140507_[0-9a-f]{8}$`), name)
	assert.NotEqual(t, name, profileName("htmlshot", now))
}

func TestProfileDir_CreateAndRemove(t *testing.T) {
	base := filepath.Join(t.TempDir(), "profiles")

	dir, err := createProfileDir(base)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, base, filepath.Dir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Local State"), []byte("{}"), 0600))
	require.NoError(t, removeProfileDir(dir))
	assert.NoDirExists(t, dir)
}

// script writes an executable shell script standing in for the browser.
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-chrome")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestLaunch_ReadsURLFromStderr(t *testing.T) {
	bin := script(t, `echo "[WARNING] something unrelated" >&2
echo "DevTools listening on ws://127.0.0.1:45678/devtools/browser/abc-123" >&2
exec sleep 30
`)
	base := t.TempDir()

	p, err := Launch(context.Background(), config.BrowserConfig{
		Executable:     bin,
		ProfileBase:    base,
		StartupTimeout: config.Duration(5 * time.Second),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:45678/devtools/browser/abc-123", p.URL)
	assert.DirExists(t, p.ProfileDir)

	require.NoError(t, p.Close())
	assert.NoDirExists(t, p.ProfileDir)
	assert.NoError(t, p.Close(), "second close returns the first result")
}

func TestLaunch_ExitWithoutURL(t *testing.T) {
	bin := script(t, "echo 'cannot open display' >&2\nexit 1\n")

	_, err := Launch(context.Background(), config.BrowserConfig{
		Executable:     bin,
		ProfileBase:    t.TempDir(),
		StartupTimeout: config.Duration(5 * time.Second),
	}, nil)

	var notFound *SocketNotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Contains(t, err.Error(), "exited")
}

func TestLaunch_StartupTimeout(t *testing.T) {
	bin := script(t, "exec sleep 30\n")
	base := t.TempDir()

	start := time.Now()
	_, err := Launch(context.Background(), config.BrowserConfig{
		Executable:     bin,
		ProfileBase:    base,
		StartupTimeout: config.Duration(200 * time.Millisecond),
	}, nil)

	var notFound *SocketNotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "profile directory is removed after a failed start")
}
