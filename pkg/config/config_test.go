package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "htmlshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.Protocol.CommandTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Protocol.LoadTimeout.Std())
	assert.Equal(t, FormatJPEG, cfg.Capture.Format)
	assert.Equal(t, 90, cfg.Capture.Quality)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
browser:
  executable: /opt/chrome/chrome
  headless: false
  extra_args: ["--window-size=1280,800"]
  startup_timeout: 1m
protocol:
  command_timeout: 2s
  load_timeout: 45
capture:
  format: PNG
  parallel: 2
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/chrome/chrome", cfg.Browser.Executable)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"--window-size=1280,800"}, cfg.Browser.ExtraArgs)
	assert.Equal(t, time.Minute, cfg.Browser.StartupTimeout.Std())
	assert.Equal(t, 2*time.Second, cfg.Protocol.CommandTimeout.Std())
	assert.Equal(t, 45*time.Second, cfg.Protocol.LoadTimeout.Std())
	assert.Equal(t, FormatPNG, cfg.Capture.Format)
	assert.Equal(t, 90, cfg.Capture.Quality, "unset fields keep their defaults")
	assert.Equal(t, 2, cfg.Capture.Parallel)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad duration",
			content: "protocol:\n  command_timeout: soon\n",
			wantErr: "invalid duration",
		},
		{
			name:    "bad format",
			content: "capture:\n  format: gif\n",
			wantErr: "invalid capture.format",
		},
		{
			name:    "quality out of range",
			content: "capture:\n  quality: 101\n",
			wantErr: "capture.quality",
		},
		{
			name:    "bad level",
			content: "logging:\n  level: loud\n",
			wantErr: "invalid logging.level",
		},
		{
			name:    "not yaml",
			content: "browser: [",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := &Config{Capture: CaptureConfig{Format: "jpg"}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, FormatJPEG, cfg.Capture.Format)
	assert.Equal(t, 5*time.Second, cfg.Protocol.CommandTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Protocol.LoadTimeout.Std())
	assert.Equal(t, 4, cfg.Capture.Parallel)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Protocol.CommandTimeout = Duration(-time.Second)
	assert.Error(t, cfg.Validate())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "htmlshot.yaml")

	cfg := DefaultConfig()
	cfg.Capture.Format = FormatPNG
	cfg.Protocol.LoadTimeout = Duration(12 * time.Second)
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "load_timeout: 12s")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
