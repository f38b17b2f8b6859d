package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := New("test", &buf, LevelDebug)

	logger.Debugf("Debug message")
	logger.Infof("Info message %d", 123)
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	expectedPatterns := []string{
		"[test] [DEBUG] Debug message",
		"[test] [INFO] Info message 123",
		"[test] [WARN] Warning message",
		"[test] [ERROR] Error message",
	}

	logContent := buf.String()
	for _, pattern := range expectedPatterns {
		if !strings.Contains(logContent, pattern) {
			t.Errorf("Log content missing expected pattern: %q\nContent:\n%s", pattern, logContent)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New("test", &buf, LevelWarn)

	logger.Debugf("hidden debug")
	logger.Infof("hidden info")
	logger.Warnf("shown warn")

	logContent := buf.String()
	if strings.Contains(logContent, "hidden") {
		t.Errorf("Expected messages below WARN to be dropped, got:\n%s", logContent)
	}
	if !strings.Contains(logContent, "shown warn") {
		t.Errorf("Expected warn message, got:\n%s", logContent)
	}

	logger.SetLevel(LevelDebug)
	if !logger.Enabled(LevelDebug) {
		t.Error("Expected debug to be enabled after SetLevel")
	}
}

func TestNamedSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	parent := New("component1", &buf, LevelInfo)
	child := parent.Named("component2")

	parent.Infof("Message from component1")
	child.Infof("Message from component2")

	logContent := buf.String()
	if !strings.Contains(logContent, "[component1]") {
		t.Error("Log missing component1 entries")
	}
	if !strings.Contains(logContent, "[component2]") {
		t.Error("Log missing component2 entries")
	}

	parent.SetLevel(LevelError)
	if child.Enabled(LevelInfo) {
		t.Error("Expected child to follow parent level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewFile("test-component", dir, LevelInfo)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Infof("written to file")

	content, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "[test-component] [INFO] written to file") {
		t.Errorf("Unexpected log content:\n%s", content)
	}

	// Verify log file name format: <run-id>-htmlshot.log
	fileName := filepath.Base(logger.LogPath())
	if !strings.HasSuffix(fileName, "-htmlshot.log") {
		t.Errorf("Expected log file to end with '-htmlshot.log', got %q", fileName)
	}
	if !strings.HasPrefix(fileName, RunID()) {
		t.Errorf("Expected log file to start with run id %q, got %q", RunID(), fileName)
	}
}

func TestNewFileFallback(t *testing.T) {
	// A regular file where the directory should be forces the fallback path.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	logger, err := NewFile("test", filepath.Join(blocker, "logs"), LevelInfo)
	if err == nil {
		t.Fatal("Expected error for unusable log directory")
	}
	if logger == nil {
		t.Fatal("Expected fallback logger")
	}
	if logger.LogPath() != "" {
		t.Errorf("Expected empty log path for fallback logger, got %q", logger.LogPath())
	}
}

func TestLoggerClose(t *testing.T) {
	logger, err := NewFile("test", t.TempDir(), LevelInfo)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	logger := OrDiscard(nil)
	logger.Errorf("nowhere")
	if logger.Enabled(LevelError) {
		t.Error("Expected discard logger to drop every level")
	}
}
