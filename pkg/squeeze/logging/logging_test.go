package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
)

// TestInit tests the Init function with various configurations.
// Note: This test cannot run in parallel with other tests that use global state.
func TestInit(t *testing.T) {
	validDir := t.TempDir()
	componentsDir := t.TempDir()
	invalidDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config with defaults",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(validDir, "test.log"),
			},
		},
		{
			name: "valid config with component overrides",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(componentsDir, "components.log"),
				Components: map[string]string{
					"scanner":  "debug",
					"dispatch": "warn",
				},
			},
		},
		{
			name: "invalid log level",
			cfg: logging.Config{
				Level: "invalid",
				Path:  filepath.Join(invalidDir, "invalid.log"),
			},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(invalidDir, "component.log"),
				Components: map[string]string{"scanner": "loud"},
			},
			wantErr: true,
		},
		{
			name: "invalid console level",
			cfg: logging.Config{
				Level:        "info",
				Path:         filepath.Join(invalidDir, "console.log"),
				ConsoleLevel: "chatty",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err := logging.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestGetBeforeInit(t *testing.T) {
	// No t.Parallel() - uses global state

	logger := logging.Get("early")
	if logger == nil {
		t.Fatal("Get() returned nil")
	}
	logger.Info("discarded")
	if logger.Component() != "early" {
		t.Errorf("Component() = %q, want %q", logger.Component(), "early")
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "write.log")

	if err := logging.Init(logging.Config{Level: "debug", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger := logging.Get("test")
	logger.Info("test message", "key", "value")
	logger.With("class", "image").Debug("debug message")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	for _, want := range []string{"test message", "key=value", "debug message", "class=image"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log file does not contain %q, got: %s", want, content)
		}
	}
}

func TestLogLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "levels.log")

	if err := logging.Init(logging.Config{Level: "warn", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger := logging.Get("test")
	logger.Debug("debug should not appear")
	logger.Info("info should not appear")
	logger.Warn("warn should appear")
	logger.Error("error should appear")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	logContent := string(content)

	if strings.Contains(logContent, "debug should not appear") {
		t.Error("debug message should not appear when level is warn")
	}
	if strings.Contains(logContent, "info should not appear") {
		t.Error("info message should not appear when level is warn")
	}
	if !strings.Contains(logContent, "warn should appear") {
		t.Error("warn message should appear when level is warn")
	}
	if !strings.Contains(logContent, "error should appear") {
		t.Error("error message should appear when level is warn")
	}
}

func TestComponentLevelOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")

	cfg := logging.Config{
		Level:      "error",
		Path:       logPath,
		Components: map[string]string{"verbose": "debug"},
	}
	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("normal").Info("normal info should not appear")
	logging.Get("verbose").Info("verbose info should appear")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	logContent := string(content)

	if strings.Contains(logContent, "normal info should not appear") {
		t.Error("normal info message should not appear when default level is error")
	}
	if !strings.Contains(logContent, "verbose info should appear") {
		t.Error("verbose info message should appear when component level is debug")
	}
}

func TestConsoleOutput(t *testing.T) {
	var console bytes.Buffer
	cfg := logging.Config{
		Level:        "debug",
		Path:         filepath.Join(t.TempDir(), "console.log"),
		ConsoleLevel: "warn",
		Console:      &console,
	}
	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger := logging.Get("runner")
	logger.Info("file only")
	logger.Warn("manifest disabled")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out := console.String()
	if strings.Contains(out, "file only") {
		t.Errorf("console should not contain info message, got: %s", out)
	}
	if !strings.Contains(out, "manifest disabled") {
		t.Errorf("console should contain warn message, got: %s", out)
	}
}

func TestConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	const numGoroutines = 8
	const numMessages = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := logging.Get("worker")
			for j := 0; j < numMessages; j++ {
				logger.Info("message", "n", j)
			}
		}()
	}
	wg.Wait()

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != numGoroutines*numMessages {
		t.Errorf("expected %d log lines, got %d", numGoroutines*numMessages, len(lines))
	}
}

func TestDefaultPath(t *testing.T) {
	t.Parallel()

	path := logging.DefaultLogPath()
	if !strings.HasSuffix(path, filepath.Join("squeeze", "squeeze.log")) {
		t.Errorf("DefaultLogPath() should end with squeeze/squeeze.log, got: %s", path)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		want    logging.Level
		wantErr bool
	}{
		{"debug level", "debug", logging.LevelDebug, false},
		{"info level", "info", logging.LevelInfo, false},
		{"warn level", "warn", logging.LevelWarn, false},
		{"warning alias", "warning", logging.LevelWarn, false},
		{"error level", "error", logging.LevelError, false},
		{"DEBUG uppercase", "DEBUG", logging.LevelDebug, false},
		{"invalid level", "invalid", logging.LevelInfo, true},
		{"empty level", "", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := logging.ParseLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	if logging.LevelWarn.String() != "warn" {
		t.Errorf("LevelWarn.String() = %q", logging.LevelWarn.String())
	}
	if logging.Level(42).String() != "unknown" {
		t.Errorf("Level(42).String() = %q", logging.Level(42).String())
	}
}
