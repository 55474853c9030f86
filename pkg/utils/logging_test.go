package utils

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{name: "debug level", input: "DEBUG", expected: slog.LevelDebug},
		{name: "info level", input: "INFO", expected: slog.LevelInfo},
		{name: "empty defaults to info", input: "", expected: slog.LevelInfo},
		{name: "warn level", input: "WARN", expected: slog.LevelWarn},
		{name: "warning level", input: "WARNING", expected: slog.LevelWarn},
		{name: "error level", input: "ERROR", expected: slog.LevelError},
		{name: "case insensitive", input: "debug", expected: slog.LevelDebug},
		{name: "invalid level", input: "INVALID", expected: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if result != tt.expected {
				t.Errorf("ParseLogLevel() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("text output filters by level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := NewLogger(LoggingConfig{Level: "WARN", Output: &buf})
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		defer closer.Close()

		logger.Info("hidden")
		logger.Warn("shown", "backend", 3)

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Error("INFO message should be filtered out")
		}
		if !strings.Contains(out, "shown") || !strings.Contains(out, "backend=3") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _, err := NewLogger(LoggingConfig{Level: "DEBUG", Format: "json", Output: &buf})
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		logger.Debug("stage done", "stage", "engine_init")
		if !strings.Contains(buf.String(), `"stage":"engine_init"`) {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "node.log")
		logger, closer, err := NewLogger(LoggingConfig{Level: "INFO", File: path})
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		logger.Info("to file")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !strings.Contains(string(data), "to file") {
			t.Errorf("log file content = %q", data)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		if _, _, err := NewLogger(LoggingConfig{Format: "xml"}); err == nil {
			t.Error("expected error for invalid format")
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		if _, _, err := NewLogger(LoggingConfig{Level: "LOUD"}); err == nil {
			t.Error("expected error for invalid level")
		}
	})
}

func TestComponent(t *testing.T) {
	if Component(nil, "x") == nil {
		t.Fatal("Component(nil) returned nil")
	}
	var buf bytes.Buffer
	logger, _, _ := NewLogger(LoggingConfig{Output: &buf})
	Component(logger, "registry").Info("hello")
	if !strings.Contains(buf.String(), "component=registry") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
