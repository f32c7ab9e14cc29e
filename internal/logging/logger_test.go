package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gnssprep/internal/config"
	"gnssprep/internal/logging"
	"gnssprep/internal/services"
)

func newFileLogger(t *testing.T) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	return logPath, func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "gnssprep.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("expected a JSON line in the log file, got %q: %v", content, err)
	}
	if entry["msg"] != "hello from test" {
		t.Fatalf("expected message in log file, got %v", entry)
	}
}

func TestConsoleLoggerPromotesComponentAndStage(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithStage(services.WithRunID(context.Background(), "run-1"), "convert")
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "crx2rnx"))
	logger.Info("converted file", logging.String(logging.FieldFile, "ABC01220.22d"))

	content := read()
	if !strings.Contains(content, "INFO crx2rnx[convert]: converted file") {
		t.Fatalf("expected component/stage prefix, got %q", content)
	}
	if !strings.Contains(content, "run_id=run-1") || !strings.Contains(content, "file=ABC01220.22d") {
		t.Fatalf("expected attributes in output, got %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerQuotesValues(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("tool failed", logging.String("stderr", "bad header line"), logging.String("empty", ""))

	content := read()
	if !strings.Contains(content, `stderr="bad header line"`) || !strings.Contains(content, `empty=""`) {
		t.Fatalf("expected quoted values, got %q", content)
	}
}

func TestDebugLevelFiltersAndAddsSource(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	content := read()
	if strings.Contains(content, "hidden") || !strings.Contains(content, "shown") {
		t.Fatalf("unexpected level filtering: %q", content)
	}

	debugPath, readDebug := newFileLogger(t)
	debugLogger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{debugPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	debugLogger.Debug("with source")
	if !strings.Contains(readDebug(), "logger_test.go:") {
		t.Fatal("expected caller information at debug level")
	}
}

func TestJSONLoggerFields(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "archive skipped", "archive_corrupt", logging.String(logging.FieldFile, "bad.zip"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "archive skipped" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	for _, key := range []string{"ts", logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact, logging.FieldFile} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in %v", key, entry)
		}
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger to be disabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
	logging.ErrorWithContext(nil, "ignored", "noop")
}
