package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		expectErr bool
	}{
		{
			name:      "default config",
			config:    DefaultConfig(),
			expectErr: false,
		},
		{
			name:      "debug config",
			config:    DebugConfig(),
			expectErr: false,
		},
		{
			name:      "invalid level",
			config:    &Config{Level: "trace", Format: TextFormat, Output: StderrOutput},
			expectErr: true,
		},
		{
			name:      "invalid format",
			config:    &Config{Level: InfoLevel, Format: "xml", Output: StderrOutput},
			expectErr: true,
		},
		{
			name:      "file output without path",
			config:    &Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.expectErr {
				t.Errorf("Validate() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

func TestLoggerKeepsAccumulatedFields(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	log, err := NewLogger(&Config{
		Level:  InfoLevel,
		Format: JSONFormat,
		Output: FileOutput,
		File:   logFile,
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	log.WithComponent("parser").WithField("file_path", "ledgerA.csv").Info("parsing")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	output := string(data)

	for _, want := range []string{`"component":"parser"`, `"file_path":"ledgerA.csv"`, "parsing"} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %s:\n%s", want, output)
		}
	}
}

func TestProgressTrackerStats(t *testing.T) {
	tracker := NewProgressTracker(ProgressConfig{
		Operation: "parse_ledger",
		Total:     10,
	})

	tracker.Add(4)
	tracker.Increment()

	stats := tracker.GetStats()
	if stats.Current != 5 {
		t.Errorf("Current = %d, want 5", stats.Current)
	}
	if stats.Percentage != 50 {
		t.Errorf("Percentage = %f, want 50", stats.Percentage)
	}
	if !strings.Contains(stats.String(), "5/10") {
		t.Errorf("String() = %q, want the 5/10 progress fraction", stats.String())
	}
}

func TestProgressTrackerUnknownTotal(t *testing.T) {
	tracker := NewProgressTracker(ProgressConfig{Operation: "scan"})
	tracker.Increment()

	stats := tracker.GetStats()
	if stats.Percentage != 0 {
		t.Errorf("Percentage = %f, want 0 for an unknown total", stats.Percentage)
	}
	if !strings.Contains(stats.String(), "1 processed") {
		t.Errorf("String() = %q, want the open-ended form", stats.String())
	}
}
