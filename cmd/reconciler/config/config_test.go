package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neumann-mlucas/BWGI/internal/reporter"
	"github.com/neumann-mlucas/BWGI/pkg/logger"
)

func TestCreateParseConfig(t *testing.T) {
	strict := CreateParseConfig(true, 0)
	if !strict.StrictMode {
		t.Error("expected strict mode")
	}
	if strict.MaxErrors != 100 {
		t.Errorf("expected the default error budget of 100, got %d", strict.MaxErrors)
	}

	tolerant := CreateParseConfig(false, 25)
	if tolerant.StrictMode {
		t.Error("expected tolerant mode")
	}
	if tolerant.MaxErrors != 25 {
		t.Errorf("expected MaxErrors 25, got %d", tolerant.MaxErrors)
	}
	if !tolerant.SkipEmptyRows {
		t.Error("expected empty-row skipping to stay enabled")
	}
}

func TestCreateServiceConfig(t *testing.T) {
	parseConfig := CreateParseConfig(false, 10)
	config := CreateServiceConfig(parseConfig, false)

	if config.ParseConfig != parseConfig {
		t.Error("expected the parse config to be carried through")
	}
	if config.AnalyzeDiscrepancies {
		t.Error("expected discrepancy analysis to be disabled")
	}
	if !config.IncludeStatistics {
		t.Error("expected statistics to stay enabled by default")
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format     string
		wantFormat reporter.OutputFormat
		wantErr    bool
	}{
		{format: "text", wantFormat: reporter.FormatText},
		{format: "console", wantFormat: reporter.FormatConsole},
		{format: "json", wantFormat: reporter.FormatJSON},
		{format: "csv", wantFormat: reporter.FormatCSV},
		{format: "xml", wantErr: true},
		{format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			config, err := CreateReportConfig(tt.format, true)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateReportConfig(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if config.Format != tt.wantFormat {
				t.Errorf("Format = %s, want %s", config.Format, tt.wantFormat)
			}
		})
	}

	// CSV output carries row data only
	csvConfig, err := CreateReportConfig("csv", true)
	if err != nil {
		t.Fatalf("CreateReportConfig(csv) failed: %v", err)
	}
	if csvConfig.IncludeDiscrepancies || csvConfig.IncludeProcessingStats {
		t.Error("expected discrepancy and stats sections disabled for csv")
	}
}

func TestResolveProfile(t *testing.T) {
	profile, err := ResolveProfile("", "")
	if err != nil {
		t.Fatalf("ResolveProfile with empty name failed: %v", err)
	}
	if profile.Name != "standard" {
		t.Errorf("expected the standard profile, got %s", profile.Name)
	}

	profile, err = ResolveProfile("semicolon", "")
	if err != nil {
		t.Fatalf("ResolveProfile(semicolon) failed: %v", err)
	}
	if profile.Delimiter != ';' {
		t.Errorf("expected semicolon delimiter, got %c", profile.Delimiter)
	}

	if _, err := ResolveProfile("unknown", ""); err == nil {
		t.Error("expected error for an unknown profile")
	}
}

func TestResolveProfile_CustomFile(t *testing.T) {
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "profiles.yaml")
	content := `profiles:
  - name: tabbed
    description: Tab-separated rows
    delimiter: "\t"
    columns:
      date: 0
      department: 1
      value: 2
      counterpart: 3
`
	if err := os.WriteFile(profilePath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write profile file: %v", err)
	}

	profile, err := ResolveProfile("tabbed", profilePath)
	if err != nil {
		t.Fatalf("ResolveProfile(tabbed) failed: %v", err)
	}
	if profile.Delimiter != '\t' {
		t.Errorf("expected tab delimiter, got %q", profile.Delimiter)
	}

	// built-ins stay reachable alongside a custom file
	if _, err := ResolveProfile("standard", profilePath); err != nil {
		t.Errorf("built-in profile should resolve with a custom file present: %v", err)
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	config, err := CreateLoggerConfig(false, "text")
	if err != nil {
		t.Fatalf("CreateLoggerConfig failed: %v", err)
	}
	if config.Level != logger.InfoLevel {
		t.Errorf("expected info level, got %s", config.Level)
	}
	if config.Format != logger.TextFormat {
		t.Errorf("expected text format, got %s", config.Format)
	}

	config, err = CreateLoggerConfig(true, "json")
	if err != nil {
		t.Fatalf("CreateLoggerConfig failed: %v", err)
	}
	if config.Level != logger.DebugLevel {
		t.Errorf("expected debug level for verbose, got %s", config.Level)
	}
	if config.Format != logger.JSONFormat {
		t.Errorf("expected json format, got %s", config.Format)
	}

	if _, err := CreateLoggerConfig(false, "xml"); err == nil {
		t.Error("expected error for invalid log format")
	}
}
