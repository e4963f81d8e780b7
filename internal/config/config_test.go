package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("DRIVESHARE_SPREADSHEET_ID", "doc1")
	t.Setenv("DRIVESHARE_SHEET_NAME", "Roster")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "doc1", cfg.Spreadsheet.ID)
	assert.Equal(t, "Roster", cfg.Spreadsheet.SheetName)
	assert.Equal(t, "I", cfg.Spreadsheet.StatusColumn)
	assert.Equal(t, "J", cfg.Spreadsheet.LogColumn)
	assert.Equal(t, 16, cfg.Engine.WorkerCount)
	assert.Equal(t, 10, cfg.Engine.HistoryBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Drive.RateDelay)
	assert.Equal(t, 30*time.Second, cfg.Drive.Timeout)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.False(t, cfg.Engine.RichOutput)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DRIVESHARE_SPREADSHEET_ID", "doc1")
	t.Setenv("DRIVESHARE_SHEET_NAME", "Roster")
	t.Setenv("DRIVESHARE_WORKER_COUNT", "4")
	t.Setenv("DRIVESHARE_HISTORY_BATCH_SIZE", "25")
	t.Setenv("DRIVESHARE_RATE_DELAY", "250ms")
	t.Setenv("DRIVESHARE_RICH_OUTPUT", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.WorkerCount)
	assert.Equal(t, 25, cfg.Engine.HistoryBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Drive.RateDelay)
	assert.True(t, cfg.Engine.RichOutput)
}

func TestLoadFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DRIVESHARE_SPREADSHEET_ID", "doc1")
	t.Setenv("DRIVESHARE_SHEET_NAME", "Roster")
	t.Setenv("DRIVESHARE_WORKER_COUNT", "many")
	t.Setenv("DRIVESHARE_RATE_DELAY", "fast")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Engine.WorkerCount)
	assert.Equal(t, 100*time.Millisecond, cfg.Drive.RateDelay)
}

func TestValidateMissingRequired(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	cfg.Spreadsheet.ID = ""
	cfg.Spreadsheet.SheetName = ""

	err = cfg.Validate()
	require.Error(t, err)
	// Both missing variables are named in one diagnostic
	assert.Contains(t, err.Error(), "DRIVESHARE_SPREADSHEET_ID")
	assert.Contains(t, err.Error(), "DRIVESHARE_SHEET_NAME")
}

func TestValidateRejectsBadSettings(t *testing.T) {
	base := func() *Config {
		return &Config{
			Spreadsheet: SpreadsheetConfig{ID: "doc1", SheetName: "Roster"},
			Drive: DriveConfig{
				DriveBaseURL:  "https://drive.example",
				SheetsBaseURL: "https://sheets.example",
				Timeout:       time.Second,
			},
			Engine: EngineConfig{
				WorkerCount:        1,
				HistoryBatchSize:   1,
				FolderMapFile:      "folders.json",
				RecipientCacheFile: "recipients.json",
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Engine.WorkerCount = 0 }},
		{"zero batch size", func(c *Config) { c.Engine.HistoryBatchSize = 0 }},
		{"no folder map", func(c *Config) { c.Engine.FolderMapFile = "" }},
		{"no recipient cache", func(c *Config) { c.Engine.RecipientCacheFile = "" }},
		{"no drive URL", func(c *Config) { c.Drive.DriveBaseURL = "" }},
		{"zero timeout", func(c *Config) { c.Drive.Timeout = 0 }},
		{"negative rate delay", func(c *Config) { c.Drive.RateDelay = -time.Second }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("unknown"))
}

func TestGlobalConfig(t *testing.T) {
	Set(nil)
	_, err := Get()
	assert.Error(t, err)

	cfg := New()
	Set(cfg)
	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
