package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	Spreadsheet SpreadsheetConfig
	Drive       DriveConfig
	Engine      EngineConfig
	Logging     LoggingConfig
}

// SpreadsheetConfig identifies the remote document holding recipient rows
type SpreadsheetConfig struct {
	ID        string // Spreadsheet document id (required)
	SheetName string // Sheet title holding recipient rows (required)

	// Status and log columns written back per processed recipient
	StatusColumn string
	LogColumn    string
}

// DriveConfig holds configuration for the remote Drive/Sheets API client
type DriveConfig struct {
	DriveBaseURL  string // Drive API base URL
	SheetsBaseURL string // Sheets API base URL

	CredentialsFile string // Path to the service account credentials JSON

	Timeout   time.Duration // Per-call request timeout
	RateDelay time.Duration // Minimum delay between remote calls: interval of the client's shared limiter and of each worker's limiter

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// EngineConfig holds configuration for the sharing engine
type EngineConfig struct {
	WorkerCount      int           // Fixed size of the worker pool
	HistoryBatchSize int           // Save history every N outcomes
	InitTimeout      time.Duration // How long to wait for workers to signal ready
	FlushMaxRetries  int           // Exponential backoff attempts for the final cell flush

	FolderMapFile      string // JSON folder display name -> folder id
	RecipientCacheFile string // JSON recipient cache produced by the loader
	HistoryFile        string // Transient resume snapshot
	ResultsFile        string // Final run report

	RichOutput bool // Render the post-run issue table (opt-in, never sniffed from the terminal)
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// New returns a new empty Config
func New() *Config {
	return &Config{}
}

// Validate checks if the configuration is valid. Missing required settings
// are reported together so the operator can fix them in one pass.
func (c *Config) Validate() error {
	var missing []string
	if c.Spreadsheet.ID == "" {
		missing = append(missing, "DRIVESHARE_SPREADSHEET_ID")
	}
	if c.Spreadsheet.SheetName == "" {
		missing = append(missing, "DRIVESHARE_SHEET_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if err := c.validateEngine(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.validateDrive(); err != nil {
		return fmt.Errorf("drive config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Engine.WorkerCount)
	}
	if c.Engine.HistoryBatchSize < 1 {
		return fmt.Errorf("history batch size must be at least 1, got %d", c.Engine.HistoryBatchSize)
	}
	if c.Engine.FolderMapFile == "" {
		return fmt.Errorf("folder map file path is empty")
	}
	if c.Engine.RecipientCacheFile == "" {
		return fmt.Errorf("recipient cache file path is empty")
	}
	return nil
}

func (c *Config) validateDrive() error {
	if c.Drive.DriveBaseURL == "" {
		return fmt.Errorf("drive base URL is empty")
	}
	if c.Drive.SheetsBaseURL == "" {
		return fmt.Errorf("sheets base URL is empty")
	}
	if c.Drive.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Drive.Timeout)
	}
	if c.Drive.RateDelay < 0 {
		return fmt.Errorf("rate delay must not be negative, got %s", c.Drive.RateDelay)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json", "":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
