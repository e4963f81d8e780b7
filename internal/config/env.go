package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables.
// An optional .env file is loaded first: the path given by ENV_FILE_PATH if
// set, otherwise .env in the current directory if present. Real environment
// variables win over the file.
func LoadFromEnv() (*Config, error) {
	cfg := New()

	if envFilePath := getEnvString("ENV_FILE_PATH", ""); envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, err
		}
	} else {
		_ = godotenv.Load() // Ignore errors if file doesn't exist
	}

	cfg.Spreadsheet = SpreadsheetConfig{
		ID:           getEnvString("DRIVESHARE_SPREADSHEET_ID", ""),
		SheetName:    getEnvString("DRIVESHARE_SHEET_NAME", ""),
		StatusColumn: getEnvString("DRIVESHARE_STATUS_COLUMN", "I"),
		LogColumn:    getEnvString("DRIVESHARE_LOG_COLUMN", "J"),
	}

	cfg.Drive = DriveConfig{
		DriveBaseURL:        getEnvString("DRIVESHARE_DRIVE_BASE_URL", "https://www.googleapis.com/drive/v3"),
		SheetsBaseURL:       getEnvString("DRIVESHARE_SHEETS_BASE_URL", "https://sheets.googleapis.com/v4"),
		CredentialsFile:     getEnvString("DRIVESHARE_CREDENTIALS_FILE", "credentials.json"),
		Timeout:             getEnvDuration("DRIVESHARE_REQUEST_TIMEOUT", 30*time.Second),
		RateDelay:           getEnvDuration("DRIVESHARE_RATE_DELAY", 100*time.Millisecond),
		MaxIdleConns:        getEnvInt("DRIVESHARE_MAX_IDLE_CONNS", 100),
		MaxIdleConnsPerHost: getEnvInt("DRIVESHARE_MAX_IDLE_CONNS_PER_HOST", 100),
		IdleConnTimeout:     getEnvDuration("DRIVESHARE_IDLE_CONN_TIMEOUT", 90*time.Second),
	}

	cfg.Engine = EngineConfig{
		WorkerCount:        getEnvInt("DRIVESHARE_WORKER_COUNT", 16),
		HistoryBatchSize:   getEnvInt("DRIVESHARE_HISTORY_BATCH_SIZE", 10),
		InitTimeout:        getEnvDuration("DRIVESHARE_INIT_TIMEOUT", 10*time.Second),
		FlushMaxRetries:    getEnvInt("DRIVESHARE_FLUSH_MAX_RETRIES", 5),
		FolderMapFile:      getEnvString("DRIVESHARE_FOLDER_MAP_FILE", "folder_map.json"),
		RecipientCacheFile: getEnvString("DRIVESHARE_RECIPIENT_CACHE_FILE", "recipient_cache.json"),
		HistoryFile:        getEnvString("DRIVESHARE_HISTORY_FILE", "share_history.json"),
		ResultsFile:        getEnvString("DRIVESHARE_RESULTS_FILE", "share_results.json"),
		RichOutput:         getEnvBool("DRIVESHARE_RICH_OUTPUT", false),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("DRIVESHARE_LOG_LEVEL", "info"),
		Format:     getEnvString("DRIVESHARE_LOG_FORMAT", "text"),
		Output:     getEnvString("DRIVESHARE_LOG_OUTPUT", "stderr"),
		AddSource:  getEnvBool("DRIVESHARE_LOG_ADD_SOURCE", false),
		TimeFormat: getEnvString("DRIVESHARE_LOG_TIME_FORMAT", time.RFC3339),
	}

	return cfg, nil
}

// getEnvString gets a string from environment variable or returns the default value
func getEnvString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer from environment variable or returns the default value
func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvBool gets a boolean from environment variable or returns the default value
func getEnvBool(key string, defaultValue bool) bool {
	strValue := strings.ToLower(os.Getenv(key))
	if strValue == "" {
		return defaultValue
	}

	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getEnvDuration gets a duration from environment variable or returns the default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}

	return value
}
