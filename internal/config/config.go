package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"staytrack/internal/entry"
	"staytrack/internal/storage"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Store    storage.Config
	DataPath string
	LogDir   string
	// RedisURL selects the shared snapshot cache; empty means in-process.
	RedisURL string
	CacheTTL time.Duration
	HTTPAddr string
	PageSize int
	MaxBatch int
	// AsOf pins "today" for reproducible reports; nil means the wall clock.
	AsOf *time.Time
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve data paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}
	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		log.Warn().Err(err).Str("path", dataPath).Msg("Failed to create data directory")
	}

	// 4. Optional fixed reporting date
	var asOf *time.Time
	if v := os.Getenv("AS_OF"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, fmt.Errorf("invalid AS_OF %q: %w", v, err)
		}
		asOf = &t
	}

	cfg := &AppConfig{
		Store: storage.Config{
			Driver:      getEnv("STORE_DRIVER", storage.DriverSQLite),
			DataPath:    dataPath,
			SQLitePath:  getEnv("SQLITE_PATH", filepath.Join(dataPath, "staytrack.db")),
			PostgresURL: getEnv("POSTGRES_URL", ""),
		},
		DataPath: dataPath,
		LogDir:   logDir,
		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		PageSize: getEnvInt("PAGE_SIZE", 200),
		MaxBatch: getEnvInt("MAX_BATCH_SIZE", 1000),
		AsOf:     asOf,
	}

	return cfg, nil
}

// Today is the reporting date: AsOf when pinned, else the current day.
func (c *AppConfig) Today() time.Time {
	if c.AsOf != nil {
		return *c.AsOf
	}
	return entry.Day(time.Now())
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid integer setting")
	}
	return fallback
}
