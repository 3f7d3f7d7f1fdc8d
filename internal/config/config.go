package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	LogLevel    string
	LogDir      string // Empty disables the log file
	LogMaxFiles int

	// Metadata store
	StoreBackend string // postgres | memory
	DatabaseURL  string
	TablePrefix  string

	// Blob store
	BlobBackend string // memory | filesystem | s3 | badger
	BlobFSRoot  string
	BadgerDir   string
	S3          S3Config

	// Change notifications
	NotifyBackend string // log | pg
	NotifyBuffer  int
	NotifyChannel string

	// Identity
	AdminUserIDs []string
}

// S3Config holds the S3 blob store settings
type S3Config struct {
	Region          string
	Bucket          string
	KeyPrefix       string
	Endpoint        string // Custom endpoint for MinIO, Localstack, etc.
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Environment:  env,
		LogLevel:     getEnv("LOG_LEVEL", getDefaultLogLevel(env)),
		LogDir:       getEnv("LOG_DIR", ""),
		LogMaxFiles:  getEnvInt("LOG_MAX_FILES", 10),
		StoreBackend: getEnv("STORE_BACKEND", "postgres"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		TablePrefix:  getTablePrefix(env),
		BlobBackend:  getEnv("BLOB_BACKEND", "filesystem"),
		BlobFSRoot:   getEnv("BLOB_FS_ROOT", "./data/blobs"),
		BadgerDir:    getEnv("BADGER_DIR", "./data/badger"),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			MaxRetries:      getEnvInt("S3_MAX_RETRIES", 10),
		},
		NotifyBackend: getEnv("NOTIFY_BACKEND", "log"),
		NotifyBuffer:  getEnvInt("NOTIFY_BUFFER", DefaultNotifyBuffer),
		NotifyChannel: getEnv("NOTIFY_CHANNEL", "cabinet_events"),
		AdminUserIDs:  splitList(getEnv("ADMIN_USER_IDS", "")),
	}
}

// getDefaultLogLevel returns the default log level based on environment
func getDefaultLogLevel(env string) string {
	if env == "dev" {
		return "debug"
	}
	return "info"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
