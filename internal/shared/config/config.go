package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultScanWindow  = 7 * 24 * time.Hour
	defaultScanWorkers = 4
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	RecordStore     string
	BadgerDir       string
	SourceType      string
	LocalSourceDir  string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	GoogleCredsFile string
	GoogleTokenFile string
	GoogleRedirect  string
	TenantsFile     string
	ScanWindow      time.Duration
	ScanWorkers     int
	TempDir         string
	ScheduleMode    string
	ScheduleTZ      string
	DigestS3Prefix  string
	OutboxDir       string
	LogLevel        string
	LogFormat       string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	recordStore := normalizeRecordStore(getEnv("RECORD_STORE", ""), dbURL)

	if env == "production" && recordStore == "postgres" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		RecordStore:     recordStore,
		BadgerDir:       getEnv("BADGER_DIR", "./data/badger"),
		SourceType:      normalizeSourceType(getEnv("SOURCE_TYPE", "local")),
		LocalSourceDir:  getEnv("LOCAL_SOURCE_DIR", "./data/inbox"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		GoogleCredsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		GoogleTokenFile: getEnv("GOOGLE_TOKEN_FILE", "token.json"),
		GoogleRedirect:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/drive/callback"),
		TenantsFile:     getEnv("TENANTS_FILE", ""),
		ScanWindow:      getDuration("SCAN_WINDOW", defaultScanWindow),
		ScanWorkers:     getInt("SCAN_WORKERS", defaultScanWorkers),
		TempDir:         getEnv("TEMP_DIR", os.TempDir()),
		ScheduleMode:    normalizeScheduleMode(getEnv("SCHEDULE_MODE", "weekly")),
		ScheduleTZ:      getEnv("SCHEDULE_TIMEZONE", "UTC"),
		DigestS3Prefix:  getEnv("DIGEST_S3_PREFIX", ""),
		OutboxDir:       getEnv("OUTBOX_DIR", "./data/outbox"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		RateLimitRPS:    getFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:  getInt("RATE_LIMIT_BURST", 5),
	}
}

// Location resolves ScheduleTZ, falling back to UTC.
func (c Config) Location() *time.Location {
	tz := strings.TrimSpace(c.ScheduleTZ)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid number %q, using %v", key, raw, def)
		return def
	}
	return val
}

// getDuration accepts Go durations ("36h") and plain day counts ("7d").
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeSourceType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "drive", "gdrive", "google-drive":
		return "drive"
	default:
		return "local"
	}
}

// normalizeRecordStore defaults to postgres when a database URL is present.
func normalizeRecordStore(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "badger":
		return "badger"
	case "memory":
		return "memory"
	}
	if strings.TrimSpace(dbURL) != "" {
		return "postgres"
	}
	return "memory"
}

func normalizeScheduleMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "test":
		return "test"
	case "none", "off", "disabled":
		return "none"
	default:
		return "weekly"
	}
}
