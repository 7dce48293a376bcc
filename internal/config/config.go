package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDSN  = "host=localhost user=postgres password=postgres dbname=meatengine port=5432 sslmode=disable"
	defaultCORS = "http://localhost:5173"
)

type Config struct {
	HTTPPort            string
	DatabaseDSN         string
	JWTSecret           string
	CORSOrigins         string
	ReferenceTablesPath string // empty means built-in tables
	Location            *time.Location
	ToleranceBand       float64
	WindowOpen          string // e.g. "Sun 22:00"
	ComplianceCutoff    string // e.g. "Mon 11:00"
	NATSURL             string // empty disables NATS alerts
	LogLevel            string
	LogFormat           string
}

// Load reads the environment, after merging a .env file when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded environment from .env")
	}

	cfg := &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:         getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CORSOrigins:         getEnv("CORS_ALLOWED_ORIGINS", defaultCORS),
		ReferenceTablesPath: getEnv("REFERENCE_TABLES_PATH", ""),
		ToleranceBand:       getEnvFloat("TOLERANCE_BAND", 0.05),
		WindowOpen:          getEnv("WINDOW_OPEN", "Sun 22:00"),
		ComplianceCutoff:    getEnv("COMPLIANCE_CUTOFF", "Mon 11:00"),
		NATSURL:             getEnv("NATS_URL", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
	}

	tz := getEnv("TIMEZONE", "America/Chicago")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("[FATAL] TIMEZONE %q is not a valid IANA zone: %v", tz, err)
	}
	cfg.Location = loc

	if cfg.ToleranceBand < 0 {
		log.Fatalf("[FATAL] TOLERANCE_BAND must not be negative, got %v", cfg.ToleranceBand)
	}
	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production.")
	}

	return cfg
}

// RequireServerSecrets stops the process when settings only the HTTP server
// needs are missing or weak.
func (c *Config) RequireServerSecrets() {
	if c.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set, it is required to run the server.")
	}
	if len(c.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters.")
	}
	if c.CORSOrigins == defaultCORS {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production.")
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("[FATAL] %s must be a number, got %q", key, v)
	}
	return f
}
