package config

import (
	"os"
	"strconv"
)

// Storage backends for annotation snapshots
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	JWTSecret       string // HS256 secret, used when no JWKS URL is configured
	DatabaseURL     string
	CORSOrigins     string
	TablePrefix     string
	// Storage selects the snapshot backend: postgres, sqlite or memory
	Storage    string
	SQLitePath string
	// Logging
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool // Enables debug-level logging
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	databaseURL := getEnv("DATABASE_URL", getEnv("SUPABASE_DB_URL", ""))

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseJWKSURL: jwksURL,
		JWTSecret:       getEnv("SUPABASE_JWT_SECRET", ""),
		DatabaseURL:     databaseURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		Storage:         getEnv("STORAGE", defaultStorage(databaseURL)),
		SQLitePath:      getEnv("SQLITE_PATH", "marginalia.db"),
		LogDir:          getEnv("LOG_DIR", ""),
		LogMaxFiles:     getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// defaultStorage picks postgres when a database is configured, memory otherwise
func defaultStorage(databaseURL string) string {
	if databaseURL != "" {
		return StoragePostgres
	}
	return StorageMemory
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
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
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
