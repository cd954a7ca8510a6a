package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port      string
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string
	DataDir     string

	// SQLite
	SQLiteDBPath string

	// SQL Server / Postgres
	DatabaseServer   string
	DatabasePort     int
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseMaxConns int
	SourceTable      string
	QueryTimeout     time.Duration

	// Sessions
	SessionStore     string
	SessionTTL       time.Duration
	SessionCacheSize int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// Rate limiting of POST actions
	RateLimitRPS   float64
	RateLimitBurst int

	// Cookies and proxies
	SecureCookies  bool
	TrustedProxies []string

	// AMQP (optional comparison events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets (worker history export)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker backfill of runs recorded in SQLite; zero disables the ticker
	HistoryBackfillInterval time.Duration
}

const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendSQLServer = "sqlserver"
)

var (
	validBackends      = []string{BackendMemory, BackendSQLite, BackendPostgres, BackendSQLServer}
	validSessionStores = []string{"memory", "redis"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validLogFormats    = []string{"text", "json"}
	tableIdent         = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

func Load() *Config {
	backend := strings.ToLower(getEnv("DATA_BACKEND", BackendMemory))

	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		DataBackend: backend,
		DataDir:     getEnv("DATA_DIR", "./data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/comparativo.db"),

		DatabaseServer:   getEnv("DATABASE_SERVER", ""),
		DatabasePort:     getEnvInt("DATABASE_PORT", defaultPort(backend)),
		DatabaseName:     getEnv("DATABASE_NAME", ""),
		DatabaseUser:     getEnv("DATABASE_USER", ""),
		DatabasePassword: getEnv("DATABASE_PASSWORD", ""),
		DatabaseMaxConns: getEnvInt("DATABASE_MAX_CONNS", 10),
		SourceTable:      getEnv("SOURCE_TABLE", defaultTable(backend)),
		QueryTimeout:     getEnvDuration("QUERY_TIMEOUT", 60*time.Second),

		SessionStore:     strings.ToLower(getEnv("SESSION_STORE", "memory")),
		SessionTTL:       getEnvDuration("SESSION_TTL", 2*time.Hour),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 256),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		SecureCookies:  getEnvBool("SECURE_COOKIES", false),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "comparativo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "comparisons"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Historial"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		HistoryBackfillInterval: getEnvDuration("HISTORY_BACKFILL_INTERVAL", time.Hour),
	}

	return cfg
}

func defaultTable(backend string) string {
	if backend == BackendSQLServer {
		return "dbo.Historico_Asignaciones"
	}
	return "Historico_Asignaciones"
}

func defaultPort(backend string) int {
	switch backend {
	case BackendPostgres:
		return 5432
	case BackendSQLServer:
		return 1433
	}
	return 0
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Validate data backend
	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case BackendPostgres, BackendSQLServer:
		if c.DatabaseServer == "" {
			errors = append(errors, fmt.Sprintf("DATABASE_SERVER is required when using %s backend", c.DataBackend))
		}
		if c.DatabaseName == "" {
			errors = append(errors, fmt.Sprintf("DATABASE_NAME is required when using %s backend", c.DataBackend))
		}
		if c.DatabaseUser == "" {
			errors = append(errors, fmt.Sprintf("DATABASE_USER is required when using %s backend", c.DataBackend))
		}
		if c.DatabasePort < 1 || c.DatabasePort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid database port %d: must be between 1 and 65535", c.DatabasePort))
		}
		if c.DatabaseMaxConns < 1 {
			errors = append(errors, fmt.Sprintf("invalid database max conns %d: must be at least 1", c.DatabaseMaxConns))
		}
	}

	if !tableIdent.MatchString(c.SourceTable) {
		errors = append(errors, fmt.Sprintf("invalid source table '%s': must be [schema.]table with letters, digits and underscores", c.SourceTable))
	}

	if c.QueryTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid query timeout %v: must be at least 1 second", c.QueryTimeout))
	} else if c.QueryTimeout > 30*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid query timeout %v: must be at most 30 minutes", c.QueryTimeout))
	}

	// Validate session store
	if !contains(validSessionStores, c.SessionStore) {
		errors = append(errors, fmt.Sprintf("invalid session store '%s': must be one of %v", c.SessionStore, validSessionStores))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionStore == "memory" && c.SessionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid session cache size %d: must be at least 1", c.SessionCacheSize))
	}
	if c.SessionStore == "redis" && c.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR is required when using redis session store")
	}

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the history worker needs on top of
// Validate.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for the worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for the worker")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
