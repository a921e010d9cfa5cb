// Package config handles configuration loading and validation for psicoapp.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"psicoapp/internal/audit"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidJSON     ConfigErrorType = "INVALID_JSON"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
	WriteFailed     ConfigErrorType = "WRITE_FAILED"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidJSON:
		return fmt.Sprintf("invalid JSON in configuration file: %s", e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	case WriteFailed:
		return fmt.Sprintf("failed to write configuration file %s: %s", e.Path, e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string `json:"driver"` // postgres, sqlite or memory
	DSN      string `json:"dsn"`
	MaxConns int    `json:"maxConns"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type LogConfig struct {
	Level   string `json:"level"`  // debug, info, warn, error
	Format  string `json:"format"` // json or console
	Service string `json:"service"`
}

type TablesConfig struct {
	Patients string `json:"patients"`
	Sessions string `json:"sessions"`
}

type ReconcileConfig struct {
	PageSize  int `json:"pageSize"`
	BatchSize int `json:"batchSize"`
}

type MatcherConfig struct {
	Threshold float64 `json:"threshold"`
}

type ConsolidateConfig struct {
	RecentSessions int `json:"recentSessions"`
}

type SearchConfig struct {
	MinTermLength   int `json:"minTermLength"`
	MaxResults      int `json:"maxResults"`
	DefaultLimit    int `json:"defaultLimit"`
	ChunkSize       int `json:"chunkSize"`
	CacheTTLSeconds int `json:"cacheTTLSeconds"`
	CacheSize       int `json:"cacheSize"` // Entries kept by the in-process cache
}

type ImportConfig struct {
	PatientsSheet   string   `json:"patientsSheet"`
	SessionsSheet   string   `json:"sessionsSheet"`
	PatientBatch    int      `json:"patientBatch"`
	SessionBatch    int      `json:"sessionBatch"`
	WatchDirs       []string `json:"watchDirs,omitempty"`
	WatchPatterns   []string `json:"watchPatterns,omitempty"`
	IgnorePatterns  []string `json:"ignorePatterns,omitempty"`
	DebounceMillis  int      `json:"debounceMillis"`
	StableMillis    int      `json:"stableMillis"`
	ProcessedSuffix string   `json:"processedSuffix"` // Appended to watched files once imported
}

// Configuration holds all settings for psicoapp.
type Configuration struct {
	Database    DatabaseConfig    `json:"database"`
	Redis       RedisConfig       `json:"redis"`
	Log         LogConfig         `json:"log"`
	Tables      TablesConfig      `json:"tables"`
	Reconcile   ReconcileConfig   `json:"reconcile"`
	Matcher     MatcherConfig     `json:"matcher"`
	Consolidate ConsolidateConfig `json:"consolidate"`
	Search      SearchConfig      `json:"search"`
	Import      ImportConfig      `json:"import"`
	Audit       *audit.Config     `json:"audit,omitempty"`
}

// Default returns a configuration backed by the in-memory store.
func Default() *Configuration {
	c := &Configuration{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every zero value with its default.
func (c *Configuration) ApplyDefaults() {
	setString(&c.Database.Driver, DriverMemory)
	setInt(&c.Database.MaxConns, 4)

	setString(&c.Redis.Addr, "localhost:6379")
	setString(&c.Redis.Prefix, "psicoapp:")

	setString(&c.Log.Level, "info")
	setString(&c.Log.Format, "console")
	setString(&c.Log.Service, "psicoapp")

	setString(&c.Tables.Patients, "pacientes")
	setString(&c.Tables.Sessions, "entradas")

	setInt(&c.Reconcile.PageSize, 1000)
	setInt(&c.Reconcile.BatchSize, 200)

	if c.Matcher.Threshold == 0 {
		c.Matcher.Threshold = 0.72
	}
	setInt(&c.Consolidate.RecentSessions, 5)

	setInt(&c.Search.MinTermLength, 2)
	setInt(&c.Search.MaxResults, 120)
	setInt(&c.Search.DefaultLimit, 20)
	setInt(&c.Search.ChunkSize, 200)
	setInt(&c.Search.CacheTTLSeconds, 300)
	setInt(&c.Search.CacheSize, 256)

	setString(&c.Import.PatientsSheet, "dados")
	setString(&c.Import.SessionsSheet, "entradas")
	setInt(&c.Import.PatientBatch, 50)
	setInt(&c.Import.SessionBatch, 100)
	setInt(&c.Import.DebounceMillis, 2000)
	setInt(&c.Import.StableMillis, 1000)
	setString(&c.Import.ProcessedSuffix, ".imported")

	c.ApplyAuditDefaults()
}

// ApplyAuditDefaults ensures the Audit configuration has sensible defaults.
func (c *Configuration) ApplyAuditDefaults() {
	defaults := audit.DefaultConfig()
	if c.Audit == nil {
		c.Audit = &defaults
		return
	}
	if c.Audit.LogDirectory == "" {
		c.Audit.LogDirectory = defaults.LogDirectory
	}
	if c.Audit.RotationSize == 0 {
		c.Audit.RotationSize = defaults.RotationSize
	}
	// RotationPeriod can be empty (no time-based rotation)
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func setInt(field *int, def int) {
	if *field == 0 {
		*field = def
	}
}

// ApplyEnv overrides settings from PSICO_* environment variables.
func (c *Configuration) ApplyEnv() {
	c.Database.Driver = getEnv("PSICO_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("PSICO_DB_DSN", c.Database.DSN)
	c.Database.MaxConns = getEnvInt("PSICO_DB_MAX_CONNS", c.Database.MaxConns)

	c.Redis.Addr = getEnv("PSICO_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("PSICO_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("PSICO_REDIS_DB", c.Redis.DB)
	if v, ok := os.LookupEnv("PSICO_REDIS_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Redis.Enabled = b
		}
	}

	c.Log.Level = getEnv("PSICO_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("PSICO_LOG_FORMAT", c.Log.Format)

	if c.Audit != nil {
		c.Audit.LogDirectory = getEnv("PSICO_AUDIT_DIR", c.Audit.LogDirectory)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Validate checks the settings that would make the application fail.
func (c *Configuration) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("database.dsn is required for driver %q", c.Database.Driver),
			}
		}
	case DriverMemory:
	default:
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("database.driver must be postgres, sqlite or memory, got %q", c.Database.Driver),
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return &ConfigError{Type: ValidationError, Message: "redis.addr is required when redis is enabled"}
	}
	if c.Tables.Patients == "" || c.Tables.Sessions == "" {
		return &ConfigError{Type: ValidationError, Message: "tables.patients and tables.sessions cannot be empty"}
	}
	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 1 {
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("matcher.threshold must be in (0, 1], got %v", c.Matcher.Threshold),
		}
	}

	positives := []struct {
		field string
		value int
	}{
		{"reconcile.pageSize", c.Reconcile.PageSize},
		{"reconcile.batchSize", c.Reconcile.BatchSize},
		{"consolidate.recentSessions", c.Consolidate.RecentSessions},
		{"search.minTermLength", c.Search.MinTermLength},
		{"search.maxResults", c.Search.MaxResults},
		{"search.chunkSize", c.Search.ChunkSize},
		{"import.patientBatch", c.Import.PatientBatch},
		{"import.sessionBatch", c.Import.SessionBatch},
	}
	for _, p := range positives {
		if p.value < 0 {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("%s cannot be negative, got %d", p.field, p.value),
			}
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format),
		}
	}

	return nil
}

// Load reads a configuration file, applies defaults and environment
// overrides, and validates the result.
func Load(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Type: FileNotFound, Path: filePath}
		}
		return nil, &ConfigError{Type: FileNotFound, Path: filePath, Message: err.Error()}
	}

	var config Configuration
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &ConfigError{Type: InvalidJSON, Path: filePath, Message: err.Error()}
	}

	config.ApplyDefaults()
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadOrDefault loads filePath, or returns the default configuration (with
// environment overrides) when the file does not exist.
func LoadOrDefault(filePath string) (*Configuration, error) {
	config, err := Load(filePath)
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Type == FileNotFound && cfgErr.Message == "" {
		config = Default()
		config.ApplyEnv()
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil
	}
	return config, err
}

// Save serializes and writes a configuration to the given path.
func Save(config *Configuration, filePath string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return &ConfigError{Type: InvalidJSON, Message: err.Error()}
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return &ConfigError{Type: WriteFailed, Path: filePath, Message: err.Error()}
	}
	return nil
}
