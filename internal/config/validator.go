package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "import.watchDirs[0]")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

func (r *ValidationResult) add(issues []ConfigValidationError) {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			r.Errors = append(r.Errors, issue)
		} else {
			r.Warnings = append(r.Warnings, issue)
		}
	}
}

// ValidateConfig checks the environment-dependent parts of the configuration
// (paths, suspicious limits) and returns all findings. Structural errors are
// reported by Configuration.Validate.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}
	result.add(ValidatePaths(cfg))
	result.add(ValidateLimits(cfg))
	result.Valid = len(result.Errors) == 0
	return result
}

// ValidatePaths checks that watch directories exist and the audit directory
// can be created.
func ValidatePaths(cfg *Configuration) []ConfigValidationError {
	var issues []ConfigValidationError

	for i, dir := range cfg.Import.WatchDirs {
		field := formatField("import.watchDirs", i)
		info, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			issues = append(issues, ConfigValidationError{Field: field, Message: "directory does not exist: " + dir, Severity: SeverityError})
		case os.IsPermission(err):
			issues = append(issues, ConfigValidationError{Field: field, Message: "directory is not accessible: " + dir, Severity: SeverityError})
		case err != nil:
			issues = append(issues, ConfigValidationError{Field: field, Message: "error accessing directory: " + err.Error(), Severity: SeverityError})
		case !info.IsDir():
			issues = append(issues, ConfigValidationError{Field: field, Message: "path is not a directory: " + dir, Severity: SeverityError})
		}
	}

	if cfg.Audit != nil && cfg.Audit.LogDirectory != "" {
		if issue, ok := checkCreatable("audit.logDirectory", cfg.Audit.LogDirectory); !ok {
			issues = append(issues, issue)
		}
	}

	if cfg.Database.Driver == DriverSQLite && cfg.Database.DSN != "" && !strings.HasPrefix(cfg.Database.DSN, ":memory:") {
		path := strings.TrimPrefix(strings.SplitN(cfg.Database.DSN, "?", 2)[0], "file:")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			issues = append(issues, ConfigValidationError{
				Field:    "database.dsn",
				Message:  "database file does not exist and will be created: " + path,
				Severity: SeverityWarning,
			})
		}
	}

	return issues
}

// checkCreatable accepts an existing directory or one whose nearest existing
// ancestor is a writable directory.
func checkCreatable(field, dir string) (ConfigValidationError, bool) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return ConfigValidationError{Field: field, Message: "path exists but is not a directory: " + dir, Severity: SeverityError}, false
		}
		return ConfigValidationError{}, true
	}
	if !os.IsNotExist(err) {
		return ConfigValidationError{Field: field, Message: "error accessing directory: " + err.Error(), Severity: SeverityError}, false
	}

	parent := filepath.Dir(filepath.Clean(dir))
	for {
		info, err := os.Stat(parent)
		if err == nil {
			if !info.IsDir() {
				return ConfigValidationError{Field: field, Message: "parent path is not a directory: " + parent, Severity: SeverityError}, false
			}
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if !isDirectoryWritable(parent) {
		return ConfigValidationError{Field: field, Message: "parent directory is not writable: " + parent, Severity: SeverityError}, false
	}
	return ConfigValidationError{}, true
}

// ValidateLimits warns about settings that are legal but probably unintended.
func ValidateLimits(cfg *Configuration) []ConfigValidationError {
	var issues []ConfigValidationError

	if cfg.Matcher.Threshold < 0.5 {
		issues = append(issues, ConfigValidationError{
			Field:    "matcher.threshold",
			Message:  "threshold below 0.5 matches most names: " + strconv.FormatFloat(cfg.Matcher.Threshold, 'f', -1, 64),
			Severity: SeverityWarning,
		})
	}
	if cfg.Reconcile.BatchSize > cfg.Reconcile.PageSize {
		issues = append(issues, ConfigValidationError{
			Field:    "reconcile.batchSize",
			Message:  "batch size larger than page size",
			Severity: SeverityWarning,
		})
	}
	if cfg.Search.DefaultLimit > cfg.Search.MaxResults {
		issues = append(issues, ConfigValidationError{
			Field:    "search.defaultLimit",
			Message:  "default limit exceeds maxResults and will be capped",
			Severity: SeverityWarning,
		})
	}
	if cfg.Redis.Enabled && cfg.Search.CacheTTLSeconds <= 0 {
		issues = append(issues, ConfigValidationError{
			Field:    "search.cacheTTLSeconds",
			Message:  "redis is enabled but cache TTL disables caching",
			Severity: SeverityWarning,
		})
	}
	if cfg.Database.Driver == DriverMemory {
		issues = append(issues, ConfigValidationError{
			Field:    "database.driver",
			Message:  "memory driver keeps data only for the life of the process",
			Severity: SeverityWarning,
		})
	}

	return issues
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}

// isDirectoryWritable checks if a directory is writable by attempting to create a temp file.
func isDirectoryWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".psicoapp_write_test")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
