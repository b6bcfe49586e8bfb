package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "autoresume.windows")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// windowRegex validates HH:MM resume window strings
var windowRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBundle()...)
	errors = append(errors, c.validateAutoResume()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateBundle() []ValidationError {
	var errors []ValidationError

	if c.Bundle.MaxRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "bundle.max_retries",
			Value:   c.Bundle.MaxRetries,
			Message: "must be at least 1",
		})
	}
	if c.Bundle.RetentionDays < 0 {
		errors = append(errors, ValidationError{
			Field:   "bundle.retention_days",
			Value:   c.Bundle.RetentionDays,
			Message: "must not be negative",
		})
	}

	return errors
}

func (c *Config) validateAutoResume() []ValidationError {
	var errors []ValidationError

	if _, err := time.LoadLocation(c.AutoResume.Timezone); err != nil {
		errors = append(errors, ValidationError{
			Field:   "autoresume.timezone",
			Value:   c.AutoResume.Timezone,
			Message: "must be a valid IANA timezone",
		})
	}

	if len(c.AutoResume.Windows) == 0 {
		errors = append(errors, ValidationError{
			Field:   "autoresume.windows",
			Value:   c.AutoResume.Windows,
			Message: "at least one resume window is required",
		})
	}
	for _, w := range c.AutoResume.Windows {
		if !windowRegex.MatchString(w) {
			errors = append(errors, ValidationError{
				Field:   "autoresume.windows",
				Value:   w,
				Message: "windows must be in HH:MM format",
			})
		}
	}

	if c.AutoResume.WindowSlackMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "autoresume.window_slack_minutes",
			Value:   c.AutoResume.WindowSlackMinutes,
			Message: "must not be negative",
		})
	}
	if c.AutoResume.UrgentAfterHours < 1 {
		errors = append(errors, ValidationError{
			Field:   "autoresume.urgent_after_hours",
			Value:   c.AutoResume.UrgentAfterHours,
			Message: "must be at least 1",
		})
	}
	if c.AutoResume.CommandTimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "autoresume.command_timeout_minutes",
			Value:   c.AutoResume.CommandTimeoutMinutes,
			Message: "must not be negative (0 disables the timeout)",
		})
	}
	if c.AutoResume.LockTimeoutMs < 100 {
		errors = append(errors, ValidationError{
			Field:   "autoresume.lock_timeout_ms",
			Value:   c.AutoResume.LockTimeoutMs,
			Message: "must be at least 100",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
