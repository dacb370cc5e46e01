package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "pipeline.poll_interval_ms")
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
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateRuntime()...)
	errors = append(errors, c.validatePipeline()...)
	errors = append(errors, c.validateNodes()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateRuntime() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.Runtime.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "runtime.base_url",
			Value:   c.Runtime.BaseURL,
			Message: "must be an absolute URL",
		})
	}
	if c.Runtime.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.timeout_seconds",
			Value:   c.Runtime.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validatePipeline() []ValidationError {
	var errors []ValidationError

	positive := []struct {
		field string
		value int
	}{
		{"pipeline.poll_interval_ms", c.Pipeline.PollIntervalMs},
		{"pipeline.max_backoff_ms", c.Pipeline.MaxBackoffMs},
		{"pipeline.evict_after_seconds", c.Pipeline.EvictAfterSeconds},
		{"pipeline.janitor_interval_seconds", c.Pipeline.JanitorIntervalSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must be positive",
			})
		}
	}

	// Backoff below the poll interval would never be reached.
	if c.Pipeline.PollIntervalMs > 0 && c.Pipeline.MaxBackoffMs > 0 &&
		c.Pipeline.MaxBackoffMs < c.Pipeline.PollIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_backoff_ms",
			Value:   c.Pipeline.MaxBackoffMs,
			Message: fmt.Sprintf("must be at least pipeline.poll_interval_ms (%d)", c.Pipeline.PollIntervalMs),
		})
	}

	return errors
}

func (c *Config) validateNodes() []ValidationError {
	var errors []ValidationError

	keys := make([]string, 0, len(c.Nodes))
	for k := range c.Nodes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			errors = append(errors, ValidationError{
				Field:   "nodes",
				Value:   key,
				Message: "node type must not be empty",
			})
			continue
		}
		if _, err := glob.Compile(key); err != nil {
			errors = append(errors, ValidationError{
				Field:   "nodes." + key,
				Value:   key,
				Message: fmt.Sprintf("invalid pattern: %v", err),
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
