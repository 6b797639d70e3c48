package config

import (
	"fmt"
	"strings"
)

var knownBackends = map[string]struct{}{
	"openai":     {},
	"local":      {},
	"whispercpp": {},
	"none":       {},
}

var knownLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

var knownLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks configuration invariants after normalization. It collects
// every problem so the operator can fix a broken file in one pass.
func (c *Config) Validate() error {
	var problems []string

	if c.Download.TimeoutSeconds <= 0 {
		problems = append(problems, "download.timeout_seconds must be positive")
	}
	if c.Download.MaxRetries < 0 {
		problems = append(problems, "download.max_retries must not be negative")
	}
	if c.Download.MinFileSize < 0 {
		problems = append(problems, "download.min_file_size must not be negative")
	}

	for _, name := range c.Transcription.BackendOrder {
		if _, ok := knownBackends[name]; !ok {
			problems = append(problems, fmt.Sprintf("transcription.backend_order contains unknown backend %q", name))
		}
	}
	if c.Transcription.TransientRetries < 0 {
		problems = append(problems, "transcription.transient_retries must not be negative")
	}

	if c.Summary.Enabled && strings.TrimSpace(c.Summary.APIKey) == "" {
		problems = append(problems, "summary.api_key is required when summary.enabled is true")
	}
	if c.Summary.MaxTokens <= 0 {
		problems = append(problems, "summary.max_tokens must be positive")
	}

	if c.Workflow.PollInterval <= 0 {
		problems = append(problems, "workflow.poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		problems = append(problems, "workflow.error_retry_interval must be positive")
	}
	if c.Workflow.FetchLimit <= 0 {
		problems = append(problems, "workflow.fetch_limit must be positive")
	}

	if c.Cleanup.TempMaxAgeHours < 0 {
		problems = append(problems, "cleanup.temp_max_age_hours must not be negative")
	}

	if _, ok := knownLogFormats[c.Logging.Format]; !ok {
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	if _, ok := knownLogLevels[c.Logging.Level]; !ok {
		problems = append(problems, fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
