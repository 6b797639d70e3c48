package config

import "strings"

const (
	defaultNotesDir = "~/podscribe/notes"
	defaultTempDir  = "~/.local/share/podscribe/tmp"
	defaultDataDir  = "~/.local/share/podscribe"
	defaultLogDir   = "~/.local/share/podscribe/logs"

	defaultDownloadTimeout = 30
	defaultMaxRetries      = 3
	defaultMinFileSize     = 1024
	defaultUserAgent       = "podscribe/1.0"

	defaultLanguage         = "en"
	defaultTransientRetries = 2

	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultOpenAIModel    = "whisper-1"
	defaultOpenAITimeout  = 300
	defaultLocalBinary    = "uvx"
	defaultLocalModel     = "base"
	defaultLocalTimeout   = 1800
	defaultWhisperBinary  = "whisper-cli"
	defaultWhisperTimeout = 1800

	defaultSummaryBaseURL = "https://api.openai.com/v1"
	defaultSummaryModel   = "gpt-4o-mini"
	defaultSummaryTokens  = 1024
	defaultSummaryTimeout = 120

	defaultNtfyTimeout = 10

	defaultPollInterval       = 15
	defaultErrorRetryInterval = 30
	defaultFetchLimit         = 5
	defaultSweepInterval      = 60

	defaultTempMaxAgeHours = 24
)

var defaultAcceptedTypes = []string{"mp3", "m4a", "wav", "ogg", "flac", "aac"}

var defaultBackendOrder = []string{"openai", "local", "whispercpp"}

// Default returns a Config populated with default values. Paths are left in
// tilde form until normalize expands them.
func Default() Config {
	return Config{
		Paths: Paths{
			NotesDir: defaultNotesDir,
			TempDir:  defaultTempDir,
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeout,
			MaxRetries:     defaultMaxRetries,
			MinFileSize:    defaultMinFileSize,
			AcceptedTypes:  append([]string(nil), defaultAcceptedTypes...),
			UserAgent:      defaultUserAgent,
		},
		Transcription: Transcription{
			BackendOrder:     append([]string(nil), defaultBackendOrder...),
			Language:         defaultLanguage,
			TransientRetries: defaultTransientRetries,
			OpenAI: OpenAIBackend{
				BaseURL:        defaultOpenAIBaseURL,
				Model:          defaultOpenAIModel,
				TimeoutSeconds: defaultOpenAITimeout,
			},
			Local: LocalBackend{
				Binary:         defaultLocalBinary,
				Model:          defaultLocalModel,
				TimeoutSeconds: defaultLocalTimeout,
			},
			WhisperCpp: WhisperCppBackend{
				Binary:         defaultWhisperBinary,
				TimeoutSeconds: defaultWhisperTimeout,
			},
		},
		Summary: Summary{
			Enabled:        false,
			Optional:       true,
			BaseURL:        defaultSummaryBaseURL,
			Model:          defaultSummaryModel,
			MaxTokens:      defaultSummaryTokens,
			TimeoutSeconds: defaultSummaryTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			FetchLimit:         defaultFetchLimit,
			SweepInterval:      defaultSweepInterval,
		},
		Cleanup: Cleanup{
			TempMaxAgeHours: defaultTempMaxAgeHours,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// normalize expands paths, lowercases enumerated fields, and fills in any
// values the file left empty.
func (c *Config) normalize() error {
	var err error
	if c.Paths.NotesDir, err = expandPath(orDefault(c.Paths.NotesDir, defaultNotesDir)); err != nil {
		return err
	}
	if c.Paths.TempDir, err = expandPath(orDefault(c.Paths.TempDir, defaultTempDir)); err != nil {
		return err
	}
	if c.Paths.DataDir, err = expandPath(orDefault(c.Paths.DataDir, defaultDataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return err
	}

	if c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent); c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	c.Download.AcceptedTypes = normalizeTypes(c.Download.AcceptedTypes)
	if len(c.Download.AcceptedTypes) == 0 {
		c.Download.AcceptedTypes = append([]string(nil), defaultAcceptedTypes...)
	}

	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultLanguage
	}
	c.Transcription.BackendOrder = normalizeTypes(c.Transcription.BackendOrder)
	if len(c.Transcription.BackendOrder) == 0 {
		c.Transcription.BackendOrder = append([]string(nil), defaultBackendOrder...)
	}
	if c.Transcription.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.OpenAI.BaseURL), "/"); c.Transcription.OpenAI.BaseURL == "" {
		c.Transcription.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	if c.Summary.BaseURL = strings.TrimRight(strings.TrimSpace(c.Summary.BaseURL), "/"); c.Summary.BaseURL == "" {
		c.Summary.BaseURL = defaultSummaryBaseURL
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}

func normalizeTypes(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		value = strings.TrimPrefix(value, ".")
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
