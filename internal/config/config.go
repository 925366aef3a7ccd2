package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"eventai/internal/prompt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting read from the environment.
type Config struct {
	// Completion endpoint
	OpenAIAPIKey   string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `envconfig:"OPENAI_BASE_URL"`
	Model          string        `envconfig:"EVENTAI_MODEL" default:"gpt-5-mini"`
	Temperature    float32       `envconfig:"EVENTAI_TEMPERATURE"`
	PromptFile     string        `envconfig:"EVENTAI_PROMPT_FILE"`
	RequestTimeout time.Duration `envconfig:"EVENTAI_REQUEST_TIMEOUT"` // 0 waits for the endpoint

	// Local behaviour
	Timezone    string `envconfig:"EVENTAI_TIMEZONE"`
	HandoffPath string `envconfig:"EVENTAI_HANDOFF_PATH"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`

	// CalDAV publisher
	CalDAVEndpoint string `envconfig:"CALDAV_ENDPOINT" default:"https://caldav.icloud.com/"`
	CalDAVUsername string `envconfig:"ICLOUD_USERNAME"`
	CalDAVPassword string `envconfig:"ICLOUD_APP_SPECIFIC_PASSWORD"`
	CalDAVCalendar string `envconfig:"ICLOUD_CALENDAR_NAME"`

	// Google Calendar publisher
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleAccount      string `envconfig:"GOOGLE_ACCOUNT" default:"default"`
	GoogleCalendarID   string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`
}

// Load reads envFiles into the process environment (missing files are
// ignored, existing variables win) and then processes the environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// Location resolves the configured timezone, defaulting to the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// PromptTemplate returns the custom template from PromptFile, or the default.
func (c *Config) PromptTemplate() (*prompt.Template, error) {
	if c.PromptFile == "" {
		return prompt.Default, nil
	}
	data, err := os.ReadFile(c.PromptFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	return prompt.New(string(data))
}

// RequireAPIKey fails when no completion credential is configured.
func (c *Config) RequireAPIKey() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY environment variable not set")
	}
	return nil
}

// CalDAVEnabled reports whether the CalDAV publisher is fully configured.
func (c *Config) CalDAVEnabled() bool {
	return c.CalDAVUsername != "" && c.CalDAVPassword != "" && c.CalDAVCalendar != ""
}
