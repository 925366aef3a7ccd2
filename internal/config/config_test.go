package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"eventai/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EVENTAI_MODEL", "")
	os.Unsetenv("EVENTAI_MODEL")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-5-mini", cfg.Model)
	assert.Equal(t, "https://caldav.icloud.com/", cfg.CalDAVEndpoint)
	assert.Equal(t, "primary", cfg.GoogleCalendarID)
	assert.Zero(t, cfg.RequestTimeout)
}

func TestLoad_EnvFile(t *testing.T) {
	// Register for restore before godotenv sets them.
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EVENTAI_REQUEST_TIMEOUT", "")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("EVENTAI_REQUEST_TIMEOUT")
	t.Setenv("EVENTAI_MODEL", "gpt-4o-mini")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nOPENAI_API_KEY=sk-from-file\nEVENTAI_MODEL=ignored\nEVENTAI_REQUEST_TIMEOUT=90s\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-file", cfg.OpenAIAPIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model, "existing environment wins over .env")
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestRequireAPIKey(t *testing.T) {
	err := (&Config{}).RequireAPIKey()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLocation(t *testing.T) {
	loc, err := (&Config{}).Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = (&Config{Timezone: "America/New_York"}).Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	_, err = (&Config{Timezone: "Mars/Olympus"}).Location()
	assert.Error(t, err)
}

func TestPromptTemplate(t *testing.T) {
	tmpl, err := (&Config{}).PromptTemplate()
	require.NoError(t, err)
	assert.Same(t, prompt.Default, tmpl)

	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{.Date}} {{.TimeZone}} {{.Event}} {{.Reminder}}"), 0o600))
	tmpl, err = (&Config{PromptFile: path}).PromptTemplate()
	require.NoError(t, err)
	out, err := tmpl.Render(prompt.Data{Date: "d", TimeZone: "z", Event: "e", Reminder: "r"})
	require.NoError(t, err)
	assert.Equal(t, "d z e r", out)

	require.NoError(t, os.WriteFile(path, []byte("just the event: {{.Event}}"), 0o600))
	_, err = (&Config{PromptFile: path}).PromptTemplate()
	assert.Error(t, err)
}

func TestCalDAVEnabled(t *testing.T) {
	assert.False(t, (&Config{CalDAVUsername: "u"}).CalDAVEnabled())
	assert.True(t, (&Config{CalDAVUsername: "u", CalDAVPassword: "p", CalDAVCalendar: "Home"}).CalDAVEnabled())
}
