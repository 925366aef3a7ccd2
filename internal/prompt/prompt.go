package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// DefaultText is the built-in instruction sent to the completion endpoint.
const DefaultText = "Create an ics file from the following event description. " +
	"I only need the content of the ics file, no additional characters, no markdown, no ```plaintext. " +
	"Today's date is {{.Date}}. " +
	"My time zone is {{.TimeZone}}. " +
	"The event: {{.Event}}. " +
	"{{if .Reminder}}The reminder: {{.Reminder}}{{else}}No reminder{{end}}"

// Default is the parsed DefaultText.
var Default = mustParse(DefaultText)

// Data holds the values substituted into a prompt template.
type Data struct {
	Date     string // Calendar date, YYYY-MM-DD
	TimeZone string // Local timezone label
	Event    string // Literal event description
	Reminder string // Reminder note, empty for none
}

// Template renders the instruction string for one generation.
type Template struct {
	tmpl *template.Template
}

// New parses a custom prompt template. The template must keep the date,
// timezone, event and reminder values in its output.
func New(text string) (*Template, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	t := &Template{tmpl: tmpl}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

func mustParse(text string) *Template {
	t, err := New(text)
	if err != nil {
		panic(err)
	}
	return t
}

// check renders the template with sentinel values and fails if any of them
// was dropped.
func (t *Template) check() error {
	probe := Data{
		Date:     "1999-12-31",
		TimeZone: "Probe/Zone",
		Event:    "probe event text",
		Reminder: "probe reminder text",
	}
	out, err := t.Render(probe)
	if err != nil {
		return err
	}
	var missing []string
	for name, want := range map[string]string{
		"date":     probe.Date,
		"timezone": probe.TimeZone,
		"event":    probe.Event,
		"reminder": probe.Reminder,
	} {
		if !strings.Contains(out, want) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prompt template does not render: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Render executes the template with d.
func (t *Template) Render(d Data) (string, error) {
	if t == nil || t.tmpl == nil {
		return "", errors.New("prompt template is nil")
	}
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, d); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}

// NewData fills the date and timezone fields from now as seen in loc.
// A nil loc means the time's own location.
func NewData(now time.Time, loc *time.Location, event, reminder string) Data {
	if loc != nil {
		now = now.In(loc)
	}
	return Data{
		Date:     now.Format(time.DateOnly),
		TimeZone: ZoneName(now),
		Event:    event,
		Reminder: reminder,
	}
}

// ZoneName returns the IANA name of t's location when one is known, and the
// zone abbreviation (e.g. "CEST") for the process-local zone.
func ZoneName(t time.Time) string {
	name := t.Location().String()
	if name == "" || name == "Local" {
		abbr, _ := t.Zone()
		return abbr
	}
	return name
}
