package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"eventai/internal/ics"
	"eventai/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
)

// CalendarClient publishes generated events to a Google Calendar.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
	location   *time.Location
}

// NewClient creates a new Google Calendar client.
// It handles loading credentials and setting up an authenticated HTTP client.
// The accountName selects the token file written by the auth command
// (token-<account>.json).
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName, calendarID string, loc *time.Location) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(TokenFile(accountName))
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return newCalendarClient(service, logger, calendarID, loc), nil
}

func newCalendarClient(service *calendar.Service, logger *slog.Logger, calendarID string, loc *time.Location) *CalendarClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	return &CalendarClient{service: service, logger: logger, calendarID: calendarID, location: loc}
}

// Name identifies the publisher in logs and errors.
func (c *CalendarClient) Name() string {
	return "google"
}

// Publish imports the first event of icsText into the configured calendar.
// Import keeps the iCalendar UID, so publishing the same text twice updates
// the same event.
func (c *CalendarClient) Publish(ctx context.Context, icsText string) error {
	cal, err := ics.Decode(icsText)
	if err != nil {
		return err
	}
	if _, err := ics.Prepare(cal); err != nil {
		return err
	}
	event, err := ics.FirstEvent(cal, c.location)
	if err != nil {
		return err
	}

	created, err := c.service.Events.Import(c.calendarID, c.toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to import event: %w", err)
	}
	c.logger.Info("Successfully imported event into Google Calendar", "title", event.Title, "calendarID", c.calendarID, "link", created.HtmlLink)
	return nil
}

// toGoogleEvent converts the internal Event model to the Google API shape.
func (c *CalendarClient) toGoogleEvent(event *models.Event) *calendar.Event {
	out := &calendar.Event{
		ICalUID:     event.UID,
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
	}
	if event.AllDay {
		out.Start = &calendar.EventDateTime{Date: event.StartTime.Format(time.DateOnly)}
		out.End = &calendar.EventDateTime{Date: event.EndTime.Format(time.DateOnly)}
	} else {
		out.Start = &calendar.EventDateTime{DateTime: event.StartTime.Format(time.RFC3339)}
		out.End = &calendar.EventDateTime{DateTime: event.EndTime.Format(time.RFC3339)}
	}
	out.Reminders = toGoogleReminders(event.Reminders)
	return out
}

// maxReminderMinutes is the largest lead time the API accepts (four weeks).
const maxReminderMinutes = 40320

// toGoogleReminders maps alarm lead times to popup overrides. The calendar's
// default reminders are never applied: an event without alarms was generated
// without a reminder and is imported without one. Alarms after the start
// and beyond the API limit are dropped, as is anything past the fifth.
func toGoogleReminders(leads []time.Duration) *calendar.EventReminders {
	reminders := &calendar.EventReminders{
		UseDefault:      false,
		ForceSendFields: []string{"UseDefault"},
	}
	for _, lead := range leads {
		minutes := int64(lead / time.Minute)
		if lead < 0 || minutes > maxReminderMinutes {
			continue
		}
		if len(reminders.Overrides) == 5 {
			break
		}
		reminders.Overrides = append(reminders.Overrides, &calendar.EventReminder{
			Method:          "popup",
			Minutes:         minutes,
			ForceSendFields: []string{"Minutes"},
		})
	}
	return reminders
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFile is where the token for accountName is stored.
func TokenFile(accountName string) string {
	return "token-" + accountName + ".json"
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// DiscoverGoogleCalendars lists the calendars of the authenticated account
// that events can be published to.
func (c *CalendarClient) DiscoverGoogleCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
	list, err := c.service.CalendarList.List().MinAccessRole("writer").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return list.Items, nil
}
