package models

import "time"

// GenerationRequest is the input collected from the user for one generation.
// It is built fresh for every action and not retained after submission.
type GenerationRequest struct {
	EventText    string // Free-text event description, may be empty
	ReminderText string // Reminder note; empty means no reminder
	ImagePath    string // Optional path to an image sent alongside the prompt
}

// HasImage reports whether an image should be attached to the request.
func (r GenerationRequest) HasImage() bool {
	return r.ImagePath != ""
}

// GenerationResult is either a Success carrying the raw ICS text returned by
// the completion endpoint, or a Failure carrying the error that stopped it.
type GenerationResult struct {
	ICSText string
	Err     error
}

// Success builds a successful result holding text exactly as returned.
func Success(text string) GenerationResult {
	return GenerationResult{ICSText: text}
}

// Failure builds a failed result.
func Failure(err error) GenerationResult {
	return GenerationResult{Err: err}
}

// OK reports whether the result is a Success.
func (r GenerationResult) OK() bool {
	return r.Err == nil
}

// Message returns the human-readable failure description, or "" on success.
func (r GenerationResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Event represents a single calendar event decoded from generated ICS text.
// It is independent of any specific calendar provider and only used when
// publishing directly to a remote calendar.
type Event struct {
	UID         string    // The iCalendar UID
	Title       string    // Summary or title of the event
	Description string    // Detailed description of the event
	Location    string    // Location of the event
	StartTime   time.Time // Start time of the event
	EndTime     time.Time // End time of the event
	AllDay      bool      // DTSTART was a DATE value rather than DATE-TIME

	// Reminders holds, for each VALARM, how long before StartTime it fires.
	// Nil means the event carries no alarm.
	Reminders []time.Duration
}
