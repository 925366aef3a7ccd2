// Package ics reads generated iCalendar text for the remote calendar
// publishers. The local hand-off never goes through here.
package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"eventai/internal/models"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// ProductID is stamped on calendars that arrive without one.
const ProductID = "-//eventai//EN"

// ErrNoEvent is returned when the text holds no VEVENT.
var ErrNoEvent = errors.New("no VEVENT in calendar")

// Decode parses icsText into a calendar.
func Decode(icsText string) (*ical.Calendar, error) {
	cal, err := ical.NewDecoder(strings.NewReader(icsText)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode iCalendar text: %w", err)
	}
	return cal, nil
}

// Prepare fills in the properties a CalDAV server insists on: VERSION and
// PRODID on the calendar, and a UID on every event. It returns the UID of the
// first event.
func Prepare(cal *ical.Calendar) (string, error) {
	if cal.Props.Get(ical.PropVersion) == nil {
		cal.Props.SetText(ical.PropVersion, "2.0")
	}
	if cal.Props.Get(ical.PropProductID) == nil {
		cal.Props.SetText(ical.PropProductID, ProductID)
	}

	first := ""
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		uid, _ := child.Props.Text(ical.PropUID)
		if uid == "" {
			uid = GenerateUID()
			child.Props.SetText(ical.PropUID, uid)
		}
		if first == "" {
			first = uid
		}
	}
	if first == "" {
		return "", ErrNoEvent
	}
	return first, nil
}

// FirstEvent converts the first VEVENT to the internal model. Floating times
// are interpreted in loc.
func FirstEvent(cal *ical.Calendar, loc *time.Location) (*models.Event, error) {
	events := cal.Events()
	if len(events) == 0 {
		return nil, ErrNoEvent
	}
	ev := events[0]

	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return nil, fmt.Errorf("invalid DTSTART: %w", err)
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil {
		return nil, fmt.Errorf("invalid DTEND: %w", err)
	}

	out := &models.Event{StartTime: start, EndTime: end}
	out.UID, _ = ev.Props.Text(ical.PropUID)
	out.Title, _ = ev.Props.Text(ical.PropSummary)
	out.Description, _ = ev.Props.Text(ical.PropDescription)
	out.Location, _ = ev.Props.Text(ical.PropLocation)
	if p := ev.Props.Get(ical.PropDateTimeStart); p != nil && p.ValueType() == ical.ValueDate {
		out.AllDay = true
	}
	if out.EndTime.IsZero() || !out.EndTime.After(out.StartTime) {
		if out.AllDay {
			out.EndTime = out.StartTime.AddDate(0, 0, 1)
		} else {
			out.EndTime = out.StartTime.Add(time.Hour)
		}
	}
	out.Reminders = alarmLeadTimes(ev, out.StartTime, out.EndTime, loc)
	return out, nil
}

// alarmLeadTimes resolves the TRIGGER of every VALARM in ev against the
// event's start. Relative triggers default to RELATED=START; absolute
// triggers are DATE-TIME values. Alarms whose trigger cannot be parsed are
// skipped.
func alarmLeadTimes(ev ical.Event, start, end time.Time, loc *time.Location) []time.Duration {
	var leads []time.Duration
	for _, child := range ev.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		trigger := child.Props.Get(ical.PropTrigger)
		if trigger == nil {
			continue
		}

		var at time.Time
		if trigger.ValueType() == ical.ValueDateTime {
			t, err := trigger.DateTime(loc)
			if err != nil {
				continue
			}
			at = t
		} else {
			d, err := trigger.Duration()
			if err != nil {
				continue
			}
			anchor := start
			if strings.EqualFold(trigger.Params.Get(ical.ParamRelated), "END") {
				anchor = end
			}
			at = anchor.Add(d)
		}
		leads = append(leads, start.Sub(at))
	}
	return leads
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
