// Package ical maps calendar records to the JSON-shaped iCalendar objects
// exchanged with the desktop.
package ical

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pithecene-io/desklink/db"
)

// DateTimeLayout is the DTSTART/DTEND format (local floating time).
const DateTimeLayout = "20060102T150405"

// ActionDisplay is the only supported VALARM action.
const ActionDisplay = "DISPLAY"

// Recurrence frequencies.
const (
	FreqDaily   = "DAILY"
	FreqWeekly  = "WEEKLY"
	FreqMonthly = "MONTHLY"
	FreqYearly  = "YEARLY"
)

var uidPattern = regexp.MustCompile(`^[A-Za-z0-9._@+-]{1,255}$`)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid calendar event")

// RRule is a recurrence rule.
type RRule struct {
	Freq     string `json:"FREQ"`
	Count    uint32 `json:"COUNT"`
	Interval uint32 `json:"INTERVAL"`
}

// Alarm is a reminder.
type Alarm struct {
	Action  string `json:"ACTION"`
	Trigger string `json:"TRIGGER"`
}

// Provider identifies the calendar an event was synchronised from.
type Provider struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	ICalUID string `json:"iCalUid"`
}

// Event is one calendar event on the wire.
type Event struct {
	UID      string    `json:"UID"`
	Summary  string    `json:"SUMMARY"`
	DTStart  string    `json:"DTSTART"`
	DTEnd    string    `json:"DTEND"`
	RRule    *RRule    `json:"RRULE,omitempty"`
	VAlarm   *Alarm    `json:"VALARM,omitempty"`
	Provider *Provider `json:"provider,omitempty"`
}

// ValidUID reports whether uid has an acceptable shape.
func ValidUID(uid string) bool {
	return uidPattern.MatchString(uid)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}

// FromRecord renders a stored event.
func FromRecord(r db.Event) Event {
	e := Event{
		UID:     r.UID,
		Summary: r.Title,
		DTStart: r.Start.Format(DateTimeLayout),
		DTEnd:   r.End.Format(DateTimeLayout),
		RRule:   rruleFrom(r.Repeat),
	}
	if trigger, ok := TriggerFromMinutes(r.ReminderMinutes); ok {
		e.VAlarm = &Alarm{Action: ActionDisplay, Trigger: trigger}
	}
	if r.ProviderType != "" || r.ProviderID != "" || r.ProviderICalUID != "" {
		e.Provider = &Provider{Type: r.ProviderType, ID: r.ProviderID, ICalUID: r.ProviderICalUID}
	}
	return e
}

// Record validates e and converts it to a stored event.
func (e Event) Record() (db.Event, error) {
	if !ValidUID(e.UID) {
		return db.Event{}, invalid("bad UID %q", e.UID)
	}
	start, err := time.Parse(DateTimeLayout, e.DTStart)
	if err != nil {
		return db.Event{}, invalid("bad DTSTART %q", e.DTStart)
	}
	end, err := time.Parse(DateTimeLayout, e.DTEnd)
	if err != nil {
		return db.Event{}, invalid("bad DTEND %q", e.DTEnd)
	}
	if end.Before(start) {
		return db.Event{}, invalid("DTEND %s before DTSTART %s", e.DTEnd, e.DTStart)
	}
	repeat, err := repeatFrom(e.RRule)
	if err != nil {
		return db.Event{}, err
	}
	reminder := db.ReminderNever
	if e.VAlarm != nil {
		if e.VAlarm.Action != "" && e.VAlarm.Action != ActionDisplay {
			return db.Event{}, invalid("unsupported VALARM action %q", e.VAlarm.Action)
		}
		m, ok := MinutesFromTrigger(e.VAlarm.Trigger)
		if !ok {
			return db.Event{}, invalid("unsupported VALARM trigger %q", e.VAlarm.Trigger)
		}
		reminder = m
	}

	r := db.Event{
		UID:             e.UID,
		Title:           e.Summary,
		Start:           start,
		End:             end,
		Repeat:          repeat,
		ReminderMinutes: reminder,
	}
	if e.Provider != nil {
		r.ProviderType = e.Provider.Type
		r.ProviderID = e.Provider.ID
		r.ProviderICalUID = e.Provider.ICalUID
	}
	return r, nil
}

func rruleFrom(r db.Repeat) *RRule {
	switch r {
	case db.RepeatDaily:
		return &RRule{Freq: FreqDaily, Count: 7, Interval: 1}
	case db.RepeatWeekly:
		return &RRule{Freq: FreqWeekly, Count: 4, Interval: 1}
	case db.RepeatBiweekly:
		return &RRule{Freq: FreqWeekly, Count: 4, Interval: 2}
	case db.RepeatMonthly:
		return &RRule{Freq: FreqMonthly, Count: 12, Interval: 1}
	case db.RepeatYearly:
		return &RRule{Freq: FreqYearly, Count: 4, Interval: 1}
	default:
		return nil
	}
}

func repeatFrom(r *RRule) (db.Repeat, error) {
	if r == nil || r.Freq == "" {
		return db.RepeatNever, nil
	}
	switch r.Freq {
	case FreqDaily:
		return db.RepeatDaily, nil
	case FreqWeekly:
		switch r.Interval {
		case 0, 1:
			return db.RepeatWeekly, nil
		case 2:
			return db.RepeatBiweekly, nil
		default:
			return 0, invalid("weekly interval %d", r.Interval)
		}
	case FreqMonthly:
		return db.RepeatMonthly, nil
	case FreqYearly:
		return db.RepeatYearly, nil
	default:
		return 0, invalid("unsupported FREQ %q", r.Freq)
	}
}
