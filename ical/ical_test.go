package ical

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/desklink/db"
)

func TestTriggerRoundTrip(t *testing.T) {
	for _, m := range []uint32{0, 5, 15, 30, 60, 120, 1440, 2880, 10080} {
		trigger, ok := TriggerFromMinutes(m)
		if !ok {
			t.Fatalf("TriggerFromMinutes(%d) not supported", m)
		}
		got, ok := MinutesFromTrigger(trigger)
		if !ok || got != m {
			t.Errorf("MinutesFromTrigger(%q) = %d, %v, want %d", trigger, got, ok, m)
		}
	}
	if _, ok := TriggerFromMinutes(db.ReminderNever); ok {
		t.Error("ReminderNever must not render a trigger")
	}
}

func TestMinutesFromTrigger(t *testing.T) {
	tests := []struct {
		trigger string
		want    uint32
		ok      bool
	}{
		{"-PT15M", 15, true},
		{"-PT60M", 60, true},
		{"-PT24H", 1440, true},
		{"-P7D", 10080, true},
		{"-P1W", 10080, true},
		{"PT0M", 0, true},
		{"-PT0M", 0, true},
		{"PT15M", 0, false},
		{"-PT7M", 0, false},
		{"-P1H", 0, false},
		{"-PT1D", 0, false},
		{"-PT", 0, false},
		{"PT", 0, false},
		{"+PT", 0, false},
		{"+PT0M", 0, true},
		{"-P", 0, false},
		{"-P1DT", 0, false},
		{"-PT0H", 0, true},
		{"15M", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.trigger, func(t *testing.T) {
			got, ok := MinutesFromTrigger(tt.trigger)
			if ok != tt.ok || got != tt.want {
				t.Errorf("MinutesFromTrigger(%q) = %d, %v, want %d, %v", tt.trigger, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFromRecord(t *testing.T) {
	r := db.Event{
		UID:             "ev-1@desk",
		Title:           "Dentist",
		Start:           time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC),
		End:             time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC),
		Repeat:          db.RepeatBiweekly,
		ReminderMinutes: 60,
		ProviderType:    "google",
		ProviderID:      "cal-1",
		ProviderICalUID: "abc",
	}

	e := FromRecord(r)
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"UID":"ev-1@desk","SUMMARY":"Dentist","DTSTART":"20240510T143000","DTEND":"20240510T150000",` +
		`"RRULE":{"FREQ":"WEEKLY","COUNT":4,"INTERVAL":2},"VALARM":{"ACTION":"DISPLAY","TRIGGER":"-PT1H"},` +
		`"provider":{"type":"google","id":"cal-1","iCalUid":"abc"}}`
	if string(b) != want {
		t.Errorf("json = %s\nwant   %s", b, want)
	}
}

func TestRepeatMapping(t *testing.T) {
	tests := []struct {
		repeat   db.Repeat
		freq     string
		count    uint32
		interval uint32
	}{
		{db.RepeatDaily, FreqDaily, 7, 1},
		{db.RepeatWeekly, FreqWeekly, 4, 1},
		{db.RepeatBiweekly, FreqWeekly, 4, 2},
		{db.RepeatMonthly, FreqMonthly, 12, 1},
		{db.RepeatYearly, FreqYearly, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.freq, func(t *testing.T) {
			rule := rruleFrom(tt.repeat)
			if rule == nil || rule.Freq != tt.freq || rule.Count != tt.count || rule.Interval != tt.interval {
				t.Fatalf("rruleFrom(%d) = %+v", tt.repeat, rule)
			}
			back, err := repeatFrom(rule)
			if err != nil || back != tt.repeat {
				t.Errorf("repeatFrom(%+v) = %d, %v, want %d", rule, back, err, tt.repeat)
			}
		})
	}
	if rruleFrom(db.RepeatNever) != nil {
		t.Error("RepeatNever should have no RRULE")
	}
}

func TestRecord_Valid(t *testing.T) {
	e := Event{
		UID:     "abc-123",
		Summary: "Standup",
		DTStart: "20240102T090000",
		DTEnd:   "20240102T091500",
		RRule:   &RRule{Freq: FreqDaily, Count: 7, Interval: 1},
		VAlarm:  &Alarm{Action: ActionDisplay, Trigger: "-PT5M"},
	}
	r, err := e.Record()
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if r.Repeat != db.RepeatDaily || r.ReminderMinutes != 5 {
		t.Errorf("Repeat/Reminder = %d/%d, want daily/5", r.Repeat, r.ReminderMinutes)
	}
	if !r.Start.Equal(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", r.Start)
	}

	noAlarm := e
	noAlarm.VAlarm = nil
	noAlarm.RRule = nil
	r, err = noAlarm.Record()
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if r.ReminderMinutes != db.ReminderNever || r.Repeat != db.RepeatNever {
		t.Errorf("Repeat/Reminder = %d/%d, want never/never", r.Repeat, r.ReminderMinutes)
	}
}

func TestRecord_Invalid(t *testing.T) {
	valid := Event{UID: "u1", DTStart: "20240102T090000", DTEnd: "20240102T100000"}

	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"empty uid", func(e *Event) { e.UID = "" }},
		{"uid with space", func(e *Event) { e.UID = "a b" }},
		{"bad start", func(e *Event) { e.DTStart = "2024-01-02 09:00" }},
		{"bad end", func(e *Event) { e.DTEnd = "x" }},
		{"end before start", func(e *Event) { e.DTEnd = "20240101T090000" }},
		{"bad freq", func(e *Event) { e.RRule = &RRule{Freq: "HOURLY"} }},
		{"weekly interval 3", func(e *Event) { e.RRule = &RRule{Freq: FreqWeekly, Interval: 3} }},
		{"bad trigger", func(e *Event) { e.VAlarm = &Alarm{Action: ActionDisplay, Trigger: "-PT7M"} }},
		{"bad action", func(e *Event) { e.VAlarm = &Alarm{Action: "EMAIL", Trigger: "-PT5M"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if _, err := e.Record(); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Record() err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}
