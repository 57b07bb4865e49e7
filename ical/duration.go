package ical

// Reminder offsets in minutes before the event, and their TRIGGER form.
var triggers = []struct {
	minutes uint32
	trigger string
}{
	{0, "PT0M"},
	{5, "-PT5M"},
	{15, "-PT15M"},
	{30, "-PT30M"},
	{60, "-PT1H"},
	{120, "-PT2H"},
	{1440, "-P1D"},
	{2880, "-P2D"},
	{10080, "-P1W"},
}

// TriggerFromMinutes renders a reminder offset. It returns false for
// ReminderNever and for offsets the device does not offer.
func TriggerFromMinutes(m uint32) (string, bool) {
	for _, t := range triggers {
		if t.minutes == m {
			return t.trigger, true
		}
	}
	return "", false
}

// MinutesFromTrigger parses a TRIGGER duration into a supported offset.
// Equivalent spellings ("-PT60M", "-PT24H", "-P7D") are accepted.
func MinutesFromTrigger(trigger string) (uint32, bool) {
	m, ok := parseDuration(trigger)
	if !ok {
		return 0, false
	}
	for _, t := range triggers {
		if t.minutes == m {
			return m, true
		}
	}
	return 0, false
}

// parseDuration parses the subset of RFC 5545 durations used by reminders:
// an optional sign (only "-" or none, and "+" for zero), "P", then either
// weeks, days, or a "T" part with hours and minutes. The result is the
// absolute number of minutes before the event.
func parseDuration(s string) (uint32, bool) {
	negative := false
	switch {
	case len(s) > 0 && s[0] == '-':
		negative = true
		s = s[1:]
	case len(s) > 0 && s[0] == '+':
		s = s[1:]
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, false
	}
	s = s[1:]

	var total uint32
	inTime := false
	units, timeUnits := 0, 0
	num, digits := uint32(0), 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			num = num*10 + uint32(c-'0')
			digits++
			if digits > 6 {
				return 0, false
			}
			continue
		case c == 'T':
			if inTime || digits != 0 {
				return 0, false
			}
			inTime = true
			continue
		}
		if digits == 0 {
			return 0, false
		}
		switch {
		case !inTime && c == 'W':
			total += num * 7 * 24 * 60
		case !inTime && c == 'D':
			total += num * 24 * 60
		case inTime && c == 'H':
			total += num * 60
		case inTime && c == 'M':
			total += num
		default:
			return 0, false
		}
		units++
		if inTime {
			timeUnits++
		}
		num, digits = 0, 0
	}
	// "P", "PT" and "P1DT" carry no value for their designator.
	if digits != 0 || units == 0 || (inTime && timeUnits == 0) {
		return 0, false
	}
	if total != 0 && !negative {
		// Reminders after the start of the event are not supported.
		return 0, false
	}
	return total, true
}
