// Package recurrence resolves the next occurrence of event descriptors
// (lunar, fixed-annual, seasonal) and of user countdown rules (salary,
// monthly, daily, weekly, yearly).
//
// Every function here is pure: the reference instant is always passed in
// and results are expressed in its location.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"countdown/internal/model"
)

var (
	ErrMissingFields    = errors.New("recurrence month/day missing")
	ErrInvalidDate      = errors.New("recurrence month/day out of range")
	ErrMissingDayOfWeek = errors.New("weekly recurrence without day of week")
	ErrUnknownKind      = errors.New("unknown recurrence kind")
	ErrUnknownType      = errors.New("unknown recurrence type")
	ErrUnknownCalendar  = errors.New("unknown calendar type")
	ErrNotRecurring     = errors.New("one-time descriptor does not recur")
)

// NextOccurrence returns the first occurrence of d strictly after ref, at
// 00:00:00 in ref's location. Occurrences are searched in the current
// year of the descriptor's calendar and the next one only.
func NextOccurrence(d model.Descriptor, ref time.Time) (time.Time, error) {
	switch d.Kind {
	case model.KindLunar:
		if err := validateDescriptor(d); err != nil {
			return time.Time{}, err
		}
		return nextAnnual(hijriCalendar{}, d.Month, d.Day, ref), nil
	case model.KindFixedAnnual, model.KindSeasonal:
		if err := validateDescriptor(d); err != nil {
			return time.Time{}, err
		}
		return nextAnnual(gregorianCalendar{}, d.Month, d.Day, ref), nil
	case model.KindOneTime:
		return time.Time{}, ErrNotRecurring
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
}

func validateDescriptor(d model.Descriptor) error {
	if !d.HasDate() {
		return fmt.Errorf("%w: %s month=%d day=%d", ErrMissingFields, d.Kind, d.Month, d.Day)
	}
	if d.Month > 12 || d.Day > 31 {
		return fmt.Errorf("%w: %s month=%d day=%d", ErrInvalidDate, d.Kind, d.Month, d.Day)
	}
	return nil
}

func nextAnnual(cal calendarSystem, month, day int, ref time.Time) time.Time {
	year, _, _ := cal.date(ref)
	candidate := clampedMidnight(cal, year, month, day, ref.Location())
	if !candidate.After(ref) {
		candidate = clampedMidnight(cal, year+1, month, day, ref.Location())
	}
	return candidate
}
