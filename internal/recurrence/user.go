package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"countdown/internal/clock"
	"countdown/internal/model"
)

// Occurrence is the resolved next target of a user countdown.
type Occurrence struct {
	TargetDate  time.Time
	WasAdjusted bool
	// AdjustedFrom is the candidate before the weekend rule moved it.
	AdjustedFrom *time.Time
}

var rruleWeekdays = [7]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// NextUserOccurrence resolves the next target of a user recurrence after
// ref. Targets are at 23:59:59 in ref's location. The weekend rule applies
// to salary, monthly and yearly rules; daily and weekly rules ignore
// AdjustmentRule because they already name the day the user wants.
// The returned target is never on a civil day before ref's.
func NextUserOccurrence(s model.RecurrenceSettings, ref time.Time) (Occurrence, error) {
	var next func(model.RecurrenceSettings, time.Time) (time.Time, error)

	switch s.Type {
	case model.RecurrenceSalary, model.RecurrenceMonthly:
		next = nextMonthly
	case model.RecurrenceYearly:
		next = nextYearly
	case model.RecurrenceDaily:
		candidate, err := nextDaily(ref)
		if err != nil {
			return Occurrence{}, err
		}
		return Occurrence{TargetDate: candidate}, nil
	case model.RecurrenceWeekly:
		candidate, err := nextWeekly(s, ref)
		if err != nil {
			return Occurrence{}, err
		}
		return Occurrence{TargetDate: candidate}, nil
	default:
		return Occurrence{}, fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
	}

	candidate, err := next(s, ref)
	if err != nil {
		return Occurrence{}, err
	}
	occ := adjusted(candidate, s.AdjustmentRule)

	// A day clamped onto ref's own Friday moves back behind ref; take the
	// following period instead.
	if clock.StartOfDay(occ.TargetDate).Before(clock.StartOfDay(ref)) {
		candidate, err = next(s, clock.StartOfDay(candidate).AddDate(0, 0, 1))
		if err != nil {
			return Occurrence{}, err
		}
		occ = adjusted(candidate, s.AdjustmentRule)
	}
	return occ, nil
}

func adjusted(candidate time.Time, rule model.AdjustmentRule) Occurrence {
	occ := Occurrence{TargetDate: candidate}
	if t, moved := AdjustForWeekend(candidate, rule); moved {
		from := candidate
		occ.TargetDate = t
		occ.WasAdjusted = true
		occ.AdjustedFrom = &from
	}
	return occ
}

// AdjustForWeekend applies the Friday/Saturday weekend rule: with
// AdjustSmart a Friday moves back to Thursday and a Saturday moves forward
// to Sunday. Any other rule leaves t unchanged.
func AdjustForWeekend(t time.Time, rule model.AdjustmentRule) (time.Time, bool) {
	if rule != model.AdjustSmart {
		return t, false
	}
	switch t.Weekday() {
	case time.Friday:
		return t.AddDate(0, 0, -1), true
	case time.Saturday:
		return t.AddDate(0, 0, 1), true
	default:
		return t, false
	}
}

func validDayOfMonth(day int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("%w: day_of_month=%d", ErrInvalidDate, day)
	}
	return nil
}

// nextMonthly rolls to the following month once ref's day has reached the
// configured day, then clamps to the month length.
func nextMonthly(s model.RecurrenceSettings, ref time.Time) (time.Time, error) {
	cal, err := calendarFor(s.CalendarType)
	if err != nil {
		return time.Time{}, err
	}
	if err := validDayOfMonth(s.DayOfMonth); err != nil {
		return time.Time{}, err
	}

	year, month, day := cal.date(ref)
	if day >= s.DayOfMonth {
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return clock.AtEndOfDay(clampedMidnight(cal, year, month, s.DayOfMonth, ref.Location())), nil
}

func nextYearly(s model.RecurrenceSettings, ref time.Time) (time.Time, error) {
	cal, err := calendarFor(s.CalendarType)
	if err != nil {
		return time.Time{}, err
	}
	if err := validDayOfMonth(s.DayOfMonth); err != nil {
		return time.Time{}, err
	}
	if s.Month < 0 || s.Month > 12 {
		return time.Time{}, fmt.Errorf("%w: month=%d", ErrInvalidDate, s.Month)
	}

	year, month, day := cal.date(ref)
	target := s.Month
	if target == 0 {
		target = month
	}
	if month > target || (month == target && day >= s.DayOfMonth) {
		year++
	}
	return clock.AtEndOfDay(clampedMidnight(cal, year, target, s.DayOfMonth, ref.Location())), nil
}

func nextDaily(ref time.Time) (time.Time, error) {
	start := clock.AtEndOfDay(ref)
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("daily rule: %w", err)
	}
	return r.After(start, false), nil
}

// nextWeekly returns the configured weekday strictly after ref's date.
func nextWeekly(s model.RecurrenceSettings, ref time.Time) (time.Time, error) {
	if s.DayOfWeek == nil {
		return time.Time{}, ErrMissingDayOfWeek
	}
	dow := *s.DayOfWeek
	if dow < time.Sunday || dow > time.Saturday {
		return time.Time{}, fmt.Errorf("%w: day_of_week=%d", ErrInvalidDate, dow)
	}

	start := clock.AtEndOfDay(ref)
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Byweekday: []rrule.Weekday{rruleWeekdays[dow]},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("weekly rule: %w", err)
	}
	return r.After(start, false), nil
}
