package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"countdown/internal/clock"
	appLog "countdown/internal/log"
	"countdown/internal/model"
)

// ErrEmpty is returned for an empty payload.
var ErrEmpty = errors.New("empty ICS body")

// ParseCountdowns converts every VEVENT of an iCalendar payload into a user
// countdown. Targets are expressed in loc; all-day events target 23:59:59
// of their day. RRULEs with a matching user rule (daily, weekly on one day,
// monthly on one day, yearly on one date) become recurring countdowns;
// anything else is imported once with a warning. Events that cannot be read
// are skipped and logged.
func ParseCountdowns(body []byte, loc *time.Location) ([]model.Countdown, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmpty
	}
	if loc == nil {
		loc = clock.Riyadh
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	out := make([]model.Countdown, 0)
	for _, ve := range cal.Events() {
		c, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		out = append(out, c)
	}

	appLog.Info("ics import parsed", "event_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Countdown, error) {
	var out model.Countdown

	out.Title = propValue(ve, ical.ComponentPropertySummary)
	if out.Title == "" {
		out.Title = propValue(ve, ical.ComponentPropertyUniqueId)
	}
	if out.Title == "" {
		return out, errors.New("event has neither SUMMARY nor UID")
	}

	target, allDay, err := eventStart(ve, loc)
	if err != nil {
		return out, err
	}
	out.TargetDate = target
	if allDay {
		out.TargetDate = clock.AtEndOfDay(target)
	}

	raw := propValue(ve, ical.ComponentPropertyRrule)
	rec, err := recurrenceFor(ve, raw, out.TargetDate)
	if err != nil {
		appLog.Warn("ics recurrence not representable, importing once",
			"title", out.Title, "rrule", raw, "err", err)
		return out, nil
	}
	if rec != nil {
		out.IsRecurring = true
		out.Recurrence = rec
	}
	return out, nil
}

// eventStart reads DTSTART. Date-only values are all-day and parsed in loc;
// date-times honor TZID through the library and are converted into loc.
func eventStart(ve *ical.VEvent, loc *time.Location) (time.Time, bool, error) {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil || strings.TrimSpace(prop.Value) == "" {
		return time.Time{}, false, errors.New("missing DTSTART")
	}

	allDay := !strings.Contains(prop.Value, "T")
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	if allDay {
		t, err := parseICSTime(prop.Value, loc)
		return t, true, err
	}

	if start, err := ve.GetStartAt(); err == nil {
		return start.In(loc), false, nil
	}
	t, err := parseICSTime(prop.Value, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.In(loc), false, nil
}

// recurrenceFor maps an RRULE (plus our own X- properties, when the event
// was exported here) onto user recurrence settings. It returns nil for a
// non-recurring event.
func recurrenceFor(ve *ical.VEvent, raw string, target time.Time) (*model.RecurrenceSettings, error) {
	xType := model.RecurrenceType(propValue(ve, propType))
	xCal := model.CalendarType(propValue(ve, propCalendar))
	xAdj := model.AdjustmentRule(propValue(ve, propAdjustment))

	if xCal == model.CalendarHijri {
		// Hijri rules have no RRULE form; the X- properties carry them.
		return hijriRecurrence(ve, xType, xAdj)
	}
	if raw == "" {
		return nil, nil
	}

	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE: %w", err)
	}
	if opt.Interval > 1 || opt.Count > 0 || !opt.Until.IsZero() {
		return nil, errors.New("interval, count and until are not supported")
	}

	rec := &model.RecurrenceSettings{
		CalendarType:   model.CalendarGregorian,
		AdjustmentRule: model.AdjustNone,
	}
	if xAdj != "" {
		rec.AdjustmentRule = xAdj
	}

	switch opt.Freq {
	case rrule.DAILY:
		rec.Type = model.RecurrenceDaily
	case rrule.WEEKLY:
		dow := target.Weekday()
		if len(opt.Byweekday) > 1 {
			return nil, errors.New("weekly rule on more than one day")
		}
		if len(opt.Byweekday) == 1 {
			dow = weekdayOf(opt.Byweekday[0])
		}
		rec.Type = model.RecurrenceWeekly
		rec.DayOfWeek = &dow
	case rrule.MONTHLY:
		day, err := singleDay(opt.Bymonthday, target.Day())
		if err != nil {
			return nil, err
		}
		rec.Type = model.RecurrenceMonthly
		if xType == model.RecurrenceSalary {
			rec.Type = model.RecurrenceSalary
		}
		rec.DayOfMonth = day
	case rrule.YEARLY:
		day, err := singleDay(opt.Bymonthday, target.Day())
		if err != nil {
			return nil, err
		}
		month := int(target.Month())
		if len(opt.Bymonth) > 1 {
			return nil, errors.New("yearly rule on more than one month")
		}
		if len(opt.Bymonth) == 1 {
			month = opt.Bymonth[0]
		}
		rec.Type = model.RecurrenceYearly
		rec.DayOfMonth = day
		rec.Month = month
	default:
		return nil, fmt.Errorf("unsupported frequency %v", opt.Freq)
	}
	return rec, nil
}

func hijriRecurrence(ve *ical.VEvent, typ model.RecurrenceType, adj model.AdjustmentRule) (*model.RecurrenceSettings, error) {
	switch typ {
	case model.RecurrenceSalary, model.RecurrenceMonthly, model.RecurrenceYearly:
	default:
		return nil, fmt.Errorf("hijri calendar with rule %q", typ)
	}
	day, err := atoiProp(ve, propDayOfMonth)
	if err != nil {
		return nil, err
	}
	month := 0
	if typ == model.RecurrenceYearly {
		if month, err = atoiProp(ve, propMonth); err != nil {
			return nil, err
		}
	}
	if adj == "" {
		adj = model.AdjustNone
	}
	return &model.RecurrenceSettings{
		Type:           typ,
		CalendarType:   model.CalendarHijri,
		DayOfMonth:     day,
		Month:          month,
		AdjustmentRule: adj,
	}, nil
}

func singleDay(days []int, fallback int) (int, error) {
	switch {
	case len(days) == 0:
		return fallback, nil
	case len(days) > 1:
		return 0, errors.New("rule on more than one day of month")
	case days[0] < 1:
		return 0, fmt.Errorf("day of month %d not supported", days[0])
	}
	return days[0], nil
}

// weekdayOf converts rrule's Monday-first numbering to time.Weekday.
func weekdayOf(w rrule.Weekday) time.Weekday {
	return time.Weekday((w.Day() + 1) % 7)
}

// parseICSTime parses a basic DATE, DATE-TIME or UTC DATE-TIME value.
// Floating values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
