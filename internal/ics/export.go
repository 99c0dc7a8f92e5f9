// Package ics converts between iCalendar payloads and the engine's types:
// upcoming event instances and user countdowns are exported as a
// VCALENDAR, and VEVENTs can be imported as countdowns.
package ics

import (
	"fmt"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"countdown/internal/model"
)

const productID = "-//countdown//countdown engine//EN"

// Non-standard properties carrying what RRULE cannot express.
var (
	propType       = ical.ComponentProperty("X-COUNTDOWN-TYPE")
	propCalendar   = ical.ComponentProperty("X-COUNTDOWN-CALENDAR")
	propAdjustment = ical.ComponentProperty("X-COUNTDOWN-ADJUSTMENT")
	propDayOfMonth = ical.ComponentProperty("X-COUNTDOWN-DAY-OF-MONTH")
	propMonth      = ical.ComponentProperty("X-COUNTDOWN-MONTH")
	propTitleAR    = ical.ComponentProperty("X-COUNTDOWN-TITLE-AR")
)

var rruleWeekdays = [7]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Export renders instances as all-day events and countdowns as timed
// events stamped with now. Gregorian countdown rules are written as RRULEs;
// every countdown rule is also kept in X-COUNTDOWN-* properties so
// ParseCountdowns can restore it, including Hijri rules.
func Export(instances []model.EventInstance, countdowns []model.Countdown, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Countdowns")

	for _, in := range instances {
		ve := cal.AddEvent(in.ID + "@countdown")
		ve.SetDtStampTime(now)
		ve.SetAllDayStartAt(in.TargetDate)
		ve.SetAllDayEndAt(in.TargetDate.AddDate(0, 0, 1))
		ve.SetSummary(in.Title.EN)
		if in.Title.AR != "" {
			ve.SetProperty(propTitleAR, in.Title.AR)
		}
		if in.Note.EN != "" {
			ve.SetDescription(in.Note.EN)
		}
		if in.Category != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, in.Category)
		}
	}

	for _, c := range countdowns {
		ve := cal.AddEvent(c.ID + "@countdown")
		ve.SetDtStampTime(now)
		if !c.CreatedAt.IsZero() {
			ve.SetCreatedTime(c.CreatedAt)
		}
		if !c.UpdatedAt.IsZero() {
			ve.SetModifiedAt(c.UpdatedAt)
		}
		ve.SetStartAt(c.TargetDate)
		ve.SetSummary(c.Title)

		if c.IsRecurring && c.Recurrence != nil {
			setRecurrence(ve, *c.Recurrence)
		}
	}

	return cal.Serialize()
}

func setRecurrence(ve *ical.VEvent, r model.RecurrenceSettings) {
	ve.SetProperty(propType, string(r.Type))
	if r.CalendarType != "" {
		ve.SetProperty(propCalendar, string(r.CalendarType))
	}
	if r.AdjustmentRule != "" {
		ve.SetProperty(propAdjustment, string(r.AdjustmentRule))
	}
	if r.DayOfMonth > 0 {
		ve.SetProperty(propDayOfMonth, strconv.Itoa(r.DayOfMonth))
	}
	if r.Month > 0 {
		ve.SetProperty(propMonth, strconv.Itoa(r.Month))
	}

	if r.CalendarType == model.CalendarHijri {
		return
	}
	if opt, ok := rruleFor(r); ok {
		ve.SetProperty(ical.ComponentPropertyRrule, opt.RRuleString())
	}
}

// rruleFor returns the Gregorian RRULE equivalent of r, if there is one.
func rruleFor(r model.RecurrenceSettings) (rrule.ROption, bool) {
	switch r.Type {
	case model.RecurrenceDaily:
		return rrule.ROption{Freq: rrule.DAILY}, true
	case model.RecurrenceWeekly:
		if r.DayOfWeek == nil || *r.DayOfWeek < time.Sunday || *r.DayOfWeek > time.Saturday {
			return rrule.ROption{}, false
		}
		return rrule.ROption{Freq: rrule.WEEKLY, Byweekday: []rrule.Weekday{rruleWeekdays[*r.DayOfWeek]}}, true
	case model.RecurrenceSalary, model.RecurrenceMonthly:
		if r.DayOfMonth < 1 {
			return rrule.ROption{}, false
		}
		return rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{r.DayOfMonth}}, true
	case model.RecurrenceYearly:
		if r.DayOfMonth < 1 {
			return rrule.ROption{}, false
		}
		opt := rrule.ROption{Freq: rrule.YEARLY, Bymonthday: []int{r.DayOfMonth}}
		if r.Month > 0 {
			opt.Bymonth = []int{r.Month}
		}
		return opt, true
	}
	return rrule.ROption{}, false
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func atoiProp(ve *ical.VEvent, p ical.ComponentProperty) (int, error) {
	n, err := strconv.Atoi(propValue(ve, p))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", p, err)
	}
	return n, nil
}
