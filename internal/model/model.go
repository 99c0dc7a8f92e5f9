package model

import "time"

// RecurrenceKind discriminates how an EventTemplate repeats.
type RecurrenceKind string

const (
	KindLunar       RecurrenceKind = "lunar"
	KindFixedAnnual RecurrenceKind = "fixed-annual"
	KindSeasonal    RecurrenceKind = "seasonal"
	KindOneTime     RecurrenceKind = "one-time"
)

// Descriptor is the recurrence of an EventTemplate. Month and Day are
// interpreted in the Hijri calendar for KindLunar and in the Gregorian
// calendar otherwise; they are unset for KindOneTime. A seasonal
// descriptor may leave them unset to use the built-in almanac table.
type Descriptor struct {
	Kind  RecurrenceKind `json:"kind" yaml:"kind"`
	Month int            `json:"month,omitempty" yaml:"month,omitempty"`
	Day   int            `json:"day,omitempty" yaml:"day,omitempty"`
}

// HasDate reports whether both Month and Day are set.
func (d Descriptor) HasDate() bool {
	return d.Month > 0 && d.Day > 0
}

// Text is a bilingual display string.
type Text struct {
	EN string `json:"en" yaml:"en"`
	AR string `json:"ar" yaml:"ar"`
}

// EventTemplate is the static definition of a recurring real-world
// occasion (public holiday, observance, season).
type EventTemplate struct {
	BaseID   string `json:"base_id"`
	Title    Text   `json:"title"`
	Note     Text   `json:"note"`
	Icon     string `json:"icon"`
	Theme    string `json:"theme"`
	Category string `json:"category"`

	Recurrence Descriptor `json:"recurrence"`

	// TargetDate is the single date of a one-time event and the last known
	// date of every other kind, used when the recurrence cannot be resolved.
	TargetDate time.Time `json:"target_date"`

	// FoundingYear, when set on a fixed-annual template, makes the first
	// number in Note an anniversary count (year - FoundingYear).
	FoundingYear int `json:"founding_year,omitempty"`
}

// EventInstance is one upcoming occurrence of an EventTemplate. Instances
// are rebuilt on every resolution pass and never persisted.
type EventInstance struct {
	// ID is "{BaseID}-{gregorian year}".
	ID string `json:"id"`

	BaseID   string `json:"base_id"`
	Title    Text   `json:"title"`
	Note     Text   `json:"note"`
	Icon     string `json:"icon"`
	Theme    string `json:"theme"`
	Category string `json:"category"`

	Kind       RecurrenceKind `json:"kind"`
	TargetDate time.Time      `json:"target_date"`

	// HijriYear is the Hijri year of TargetDate for lunar events.
	HijriYear int `json:"hijri_year,omitempty"`
}

// RecurrenceType is the user-facing repeat rule of a countdown.
type RecurrenceType string

const (
	RecurrenceSalary  RecurrenceType = "salary"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

type CalendarType string

const (
	CalendarGregorian CalendarType = "gregorian"
	CalendarHijri     CalendarType = "hijri"
)

type AdjustmentRule string

const (
	// AdjustSmart moves Friday targets to Thursday and Saturday targets to Sunday.
	AdjustSmart AdjustmentRule = "smart"
	AdjustNone  AdjustmentRule = "none"
)

// RecurrenceSettings describes how a user countdown repeats.
type RecurrenceSettings struct {
	Type           RecurrenceType `json:"type"`
	CalendarType   CalendarType   `json:"calendar_type"`
	DayOfMonth     int            `json:"day_of_month"`
	AdjustmentRule AdjustmentRule `json:"adjustment_rule"`

	// DayOfWeek is required for weekly recurrences.
	DayOfWeek *time.Weekday `json:"day_of_week,omitempty"`

	// Month pins a yearly recurrence to a month of the configured calendar.
	// Zero means the month current at resolution time.
	Month int `json:"month,omitempty"`

	// LastAutoAdvanced is set whenever the target is rewritten automatically.
	LastAutoAdvanced *time.Time `json:"last_auto_advanced,omitempty"`
}

// Countdown is a user-owned countdown record as held by the store.
type Countdown struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	TargetDate time.Time `json:"target_date"`

	IsRecurring bool                `json:"is_recurring"`
	Recurrence  *RecurrenceSettings `json:"recurrence,omitempty"`

	// ReminderTiming lists offsets before TargetDate at which an external
	// notification scheduler should alert.
	ReminderTiming []time.Duration `json:"reminder_timing,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share recurrence pointers.
func (c Countdown) Clone() Countdown {
	out := c
	if c.Recurrence != nil {
		r := *c.Recurrence
		if r.DayOfWeek != nil {
			dow := *r.DayOfWeek
			r.DayOfWeek = &dow
		}
		if r.LastAutoAdvanced != nil {
			ts := *r.LastAutoAdvanced
			r.LastAutoAdvanced = &ts
		}
		out.Recurrence = &r
	}
	if c.ReminderTiming != nil {
		out.ReminderTiming = append([]time.Duration(nil), c.ReminderTiming...)
	}
	return out
}
