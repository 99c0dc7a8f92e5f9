package web

import (
	"errors"
	"fmt"
	"time"

	"countdown/internal/clock"
	"countdown/internal/hijri"
	"countdown/internal/model"
)

// Instants on the wire are zone-less reference strings (clock.Layout).

type nowResponse struct {
	Now           string     `json:"now"`
	OffsetMinutes int        `json:"offset_minutes"`
	Hijri         hijri.Date `json:"hijri"`
	EndOfDay      string     `json:"end_of_day"`
}

type hijriResponse struct {
	Gregorian string     `json:"gregorian"`
	Hijri     hijri.Date `json:"hijri"`
}

type eventsResponse struct {
	Now    string        `json:"now"`
	Events []instanceDTO `json:"events"`
}

type instanceDTO struct {
	ID         string               `json:"id"`
	BaseID     string               `json:"base_id"`
	Title      model.Text           `json:"title"`
	Note       model.Text           `json:"note"`
	Icon       string               `json:"icon,omitempty"`
	Theme      string               `json:"theme,omitempty"`
	Category   string               `json:"category,omitempty"`
	Kind       model.RecurrenceKind `json:"kind"`
	TargetDate string               `json:"target_date"`
	HijriYear  int                  `json:"hijri_year,omitempty"`
}

func toInstanceDTO(in model.EventInstance) instanceDTO {
	return instanceDTO{
		ID:         in.ID,
		BaseID:     in.BaseID,
		Title:      in.Title,
		Note:       in.Note,
		Icon:       in.Icon,
		Theme:      in.Theme,
		Category:   in.Category,
		Kind:       in.Kind,
		TargetDate: clock.Format(in.TargetDate),
		HijriYear:  in.HijriYear,
	}
}

type countdownsResponse struct {
	Countdowns []countdownDTO `json:"countdowns"`
}

type importResponse struct {
	Created []countdownDTO `json:"created"`
	Failed  []string       `json:"failed,omitempty"`
}

type recurrenceDTO struct {
	Type             model.RecurrenceType `json:"type"`
	CalendarType     model.CalendarType   `json:"calendar_type,omitempty"`
	DayOfMonth       int                  `json:"day_of_month,omitempty"`
	AdjustmentRule   model.AdjustmentRule `json:"adjustment_rule,omitempty"`
	DayOfWeek        *int                 `json:"day_of_week,omitempty"`
	Month            int                  `json:"month,omitempty"`
	LastAutoAdvanced string               `json:"last_auto_advanced,omitempty"`
}

type countdownDTO struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	TargetDate     string         `json:"target_date"`
	IsRecurring    bool           `json:"is_recurring"`
	Recurrence     *recurrenceDTO `json:"recurrence,omitempty"`
	ReminderTiming []string       `json:"reminder_timing,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

func toCountdownDTO(c model.Countdown) countdownDTO {
	out := countdownDTO{
		ID:          c.ID,
		Title:       c.Title,
		TargetDate:  clock.Format(c.TargetDate),
		IsRecurring: c.IsRecurring,
		CreatedAt:   clock.Format(c.CreatedAt),
		UpdatedAt:   clock.Format(c.UpdatedAt),
	}
	for _, d := range c.ReminderTiming {
		out.ReminderTiming = append(out.ReminderTiming, d.String())
	}
	if r := c.Recurrence; r != nil {
		rd := &recurrenceDTO{
			Type:           r.Type,
			CalendarType:   r.CalendarType,
			DayOfMonth:     r.DayOfMonth,
			AdjustmentRule: r.AdjustmentRule,
			Month:          r.Month,
		}
		if r.DayOfWeek != nil {
			dow := int(*r.DayOfWeek)
			rd.DayOfWeek = &dow
		}
		if r.LastAutoAdvanced != nil {
			rd.LastAutoAdvanced = clock.Format(*r.LastAutoAdvanced)
		}
		out.Recurrence = rd
	}
	return out
}

// countdownRequest is the body of POST /api/countdowns. TargetDate may be
// omitted for recurring countdowns; the first occurrence is then resolved
// from now.
type countdownRequest struct {
	Title          string         `json:"title"`
	TargetDate     string         `json:"target_date"`
	IsRecurring    bool           `json:"is_recurring"`
	Recurrence     *recurrenceDTO `json:"recurrence"`
	ReminderTiming []string       `json:"reminder_timing"`
}

func (req countdownRequest) toCountdown(now time.Time) (model.Countdown, error) {
	if req.Title == "" {
		return model.Countdown{}, errors.New("title is required")
	}
	c := model.Countdown{Title: req.Title, IsRecurring: req.IsRecurring}

	if rd := req.Recurrence; rd != nil {
		r := &model.RecurrenceSettings{
			Type:           rd.Type,
			CalendarType:   rd.CalendarType,
			DayOfMonth:     rd.DayOfMonth,
			AdjustmentRule: rd.AdjustmentRule,
			Month:          rd.Month,
		}
		if r.CalendarType == "" {
			r.CalendarType = model.CalendarGregorian
		}
		if r.AdjustmentRule == "" {
			r.AdjustmentRule = model.AdjustNone
		}
		if rd.DayOfWeek != nil {
			if *rd.DayOfWeek < 0 || *rd.DayOfWeek > 6 {
				return model.Countdown{}, fmt.Errorf("day_of_week %d out of range", *rd.DayOfWeek)
			}
			dow := time.Weekday(*rd.DayOfWeek)
			r.DayOfWeek = &dow
		}
		c.Recurrence = r
	}

	for _, s := range req.ReminderTiming {
		d, err := time.ParseDuration(s)
		if err != nil {
			return model.Countdown{}, fmt.Errorf("reminder_timing %q: %w", s, err)
		}
		c.ReminderTiming = append(c.ReminderTiming, d)
	}

	switch {
	case req.TargetDate != "":
		t, err := clock.Parse(req.TargetDate, now.Location())
		if err != nil {
			return model.Countdown{}, fmt.Errorf("target_date: %w", err)
		}
		c.TargetDate = t
	case c.IsRecurring && c.Recurrence != nil:
		t, err := resolveInitialTarget(*c.Recurrence, now)
		if err != nil {
			return model.Countdown{}, fmt.Errorf("recurrence: %w", err)
		}
		c.TargetDate = t
	default:
		return model.Countdown{}, errors.New("target_date is required")
	}
	return c, nil
}
