// Package store persists user countdown records behind a small key/value
// contract: get, list, create, update and delete.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"countdown/internal/clock"
	"countdown/internal/model"
)

var (
	ErrNotFound      = errors.New("countdown not found")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrInvalid       = errors.New("invalid countdown")
)

// Store is the persistence contract the engine and API rely on.
//
// Get and Update return (nil, nil) when the record does not exist.
type Store interface {
	Get(ctx context.Context, id string) (*model.Countdown, error)
	List(ctx context.Context) ([]model.Countdown, error)
	Create(ctx context.Context, c model.Countdown) (model.Countdown, error)
	Update(ctx context.Context, id string, patch Patch) (*model.Countdown, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title          *string
	TargetDate     *time.Time
	IsRecurring    *bool
	Recurrence     *model.RecurrenceSettings
	ReminderTiming []time.Duration
}

// Apply returns c with the patch applied. c itself is not modified.
func (p Patch) Apply(c model.Countdown) model.Countdown {
	out := c.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.TargetDate != nil {
		out.TargetDate = *p.TargetDate
	}
	if p.IsRecurring != nil {
		out.IsRecurring = *p.IsRecurring
	}
	if p.Recurrence != nil {
		r := *p.Recurrence
		out.Recurrence = &r
		out = out.Clone()
	}
	if p.ReminderTiming != nil {
		out.ReminderTiming = append([]time.Duration(nil), p.ReminderTiming...)
	}
	return out
}

// Validate checks the rules every stored record satisfies.
func Validate(c model.Countdown) error {
	if c.TargetDate.IsZero() {
		return fmt.Errorf("%w: target date is required", ErrInvalid)
	}
	if c.IsRecurring && c.Recurrence == nil {
		return fmt.Errorf("%w: recurring countdown without recurrence settings", ErrInvalid)
	}
	return nil
}

// prepareCreate assigns identity and timestamps for a new record.
func prepareCreate(c model.Countdown, now time.Time) (model.Countdown, error) {
	if err := Validate(c); err != nil {
		return model.Countdown{}, err
	}
	out := c.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	return out, nil
}

// record is the serialized form of a countdown. Instants are zone-less
// reference strings so stored values read the same on every host.
type record struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	TargetDate     string          `json:"target_date"`
	IsRecurring    bool            `json:"is_recurring"`
	Recurrence     *recurrenceJSON `json:"recurrence,omitempty"`
	ReminderTiming []string        `json:"reminder_timing,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type recurrenceJSON struct {
	Type             model.RecurrenceType `json:"type"`
	CalendarType     model.CalendarType   `json:"calendar_type"`
	DayOfMonth       int                  `json:"day_of_month"`
	AdjustmentRule   model.AdjustmentRule `json:"adjustment_rule"`
	DayOfWeek        *int                 `json:"day_of_week,omitempty"`
	Month            int                  `json:"month,omitempty"`
	LastAutoAdvanced string               `json:"last_auto_advanced,omitempty"`
}

// encode serializes c with every instant expressed as wall-clock time in
// loc.
func encode(c model.Countdown, loc *time.Location) ([]byte, error) {
	rec := record{
		ID:          c.ID,
		Title:       c.Title,
		TargetDate:  clock.Format(c.TargetDate.In(loc)),
		IsRecurring: c.IsRecurring,
		CreatedAt:   formatOptional(c.CreatedAt, loc),
		UpdatedAt:   formatOptional(c.UpdatedAt, loc),
	}
	for _, d := range c.ReminderTiming {
		rec.ReminderTiming = append(rec.ReminderTiming, d.String())
	}
	if r := c.Recurrence; r != nil {
		rj := &recurrenceJSON{
			Type:           r.Type,
			CalendarType:   r.CalendarType,
			DayOfMonth:     r.DayOfMonth,
			AdjustmentRule: r.AdjustmentRule,
			Month:          r.Month,
		}
		if r.DayOfWeek != nil {
			dow := int(*r.DayOfWeek)
			rj.DayOfWeek = &dow
		}
		if r.LastAutoAdvanced != nil {
			rj.LastAutoAdvanced = clock.Format(r.LastAutoAdvanced.In(loc))
		}
		rec.Recurrence = rj
	}
	return json.Marshal(&rec)
}

func formatOptional(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return clock.Format(t.In(loc))
}

func decode(data []byte, loc *time.Location) (model.Countdown, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Countdown{}, fmt.Errorf("decoding countdown: %w", err)
	}

	c := model.Countdown{
		ID:          rec.ID,
		Title:       rec.Title,
		IsRecurring: rec.IsRecurring,
	}
	var err error
	if c.TargetDate, err = clock.Parse(rec.TargetDate, loc); err != nil {
		return model.Countdown{}, fmt.Errorf("decoding countdown %s target_date: %w", rec.ID, err)
	}
	if rec.CreatedAt != "" {
		if c.CreatedAt, err = clock.Parse(rec.CreatedAt, loc); err != nil {
			return model.Countdown{}, fmt.Errorf("decoding countdown %s created_at: %w", rec.ID, err)
		}
	}
	if rec.UpdatedAt != "" {
		if c.UpdatedAt, err = clock.Parse(rec.UpdatedAt, loc); err != nil {
			return model.Countdown{}, fmt.Errorf("decoding countdown %s updated_at: %w", rec.ID, err)
		}
	}
	for _, s := range rec.ReminderTiming {
		d, err := time.ParseDuration(s)
		if err != nil {
			return model.Countdown{}, fmt.Errorf("decoding countdown %s reminder_timing: %w", rec.ID, err)
		}
		c.ReminderTiming = append(c.ReminderTiming, d)
	}
	if rj := rec.Recurrence; rj != nil {
		r := &model.RecurrenceSettings{
			Type:           rj.Type,
			CalendarType:   rj.CalendarType,
			DayOfMonth:     rj.DayOfMonth,
			AdjustmentRule: rj.AdjustmentRule,
			Month:          rj.Month,
		}
		if rj.DayOfWeek != nil {
			dow := time.Weekday(*rj.DayOfWeek)
			r.DayOfWeek = &dow
		}
		if rj.LastAutoAdvanced != "" {
			ts, err := clock.Parse(rj.LastAutoAdvanced, loc)
			if err != nil {
				return model.Countdown{}, fmt.Errorf("decoding countdown %s last_auto_advanced: %w", rec.ID, err)
			}
			r.LastAutoAdvanced = &ts
		}
		c.Recurrence = r
	}
	return c, nil
}

// sortByCreation orders records oldest first, ties broken by id, so List
// is stable across backends.
func sortByCreation(cs []model.Countdown) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
