package advance

import (
	"context"
	"errors"
	"testing"
	"time"

	"countdown/internal/clock"
	"countdown/internal/model"
	"countdown/internal/store"
)

type fakeStore struct {
	records map[string]model.Countdown
	updates int
	failErr error
	lost    bool
}

func newFakeStore(cs ...model.Countdown) *fakeStore {
	f := &fakeStore{records: map[string]model.Countdown{}}
	for _, c := range cs {
		f.records[c.ID] = c.Clone()
	}
	return f
}

func (f *fakeStore) Update(_ context.Context, id string, patch store.Patch) (*model.Countdown, error) {
	f.updates++
	if f.failErr != nil {
		return nil, f.failErr
	}
	cur, ok := f.records[id]
	if !ok || f.lost {
		return nil, nil
	}
	next := patch.Apply(cur)
	f.records[id] = next
	out := next.Clone()
	return &out, nil
}

func (f *fakeStore) List(context.Context) ([]model.Countdown, error) {
	out := make([]model.Countdown, 0, len(f.records))
	for _, id := range []string{"salary", "weekly", "once"} {
		if c, ok := f.records[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func at(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, clock.Riyadh)
}

func salary() model.Countdown {
	return model.Countdown{
		ID:          "salary",
		Title:       "Salary",
		TargetDate:  at(2026, 6, 25, 23, 59, 59),
		IsRecurring: true,
		Recurrence: &model.RecurrenceSettings{
			Type:           model.RecurrenceSalary,
			CalendarType:   model.CalendarGregorian,
			DayOfMonth:     25,
			AdjustmentRule: model.AdjustSmart,
		},
	}
}

func TestMaybeAdvance_AdvancesPassedTarget(t *testing.T) {
	now := at(2026, 6, 26, 9, 0, 0)
	fs := newFakeStore(salary())
	svc := NewService(fs, clock.Fixed(now))

	in := salary()
	got, err := svc.MaybeAdvance(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected countdown to advance")
	}
	// 2026-07-25 is a Saturday; the smart rule moves it to Sunday.
	if clock.Format(got.TargetDate) != "2026-07-26T23:59:59" {
		t.Errorf("unexpected target %s", clock.Format(got.TargetDate))
	}
	if got.Recurrence.LastAutoAdvanced == nil || !got.Recurrence.LastAutoAdvanced.Equal(now) {
		t.Errorf("expected last auto advanced %v, got %v", now, got.Recurrence.LastAutoAdvanced)
	}
	if clock.Format(in.TargetDate) != "2026-06-25T23:59:59" || in.Recurrence.LastAutoAdvanced != nil {
		t.Error("input countdown must not be mutated")
	}
	if stored := fs.records["salary"]; !stored.TargetDate.Equal(got.TargetDate) {
		t.Errorf("store not updated: %s", clock.Format(stored.TargetDate))
	}
}

func TestMaybeAdvance_Idempotent(t *testing.T) {
	now := at(2026, 6, 26, 9, 0, 0)
	fs := newFakeStore(salary())
	svc := NewService(fs, clock.Fixed(now))

	first, err := svc.MaybeAdvance(context.Background(), salary())
	if err != nil || first == nil {
		t.Fatalf("first call: %v, %v", first, err)
	}
	second, err := svc.MaybeAdvance(context.Background(), *first)
	if err != nil || second != nil {
		t.Errorf("second call must be a no-op, got %v, %v", second, err)
	}
	if fs.updates != 1 {
		t.Errorf("expected a single store write, got %d", fs.updates)
	}
}

func TestMaybeAdvance_IdempotentOnClampedFriday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		rec  model.RecurrenceSettings
		prev time.Time
		want string
	}{
		{
			// Day 31 clamps to Friday 2027-04-30.
			name: "gregorian",
			now:  at(2027, 4, 30, 9, 0, 0),
			rec: model.RecurrenceSettings{
				Type: model.RecurrenceSalary, CalendarType: model.CalendarGregorian,
				DayOfMonth: 31, AdjustmentRule: model.AdjustSmart,
			},
			prev: at(2027, 3, 31, 23, 59, 59),
			want: "2027-05-31T23:59:59",
		},
		{
			// Day 30 clamps to 29 Dhu al-Hijjah 1448, Friday 2027-06-04.
			name: "hijri",
			now:  at(2027, 6, 4, 9, 0, 0),
			rec: model.RecurrenceSettings{
				Type: model.RecurrenceMonthly, CalendarType: model.CalendarHijri,
				DayOfMonth: 30, AdjustmentRule: model.AdjustSmart,
			},
			prev: at(2027, 5, 6, 23, 59, 59),
			want: "2027-07-04T23:59:59",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			c := model.Countdown{ID: "salary", Title: "Salary", TargetDate: tt.prev, IsRecurring: true, Recurrence: &rec}
			fs := newFakeStore(c)
			svc := NewService(fs, clock.Fixed(tt.now))

			first, err := svc.MaybeAdvance(context.Background(), c)
			if err != nil || first == nil {
				t.Fatalf("first call: %v, %v", first, err)
			}
			if clock.StartOfDay(first.TargetDate).Before(clock.StartOfDay(tt.now)) {
				t.Fatalf("advanced into the past: %s", clock.Format(first.TargetDate))
			}
			if got := clock.Format(first.TargetDate); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}

			second, err := svc.MaybeAdvance(context.Background(), *first)
			if err != nil || second != nil {
				t.Errorf("second call must be a no-op, got %v, %v", second, err)
			}
			if fs.updates != 1 {
				t.Errorf("expected a single store write, got %d", fs.updates)
			}
		})
	}
}

func TestMaybeAdvance_NoOp(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		c    func() model.Countdown
	}{
		{
			name: "same day",
			now:  at(2026, 6, 25, 23, 59, 59),
			c:    salary,
		},
		{
			name: "not recurring",
			now:  at(2026, 7, 1, 0, 0, 0),
			c: func() model.Countdown {
				c := salary()
				c.IsRecurring = false
				return c
			},
		},
		{
			name: "missing recurrence",
			now:  at(2026, 7, 1, 0, 0, 0),
			c: func() model.Countdown {
				c := salary()
				c.Recurrence = nil
				return c
			},
		},
		{
			name: "unresolvable rule keeps previous date",
			now:  at(2026, 7, 1, 0, 0, 0),
			c: func() model.Countdown {
				c := salary()
				c.Recurrence.Type = model.RecurrenceWeekly
				return c
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore(tt.c())
			svc := NewService(fs, clock.Fixed(tt.now))
			got, err := svc.MaybeAdvance(context.Background(), tt.c())
			if err != nil || got != nil {
				t.Errorf("expected nil, nil, got %v, %v", got, err)
			}
			if fs.updates != 0 {
				t.Errorf("expected no store writes, got %d", fs.updates)
			}
		})
	}
}

func TestMaybeAdvance_PersistenceFailurePropagates(t *testing.T) {
	boom := errors.New("disk full")
	fs := newFakeStore(salary())
	fs.failErr = boom
	svc := NewService(fs, clock.Fixed(at(2026, 6, 26, 9, 0, 0)))

	in := salary()
	got, err := svc.MaybeAdvance(context.Background(), in)
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if got != nil {
		t.Error("failed write must not return an advanced record")
	}
	if clock.Format(in.TargetDate) != "2026-06-25T23:59:59" {
		t.Error("input must stay at its previous target")
	}
}

func TestMaybeAdvance_RecordGone(t *testing.T) {
	fs := newFakeStore(salary())
	fs.lost = true
	svc := NewService(fs, clock.Fixed(at(2026, 6, 26, 9, 0, 0)))

	_, err := svc.MaybeAdvance(context.Background(), salary())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func weeklyFriday() model.Countdown {
	fri := time.Friday
	return model.Countdown{
		ID:          "weekly",
		Title:       "Family dinner",
		TargetDate:  at(2026, 10, 16, 23, 59, 59),
		IsRecurring: true,
		Recurrence: &model.RecurrenceSettings{
			Type:           model.RecurrenceWeekly,
			DayOfWeek:      &fri,
			AdjustmentRule: model.AdjustSmart,
		},
	}
}

func oneOff() model.Countdown {
	return model.Countdown{ID: "once", Title: "Trip", TargetDate: at(2026, 6, 1, 0, 0, 0)}
}

func TestAdvanceAll_ReplacesOnlyAdvanced(t *testing.T) {
	now := at(2026, 10, 17, 8, 0, 0)
	in := []model.Countdown{oneOff(), weeklyFriday(), salary()}
	in[2].TargetDate = at(2026, 10, 25, 23, 59, 59)

	fs := newFakeStore(in...)
	svc := NewService(fs, clock.Fixed(now))

	out, errs := svc.AdvanceAll(context.Background(), in)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	if out[0].ID != "once" || !out[0].TargetDate.Equal(in[0].TargetDate) {
		t.Errorf("non-recurring record changed: %+v", out[0])
	}
	// Weekly rules are not weekend-adjusted; next Friday after 2026-10-17.
	if out[1].ID != "weekly" || clock.Format(out[1].TargetDate) != "2026-10-23T23:59:59" {
		t.Errorf("unexpected weekly result %s", clock.Format(out[1].TargetDate))
	}
	if out[2].ID != "salary" || !out[2].TargetDate.Equal(in[2].TargetDate) {
		t.Errorf("future record changed: %s", clock.Format(out[2].TargetDate))
	}
	if fs.updates != 1 {
		t.Errorf("expected one write, got %d", fs.updates)
	}
}

func TestAdvanceAll_IsolatesFailures(t *testing.T) {
	boom := errors.New("unavailable")
	in := []model.Countdown{weeklyFriday(), oneOff()}
	fs := newFakeStore(in...)
	fs.failErr = boom
	svc := NewService(fs, clock.Fixed(at(2026, 10, 17, 8, 0, 0)))

	out, errs := svc.AdvanceAll(context.Background(), in)
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Fatalf("expected one store error, got %v", errs)
	}
	if !out[0].TargetDate.Equal(in[0].TargetDate) || out[1].ID != "once" {
		t.Errorf("failed entries must be kept unchanged: %+v", out)
	}
}

func TestSweep(t *testing.T) {
	fs := newFakeStore(weeklyFriday(), oneOff(), salary())
	svc := NewService(fs, clock.Fixed(at(2026, 10, 17, 8, 0, 0)))

	n, err := svc.Sweep(context.Background(), fs)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// Both the weekly and the June salary target have passed.
	if n != 2 {
		t.Errorf("expected 2 advanced, got %d", n)
	}
	// 2026-10-25 is a Sunday, so no adjustment.
	if got := clock.Format(fs.records["salary"].TargetDate); got != "2026-10-25T23:59:59" {
		t.Errorf("unexpected salary target %s", got)
	}
}

func TestNewScheduler(t *testing.T) {
	svc := NewService(newFakeStore(), clock.Fixed(at(2026, 1, 1, 0, 0, 0)))
	if _, err := NewScheduler(context.Background(), "not a cron", clock.Riyadh, svc, newFakeStore()); err == nil {
		t.Error("expected error for invalid schedule")
	}
	c, err := NewScheduler(context.Background(), "1 0 * * *", clock.Riyadh, svc, newFakeStore())
	if err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("expected one entry, got %d", len(c.Entries()))
	}
}
