package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"countdown/internal/clock"
	"countdown/internal/model"
)

var testNow = time.Date(2026, 6, 10, 9, 0, 0, 0, clock.Riyadh)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "countdown-test.db"), clock.Fixed(testNow))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// backends returns every store implementation available in this run. The
// Redis backend needs COUNTDOWN_TEST_REDIS_ADDR.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"sqlite": newSQLiteStore(t)}

	if addr := os.Getenv("COUNTDOWN_TEST_REDIS_ADDR"); addr != "" {
		prefix := "test-" + uuid.NewString() + ":"
		rs, err := OpenRedis(context.Background(), RedisOptions{Addr: addr, Prefix: prefix}, clock.Fixed(testNow))
		if err != nil {
			t.Fatalf("open redis store: %v", err)
		}
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := rs.client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				rs.client.Del(ctx, keys...)
			}
			_ = rs.Close()
		})
		out["redis"] = rs
	}
	return out
}

func salaryCountdown() model.Countdown {
	return model.Countdown{
		Title:       "Salary",
		TargetDate:  time.Date(2026, 6, 25, 23, 59, 59, 0, clock.Riyadh),
		IsRecurring: true,
		Recurrence: &model.RecurrenceSettings{
			Type:           model.RecurrenceSalary,
			CalendarType:   model.CalendarGregorian,
			DayOfMonth:     25,
			AdjustmentRule: model.AdjustSmart,
		},
		ReminderTiming: []time.Duration{24 * time.Hour, time.Hour},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := s.Create(ctx, salaryCountdown())
			if err != nil {
				t.Fatalf("creating countdown: %v", err)
			}
			if created.ID == "" {
				t.Fatal("expected non-empty ID")
			}
			if !created.CreatedAt.Equal(testNow) {
				t.Errorf("expected created at %v, got %v", testNow, created.CreatedAt)
			}

			found, err := s.Get(ctx, created.ID)
			if err != nil {
				t.Fatalf("finding countdown: %v", err)
			}
			if found == nil {
				t.Fatal("expected countdown to exist")
			}
			if found.Title != "Salary" || !found.IsRecurring {
				t.Errorf("unexpected countdown %+v", found)
			}
			if clock.Format(found.TargetDate) != "2026-06-25T23:59:59" {
				t.Errorf("unexpected target %s", clock.Format(found.TargetDate))
			}
			if found.Recurrence == nil || found.Recurrence.DayOfMonth != 25 || found.Recurrence.AdjustmentRule != model.AdjustSmart {
				t.Errorf("unexpected recurrence %+v", found.Recurrence)
			}
			if len(found.ReminderTiming) != 2 || found.ReminderTiming[1] != time.Hour {
				t.Errorf("unexpected reminder timing %v", found.ReminderTiming)
			}

			missing, err := s.Get(ctx, "does-not-exist")
			if err != nil || missing != nil {
				t.Errorf("expected nil, nil for missing record, got %v, %v", missing, err)
			}
		})
	}
}

func TestStore_CreateValidates(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := salaryCountdown()
			c.Recurrence = nil
			if _, err := s.Create(context.Background(), c); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid for recurring without settings, got %v", err)
			}
			if _, err := s.Create(context.Background(), model.Countdown{Title: "no date"}); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid without target, got %v", err)
			}
		})
	}
}

func TestStore_Update(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.Create(ctx, salaryCountdown())
			if err != nil {
				t.Fatalf("creating countdown: %v", err)
			}

			next := time.Date(2026, 7, 26, 23, 59, 59, 0, clock.Riyadh)
			rec := *created.Recurrence
			rec.LastAutoAdvanced = &testNow
			updated, err := s.Update(ctx, created.ID, Patch{TargetDate: &next, Recurrence: &rec})
			if err != nil {
				t.Fatalf("updating countdown: %v", err)
			}
			if updated == nil || !updated.TargetDate.Equal(next) {
				t.Fatalf("unexpected update result %+v", updated)
			}
			if updated.Title != "Salary" {
				t.Errorf("untouched fields must survive, got title %q", updated.Title)
			}

			found, _ := s.Get(ctx, created.ID)
			if !found.TargetDate.Equal(next) {
				t.Errorf("update not persisted: %s", clock.Format(found.TargetDate))
			}
			if found.Recurrence.LastAutoAdvanced == nil || !found.Recurrence.LastAutoAdvanced.Equal(testNow) {
				t.Errorf("expected last auto advanced to persist, got %v", found.Recurrence.LastAutoAdvanced)
			}

			missing, err := s.Update(ctx, "nope", Patch{TargetDate: &next})
			if err != nil || missing != nil {
				t.Errorf("expected nil, nil for missing record, got %v, %v", missing, err)
			}
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := s.Create(ctx, model.Countdown{ID: "a", Title: "A", TargetDate: testNow.AddDate(0, 0, 3)})
			b, _ := s.Create(ctx, model.Countdown{ID: "b", Title: "B", TargetDate: testNow.AddDate(0, 0, 1)})

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("listing: %v", err)
			}
			if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
				t.Fatalf("unexpected list %+v", list)
			}

			deleted, err := s.Delete(ctx, a.ID)
			if err != nil || !deleted {
				t.Fatalf("expected delete to succeed, got %v, %v", deleted, err)
			}
			deleted, err = s.Delete(ctx, a.ID)
			if err != nil || deleted {
				t.Errorf("second delete should report false, got %v, %v", deleted, err)
			}

			list, _ = s.List(ctx)
			if len(list) != 1 || list[0].ID != "b" {
				t.Errorf("unexpected list after delete %+v", list)
			}
		})
	}
}

func TestEncodeConvertsIntoReferenceZone(t *testing.T) {
	c := model.Countdown{ID: "x", TargetDate: time.Date(2026, 2, 17, 21, 0, 0, 0, time.UTC)}
	data, err := encode(c, clock.Riyadh)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decode(data, clock.Riyadh)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if clock.Format(got.TargetDate) != "2026-02-18T00:00:00" || !got.TargetDate.Equal(c.TargetDate) {
		t.Errorf("unexpected target %s", clock.Format(got.TargetDate))
	}
	if !got.CreatedAt.IsZero() {
		t.Errorf("zero timestamps must stay zero, got %v", got.CreatedAt)
	}
}

func TestPatchApplyDoesNotAlias(t *testing.T) {
	orig := salaryCountdown()
	rec := *orig.Recurrence
	rec.DayOfMonth = 1
	out := Patch{Recurrence: &rec}.Apply(orig)

	if orig.Recurrence.DayOfMonth != 25 {
		t.Error("Apply must not modify its input")
	}
	rec.DayOfMonth = 2
	if out.Recurrence.DayOfMonth != 1 {
		t.Error("result must not share the patch's recurrence")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mongo"}, clock.Fixed(testNow))
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}
