package clock

import (
	"testing"
	"time"
)

func TestHasPassedEndOfDay(t *testing.T) {
	target := time.Date(2026, 2, 17, 0, 0, 0, 0, Riyadh)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"same day noon", time.Date(2026, 2, 17, 12, 0, 0, 0, Riyadh), false},
		{"last millisecond", time.Date(2026, 2, 17, 23, 59, 59, int(999*time.Millisecond), Riyadh), false},
		{"one second after midnight", time.Date(2026, 2, 18, 0, 0, 1, 0, Riyadh), true},
		{"day before", time.Date(2026, 2, 16, 23, 0, 0, 0, Riyadh), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := HasPassedEndOfDay(test.now, target); got != test.want {
				t.Errorf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestHasPassedEndOfDay_EvaluatesInReferenceZone(t *testing.T) {
	// 21:30 UTC on the 17th is already 00:30 on the 18th in UTC+3.
	now := time.Date(2026, 2, 17, 21, 30, 0, 0, time.UTC).In(Riyadh)
	target := time.Date(2026, 2, 17, 23, 59, 59, 0, Riyadh)
	if !HasPassedEndOfDay(now, target) {
		t.Error("expected the 17th to have ended in the reference zone")
	}
}

func TestReferenceNow_UsesFixedOffset(t *testing.T) {
	ref := New(DefaultOffset)
	ref.now = func() time.Time { return time.Date(2026, 2, 17, 22, 0, 0, 0, time.UTC) }

	got := ref.Now()
	if got.Day() != 18 || got.Hour() != 1 {
		t.Errorf("expected 2026-02-18T01:00 in reference zone, got %s", Format(got))
	}
	if _, offset := got.Zone(); offset != 3*3600 {
		t.Errorf("expected +3h offset, got %d", offset)
	}
}

func TestNew_CustomOffsetZoneName(t *testing.T) {
	ref := New(-(4*time.Hour + 30*time.Minute))
	name, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, ref.Location()).Zone()
	if name != "UTC-04:30" || offset != -(4*3600+1800) {
		t.Errorf("unexpected zone %s %d", name, offset)
	}
}

func TestFormatAndParse(t *testing.T) {
	in := time.Date(2026, 2, 25, 23, 59, 59, 0, Riyadh)
	s := Format(in)
	if s != "2026-02-25T23:59:59" {
		t.Fatalf("unexpected format %q", s)
	}

	got, err := Parse(s, Riyadh)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(in) {
		t.Errorf("expected %v, got %v", in, got)
	}

	day, err := Parse("2026-02-17", Riyadh)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if Format(day) != "2026-02-17T00:00:00" {
		t.Errorf("expected midnight, got %s", Format(day))
	}

	utc, err := Parse("2026-02-17T21:00:00Z", Riyadh)
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if Format(utc) != "2026-02-18T00:00:00" {
		t.Errorf("expected conversion into reference zone, got %s", Format(utc))
	}

	if _, err := Parse("  ", Riyadh); err == nil {
		t.Error("expected error for empty instant")
	}
}

func TestFixed(t *testing.T) {
	at := time.Date(2026, 6, 10, 9, 0, 0, 0, Riyadh)
	c := Fixed(at)
	if !c.Now().Equal(at) || !c.Now().Equal(c.Now()) {
		t.Error("fixed clock must always return the same instant")
	}
}

func TestDayBounds(t *testing.T) {
	at := time.Date(2026, 6, 10, 9, 30, 0, 0, Riyadh)
	if Format(StartOfDay(at)) != "2026-06-10T00:00:00" {
		t.Errorf("start of day: %s", Format(StartOfDay(at)))
	}
	if Format(AtEndOfDay(at)) != "2026-06-10T23:59:59" {
		t.Errorf("end of day: %s", Format(AtEndOfDay(at)))
	}
	if EndOfDay(at).Nanosecond() != int(999*time.Millisecond) {
		t.Errorf("expected .999 end of day, got %d", EndOfDay(at).Nanosecond())
	}
}
