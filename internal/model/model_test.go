package model

import (
	"testing"
	"time"
)

func TestCountdownClone(t *testing.T) {
	dow := time.Thursday
	stamp := time.Date(2026, 6, 26, 9, 0, 0, 0, time.UTC)
	orig := Countdown{
		ID:          "c1",
		IsRecurring: true,
		Recurrence: &RecurrenceSettings{
			Type:             RecurrenceWeekly,
			DayOfWeek:        &dow,
			LastAutoAdvanced: &stamp,
		},
		ReminderTiming: []time.Duration{time.Hour},
	}

	cp := orig.Clone()
	cp.Recurrence.Type = RecurrenceDaily
	*cp.Recurrence.DayOfWeek = time.Monday
	*cp.Recurrence.LastAutoAdvanced = stamp.Add(time.Hour)
	cp.ReminderTiming[0] = time.Minute

	if orig.Recurrence.Type != RecurrenceWeekly {
		t.Error("recurrence shared between copies")
	}
	if *orig.Recurrence.DayOfWeek != time.Thursday {
		t.Error("day of week shared between copies")
	}
	if !orig.Recurrence.LastAutoAdvanced.Equal(stamp) {
		t.Error("last auto advanced shared between copies")
	}
	if orig.ReminderTiming[0] != time.Hour {
		t.Error("reminder timing shared between copies")
	}
}

func TestCountdownClone_NilFields(t *testing.T) {
	cp := Countdown{ID: "c2"}.Clone()
	if cp.Recurrence != nil || cp.ReminderTiming != nil {
		t.Errorf("nil fields must stay nil: %+v", cp)
	}
}

func TestDescriptorHasDate(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want bool
	}{
		{Descriptor{Kind: KindLunar, Month: 9, Day: 1}, true},
		{Descriptor{Kind: KindSeasonal}, false},
		{Descriptor{Kind: KindFixedAnnual, Month: 9}, false},
	}
	for _, tt := range tests {
		if got := tt.d.HasDate(); got != tt.want {
			t.Errorf("%+v: got %v, want %v", tt.d, got, tt.want)
		}
	}
}
