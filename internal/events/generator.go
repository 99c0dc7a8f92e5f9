// Package events materializes event templates into concrete upcoming
// instances.
package events

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"countdown/internal/clock"
	"countdown/internal/hijri"
	appLog "countdown/internal/log"
	"countdown/internal/model"
	"countdown/internal/recurrence"
)

// Generator turns templates into instances against a reference clock.
type Generator struct {
	clock    clock.Clock
	seasonal map[string]MonthDay
}

// NewGenerator returns a Generator using the built-in SeasonalTable.
func NewGenerator(c clock.Clock) *Generator {
	return &Generator{clock: c, seasonal: SeasonalTable}
}

// WithSeasonalTable replaces the almanac used for seasonal templates
// without explicit dates.
func (g *Generator) WithSeasonalTable(table map[string]MonthDay) *Generator {
	g.seasonal = table
	return g
}

// Materialize resolves a single template against the current reference
// instant. It returns nil for expired one-time events.
func (g *Generator) Materialize(t model.EventTemplate) *model.EventInstance {
	return g.materializeAt(t, g.clock.Now())
}

// ProcessAll materializes every template against one reading of the
// clock, drops expired events, keeps the first template per base id and
// sorts the result by target date.
func (g *Generator) ProcessAll(templates []model.EventTemplate) []model.EventInstance {
	now := g.clock.Now()

	seen := make(map[string]struct{}, len(templates))
	out := make([]model.EventInstance, 0, len(templates))
	for _, t := range templates {
		if _, dup := seen[t.BaseID]; dup {
			appLog.Debug("events: duplicate base id skipped", "base_id", t.BaseID)
			continue
		}
		inst := g.materializeAt(t, now)
		if inst == nil {
			continue
		}
		seen[t.BaseID] = struct{}{}
		out = append(out, *inst)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TargetDate.Before(out[j].TargetDate)
	})
	return out
}

func (g *Generator) materializeAt(t model.EventTemplate, now time.Time) *model.EventInstance {
	if t.Recurrence.Kind == model.KindOneTime {
		if !t.TargetDate.After(now) {
			return nil
		}
		return buildInstance(t, t.TargetDate)
	}

	target, err := recurrence.NextOccurrence(g.descriptorFor(t), now)
	if err != nil {
		if t.TargetDate.IsZero() {
			appLog.Error("events: unresolvable template without static date", err, "base_id", t.BaseID)
			return nil
		}
		appLog.Warn("events: recurrence unresolved, keeping static date",
			"base_id", t.BaseID,
			"kind", string(t.Recurrence.Kind),
			"err", err,
			"target_date", clock.Format(t.TargetDate),
		)
		target = t.TargetDate
	}
	return buildInstance(t, target)
}

// descriptorFor fills seasonal descriptors from the almanac table when the
// template has no explicit month/day.
func (g *Generator) descriptorFor(t model.EventTemplate) model.Descriptor {
	d := t.Recurrence
	if d.Kind != model.KindSeasonal || d.HasDate() {
		return d
	}
	if md, ok := g.seasonal[t.BaseID]; ok {
		d.Month, d.Day = md.Month, md.Day
	}
	return d
}

func buildInstance(t model.EventTemplate, target time.Time) *model.EventInstance {
	year := target.Year()
	inst := &model.EventInstance{
		ID:         fmt.Sprintf("%s-%d", t.BaseID, year),
		BaseID:     t.BaseID,
		Title:      t.Title,
		Note:       t.Note,
		Icon:       t.Icon,
		Theme:      t.Theme,
		Category:   t.Category,
		Kind:       t.Recurrence.Kind,
		TargetDate: target,
	}

	inst.Title.EN = withYear(t.Title.EN, strconv.Itoa(year), strconv.Itoa(year))

	if t.Recurrence.Kind == model.KindLunar {
		hy := hijri.FromGregorian(target).Year
		inst.HijriYear = hy
		digits := ToArabicIndic(hy)
		inst.Title.AR = withYear(t.Title.AR, digits, digits+"هـ")
	}

	if t.Recurrence.Kind == model.KindFixedAnnual && t.FoundingYear > 0 {
		n := year - t.FoundingYear
		inst.Note.AR = withArabicNumber(t.Note.AR, n)
		inst.Note.EN = withOrdinal(t.Note.EN, n)
	}
	return inst
}
