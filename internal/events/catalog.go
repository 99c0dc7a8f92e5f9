package events

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"countdown/internal/clock"
	"countdown/internal/model"
)

// MonthDay is a Gregorian month/day pair.
type MonthDay struct {
	Month int
	Day   int
}

// SeasonalTable holds almanac dates for seasonal templates that carry no
// explicit month/day. The values are fixed approximations of astronomical
// events and can be a day or two off in a given year.
var SeasonalTable = map[string]MonthDay{
	"spring-equinox":  {Month: 3, Day: 20},
	"summer-solstice": {Month: 6, Day: 21},
	"autumn-equinox":  {Month: 9, Day: 22},
	"winter-solstice": {Month: 12, Day: 21},
	"suhail-rising":   {Month: 8, Day: 24},
	"al-wasm":         {Month: 10, Day: 16},
	"al-murabbaniyah": {Month: 12, Day: 7},
	"al-shabat":       {Month: 1, Day: 15},
	"al-aqarib":       {Month: 2, Day: 23},
}

func staticDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, clock.Riyadh)
}

// BuiltinCatalog returns the default public event templates.
func BuiltinCatalog() []model.EventTemplate {
	return []model.EventTemplate{
		{
			BaseID:     "ramadan",
			Title:      model.Text{EN: "Ramadan", AR: "رمضان"},
			Icon:       "moon",
			Theme:      "night",
			Category:   "religious",
			Recurrence: model.Descriptor{Kind: model.KindLunar, Month: 9, Day: 1},
			TargetDate: staticDate(2026, 2, 17),
		},
		{
			BaseID:     "eid-al-fitr",
			Title:      model.Text{EN: "Eid al-Fitr", AR: "عيد الفطر"},
			Icon:       "gift",
			Theme:      "celebration",
			Category:   "religious",
			Recurrence: model.Descriptor{Kind: model.KindLunar, Month: 10, Day: 1},
			TargetDate: staticDate(2026, 3, 19),
		},
		{
			BaseID:     "day-of-arafah",
			Title:      model.Text{EN: "Day of Arafah", AR: "يوم عرفة"},
			Icon:       "mountain",
			Theme:      "desert",
			Category:   "religious",
			Recurrence: model.Descriptor{Kind: model.KindLunar, Month: 12, Day: 9},
			TargetDate: staticDate(2026, 5, 25),
		},
		{
			BaseID:     "eid-al-adha",
			Title:      model.Text{EN: "Eid al-Adha", AR: "عيد الأضحى"},
			Icon:       "gift",
			Theme:      "celebration",
			Category:   "religious",
			Recurrence: model.Descriptor{Kind: model.KindLunar, Month: 12, Day: 10},
			TargetDate: staticDate(2026, 5, 26),
		},
		{
			BaseID:     "hijri-new-year",
			Title:      model.Text{EN: "Hijri New Year", AR: "رأس السنة الهجرية"},
			Icon:       "calendar",
			Theme:      "night",
			Category:   "religious",
			Recurrence: model.Descriptor{Kind: model.KindLunar, Month: 1, Day: 1},
			TargetDate: staticDate(2026, 6, 16),
		},
		{
			BaseID:       "saudi-national-day",
			Title:        model.Text{EN: "Saudi National Day", AR: "اليوم الوطني السعودي"},
			Note:         model.Text{EN: "The Kingdom's 94th National Day", AR: "اليوم الوطني ٩٤"},
			Icon:         "flag",
			Theme:        "green",
			Category:     "national",
			Recurrence:   model.Descriptor{Kind: model.KindFixedAnnual, Month: 9, Day: 23},
			TargetDate:   staticDate(2026, 9, 23),
			FoundingYear: 1932,
		},
		{
			BaseID:       "founding-day",
			Title:        model.Text{EN: "Founding Day", AR: "يوم التأسيس"},
			Note:         model.Text{EN: "298th anniversary of the founding", AR: "الذكرى ٢٩٨ للتأسيس"},
			Icon:         "castle",
			Theme:        "heritage",
			Category:     "national",
			Recurrence:   model.Descriptor{Kind: model.KindFixedAnnual, Month: 2, Day: 22},
			TargetDate:   staticDate(2026, 2, 22),
			FoundingYear: 1727,
		},
		{
			BaseID:     "flag-day",
			Title:      model.Text{EN: "Flag Day", AR: "يوم العلم"},
			Icon:       "flag",
			Theme:      "green",
			Category:   "national",
			Recurrence: model.Descriptor{Kind: model.KindFixedAnnual, Month: 3, Day: 11},
			TargetDate: staticDate(2026, 3, 11),
		},
		{
			BaseID:     "winter-solstice",
			Title:      model.Text{EN: "Winter Solstice", AR: "الانقلاب الشتوي"},
			Icon:       "snowflake",
			Theme:      "winter",
			Category:   "seasonal",
			Recurrence: model.Descriptor{Kind: model.KindSeasonal},
			TargetDate: staticDate(2026, 12, 21),
		},
		{
			BaseID:     "summer-solstice",
			Title:      model.Text{EN: "Summer Solstice", AR: "الانقلاب الصيفي"},
			Icon:       "sun",
			Theme:      "summer",
			Category:   "seasonal",
			Recurrence: model.Descriptor{Kind: model.KindSeasonal},
			TargetDate: staticDate(2026, 6, 21),
		},
		{
			BaseID:     "suhail-rising",
			Title:      model.Text{EN: "Rising of Suhail", AR: "طلوع سهيل"},
			Icon:       "star",
			Theme:      "night",
			Category:   "seasonal",
			Recurrence: model.Descriptor{Kind: model.KindSeasonal},
			TargetDate: staticDate(2026, 8, 24),
		},
		{
			BaseID:     "al-wasm",
			Title:      model.Text{EN: "Al-Wasm Season", AR: "موسم الوسم"},
			Icon:       "cloud-rain",
			Theme:      "autumn",
			Category:   "seasonal",
			Recurrence: model.Descriptor{Kind: model.KindSeasonal, Month: 10, Day: 16},
			TargetDate: staticDate(2026, 10, 16),
		},
		{
			BaseID:     "riyadh-expo-2030",
			Title:      model.Text{EN: "Expo 2030 Riyadh", AR: "إكسبو الرياض ٢٠٣٠"},
			Icon:       "globe",
			Theme:      "city",
			Category:   "events",
			Recurrence: model.Descriptor{Kind: model.KindOneTime},
			TargetDate: staticDate(2030, 10, 1),
		},
	}
}

// catalogFile is the on-disk YAML shape of a template catalog.
type catalogFile struct {
	Events []catalogEntry `yaml:"events"`
}

type catalogEntry struct {
	BaseID       string           `yaml:"base_id"`
	Title        model.Text       `yaml:"title"`
	Note         model.Text       `yaml:"note"`
	Icon         string           `yaml:"icon"`
	Theme        string           `yaml:"theme"`
	Category     string           `yaml:"category"`
	Recurrence   model.Descriptor `yaml:"recurrence"`
	TargetDate   string           `yaml:"target_date"`
	FoundingYear int              `yaml:"founding_year"`
}

// LoadCatalog reads a YAML template catalog. Target dates are zone-less
// instants in loc.
func LoadCatalog(path string, loc *time.Location) ([]model.EventTemplate, error) {
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data, loc)
}

// ParseCatalog decodes a YAML template catalog.
func ParseCatalog(data []byte, loc *time.Location) ([]model.EventTemplate, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	out := make([]model.EventTemplate, 0, len(file.Events))
	for i, e := range file.Events {
		if e.BaseID == "" {
			return nil, fmt.Errorf("catalog entry %d: missing base_id", i)
		}
		t := model.EventTemplate{
			BaseID:       e.BaseID,
			Title:        e.Title,
			Note:         e.Note,
			Icon:         e.Icon,
			Theme:        e.Theme,
			Category:     e.Category,
			Recurrence:   e.Recurrence,
			FoundingYear: e.FoundingYear,
		}
		switch t.Recurrence.Kind {
		case model.KindLunar, model.KindFixedAnnual, model.KindSeasonal, model.KindOneTime:
		default:
			return nil, fmt.Errorf("catalog entry %q: unknown recurrence kind %q", e.BaseID, t.Recurrence.Kind)
		}
		if t.Recurrence.Kind == model.KindOneTime && (t.Recurrence.Month != 0 || t.Recurrence.Day != 0) {
			return nil, fmt.Errorf("catalog entry %q: one-time events carry no month/day", e.BaseID)
		}
		if e.TargetDate != "" {
			td, err := clock.Parse(e.TargetDate, loc)
			if err != nil {
				return nil, fmt.Errorf("catalog entry %q: target_date: %w", e.BaseID, err)
			}
			t.TargetDate = td
		} else if t.Recurrence.Kind == model.KindOneTime {
			return nil, fmt.Errorf("catalog entry %q: one-time events need target_date", e.BaseID)
		}
		out = append(out, t)
	}
	return out, nil
}
