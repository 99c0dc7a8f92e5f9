// Package clock provides the reference "now" used by every date decision.
//
// All decisions are made against a fixed UTC offset (UTC+3 by default)
// rather than the host timezone, so results do not depend on where the
// process runs.
package clock

import (
	"errors"
	"strings"
	"time"
)

// Layout is the serialized Instant format: explicit time of day and no
// zone suffix. Strings in this layout are wall-clock times in the
// reference zone.
const Layout = "2006-01-02T15:04:05"

const dateLayout = "2006-01-02"

// DefaultOffset is the reference zone offset (Arabia Standard Time).
const DefaultOffset = 3 * time.Hour

// Riyadh is the default reference zone.
var Riyadh = time.FixedZone("AST", int(DefaultOffset/time.Second))

// Clock yields the current reference instant.
type Clock interface {
	Now() time.Time
}

// Reference is the system clock viewed in a fixed-offset zone.
type Reference struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Reference clock for the given UTC offset. A zero offset
// is allowed and yields UTC wall-clock times.
func New(offset time.Duration) *Reference {
	loc := Riyadh
	if offset != DefaultOffset {
		loc = time.FixedZone(zoneName(offset), int(offset/time.Second))
	}
	return &Reference{loc: loc, now: time.Now}
}

func (r *Reference) Now() time.Time {
	return r.now().In(r.loc)
}

// Location returns the fixed reference zone.
func (r *Reference) Location() *time.Location {
	return r.loc
}

type fixed struct {
	t time.Time
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return fixed{t: t}
}

func (f fixed) Now() time.Time {
	return f.t
}

// StartOfDay returns 00:00:00 of t's civil day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's civil day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// AtEndOfDay returns 23:59:59 (whole seconds) of t's civil day. User
// countdown targets are stored with this time of day.
func AtEndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// HasPassedEndOfDay reports whether now is strictly after the last
// millisecond of the civil day containing target. The day of target is
// evaluated in now's location.
func HasPassedEndOfDay(now, target time.Time) bool {
	return now.After(EndOfDay(target.In(now.Location())))
}

// Format serializes t as a zone-less reference wall-clock string.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse reads an Instant string. Zone-less values (Layout or a bare
// date) are taken as wall-clock time in loc; values carrying an explicit
// offset are converted into loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty instant")
	}
	if loc == nil {
		loc = Riyadh
	}
	if t, err := time.ParseInLocation(Layout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func zoneName(offset time.Duration) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	name := "UTC" + sign + itoa2(h)
	if m != 0 {
		name += ":" + itoa2(m)
	}
	return name
}

func itoa2(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
