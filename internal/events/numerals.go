package events

import (
	"regexp"
	"strconv"
	"strings"
)

const arabicIndicZero = '٠'

var (
	// fourDigitYear matches a standalone 4-digit year in ASCII or
	// Arabic-Indic digits.
	fourDigitYear = regexp.MustCompile(`(^|[^0-9٠-٩])([0-9]{4}|[٠-٩]{4})($|[^0-9٠-٩])`)
	anyNumber     = regexp.MustCompile(`[0-9٠-٩]+`)
	asciiOrdinal  = regexp.MustCompile(`[0-9]+(st|nd|rd|th)?`)
)

// ToArabicIndic renders n with Arabic-Indic digits (٠١٢٣٤٥٦٧٨٩).
func ToArabicIndic(n int) string {
	s := strconv.Itoa(n)
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(arabicIndicZero + (r - '0'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withYear replaces the first standalone 4-digit year in s with year, or
// appends suffix when s carries none.
func withYear(s, year, suffix string) string {
	if loc := fourDigitYear.FindStringSubmatchIndex(s); loc != nil {
		return s[:loc[4]] + year + s[loc[5]:]
	}
	if s == "" {
		return strings.TrimSpace(suffix)
	}
	return s + " " + suffix
}

// withArabicNumber replaces the first number in s (either digit set) with
// n in Arabic-Indic digits.
func withArabicNumber(s string, n int) string {
	loc := anyNumber.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + ToArabicIndic(n) + s[loc[1]:]
}

// withOrdinal replaces the first ASCII number in s with n, keeping an
// ordinal suffix grammatical ("95th" -> "96th", "91st").
func withOrdinal(s string, n int) string {
	loc := asciiOrdinal.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	repl := strconv.Itoa(n)
	if loc[2] >= 0 {
		repl += ordinalSuffix(n)
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
