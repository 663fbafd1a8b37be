package timeutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Resolution is the outcome of resolving a date expression.
type Resolution struct {
	// Date is midnight of the resolved calendar day in the reference location.
	Date time.Time
	// LowConfidence is set when the expression was not understood and
	// Date fell back to the reference day. Callers may ask the user to clarify.
	LowConfidence bool
	// Rule names the rule that matched.
	Rule string
}

// String formats the resolved date as YYYY-MM-DD.
func (r Resolution) String() string {
	return r.Date.Format(DateLayout)
}

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	brDatePattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)
)

var (
	todayWords         = []string{"today", "hoje"}
	tomorrowWords      = []string{"tomorrow", "tomorow", "tommorow", "tommorrow", "tmrw", "amanha", "amanh", "amanhan"}
	dayAfterWords      = []string{"depois de amanha", "day after tomorrow"}
	nextWeekPhrases    = []string{"next week", "semana que vem", "proxima semana", "semana seguinte"}
	nextMonthPhrases   = []string{"next month", "mes que vem", "proximo mes", "mes seguinte"}
	weekdayPrefixWords = []string{"next ", "this ", "on ", "proxima ", "proximo ", "na ", "no ", "nesta ", "neste ", "essa ", "esse ", "esta ", "este "}
)

var weekdays = map[string]time.Weekday{
	"domingo": time.Sunday, "sunday": time.Sunday,
	"segunda": time.Monday, "monday": time.Monday,
	"terca": time.Tuesday, "tuesday": time.Tuesday,
	"quarta": time.Wednesday, "wednesday": time.Wednesday,
	"quinta": time.Thursday, "thursday": time.Thursday,
	"sexta": time.Friday, "friday": time.Friday,
	"sabado": time.Saturday, "saturday": time.Saturday,
}

// ResolveDate maps a free-text date expression to a calendar date relative to now.
// Arithmetic is calendar based in now's location.
func ResolveDate(expr string, now time.Time) Resolution {
	today := midnight(now)
	e := foldExpression(expr)

	if isoDatePattern.MatchString(e) {
		if d, err := time.ParseInLocation(DateLayout, e, now.Location()); err == nil {
			return Resolution{Date: d, Rule: "iso"}
		}
	}

	if m := brDatePattern.FindStringSubmatch(e); m != nil {
		if d, ok := dayMonthYear(m, now); ok {
			return Resolution{Date: d, Rule: "day_month"}
		}
	}

	if containsAny(e, dayAfterWords) {
		return Resolution{Date: today.AddDate(0, 0, 2), Rule: "day_after_tomorrow"}
	}
	if equalsAny(e, todayWords) {
		return Resolution{Date: today, Rule: "today"}
	}
	if equalsAny(e, tomorrowWords) {
		return Resolution{Date: today.AddDate(0, 0, 1), Rule: "tomorrow"}
	}
	if wd, ok := parseWeekday(e); ok {
		return Resolution{Date: nextWeekday(today, wd), Rule: "weekday"}
	}
	if containsAny(e, nextWeekPhrases) {
		return Resolution{Date: today.AddDate(0, 0, 7), Rule: "next_week"}
	}
	if containsAny(e, nextMonthPhrases) {
		return Resolution{Date: addMonthClamped(today), Rule: "next_month"}
	}

	// Lenient second pass over longer sentences ("amanhã de manhã", "today please")
	for _, word := range strings.Fields(e) {
		switch {
		case equalsAny(word, todayWords):
			return Resolution{Date: today, Rule: "today"}
		case equalsAny(word, tomorrowWords):
			return Resolution{Date: today.AddDate(0, 0, 1), Rule: "tomorrow"}
		}
		if wd, ok := parseWeekday(word); ok {
			return Resolution{Date: nextWeekday(today, wd), Rule: "weekday"}
		}
	}

	return Resolution{Date: today, LowConfidence: true, Rule: "fallback_today"}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// foldExpression lowercases, trims and strips diacritics.
func foldExpression(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	folded = strings.Trim(folded, ".!?,;")
	return strings.Join(strings.Fields(folded), " ")
}

func dayMonthYear(m []string, now time.Time) (time.Time, bool) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	// Reject overflow such as 31/02
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func parseWeekday(e string) (time.Weekday, bool) {
	for _, prefix := range weekdayPrefixWords {
		e = strings.TrimPrefix(e, prefix)
	}
	e = strings.TrimSuffix(e, "-feira")
	e = strings.TrimSuffix(e, " feira")
	e = strings.TrimSpace(e)

	wd, ok := weekdays[e]
	return wd, ok
}

// nextWeekday returns the next occurrence of wd strictly after today.
func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

// addMonthClamped moves to the same day of the next month, clamping to its last day.
func addMonthClamped(today time.Time) time.Time {
	y, m, d := today.Date()
	lastDay := time.Date(y, m+2, 0, 0, 0, 0, 0, today.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y, m+1, d, 0, 0, 0, 0, today.Location())
}

func equalsAny(s string, words []string) bool {
	for _, w := range words {
		if s == w {
			return true
		}
	}
	return false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
