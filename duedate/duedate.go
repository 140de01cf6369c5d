// Package duedate normalizes free-form LMS due-date strings into canonical
// timestamps.
//
// Parsing walks a ladder of format patterns in order of specificity; the
// first match wins. Strings that carry no absolute reference ("next
// Friday") fail with a reason instead of guessing, since a wrong deadline
// is worse than a missing one.
package duedate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Reason classifies why a string could not be normalized.
type Reason string

const (
	ReasonUnparseable Reason = "unparseable"
	ReasonAmbiguous   Reason = "ambiguous_format"
	ReasonRelative    Reason = "relative_no_reference"
)

// Outcome is the result of one normalization attempt: either a resolved
// timestamp plus the layout that matched, or a failure reason.
type Outcome struct {
	Time   time.Time
	Layout string
	OK     bool
	Reason Reason
}

// Normalizer resolves date strings against a fixed reference instant.
// The reference ("scan time") drives year defaulting and relative forms,
// so results are reproducible for a given scan.
type Normalizer struct {
	now time.Time
	loc *time.Location
}

// New creates a Normalizer. A zero now defaults to time.Now; a nil loc
// defaults to time.Local.
func New(now time.Time, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	if now.IsZero() {
		now = time.Now()
	}
	return &Normalizer{now: now.In(loc), loc: loc}
}

// Deadlines are conventionally end-of-day unless the string says otherwise.
const defaultHour, defaultMinute = 23, 59

// layouts is the absolute-format ladder, most specific first. Layouts
// containing a clock component keep the parsed time; the rest default to
// end-of-day.
var layouts = []string{
	"Monday, 2 January 2006, 3:04 PM",
	"Monday, 2 January 2006, 15:04",
	"Monday, 2 January 2006",
	"2 January 2006, 3:04 PM",
	"2 January 2006 3:04 PM",
	"2 January 2006 15:04",
	"2 January 2006",
	"January 2, 2006, 3:04 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// yearlessLayouts cover strings like "30 August, 11:59 PM". The missing
// year is filled with the academic-year rule in resolveYearless.
var yearlessLayouts = []string{
	"Monday, 2 January, 3:04 PM",
	"Monday, 2 January",
	"2 January, 3:04 PM",
	"2 January 3:04 PM",
	"2 January",
	"January 2, 3:04 PM",
	"January 2 3:04 PM",
	"January 2",
	"Jan 2",
	"2 Jan",
}

var (
	duePrefixRe   = regexp.MustCompile(`(?i)^(?:due(?:\s+date|\s+by)?|deadline|closes?|submission)\s*:?\s*`)
	spaceRe       = regexp.MustCompile(`\s+`)
	relDaysRe     = regexp.MustCompile(`(?i)^in\s+(\d+)\s+(days?|weeks?)$`)
	relWeekdayRe  = regexp.MustCompile(`(?i)^(?:next|this)\s+(?:mon|tues?|wednes|thurs?|fri|satur|sun)day$`)
	bareWeekdayRe = regexp.MustCompile(`(?i)^(?:mon|tues?|wednes|thurs?|fri|satur|sun)day$`)
	numericRe     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})(?:\s+(\d{1,2}):(\d{2}))?$`)
)

// Parse normalizes raw into an Outcome. It never panics and never returns
// an error: failures are data, carried in the Outcome.
func (n *Normalizer) Parse(raw string) Outcome {
	cleaned := Clean(raw)
	if cleaned == "" {
		return fail(ReasonUnparseable)
	}

	if out, matched := n.parseRelative(cleaned); matched {
		return out
	}

	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, cleaned, n.loc)
		if err != nil {
			continue
		}
		if !layoutHasClock(layout) {
			t = time.Date(t.Year(), t.Month(), t.Day(), defaultHour, defaultMinute, 0, 0, n.loc)
		}
		return Outcome{Time: t, Layout: layout, OK: true}
	}

	if out, matched := n.parseNumeric(cleaned); matched {
		return out
	}

	for _, layout := range yearlessLayouts {
		t, err := time.ParseInLocation(layout, cleaned, n.loc)
		if err != nil {
			continue
		}
		t = n.resolveYearless(t, layoutHasClock(layout))
		return Outcome{Time: t, Layout: layout, OK: true}
	}

	// Last rung: long-tail absolute formats the explicit ladder missed.
	if t, err := dateparse.ParseIn(cleaned, n.loc); err == nil && t.Year() > 0 {
		return Outcome{Time: t, Layout: "auto", OK: true}
	}

	return fail(ReasonUnparseable)
}

// parseRelative handles forms resolvable against the scan time ("today",
// "tomorrow", "in N days") and rejects weekday-relative forms, which have
// no absolute reference.
func (n *Normalizer) parseRelative(s string) (Outcome, bool) {
	lower := strings.ToLower(s)

	switch lower {
	case "today", "tonight":
		return Outcome{Time: n.endOfDay(0), Layout: "relative", OK: true}, true
	case "tomorrow":
		return Outcome{Time: n.endOfDay(1), Layout: "relative", OK: true}, true
	}

	if m := relDaysRe.FindStringSubmatch(s); m != nil {
		count, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(strings.ToLower(m[2]), "week") {
			count *= 7
		}
		return Outcome{Time: n.endOfDay(count), Layout: "relative", OK: true}, true
	}

	if relWeekdayRe.MatchString(s) || bareWeekdayRe.MatchString(s) {
		return fail(ReasonRelative), true
	}

	return Outcome{}, false
}

// parseNumeric handles d/m/y numeric dates. When both day and month fields
// are 12 or less and differ, the string is ambiguous and rejected.
func (n *Normalizer) parseNumeric(s string) (Outcome, bool) {
	m := numericRe.FindStringSubmatch(s)
	if m == nil {
		return Outcome{}, false
	}

	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	var day, month int
	switch {
	case first > 12 && second <= 12:
		day, month = first, second
	case second > 12 && first <= 12:
		day, month = second, first
	case first == second:
		day, month = first, second
	default:
		return fail(ReasonAmbiguous), true
	}
	if day > 31 || month > 12 || day == 0 || month == 0 {
		return fail(ReasonUnparseable), true
	}

	hour, minute := defaultHour, defaultMinute
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, n.loc)
	if t.Day() != day || t.Month() != time.Month(month) {
		return fail(ReasonUnparseable), true
	}
	return Outcome{Time: t, Layout: "2/1/2006", OK: true}, true
}

// resolveYearless applies the academic-year rule: assume the scan year,
// roll forward to next year when that puts the deadline in the past.
func (n *Normalizer) resolveYearless(parsed time.Time, hasClock bool) time.Time {
	hour, minute := defaultHour, defaultMinute
	if hasClock {
		hour, minute = parsed.Hour(), parsed.Minute()
	}
	t := time.Date(n.now.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, n.loc)
	if t.Before(n.now) {
		t = t.AddDate(1, 0, 0)
	}
	return t
}

func (n *Normalizer) endOfDay(daysAhead int) time.Time {
	d := n.now.AddDate(0, 0, daysAhead)
	return time.Date(d.Year(), d.Month(), d.Day(), defaultHour, defaultMinute, 0, 0, n.loc)
}

// Clean strips deadline labels, collapses whitespace, and trims trailing
// punctuation so the ladder sees only the date string itself.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = duePrefixRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " .;")
	return s
}

func layoutHasClock(layout string) bool {
	return strings.Contains(layout, "3:04") || strings.Contains(layout, "15:04")
}

func fail(r Reason) Outcome {
	return Outcome{Reason: r}
}
