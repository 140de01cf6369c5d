package duedate

import (
	"regexp"
	"strings"
)

// dueLineRe captures the remainder of a line after a deadline label, the
// way Moodle renders "Due: Saturday, 30 August 2025, 11:59 PM".
var dueLineRe = regexp.MustCompile(`(?i)\b(?:due(?:\s+date|\s+by)?|deadline|closes?)\s*:?\s+(.+)$`)

// datePatterns locate date-like substrings in running text, most specific
// first. Each candidate is still verified through Parse.
var datePatterns = []*regexp.Regexp{
	// Saturday, 30 August 2025, 11:59 PM
	regexp.MustCompile(`(?i)\b(?:mon|tues?|wednes|thurs?|fri|satur|sun)day,?\s+\d{1,2}\s+[a-z]+\s+\d{4}(?:,?\s+\d{1,2}:\d{2}(?:\s*[ap]\.?m\.?)?)?`),
	// 30 August 2025, 11:59 PM
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}(?:,?\s+\d{1,2}:\d{2}(?:\s*[ap]\.?m\.?)?)?`),
	// August 30, 2025 11:59 PM
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}(?:,?\s+\d{1,2}:\d{2}(?:\s*[ap]\.?m\.?)?)?`),
	// 2025-08-30T23:59
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?`),
	// 30/08/2025 23:59
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{4}(?:\s+\d{1,2}:\d{2})?`),
	// 30 August, 11:59 PM (year supplied by the academic-year rule)
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b(?:,?\s+\d{1,2}:\d{2}(?:\s*[ap]\.?m\.?)?)?`),
	// today / tomorrow / in 3 days / next Friday
	regexp.MustCompile(`(?i)\b(?:today|tonight|tomorrow|in\s+\d+\s+(?:days?|weeks?)|(?:next|this)\s+(?:mon|tues?|wednes|thurs?|fri|satur|sun)day)\b`),
}

// FindDate locates the most plausible date substring in text and attempts
// to normalize it. The substring is returned even when normalization fails
// so callers can keep the raw value; ok is reported via the Outcome.
// An empty substring means no date-like fragment was found at all.
func (n *Normalizer) FindDate(text string) (string, Outcome) {
	// Labelled deadline lines take priority over free-floating dates:
	// the page may mention an "Opened:" date before the due date.
	for _, line := range strings.Split(text, "\n") {
		m := dueLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if out := n.Parse(candidate); out.OK {
			return candidate, out
		}
	}

	var failedCandidate string
	var failedOutcome Outcome
	for _, re := range datePatterns {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		out := n.Parse(m)
		if out.OK {
			return m, out
		}
		if failedCandidate == "" {
			failedCandidate, failedOutcome = m, out
		}
	}

	// Fall back to an unparseable labelled line ("Due next Friday"), so
	// the raw string survives into the stored record.
	for _, line := range strings.Split(text, "\n") {
		if m := dueLineRe.FindStringSubmatch(line); m != nil {
			candidate := strings.TrimSpace(m[1])
			return candidate, n.Parse(candidate)
		}
	}

	if failedCandidate != "" {
		return failedCandidate, failedOutcome
	}
	return "", fail(ReasonUnparseable)
}
