package blockassign

import (
	"strconv"
	"strings"
)

// MinutesPerDay is the normalized value an end-of-day token collapses to
// (spec.md §4.5.2).
const MinutesPerDay = 1440

// EndOfDayLiteral is the literal end time treated as equivalent to a true
// midnight rollover token, per spec.md §9 open question 3: the rewrite
// treats normalized-to-1440 as canonical and this literal as an accepted
// alias, a deliberate simplification over the two spellings observed in the
// source system.
const EndOfDayLiteral = "23:59:00"

// parseHHMMSS parses "HH:MM:SS" into minutes-since-midnight. Malformed input
// returns 0; callers treat 0 the same as midnight, which is the safest
// fallback for grid matching (an unmatched spot simply falls through to
// no_grid_coverage rather than panicking).
func parseHHMMSS(s string) int {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return 0
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return h*60 + m
}

// isNextDayMidnightToken recognizes two of the accepted spellings of a
// next-day-midnight end time (spec.md §4.5.2): raw text containing both
// "day" and "0:00:00" (e.g. "1 day, 0:00:00") and the literal "24:00:00".
// The third spelling, "00:00:00" used as an end time, is not matched here;
// ToMinutesEnd and IsEndOfDay check it separately.
func isNextDayMidnightToken(raw string) bool {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "day") && strings.Contains(lower, "0:00:00") {
		return true
	}
	if raw == "24:00:00" {
		return true
	}
	return false
}

// ToMinutesStart converts a time_in value to minutes-since-midnight.
func ToMinutesStart(raw string) int {
	return parseHHMMSS(raw)
}

// ToMinutesEnd converts a time_out value to minutes-since-midnight,
// normalizing any of the three next-day-midnight spellings (and the literal
// "00:00:00" used as an end time) to 1440.
func ToMinutesEnd(raw string) int {
	if isNextDayMidnightToken(raw) {
		return MinutesPerDay
	}
	if raw == "00:00:00" {
		return MinutesPerDay
	}
	if raw == EndOfDayLiteral {
		return MinutesPerDay
	}
	return parseHHMMSS(raw)
}

// IsEndOfDay reports whether a raw end-time value is any accepted spelling
// of end-of-day: 23:59:00, 24:00:00, next-day-midnight, or 00:00:00 as end.
func IsEndOfDay(raw string) bool {
	return raw == EndOfDayLiteral || isNextDayMidnightToken(raw) || raw == "00:00:00"
}

// Duration computes the minutes between a normalized start and end. When end
// is before start, this assumes a true midnight rollover rather than a
// same-day spot (spec.md §4.5.2); the source system has no explicit flag to
// distinguish "really crosses midnight" from "data entry bug", so this is
// preserved for parity (spec.md §9's largest latent-bug surface) and callers
// that care should log a warning when no explicit end-of-day token was
// present and end < start.
func Duration(startMin, endMin int) int {
	if endMin >= startMin {
		return endMin - startMin
	}
	return (MinutesPerDay - startMin) + endMin
}

// AdjustedEnd returns the end of a time range expressed relative to the
// start, allowing it to exceed MinutesPerDay when the range truly rolls over
// past midnight. This is the representation Overlap expects for a query
// range; grid blocks, which never span more than one day, use their raw
// normalized end directly.
func AdjustedEnd(startMin, rawEndMin int) int {
	return startMin + Duration(startMin, rawEndMin)
}

// Overlap reports whether [start1,end1) overlaps [start2,end2), honoring
// rollover: if either end exceeds MinutesPerDay, the comparison is retried
// with 1440 subtracted from that end alone (spec.md §4.5.2).
func Overlap(start1, end1, start2, end2 int) bool {
	if rawOverlap(start1, end1, start2, end2) {
		return true
	}
	if end1 > MinutesPerDay && rawOverlap(start1, end1-MinutesPerDay, start2, end2) {
		return true
	}
	if end2 > MinutesPerDay && rawOverlap(start1, end1, start2, end2-MinutesPerDay) {
		return true
	}
	return false
}

func rawOverlap(start1, end1, start2, end2 int) bool {
	return start1 < end2 && end1 > start2
}
