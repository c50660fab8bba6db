package crawler

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sjsage522/blogworker/logger"
)

// CanonicalLayout is the layout of every stored publish timestamp
const CanonicalLayout = "2006-01-02 15:04:05"

var (
	minutesAgoRe = regexp.MustCompile(`(?i)分钟前|min(?:ute)?s?\s+ago`)
	hoursAgoRe   = regexp.MustCompile(`(?i)小时前|(?:hour|hr)s?\s+ago`)
	daysAgoRe    = regexp.MustCompile(`(?i)天前|days?\s+ago`)
	numberRe     = regexp.MustCompile(`\d+`)
	clockRe      = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	absoluteRe   = regexp.MustCompile(`^(\d{4})[./-](\d{1,2})[./-](\d{1,2})(.*)$`)
	timeOfDayRe  = regexp.MustCompile(`^T?(\d{1,2}):(\d{2})(?::(\d{2})(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?$`)

	yesterdayPrefixes          = []string{"昨天", "yesterday"}
	dayBeforeYesterdayPrefixes = []string{"前天", "day before yesterday", "the day before yesterday"}
	justNowLabels              = []string{"刚刚", "just now"}
)

// NormalizeTime converts a human-readable time label into the canonical
// "YYYY-MM-DD HH:MM:SS" form relative to now. Unrecognized labels are returned unchanged.
func NormalizeTime(label string, now time.Time) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return now.Format(CanonicalLayout)
	}

	// the first number anywhere in the label counts, so "发布于 5分钟前" is five minutes
	if number := numberRe.FindString(label); number != "" {
		switch {
		case minutesAgoRe.MatchString(label):
			return relative(number, time.Minute, now, func(n int) time.Time { return now.Add(-time.Duration(n) * time.Minute) })
		case hoursAgoRe.MatchString(label):
			return relative(number, time.Hour, now, func(n int) time.Time { return now.Add(-time.Duration(n) * time.Hour) })
		case daysAgoRe.MatchString(label):
			return relative(number, 24*time.Hour, now, func(n int) time.Time { return now.AddDate(0, 0, -n) })
		}
	}
	if rest, ok := cutPrefixFold(label, yesterdayPrefixes); ok {
		return dayWithClock(now.AddDate(0, 0, -1), rest, now)
	}
	if rest, ok := cutPrefixFold(label, dayBeforeYesterdayPrefixes); ok {
		return dayWithClock(now.AddDate(0, 0, -2), rest, now)
	}
	if m := absoluteRe.FindStringSubmatch(label); m != nil {
		return absolute(m, label)
	}
	for _, l := range justNowLabels {
		if strings.EqualFold(label, l) {
			return now.Format(CanonicalLayout)
		}
	}

	logger.Debug("unparsed publish time label: %q", label)
	return label
}

// FormatCompactTimestamp turns "YYYYMMDDHHmmss" into the canonical layout, falling back to now
func FormatCompactTimestamp(value string, now time.Time) string {
	value = strings.TrimSpace(value)
	if len(value) < 14 {
		return now.Format(CanonicalLayout)
	}
	t, err := time.ParseInLocation("20060102150405", value[:14], now.Location())
	if err != nil {
		return now.Format(CanonicalLayout)
	}
	return t.Format(CanonicalLayout)
}

// relative falls back to now when n units would not fit in a time.Duration
func relative(number string, unit time.Duration, now time.Time, shift func(n int) time.Time) string {
	n, err := strconv.Atoi(number)
	if err != nil || n < 0 || int64(n) > math.MaxInt64/int64(unit) {
		return now.Format(CanonicalLayout)
	}
	return shift(n).Format(CanonicalLayout)
}

func dayWithClock(day time.Time, rest string, now time.Time) string {
	m := clockRe.FindStringSubmatch(rest)
	if m == nil {
		return day.Format(CanonicalLayout)
	}
	hour, errH := strconv.Atoi(m[1])
	minute, errM := strconv.Atoi(m[2])
	if errH != nil || errM != nil || hour > 23 || minute > 59 {
		return now.Format(CanonicalLayout)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()).Format(CanonicalLayout)
}

func absolute(m []string, label string) string {
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	date := fmt.Sprintf("%s-%02d-%02d", m[1], month, day)

	rest := strings.TrimSpace(m[4])
	if rest == "" {
		return date + " 00:00:00"
	}
	if t := timeOfDayRe.FindStringSubmatch(rest); t != nil {
		hour, _ := strconv.Atoi(t[1])
		minute, _ := strconv.Atoi(t[2])
		second := 0
		if t[3] != "" {
			second, _ = strconv.Atoi(t[3])
		}
		return fmt.Sprintf("%s %02d:%02d:%02d", date, hour, minute, second)
	}

	logger.Debug("publish time label has an unrecognized time part: %q", label)
	return label
}

func cutPrefixFold(label string, prefixes []string) (string, bool) {
	lower := strings.ToLower(label)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return label[len(p):], true
		}
	}
	return "", false
}
