package hourly

import "time"

// HoursPerWeek is the number of hour-of-week buckets.
const HoursPerWeek = 168

// monthAbbr maps calendar months to the lowercase abbreviations used in
// segment identifiers.
var monthAbbr = [13]string{
	"", "jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec",
}

// monthByAbbr is the inverse of monthAbbr.
var monthByAbbr = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// HourOfWeek returns 0..167 with Monday 00:00 as 0, read in t's location.
func HourOfWeek(t time.Time) int {
	day := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return day*24 + t.Hour()
}

// MonthAbbr returns the lowercase three-letter abbreviation for m.
func MonthAbbr(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthAbbr[m]
}

// ParseMonthAbbr returns the month for a lowercase abbreviation.
func ParseMonthAbbr(s string) (time.Month, bool) {
	m, ok := monthByAbbr[s]
	return m, ok
}

func prevMonth(m time.Month) time.Month {
	if m == time.January {
		return time.December
	}
	return m - 1
}

func nextMonth(m time.Month) time.Month {
	if m == time.December {
		return time.January
	}
	return m + 1
}
