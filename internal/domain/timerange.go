package domain

import "time"

const (
	rangeLayoutDay  = "Jan 2, 15:04:05"
	rangeLayoutYear = "Jan 2 2006, 15:04:05"
	rangeLayoutTime = "15:04:05"
)

// RangeString renders a time window for display. The end drops the date when
// both ends fall on the same day, and both carry the year when they differ in year.
func RangeString(start, end time.Time) string {
	switch {
	case start.Year() != end.Year():
		return start.Format(rangeLayoutYear) + " ... " + end.Format(rangeLayoutYear)
	case start.YearDay() == end.YearDay():
		return start.Format(rangeLayoutDay) + " ... " + end.Format(rangeLayoutTime)
	default:
		return start.Format(rangeLayoutDay) + " ... " + end.Format(rangeLayoutDay)
	}
}
