package common

import (
	"fmt"
	"time"

	"calman.com/worklog/utils"
)

// DateOnly is a calendar day taken from a path segment, "YYYY-MM-DD" or "YY.MM.DD".
type DateOnly struct {
	time.Time
}

func ParseDateOnly(s string) (DateOnly, error) {
	s = utils.ToISODate(s)
	t, err := time.ParseInLocation(utils.ISODateLayout, s, time.Local)
	if err != nil {
		return DateOnly{}, fmt.Errorf("invalid date format: %v", err)
	}
	return DateOnly{Time: t}, nil
}

// Range returns the first instant of the day and the first instant of the next.
func (d DateOnly) Range() (time.Time, time.Time) {
	return d.Time, d.Time.AddDate(0, 0, 1)
}

func (d DateOnly) String() string {
	return d.Format(utils.ISODateLayout)
}
