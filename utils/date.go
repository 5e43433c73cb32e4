package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	DisplayLayout     = "06.01.02 15:04" // YY.MM.DD HH:MM
	SearchLayout      = "06.01.02"       // YY.MM.DD
	ISODateLayout     = "2006-01-02"
	ISODateTimeLayout = "2006-01-02T15:04:05"
)

var (
	compactDateOnlyPattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{2}$`)
	compactPattern         = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{2})(?: (\d{2}):(\d{2}))?$`)
	isoDatePattern         = regexp.MustCompile(`^(20)(\d{2})-(\d{2})-(\d{2})$`)
)

// CompactDate is the parsed form of a "YY.MM.DD[ HH:MM]" string.
type CompactDate struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	HasTime bool
}

// Time returns the date as a time in loc. Hour and minute are zero for date-only values.
func (d CompactDate) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, 0, 0, loc)
}

// ParseCompact accepts "YY.MM.DD" or "YY.MM.DD HH:MM". The year is expanded by
// adding 2000. ok is false for any other shape or an out of range component.
func ParseCompact(s string) (CompactDate, bool) {
	m := compactPattern.FindStringSubmatch(s)
	if m == nil {
		return CompactDate{}, false
	}

	yy, _ := strconv.Atoi(m[1])
	d := CompactDate{Year: 2000 + yy}
	d.Month, _ = strconv.Atoi(m[2])
	d.Day, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		d.HasTime = true
		d.Hour, _ = strconv.Atoi(m[4])
		d.Minute, _ = strconv.Atoi(m[5])
	}

	if d.Month < 1 || d.Month > 12 {
		return CompactDate{}, false
	}
	if d.Day < 1 || d.Day > daysIn(d.Year, d.Month) {
		return CompactDate{}, false
	}
	if d.Hour > 23 || d.Minute > 59 {
		return CompactDate{}, false
	}
	return d, true
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsCompactDateOnly reports whether s is exactly "YY.MM.DD".
func IsCompactDateOnly(s string) bool {
	return compactDateOnlyPattern.MatchString(s)
}

// IsCompactDateTime reports whether s parses as "YY.MM.DD HH:MM".
func IsCompactDateTime(s string) bool {
	d, ok := ParseCompact(s)
	return ok && d.HasTime
}

// ToISODate converts "YY.MM.DD" to "YYYY-MM-DD". Input of any other shape is
// returned unchanged.
func ToISODate(compact string) string {
	if !IsCompactDateOnly(compact) {
		return compact
	}
	return fmt.Sprintf("20%s-%s-%s", compact[0:2], compact[3:5], compact[6:8])
}

// ToCompactDate converts "20YY-MM-DD" to "YY.MM.DD". Input of any other shape,
// including years outside 2000-2099, is returned unchanged.
func ToCompactDate(iso string) string {
	m := isoDatePattern.FindStringSubmatch(iso)
	if m == nil {
		return iso
	}
	return fmt.Sprintf("%s.%s.%s", m[2], m[3], m[4])
}

func FormatDisplay(t time.Time) string {
	return t.Format(DisplayLayout)
}

func FormatSearchDate(t time.Time) string {
	return t.Format(SearchLayout)
}

func FormatISODateTime(t time.Time) string {
	return t.Format(ISODateTimeLayout)
}

// ISOToDisplay converts an ISO datetime to "YY.MM.DD HH:MM". Values that do not
// parse are returned unchanged.
func ISOToDisplay(s string) string {
	t, err := ParseISOTime(s)
	if err != nil {
		return s
	}
	return FormatDisplay(*t)
}

// NormalizeWorkDatetime returns s in "YY.MM.DD HH:MM" form whether the input is
// already compact or an ISO datetime.
func NormalizeWorkDatetime(s string) string {
	if IsCompactDateTime(s) {
		return s
	}
	return ISOToDisplay(s)
}

func MustParseDate(dateStr string) time.Time {
	t, _ := time.ParseInLocation(ISODateLayout, dateStr, time.UTC)
	return t
}

func ParseISOTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, fmt.Errorf("empty time string")
	}

	// Try standard RFC3339 format (ISO 8601)
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return &t, nil
	}

	// Try with nanoseconds (e.g. 2025-10-13T09:30:00.123Z)
	t, err = time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return &t, nil
	}

	// Local datetimes as sent by the backend
	layouts := []string{
		ISODateTimeLayout,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if tt, e := time.ParseInLocation(layout, s, time.Local); e == nil {
			return &tt, nil
		}
	}

	return nil, fmt.Errorf("failed to parse time: %v", s)
}
