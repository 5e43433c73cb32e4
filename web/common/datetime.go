package common

import (
	"encoding/json"
	"time"

	"calman.com/worklog/utils"
)

// LocalDateTime marshals as "2006-01-02T15:04:05" without a zone.
type LocalDateTime struct {
	time.Time
}

func NewLocalDateTime(t time.Time) *LocalDateTime {
	if t.IsZero() {
		return nil
	}
	return &LocalDateTime{Time: t}
}

func (l *LocalDateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		l.Time = time.Time{}
		return nil
	}
	t, err := time.ParseInLocation(utils.ISODateTimeLayout, s, time.Local)
	if err != nil {
		return err
	}
	l.Time = t
	return nil
}

func (l LocalDateTime) MarshalJSON() ([]byte, error) {
	if l.Time.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(l.Format(utils.ISODateTimeLayout))
}
