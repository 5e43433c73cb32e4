package core

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/model"
	"calman.com/worklog/utils"
)

// Project returns the records of the view in presentation order: filtered by the
// context's status and sorted by its sort field and direction, ties by id. The
// input is not modified.
func Project(records []model.WorkLog, qc QueryContext) []model.WorkLog {
	out := utils.Filter(records, func(r model.WorkLog) bool {
		return qc.Status().Includes(r.Completed())
	})

	less := compareBy(qc.SortField())
	desc := qc.SortDirection() == common.Desc
	slices.SortStableFunc(out, func(a, b model.WorkLog) int {
		c := less(a, b)
		if desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})
	return out
}

func compareBy(field common.SortField) func(a, b model.WorkLog) int {
	switch field {
	case common.SortCarModel:
		return func(a, b model.WorkLog) int { return strings.Compare(a.CarModel, b.CarModel) }
	case common.SortProductColor:
		return func(a, b model.WorkLog) int { return strings.Compare(a.ProductColor, b.ProductColor) }
	case common.SortProductCode:
		return func(a, b model.WorkLog) int { return strings.Compare(a.ProductCode, b.ProductCode) }
	case common.SortProductName:
		return func(a, b model.WorkLog) int { return strings.Compare(a.ProductName, b.ProductName) }
	case common.SortQuantity:
		return func(a, b model.WorkLog) int { return cmp.Compare(a.Quantity, b.Quantity) }
	case common.SortCreatedAt:
		return func(a, b model.WorkLog) int { return strings.Compare(a.CreatedAt, b.CreatedAt) }
	case common.SortCompletedAt:
		// incomplete records first
		return func(a, b model.WorkLog) int {
			return strings.Compare(utils.Deref(a.CompletedAt), utils.Deref(b.CompletedAt))
		}
	}
	// compact datetimes order lexically
	return func(a, b model.WorkLog) int { return strings.Compare(a.WorkDatetime, b.WorkDatetime) }
}

type Urgency int

const (
	UrgencyUnknown Urgency = iota
	UrgencyNormal
	UrgencyCaution
	UrgencyWarning
	UrgencyDanger
	UrgencyPassed
)

func (u Urgency) String() string {
	switch u {
	case UrgencyNormal:
		return "normal"
	case UrgencyCaution:
		return "caution"
	case UrgencyWarning:
		return "warning"
	case UrgencyDanger:
		return "danger"
	case UrgencyPassed:
		return "passed"
	}
	return "unknown"
}

// ClassifyUrgency grades how soon the record's work time is, in now's location:
// passed, within 1h, 3h, 6h, or later. A workDatetime that does not parse is
// UrgencyUnknown.
func ClassifyUrgency(r model.WorkLog, now time.Time) Urgency {
	d, ok := utils.ParseCompact(r.WorkDatetime)
	if !ok || !d.HasTime {
		return UrgencyUnknown
	}

	at := d.Time(now.Location())
	if at.Before(now) {
		return UrgencyPassed
	}
	switch left := at.Sub(now); {
	case left <= time.Hour:
		return UrgencyDanger
	case left <= 3*time.Hour:
		return UrgencyWarning
	case left <= 6*time.Hour:
		return UrgencyCaution
	}
	return UrgencyNormal
}
