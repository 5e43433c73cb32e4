package core

import (
	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"calman.com/worklog/model"
)

const DefaultPageSize = 20

// QueryContext is the active filter, sort and page. It is a value: every With
// method returns a modified copy and leaves the receiver untouched.
type QueryContext struct {
	sortField     common.SortField
	sortDirection common.Direction
	status        status.Status
	date          string
	page          int
	size          int
}

func NewQueryContext() QueryContext {
	return QueryContext{
		sortField:     common.SortWorkDatetime,
		sortDirection: common.Asc,
		status:        status.All,
		size:          DefaultPageSize,
	}
}

func (q QueryContext) SortField() common.SortField     { return q.sortField }
func (q QueryContext) SortDirection() common.Direction { return q.sortDirection }
func (q QueryContext) Status() status.Status           { return q.status }
func (q QueryContext) Page() int                       { return q.page }
func (q QueryContext) Size() int                       { return q.size }

// Date is the compact "YY.MM.DD" filter, empty when no date filter is active.
func (q QueryContext) Date() string { return q.date }

func (q QueryContext) HasDate() bool { return q.date != "" }

func (q QueryContext) WithSort(field common.SortField, dir common.Direction) QueryContext {
	if field == "" {
		field = common.SortWorkDatetime
	}
	if dir == "" {
		dir = common.Asc
	}
	q.sortField = field
	q.sortDirection = dir
	return q
}

// WithSortToggled flips the direction when field is already the sort field,
// otherwise sorts ascending by field.
func (q QueryContext) WithSortToggled(field common.SortField) QueryContext {
	if q.sortField == field {
		if q.sortDirection == common.Asc {
			return q.WithSort(field, common.Desc)
		}
		return q.WithSort(field, common.Asc)
	}
	return q.WithSort(field, common.Asc)
}

func (q QueryContext) WithStatus(s status.Status) QueryContext {
	q.status = s
	return q
}

func (q QueryContext) WithDate(compact string) QueryContext {
	q.date = compact
	q.page = 0
	return q
}

func (q QueryContext) WithoutDate() QueryContext {
	q.date = ""
	q.page = 0
	return q
}

// WithPage selects a page. A size of zero keeps the context unpaged.
func (q QueryContext) WithPage(page, size int) QueryContext {
	if size <= 0 {
		return q.Unpaged()
	}
	if page < 0 {
		page = 0
	}
	q.page = page
	q.size = size
	return q
}

// Unpaged reads the whole general list in one request; LoadMore has nothing to add.
func (q QueryContext) Unpaged() QueryContext {
	q.page = 0
	q.size = 0
	return q
}

func (q QueryContext) Paged() bool { return q.size > 0 }

// NextPage is the context for the page after the current one.
func (q QueryContext) NextPage() QueryContext {
	return q.WithPage(q.page+1, q.size)
}

// Matches reports whether r belongs to the filtered view: same date when a date
// filter is active, and the status partition.
func (q QueryContext) Matches(r model.WorkLog) bool {
	if q.date != "" && r.Date() != q.date {
		return false
	}
	return q.status.Includes(r.Completed())
}

func (q QueryContext) listParams() v1.ListParams {
	return v1.ListParams{
		SortField:     q.sortField,
		SortDirection: q.sortDirection,
		Status:        q.status,
	}
}

// loadedParams reads every page loaded so far, from the first, in one request.
func (q QueryContext) loadedParams() v1.ListParams {
	p := q.listParams()
	if q.size > 0 {
		p.Size = min((q.page+1)*q.size, MaxPageSize)
	}
	return p
}

func (q QueryContext) pageParams() v1.ListParams {
	p := q.listParams()
	p.Page = q.page
	p.Size = q.size
	return p
}
