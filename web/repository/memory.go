package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"calman.com/worklog/calman/v1/common"
)

// MemoryRepository keeps work logs in process. It backs tests and the server
// when no DSN is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	rows   map[int64]WorkLogEntity
	nextID int64
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: map[int64]WorkLogEntity{},
		now:  time.Now,
	}
}

func (r *MemoryRepository) Find(_ context.Context, q Query) ([]WorkLogEntity, int64, error) {
	r.mu.RLock()
	matched := make([]WorkLogEntity, 0, len(r.rows))
	for _, e := range r.rows {
		if !q.Status.Includes(e.CompletedAt != nil) {
			continue
		}
		if q.From != nil && e.WorkDatetime.Before(*q.From) {
			continue
		}
		if q.To != nil && !e.WorkDatetime.Before(*q.To) {
			continue
		}
		matched = append(matched, clone(e))
	}
	r.mu.RUnlock()

	field := q.SortField
	if field == "" {
		field = common.SortWorkDatetime
	}
	slices.SortFunc(matched, func(a, b WorkLogEntity) int {
		c := compareBy(field, a, b)
		if q.Direction == common.Desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})

	total := int64(len(matched))
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []WorkLogEntity{}, total, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func compareBy(field common.SortField, a, b WorkLogEntity) int {
	switch field {
	case common.SortCarModel:
		return strings.Compare(a.CarModel, b.CarModel)
	case common.SortProductColor:
		return strings.Compare(a.ProductColor, b.ProductColor)
	case common.SortProductCode:
		return strings.Compare(a.ProductCode, b.ProductCode)
	case common.SortProductName:
		return strings.Compare(a.ProductName, b.ProductName)
	case common.SortQuantity:
		return cmp.Compare(a.Quantity, b.Quantity)
	case common.SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case common.SortCompletedAt:
		// nulls first, as MySQL orders them ascending
		switch {
		case a.CompletedAt == nil && b.CompletedAt == nil:
			return 0
		case a.CompletedAt == nil:
			return -1
		case b.CompletedAt == nil:
			return 1
		}
		return a.CompletedAt.Compare(*b.CompletedAt)
	}
	return a.WorkDatetime.Compare(b.WorkDatetime)
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (*WorkLogEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	e = clone(e)
	return &e, nil
}

func (r *MemoryRepository) Create(_ context.Context, e *WorkLogEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().Truncate(time.Second)
	}
	r.rows[e.ID] = clone(*e)
	return nil
}

// Update replaces the editable columns. Completion and creation time are kept.
func (r *MemoryRepository) Update(_ context.Context, e *WorkLogEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[e.ID]
	if !ok {
		return ErrNotFound
	}
	cur.WorkDatetime = e.WorkDatetime
	cur.CarModel = e.CarModel
	cur.ProductColor = e.ProductColor
	cur.ProductCode = e.ProductCode
	cur.ProductName = e.ProductName
	cur.Quantity = e.Quantity
	r.rows[e.ID] = cur
	*e = clone(cur)
	return nil
}

func (r *MemoryRepository) SetStatus(_ context.Context, id int64, completedAt *time.Time, completedBy *string) (*WorkLogEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cur.CompletedAt = completedAt
	cur.CompletedBy = completedBy
	r.rows[id] = clone(cur)
	cur = clone(cur)
	return &cur, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func clone(e WorkLogEntity) WorkLogEntity {
	if e.CompletedAt != nil {
		at := *e.CompletedAt
		e.CompletedAt = &at
	}
	if e.CompletedBy != nil {
		by := *e.CompletedBy
		e.CompletedBy = &by
	}
	return e
}
