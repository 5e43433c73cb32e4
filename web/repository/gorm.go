package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository stores work logs in MySQL.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func filter(q Query) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		switch q.Status {
		case status.Completed:
			tx = tx.Where("wl_completed_at IS NOT NULL")
		case status.Incomplete:
			tx = tx.Where("wl_completed_at IS NULL")
		}
		if q.From != nil {
			tx = tx.Where("wl_work_datetime >= ?", *q.From)
		}
		if q.To != nil {
			tx = tx.Where("wl_work_datetime < ?", *q.To)
		}
		return tx
	}
}

func order(q Query) func(*gorm.DB) *gorm.DB {
	field := q.SortField
	if field == "" {
		field = common.SortWorkDatetime
	}
	return func(tx *gorm.DB) *gorm.DB {
		return tx.
			Order(clause.OrderByColumn{Column: clause.Column{Name: string(field)}, Desc: q.Direction == common.Desc}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "wl_id"}})
	}
}

func (r *GormRepository) Find(ctx context.Context, q Query) ([]WorkLogEntity, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&WorkLogEntity{}).Scopes(filter(q)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count work logs: %w", err)
	}

	tx := r.db.WithContext(ctx).Scopes(filter(q), order(q))
	if q.Limit > 0 {
		tx = tx.Offset(q.Offset).Limit(q.Limit)
	}
	rows := []WorkLogEntity{}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("find work logs: %w", err)
	}
	return rows, total, nil
}

func (r *GormRepository) Get(ctx context.Context, id int64) (*WorkLogEntity, error) {
	var e WorkLogEntity
	err := r.db.WithContext(ctx).First(&e, "wl_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get work log %d: %w", id, err)
	}
	return &e, nil
}

func (r *GormRepository) Create(ctx context.Context, e *WorkLogEntity) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create work log: %w", err)
	}
	return nil
}

func (r *GormRepository) Update(ctx context.Context, e *WorkLogEntity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur WorkLogEntity
		if err := tx.First(&cur, "wl_id = ?", e.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get work log %d: %w", e.ID, err)
		}
		err := tx.Model(&cur).Select(
			"wl_work_datetime", "wl_car_model", "wl_product_color",
			"wl_product_code", "wl_product_name", "wl_quantity",
		).Updates(e).Error
		if err != nil {
			return fmt.Errorf("update work log %d: %w", e.ID, err)
		}
		return tx.First(e, "wl_id = ?", e.ID).Error
	})
}

func (r *GormRepository) SetStatus(ctx context.Context, id int64, completedAt *time.Time, completedBy *string) (*WorkLogEntity, error) {
	var e WorkLogEntity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&e, "wl_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get work log %d: %w", id, err)
		}
		e.CompletedAt = completedAt
		e.CompletedBy = completedBy
		return tx.Model(&e).Updates(map[string]interface{}{
			"wl_completed_at": completedAt,
			"wl_completed_by": completedBy,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&WorkLogEntity{}, "wl_id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete work log %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
