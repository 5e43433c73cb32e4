package repository

import (
	"context"
	"errors"
	"time"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"calman.com/worklog/model"
	"calman.com/worklog/utils"
)

var (
	ErrNotFound            = errors.New("work log not found")
	ErrInvalidWorkDatetime = errors.New("Field 'workDatetime' must be in YY.MM.DD HH:MM format")
)

// WorkLogEntity is a row of the work_log table.
type WorkLogEntity struct {
	ID           int64      `gorm:"column:wl_id;primaryKey;autoIncrement"`
	WorkDatetime time.Time  `gorm:"column:wl_work_datetime;not null;index"`
	CarModel     string     `gorm:"column:wl_car_model;size:100;not null"`
	ProductColor string     `gorm:"column:wl_product_color;size:50"`
	ProductCode  string     `gorm:"column:wl_product_code;size:50"`
	ProductName  string     `gorm:"column:wl_product_name;size:200"`
	Quantity     int        `gorm:"column:wl_quantity;not null;default:0"`
	CompletedAt  *time.Time `gorm:"column:wl_completed_at"`
	CompletedBy  *string    `gorm:"column:wl_completed_by;size:64"`
	CreatedAt    time.Time  `gorm:"column:wl_created_at;autoCreateTime"`
}

func (WorkLogEntity) TableName() string {
	return "work_log"
}

// Query selects and orders work logs. From is inclusive, To exclusive.
// A zero Limit returns every match.
type Query struct {
	SortField common.SortField
	Direction common.Direction
	Status    status.Status
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}

type Repository interface {
	Find(ctx context.Context, q Query) ([]WorkLogEntity, int64, error)
	Get(ctx context.Context, id int64) (*WorkLogEntity, error)
	Create(ctx context.Context, e *WorkLogEntity) error
	Update(ctx context.Context, e *WorkLogEntity) error
	SetStatus(ctx context.Context, id int64, completedAt *time.Time, completedBy *string) (*WorkLogEntity, error)
	Delete(ctx context.Context, id int64) error
}

// NewEntity builds a row from a request. workDatetime is "YY.MM.DD HH:MM" in
// server local time.
func NewEntity(req model.CreateRequest) (*WorkLogEntity, error) {
	d, ok := utils.ParseCompact(req.WorkDatetime)
	if !ok || !d.HasTime {
		return nil, ErrInvalidWorkDatetime
	}
	return &WorkLogEntity{
		WorkDatetime: d.Time(time.Local),
		CarModel:     req.CarModel,
		ProductColor: req.ProductColor,
		ProductCode:  req.ProductCode,
		ProductName:  req.ProductName,
		Quantity:     req.Quantity,
	}, nil
}
