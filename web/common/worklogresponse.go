package common

import (
	"calman.com/worklog/utils"
	"calman.com/worklog/web/repository"
)

// WorkLogResponse is a work log as the API returns it. Datetimes are local ISO
// values without a zone.
type WorkLogResponse struct {
	ID           int64          `json:"id"`
	WorkDatetime LocalDateTime  `json:"workDatetime"`
	CarModel     string         `json:"carModel"`
	ProductColor string         `json:"productColor"`
	ProductCode  string         `json:"productCode"`
	ProductName  string         `json:"productName"`
	Quantity     int            `json:"quantity"`
	CompletedAt  *LocalDateTime `json:"completedAt"`
	CompletedBy  *string        `json:"completedBy"`
	CreatedAt    LocalDateTime  `json:"createdAt"`
}

func NewWorkLogResponse(e repository.WorkLogEntity) WorkLogResponse {
	r := WorkLogResponse{
		ID:           e.ID,
		WorkDatetime: LocalDateTime{Time: e.WorkDatetime},
		CarModel:     e.CarModel,
		ProductColor: e.ProductColor,
		ProductCode:  e.ProductCode,
		ProductName:  e.ProductName,
		Quantity:     e.Quantity,
		CompletedBy:  e.CompletedBy,
		CreatedAt:    LocalDateTime{Time: e.CreatedAt},
	}
	if e.CompletedAt != nil {
		r.CompletedAt = NewLocalDateTime(*e.CompletedAt)
	}
	return r
}

func NewWorkLogResponses(rows []repository.WorkLogEntity) []WorkLogResponse {
	return utils.Map(rows, NewWorkLogResponse)
}
