package model

import (
	"encoding/json"
	"strings"

	"calman.com/worklog/utils"
)

// WorkLog is one scheduled manufacturing task. WorkDatetime is always held in
// compact "YY.MM.DD HH:MM" form; CompletedAt and CreatedAt are ISO datetimes.
type WorkLog struct {
	ID           int64   `json:"id" validate:"gt=0"`
	WorkDatetime string  `json:"workDatetime" validate:"required,compactdatetime"`
	CarModel     string  `json:"carModel" validate:"required"`
	ProductColor string  `json:"productColor"`
	ProductCode  string  `json:"productCode"`
	ProductName  string  `json:"productName"`
	Quantity     int     `json:"quantity" validate:"gte=0"`
	CompletedAt  *string `json:"completedAt" validate:"omitempty,isodatetime"`
	CompletedBy  *string `json:"completedBy"`
	CreatedAt    string  `json:"createdAt"`
}

// UnmarshalJSON accepts the backend's ISO workDatetime as well as the compact form.
func (w *WorkLog) UnmarshalJSON(b []byte) error {
	type Alias WorkLog
	var a Alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	a.WorkDatetime = utils.NormalizeWorkDatetime(a.WorkDatetime)
	*w = WorkLog(a)
	return nil
}

func (w WorkLog) Completed() bool {
	return w.CompletedAt != nil
}

// Date returns the "YY.MM.DD" part of WorkDatetime.
func (w WorkLog) Date() string {
	date, _, _ := strings.Cut(w.WorkDatetime, " ")
	return date
}

// Clone returns a copy that shares no pointers with w.
func (w WorkLog) Clone() WorkLog {
	c := w
	if w.CompletedAt != nil {
		c.CompletedAt = utils.Ptr(*w.CompletedAt)
	}
	if w.CompletedBy != nil {
		c.CompletedBy = utils.Ptr(*w.CompletedBy)
	}
	return c
}

func (w WorkLog) ToCreateRequest() CreateRequest {
	return CreateRequest{
		WorkDatetime: w.WorkDatetime,
		CarModel:     w.CarModel,
		ProductColor: w.ProductColor,
		ProductCode:  w.ProductCode,
		ProductName:  w.ProductName,
		Quantity:     w.Quantity,
	}
}

func (w WorkLog) ToUpdateRequest() UpdateRequest {
	return UpdateRequest(w.ToCreateRequest())
}

// CreateRequest is the body of POST /api/worklogs.
type CreateRequest struct {
	WorkDatetime string `json:"workDatetime" validate:"required,compactdatetime"`
	CarModel     string `json:"carModel" validate:"required"`
	ProductColor string `json:"productColor"`
	ProductCode  string `json:"productCode"`
	ProductName  string `json:"productName"`
	Quantity     int    `json:"quantity" validate:"gte=0"`
}

// UpdateRequest is the body of PUT /api/worklogs/{id}.
type UpdateRequest CreateRequest

// StatusUpdateRequest is the body of PUT /api/worklogs/{id}/status.
type StatusUpdateRequest struct {
	Completed bool `json:"completed"`
}
