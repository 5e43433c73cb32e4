package common

import (
	"fmt"
	"strings"
)

type SortField string

const (
	SortWorkDatetime SortField = "wl_work_datetime"
	SortCarModel     SortField = "wl_car_model"
	SortProductColor SortField = "wl_product_color"
	SortProductCode  SortField = "wl_product_code"
	SortProductName  SortField = "wl_product_name"
	SortQuantity     SortField = "wl_quantity"
	SortCreatedAt    SortField = "wl_created_at"
	SortCompletedAt  SortField = "wl_completed_at"
)

var sortFieldAliases = map[string]SortField{
	"workdatetime": SortWorkDatetime,
	"carmodel":     SortCarModel,
	"productcolor": SortProductColor,
	"productcode":  SortProductCode,
	"productname":  SortProductName,
	"quantity":     SortQuantity,
	"createdat":    SortCreatedAt,
	"completedat":  SortCompletedAt,
}

// ParseSortField accepts the wire names ("wl_car_model") and the record field
// names ("carModel").
func ParseSortField(s string) (SortField, error) {
	if s == "" {
		return SortWorkDatetime, nil
	}
	for _, f := range sortFieldAliases {
		if string(f) == s {
			return f, nil
		}
	}
	if f, ok := sortFieldAliases[strings.ToLower(strings.ReplaceAll(s, "_", ""))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection defaults to ascending when s is empty.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(s) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}
