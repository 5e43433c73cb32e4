package common

// PageResponse is the list body when the caller asked for a page.
type PageResponse struct {
	WorkLogs   interface{} `json:"workLogs"`
	TotalCount int64       `json:"totalCount"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
}

func NewPageResponse(data interface{}, total int64, page, size int) *PageResponse {
	return &PageResponse{
		WorkLogs:   data,
		TotalCount: total,
		Page:       page,
		Size:       size,
	}
}
