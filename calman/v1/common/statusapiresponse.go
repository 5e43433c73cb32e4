package common

import (
	"bytes"
	"encoding/json"

	"calman.com/worklog/model"
)

// ListResponse is the body of the list endpoints. The backend answers either with
// a bare array or with {"workLogs": [...], "totalCount": n}.
type ListResponse struct {
	WorkLogs   []model.WorkLog `json:"workLogs"`
	TotalCount int             `json:"totalCount"`
}

func (l *ListResponse) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []model.WorkLog
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		l.WorkLogs = items
		l.TotalCount = len(items)
		return nil
	}

	type Alias ListResponse
	var a Alias
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return err
	}
	if a.WorkLogs == nil {
		a.WorkLogs = []model.WorkLog{}
	}
	if a.TotalCount == 0 {
		a.TotalCount = len(a.WorkLogs)
	}
	*l = ListResponse(a)
	return nil
}

// StatusAPIResponse is returned by PUT /api/worklogs/{id}/status.
type StatusAPIResponse struct {
	Message     string  `json:"message"`
	Completed   bool    `json:"completed"`
	CompletedAt *string `json:"completedAt,omitempty"`
	CompletedBy *string `json:"completedBy,omitempty"`
}

// UploadResponse is returned by POST /excel/upload.
type UploadResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	TotalProcessed int      `json:"totalProcessed"`
	Errors         []string `json:"errors,omitempty"`

	// Redirect is set when the backend answered with a redirect instead of JSON.
	Redirect string `json:"-"`
}

type ErrorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
