package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"calman.com/worklog/model"
)

// ListParams are the query parameters shared by the list endpoints. Zero values
// are omitted from the query string, except the direction which defaults to ASC.
type ListParams struct {
	SortField     common.SortField
	SortDirection common.Direction
	Status        status.Status
	Page          int
	Size          int
}

func (p ListParams) query() map[string]string {
	q := map[string]string{}
	if p.SortField != "" {
		q["sortField"] = string(p.SortField)
		dir := p.SortDirection
		if dir == "" {
			dir = common.Asc
		}
		q["sortDirection"] = string(dir)
	}
	if p.Status != status.All {
		q["status"] = string(p.Status)
	}
	if p.Page > 0 {
		q["page"] = strconv.Itoa(p.Page)
	}
	if p.Size > 0 {
		q["size"] = strconv.Itoa(p.Size)
	}
	return q
}

type WorkLogEndpoint struct {
	transport *Transport
}

func (this *WorkLogEndpoint) List(ctx context.Context, params ListParams) (*common.ListResponse, error) {
	resp, err := this.transport.Get(ctx, "/api/worklogs", params.query())
	if err != nil {
		return nil, err
	}
	return decodeList(resp)
}

// ListByDate lists the records of one day; isoDate is "YYYY-MM-DD".
func (this *WorkLogEndpoint) ListByDate(ctx context.Context, isoDate string, params ListParams) (*common.ListResponse, error) {
	resp, err := this.transport.Get(ctx, "/api/worklogs/date/"+url.PathEscape(isoDate), params.query())
	if err != nil {
		return nil, err
	}
	return decodeList(resp)
}

func decodeList(resp *Response) (*common.ListResponse, error) {
	var result common.ListResponse
	if len(bytes.TrimSpace(resp.Data)) == 0 {
		result.WorkLogs = []model.WorkLog{}
		return &result, nil
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("decode work log list: %w", err)
	}
	return &result, nil
}

func (this *WorkLogEndpoint) Get(ctx context.Context, id int64) (*model.WorkLog, error) {
	resp, err := this.transport.Get(ctx, fmt.Sprintf("/api/worklogs/%d", id), nil)
	if err != nil {
		return nil, err
	}
	var result model.WorkLog
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("decode work log %d: %w", id, err)
	}
	return &result, nil
}

// Create posts a new record. The backend may answer with the full record or only
// {"id": n}; in the latter case only ID is set on the result.
func (this *WorkLogEndpoint) Create(ctx context.Context, req model.CreateRequest) (*model.WorkLog, error) {
	resp, err := this.transport.Post(ctx, "/api/worklogs", req)
	if err != nil {
		return nil, err
	}
	var result model.WorkLog
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("decode created work log: %w", err)
	}
	return &result, nil
}

// Update returns the updated record when the backend sends one, nil otherwise.
func (this *WorkLogEndpoint) Update(ctx context.Context, id int64, req model.UpdateRequest) (*model.WorkLog, error) {
	resp, err := this.transport.Put(ctx, fmt.Sprintf("/api/worklogs/%d", id), req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(resp.Data)) == 0 {
		return nil, nil
	}
	var result model.WorkLog
	if err := json.Unmarshal(resp.Data, &result); err != nil || result.ID == 0 || result.WorkDatetime == "" {
		return nil, nil
	}
	return &result, nil
}

func (this *WorkLogEndpoint) UpdateStatus(ctx context.Context, id int64, completed bool) (*common.StatusAPIResponse, error) {
	resp, err := this.transport.Put(ctx, fmt.Sprintf("/api/worklogs/%d/status", id), model.StatusUpdateRequest{Completed: completed})
	if err != nil {
		return nil, err
	}
	result := common.StatusAPIResponse{Completed: completed}
	if len(bytes.TrimSpace(resp.Data)) > 0 {
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, fmt.Errorf("decode status response: %w", err)
		}
	}
	return &result, nil
}

func (this *WorkLogEndpoint) Delete(ctx context.Context, id int64) error {
	_, err := this.transport.Delete(ctx, fmt.Sprintf("/api/worklogs/%d", id))
	return err
}

// Upload sends a spreadsheet to the batch import endpoint. A redirect answer is
// a success with Redirect set to the target.
func (this *WorkLogEndpoint) Upload(ctx context.Context, filename string, r io.Reader, carModel string) (*common.UploadResponse, error) {
	resp, err := this.transport.Upload(ctx, "/excel/upload", "file", filename, r, map[string]string{"carModel": carModel})
	if err != nil {
		return nil, err
	}
	if resp.Redirected() {
		return &common.UploadResponse{Success: true, Redirect: resp.Header.Get("Location")}, nil
	}

	var result common.UploadResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result, nil
}
