package worklog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apicommon "calman.com/worklog/calman/v1/common"
	"calman.com/worklog/model"
	"calman.com/worklog/web/broker"
	"calman.com/worklog/web/common"
	"calman.com/worklog/web/middlewares"
	"calman.com/worklog/web/repository"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	repo   *repository.MemoryRepository
	events *broker.Broker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: repository.NewMemoryRepository(), events: broker.New(0, nil)}

	base := common.Handler{Repo: f.repo, Events: f.events, Logger: zap.NewNop()}
	endpoint := &Endpoint{base: base, now: func() time.Time {
		return time.Date(2025, 1, 5, 9, 15, 30, 0, time.Local)
	}}

	f.router = gin.New()
	f.router.Use(middlewares.ClientID())
	g := f.router.Group("/api/worklogs")
	g.GET("", endpoint.List)
	g.GET("/date/:date", endpoint.ListByDate)
	g.GET("/:id", endpoint.Get)
	g.POST("", endpoint.Create)
	g.PUT("/:id", endpoint.Update)
	g.PUT("/:id/status", endpoint.UpdateStatus)
	g.DELETE("/:id", endpoint.Delete)

	for _, req := range []model.CreateRequest{
		{WorkDatetime: "25.01.05 08:00", CarModel: "ON SUB", Quantity: 3},
		{WorkDatetime: "25.01.05 07:00", CarModel: "AR1 조립", Quantity: 10},
		{WorkDatetime: "25.01.06 09:00", CarModel: "MX5a-분리", Quantity: 1},
	} {
		e, err := repository.NewEntity(req)
		require.NoError(t, err)
		require.NoError(t, f.repo.Create(context.Background(), e))
	}
	return f
}

func (f *fixture) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) apicommon.ListResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res apicommon.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func listIDs(res apicommon.ListResponse) []int64 {
	out := make([]int64, len(res.WorkLogs))
	for i, w := range res.WorkLogs {
		out[i] = w.ID
	}
	return out
}

func TestList(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		path     string
		expected []int64
		total    int
		envelope bool
	}{
		{name: "Bare array by work datetime", path: "/api/worklogs", expected: []int64{2, 1, 3}, total: 3},
		{name: "Sorted by quantity descending", path: "/api/worklogs?sortField=wl_quantity&sortDirection=DESC", expected: []int64{2, 1, 3}, total: 3},
		{name: "Sorted by car model", path: "/api/worklogs?sortField=carModel", expected: []int64{2, 3, 1}, total: 3},
		{name: "Paged envelope", path: "/api/worklogs?page=1&size=2", expected: []int64{3}, total: 3, envelope: true},
		{name: "One day", path: "/api/worklogs/date/2025-01-05", expected: []int64{2, 1}, total: 2},
		{name: "One day in compact form", path: "/api/worklogs/date/25.01.06", expected: []int64{3}, total: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.path, nil, nil)
			res := decodeList(t, rec)
			assert.Equal(t, tt.expected, listIDs(res))
			assert.Equal(t, tt.total, res.TotalCount)
			assert.Equal(t, tt.envelope, bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")))
		})
	}
}

func TestListRejectsBadParameters(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/api/worklogs?sortField=colour",
		"/api/worklogs?sortDirection=sideways",
		"/api/worklogs?status=maybe",
		"/api/worklogs?page=-1&size=10",
		"/api/worklogs/date/yesterday",
	} {
		rec := f.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestWorkDatetimeIsServedAsISO(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/worklogs/1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "2025-01-05T08:00:00", raw["workDatetime"])
	assert.Nil(t, raw["completedAt"])

	var w model.WorkLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, "25.01.05 08:00", w.WorkDatetime)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	sub := f.events.Subscribe(0)
	defer sub.Close()

	rec := f.do(http.MethodPost, "/api/worklogs", model.CreateRequest{
		WorkDatetime: "25.01.07 10:30", CarModel: "ON SUB", ProductCode: "82650R6400PE2", Quantity: 4,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id": 4}`, rec.Body.String())

	ev := <-sub.Events
	assert.Equal(t, broker.EventCreated, ev.Name)
	assert.Equal(t, int64(4), ev.Data.(common.WorkLogResponse).ID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{
			name:    "Missing car model",
			body:    model.CreateRequest{WorkDatetime: "25.01.07 10:30"},
			message: "Field 'carModel' is required",
		},
		{
			name:    "ISO datetime",
			body:    model.CreateRequest{WorkDatetime: "2025-01-07T10:30:00", CarModel: "ON SUB"},
			message: "Field 'workDatetime' must be in YY.MM.DD HH:MM format",
		},
		{
			name:    "Quantity of the wrong type",
			body:    map[string]any{"workDatetime": "25.01.07 10:30", "carModel": "ON SUB", "quantity": "many"},
			message: "Field 'quantity' should be of type int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/worklogs", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var res common.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestUpdateReturnsRecord(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/worklogs/1", model.UpdateRequest{
		WorkDatetime: "25.01.05 08:45", CarModel: "ON SUB", Quantity: 6,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var w model.WorkLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, int64(1), w.ID)
	assert.Equal(t, "25.01.05 08:45", w.WorkDatetime)
	assert.Equal(t, 6, w.Quantity)

	rec = f.do(http.MethodPut, "/api/worklogs/42", model.UpdateRequest{
		WorkDatetime: "25.01.05 08:45", CarModel: "ON SUB",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{middlewares.ClientIDHeader: "client-a"}

	rec := f.do(http.MethodPut, "/api/worklogs/2/status", model.StatusUpdateRequest{Completed: true}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res apicommon.StatusAPIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Completed)
	assert.Equal(t, "2025-01-05T09:15:30", *res.CompletedAt)
	assert.Equal(t, "client-a", *res.CompletedBy)

	completed := decodeList(t, f.do(http.MethodGet, "/api/worklogs?status=completed", nil, nil))
	assert.Equal(t, []int64{2}, listIDs(completed))

	rec = f.do(http.MethodPut, "/api/worklogs/2/status", model.StatusUpdateRequest{Completed: false}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	res = apicommon.StatusAPIResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Completed)
	assert.Nil(t, res.CompletedAt)

	incomplete := decodeList(t, f.do(http.MethodGet, "/api/worklogs?status=incomplete", nil, nil))
	assert.Equal(t, []int64{2, 1, 3}, listIDs(incomplete))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	sub := f.events.Subscribe(0)
	defer sub.Close()

	rec := f.do(http.MethodDelete, "/api/worklogs/3", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ev := <-sub.Events
	assert.Equal(t, broker.EventDeleted, ev.Name)
	assert.Equal(t, broker.DeletedPayload{ID: 3}, ev.Data)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/worklogs/3", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/api/worklogs/abc", nil, nil).Code)
}
