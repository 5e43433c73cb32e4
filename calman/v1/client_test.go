package v1

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"calman.com/worklog/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *CalmanClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCalmanClient(srv.URL, "client-1", WithHTTPClient(srv.Client()))
}

func TestListDecodesBothShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
		total int
	}{
		{
			name:  "Bare array",
			body:  `[{"id":1,"workDatetime":"2025-01-05T08:30:00","carModel":"A"},{"id":2,"workDatetime":"2025-01-05T09:00:00","carModel":"B"}]`,
			count: 2,
			total: 2,
		},
		{
			name:  "Paged envelope",
			body:  `{"workLogs":[{"id":3,"workDatetime":"2025-01-06T10:00:00","carModel":"C"}],"totalCount":41}`,
			count: 1,
			total: 41,
		},
		{
			name:  "Empty envelope",
			body:  `{"totalCount":0}`,
			count: 0,
			total: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tt.body)
			})

			res, err := client.WorkLogs.List(context.Background(), ListParams{})
			require.NoError(t, err)
			assert.Len(t, res.WorkLogs, tt.count)
			assert.Equal(t, tt.total, res.TotalCount)
			for _, w := range res.WorkLogs {
				assert.Regexp(t, `^\d{2}\.\d{2}\.\d{2} \d{2}:\d{2}$`, w.WorkDatetime)
			}
		})
	}
}

func TestListQueryParameters(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/worklogs/date/2025-01-05", r.URL.Path)
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		io.WriteString(w, `[]`)
	})

	_, err := client.WorkLogs.ListByDate(context.Background(), "2025-01-05", ListParams{
		SortField: common.SortCarModel,
		Status:    status.Incomplete,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"sortField":     "wl_car_model",
		"sortDirection": "ASC",
		"status":        "incomplete",
	}, got)
}

func TestMutationsCarryClientID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "client-1", r.Header.Get(ClientIDHeader))
		switch {
		case r.Method == http.MethodPost:
			var req model.CreateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "25.01.05 08:30", req.WorkDatetime)
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"id":9}`)
		case strings.HasSuffix(r.URL.Path, "/status"):
			io.WriteString(w, `{"message":"ok","completed":true,"completedAt":"2025-01-05T09:00:00"}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	created, err := client.WorkLogs.Create(ctx, model.CreateRequest{WorkDatetime: "25.01.05 08:30", CarModel: "A"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), created.ID)

	st, err := client.WorkLogs.UpdateStatus(ctx, 9, true)
	require.NoError(t, err)
	assert.True(t, st.Completed)

	updated, err := client.WorkLogs.Update(ctx, 9, model.UpdateRequest{WorkDatetime: "25.01.05 08:30", CarModel: "B"})
	require.NoError(t, err)
	assert.Nil(t, updated)

	require.NoError(t, client.WorkLogs.Delete(ctx, 9))
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"success":false,"message":"sheet 4 is missing"}`)
	})

	_, err := client.WorkLogs.Upload(context.Background(), "plan.xlsx", strings.NewReader("xx"), "ON SUB")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "sheet 4 is missing", apiErr.Message)
}

func TestUploadRedirectIsSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ON SUB", r.FormValue("carModel"))
		if _, fh, err := r.FormFile("file"); assert.NoError(t, err) {
			assert.Equal(t, "plan.xlsx", fh.Filename)
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})

	res, err := client.WorkLogs.Upload(context.Background(), "plan.xlsx", strings.NewReader("xx"), "ON SUB")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "/", res.Redirect)
}

func TestEventStreamFrames(t *testing.T) {
	raw := ": keep-alive\n\n" +
		"event: connect\ndata: connected\n\n" +
		"id: 4\r\nevent: worklog-created\r\ndata: {\"id\":1,\r\ndata: \"carModel\":\"A\"}\r\n\r\n" +
		"data: plain\n\n" +
		"event: worklog-deleted\ndata: {\"id\":2}"

	s := NewEventStream(io.NopCloser(strings.NewReader(raw)))

	ev, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Name: EventConnect, Data: "connected"}, ev)

	ev, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{ID: "4", Name: EventCreated, Data: "{\"id\":1,\n\"carModel\":\"A\"}"}, ev)

	ev, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Name)
	assert.Equal(t, "plain", ev.Data)

	// unterminated frame is dropped at end of stream
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSubscribeSendsLastEventID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", r.Header.Get("Last-Event-ID"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "id: 13\nevent: worklog-deleted\ndata: {\"id\":5}\n\n")
	})

	stream, err := client.Events.Subscribe(context.Background(), "12")
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{ID: "13", Name: EventDeleted, Data: `{"id":5}`}, ev)
}

func TestSubscribeRejectsErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Events.Subscribe(context.Background(), "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}
