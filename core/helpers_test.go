package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/model"
	"calman.com/worklog/utils"
)

func record(id int64, datetime, carModel string) model.WorkLog {
	return model.WorkLog{
		ID:           id,
		WorkDatetime: datetime,
		CarModel:     carModel,
		Quantity:     int(id),
		CreatedAt:    "2025-01-01T00:00:00",
	}
}

func ids(records []model.WorkLog) []int64 {
	return utils.Map(records, func(r model.WorkLog) int64 { return r.ID })
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return utils.Map(r.notices, func(n Notice) string { return n.Message })
}

func (r *noticeRecorder) Last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

// fakeAPI is an in-memory backend.
type fakeAPI struct {
	mu      sync.Mutex
	records map[int64]model.WorkLog
	nextID  int64
	calls   []string

	listHook     func(ctx context.Context, params v1.ListParams) (*common.ListResponse, error)
	deleteErrs   map[int64]error
	updateErr    error
	updateBody   bool
	statusErr    error
	createIDOnly bool
	uploadResp   *common.UploadResponse
	uploadErr    error
	listErr      error
}

func newFakeAPI(records ...model.WorkLog) *fakeAPI {
	f := &fakeAPI{records: map[int64]model.WorkLog{}, deleteErrs: map[int64]error{}}
	for _, r := range records {
		f.records[r.ID] = r
		f.nextID = max(f.nextID, r.ID)
	}
	return f
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeAPI) sorted(filter func(model.WorkLog) bool) []model.WorkLog {
	out := []model.WorkLog{}
	for _, r := range f.records {
		if filter(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.WorkLog) int { return int(a.ID - b.ID) })
	return out
}

func (f *fakeAPI) List(ctx context.Context, params v1.ListParams) (*common.ListResponse, error) {
	f.mu.Lock()
	f.record(fmt.Sprintf("list page=%d", params.Page))
	hook, listErr := f.listHook, f.listErr
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, params)
	}
	if listErr != nil {
		return nil, listErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.sorted(func(r model.WorkLog) bool { return params.Status.Includes(r.Completed()) })
	total := len(items)
	if params.Size > 0 {
		start := min(params.Page*params.Size, len(items))
		end := min(start+params.Size, len(items))
		items = items[start:end]
	}
	return &common.ListResponse{WorkLogs: items, TotalCount: total}, nil
}

func (f *fakeAPI) ListByDate(ctx context.Context, isoDate string, params v1.ListParams) (*common.ListResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("date " + isoDate)
	if f.listErr != nil {
		return nil, f.listErr
	}
	compact := utils.ToCompactDate(isoDate)
	items := f.sorted(func(r model.WorkLog) bool {
		return r.Date() == compact && params.Status.Includes(r.Completed())
	})
	return &common.ListResponse{WorkLogs: items, TotalCount: len(items)}, nil
}

func (f *fakeAPI) Get(ctx context.Context, id int64) (*model.WorkLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("get %d", id))
	r, ok := f.records[id]
	if !ok {
		return nil, &v1.APIError{Method: "GET", Path: "/api/worklogs", StatusCode: 404}
	}
	return &r, nil
}

func (f *fakeAPI) Create(ctx context.Context, req model.CreateRequest) (*model.WorkLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	f.nextID++
	r := model.WorkLog{
		ID:           f.nextID,
		WorkDatetime: req.WorkDatetime,
		CarModel:     req.CarModel,
		ProductColor: req.ProductColor,
		ProductCode:  req.ProductCode,
		ProductName:  req.ProductName,
		Quantity:     req.Quantity,
		CreatedAt:    "2025-01-05T08:00:00",
	}
	f.records[r.ID] = r
	if f.createIDOnly {
		return &model.WorkLog{ID: r.ID}, nil
	}
	return &r, nil
}

func (f *fakeAPI) Update(ctx context.Context, id int64, req model.UpdateRequest) (*model.WorkLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("update %d", id))
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	r, ok := f.records[id]
	if !ok {
		return nil, &v1.APIError{Method: "PUT", Path: "/api/worklogs", StatusCode: 404}
	}
	r.WorkDatetime = req.WorkDatetime
	r.CarModel = req.CarModel
	r.ProductColor = req.ProductColor
	r.ProductCode = req.ProductCode
	r.ProductName = req.ProductName
	r.Quantity = req.Quantity
	f.records[id] = r
	if f.updateBody {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeAPI) UpdateStatus(ctx context.Context, id int64, completed bool) (*common.StatusAPIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("status %d %v", id, completed))
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	r := f.records[id]
	resp := &common.StatusAPIResponse{Message: "ok", Completed: completed}
	if completed {
		r.CompletedAt = utils.Ptr("2025-01-05T09:00:00")
		resp.CompletedAt = r.CompletedAt
	} else {
		r.CompletedAt = nil
	}
	f.records[id] = r
	return resp, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("delete %d", id))
	if err := f.deleteErrs[id]; err != nil {
		return err
	}
	delete(f.records, id)
	return nil
}

func (f *fakeAPI) Upload(ctx context.Context, filename string, r io.Reader, carModel string) (*common.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upload " + filename + " " + carModel)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if f.uploadResp != nil {
		return f.uploadResp, nil
	}
	return &common.UploadResponse{Success: true, TotalProcessed: 0}, nil
}

// fakeStream is a push stream fed by the test.
type fakeStream struct {
	frames chan v1.Event
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frames: make(chan v1.Event, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (s *fakeStream) Next() (v1.Event, error) {
	select {
	case ev := <-s.frames:
		return ev, nil
	case err := <-s.errs:
		return v1.Event{}, err
	case <-s.done:
		return v1.Event{}, io.ErrClosedPipe
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeStream) Send(name, data string) {
	s.frames <- v1.Event{Name: name, Data: data}
}

func (s *fakeStream) SendID(id, name, data string) {
	s.frames <- v1.Event{ID: id, Name: name, Data: data}
}

func (s *fakeStream) Drop() {
	s.errs <- io.EOF
}

type fakeSource struct {
	mu      sync.Mutex
	dials   int
	lastIDs []string
	fail    bool
	streams chan *fakeStream
}

func newFakeSource() *fakeSource {
	return &fakeSource{streams: make(chan *fakeStream, 16)}
}

func (f *fakeSource) Open(ctx context.Context, lastEventID string) (EventReader, error) {
	f.mu.Lock()
	f.dials++
	f.lastIDs = append(f.lastIDs, lastEventID)
	fail := f.fail
	f.mu.Unlock()

	if fail {
		return nil, errors.New("connection refused")
	}
	s := newFakeStream()
	f.streams <- s
	return s, nil
}

func (f *fakeSource) SetFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSource) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeSource) LastIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.lastIDs)
}

func (f *fakeSource) Next(timeout time.Duration) *fakeStream {
	select {
	case s := <-f.streams:
		return s
	case <-time.After(timeout):
		return nil
	}
}

// fakeClock collects reconnect timers; the test fires them by hand.
type fakeClock struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []*fakeTimer
}

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (c *fakeClock) After(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: fn}
	c.delays = append(c.delays, d)
	c.pending = append(c.pending, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		was := !t.stopped
		t.stopped = true
		return was
	}
}

// Fire runs the oldest live timer and reports whether there was one.
func (c *fakeClock) Fire() bool {
	c.mu.Lock()
	var t *fakeTimer
	for len(c.pending) > 0 {
		t, c.pending = c.pending[0], c.pending[1:]
		if !t.stopped {
			break
		}
		t = nil
	}
	if t != nil {
		t.stopped = true
	}
	c.mu.Unlock()

	if t == nil {
		return false
	}
	t.fn()
	return true
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.delays)
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}
