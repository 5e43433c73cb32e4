package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"calman.com/worklog/utils"
	"go.uber.org/zap"
)

// Result describes an applied (or discarded) read.
type Result struct {
	Count   int
	Total   int
	Stale   bool
	HasMore bool
}

// QueryClient issues list reads and installs their results in the store. Each
// replacing read takes a sequence number; a response older than the last
// applied one is discarded so the most recent request always wins. A page read
// is discarded when a replacing read was issued after it.
type QueryClient struct {
	api      WorkLogAPI
	store    *RecordStore
	notifier Notifier
	logger   *zap.Logger

	issued  atomic.Uint64
	mu      sync.Mutex
	applied uint64
}

// MaxPageSize is the largest page the backend serves.
const MaxPageSize = 500

func NewQueryClient(api WorkLogAPI, store *RecordStore, notifier Notifier, logger *zap.Logger) *QueryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryClient{api: api, store: store, notifier: notifier, logger: logger}
}

// FetchAll reads the general list with the context's sort and status and
// replaces the store.
func (q *QueryClient) FetchAll(ctx context.Context, qc QueryContext) (*Result, error) {
	seq := q.issued.Add(1)
	params := qc.loadedParams()
	resp, err := q.api.List(ctx, params)
	if err != nil {
		return nil, q.failed("fetch work logs", err, q.superseded(seq))
	}

	res := &Result{Count: len(resp.WorkLogs), Total: resp.TotalCount}
	if params.Size > 0 {
		if resp.TotalCount > 0 {
			res.HasMore = res.Count < resp.TotalCount
		} else {
			res.HasMore = res.Count == params.Size
		}
	}
	res.Stale = !q.apply(seq, func() { q.store.ReplaceAll(resp.WorkLogs) })
	return res, nil
}

// FetchByDate reads one day. compactDate must be "YY.MM.DD"; anything else is
// rejected without a request.
func (q *QueryClient) FetchByDate(ctx context.Context, compactDate string, qc QueryContext) (*Result, error) {
	if _, ok := utils.ParseCompact(compactDate); !ok || !utils.IsCompactDateOnly(compactDate) {
		verr := &ValidationError{
			Field:   "date",
			Message: fmt.Sprintf("invalid date %q, expected YY.MM.DD", compactDate),
		}
		notify(q.notifier, LevelWarning, verr.Message, DefaultNotice)
		return nil, verr
	}

	seq := q.issued.Add(1)
	resp, err := q.api.ListByDate(ctx, utils.ToISODate(compactDate), qc.listParams())
	if err != nil {
		return nil, q.failed("fetch work logs for "+compactDate, err, q.superseded(seq))
	}

	res := &Result{Count: len(resp.WorkLogs), Total: resp.TotalCount}
	if !q.apply(seq, func() { q.store.ReplaceAll(resp.WorkLogs) }) {
		res.Stale = true
		return res, nil
	}

	if res.Count > 0 {
		notify(q.notifier, LevelInfo, fmt.Sprintf("%d records found for date %s", res.Count, compactDate), DefaultNotice)
	} else {
		notify(q.notifier, LevelInfo, fmt.Sprintf("no records found for date %s", compactDate), DefaultNotice)
	}
	return res, nil
}

// FetchFiltered uses the date endpoint when the context has a date filter and
// the general list otherwise.
func (q *QueryClient) FetchFiltered(ctx context.Context, qc QueryContext) (*Result, error) {
	if qc.HasDate() {
		return q.FetchByDate(ctx, qc.Date(), qc)
	}
	return q.FetchAll(ctx, qc)
}

// FetchMore reads the context's page and merges it into the store. HasMore is
// false once the backend returns an empty page.
func (q *QueryClient) FetchMore(ctx context.Context, qc QueryContext) (*Result, error) {
	base := q.issued.Load()
	resp, err := q.api.List(ctx, qc.pageParams())
	if err != nil {
		return nil, q.failed("fetch more work logs", err, q.issued.Load() != base)
	}

	res := &Result{Count: len(resp.WorkLogs), Total: resp.TotalCount, HasMore: len(resp.WorkLogs) > 0}
	if !q.applyPage(base, func() { q.store.UpsertMany(resp.WorkLogs) }) {
		res.Stale = true
	}
	return res, nil
}

// applyPage merges a page unless a replacing read was issued since base.
func (q *QueryClient) applyPage(base uint64, fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if latest := q.issued.Load(); latest != base {
		q.logger.Debug("discarding page issued before a reload",
			zap.Uint64("base", base),
			zap.Uint64("issued", latest),
		)
		return false
	}
	fn()
	return true
}

// superseded reports whether a newer replacing read has already been applied.
func (q *QueryClient) superseded(seq uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return seq < q.applied
}

func (q *QueryClient) apply(seq uint64, fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if seq < q.applied {
		q.logger.Debug("discarding stale response",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", q.applied),
		)
		return false
	}
	q.applied = seq
	fn()
	return true
}

// failed wraps err. A read that a newer one already replaced fails quietly.
func (q *QueryClient) failed(op string, err error, superseded bool) error {
	terr := &TransportError{Op: op, Err: err}
	if superseded {
		q.logger.Debug("superseded read failed", zap.String("op", op), zap.Error(err))
		return terr
	}
	q.logger.Warn("read failed", zap.String("op", op), zap.Error(err))
	notify(q.notifier, LevelError, "Failed to load work logs: "+describeTransport(terr), DefaultNotice)
	return terr
}

func describeTransport(e *TransportError) string {
	if msg := e.ServerMessage(); msg != "" {
		return msg
	}
	if code := e.StatusCode(); code != 0 {
		return fmt.Sprintf("server responded %d", code)
	}
	return e.Err.Error()
}
