package core

import (
	"context"
	"sync"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/calman/v1/common/status"
	"calman.com/worklog/model"
	"calman.com/worklog/utils"
	"go.uber.org/zap"
)

type ControllerConfig struct {
	UpdatePolicy UpdatePolicy
	Live         LiveConfig
	Visibility   *Visibility
	Notifier     Notifier
	Logger       *zap.Logger
	LiveOptions  []LiveOption
}

// Controller owns the current query context and the components that act on it.
// Every filter change installs a new context and rereads the view.
type Controller struct {
	Session   *Session
	Store     *RecordStore
	Query     *QueryClient
	Mutations *MutationClient
	Live      *LiveChannel

	mu sync.RWMutex
	qc QueryContext
}

func NewController(api WorkLogAPI, source EventSource, session *Session, cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if session == nil {
		session = NewSession()
	}

	c := &Controller{
		Session: session,
		Store:   NewRecordStore(),
		qc:      NewQueryContext(),
	}
	c.Query = NewQueryClient(api, c.Store, cfg.Notifier, logger.Named("query"))
	c.Mutations = NewMutationClient(api, c.Store, c.Query, session, cfg.Notifier, logger.Named("mutation"),
		WithUpdatePolicy(cfg.UpdatePolicy),
		WithQueryContext(c.Context),
	)

	liveOpts := []LiveOption{
		WithLiveConfig(cfg.Live),
		WithCurrentContext(c.Context),
		WithRefresh(func(ctx context.Context) error {
			_, err := c.Query.FetchFiltered(ctx, c.Context())
			return err
		}),
	}
	if cfg.Visibility != nil {
		liveOpts = append(liveOpts, WithVisibility(cfg.Visibility))
	}
	liveOpts = append(liveOpts, cfg.LiveOptions...)
	if source != nil {
		c.Live = NewLiveChannel(source, c.Store, cfg.Notifier, logger.Named("live"), liveOpts...)
	}
	return c
}

// NewClientController wires a controller to the REST and push endpoints of client.
func NewClientController(client *v1.CalmanClient, session *Session, cfg ControllerConfig) *Controller {
	return NewController(client.WorkLogs, StreamSource(client.Events), session, cfg)
}

func (c *Controller) Context() QueryContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.qc
}

func (c *Controller) install(fn func(QueryContext) QueryContext) QueryContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qc = fn(c.qc)
	return c.qc
}

// Start loads the initial view and opens the live channel.
func (c *Controller) Start(ctx context.Context) (*Result, error) {
	res, err := c.Refresh(ctx)
	if c.Live != nil {
		c.Live.Connect()
	}
	return res, err
}

func (c *Controller) Close() {
	if c.Live != nil {
		c.Live.Close()
	}
}

func (c *Controller) Refresh(ctx context.Context) (*Result, error) {
	return c.Query.FetchFiltered(ctx, c.Context())
}

// SetContext installs qc as a whole and rereads the view.
func (c *Controller) SetContext(ctx context.Context, qc QueryContext) (*Result, error) {
	c.install(func(QueryContext) QueryContext { return qc })
	return c.Query.FetchFiltered(ctx, qc)
}

func (c *Controller) SetSort(ctx context.Context, field common.SortField, dir common.Direction) (*Result, error) {
	qc := c.install(func(q QueryContext) QueryContext {
		return q.WithSort(field, dir).WithPage(0, q.Size())
	})
	return c.Query.FetchFiltered(ctx, qc)
}

// ToggleSort sorts by field, flipping the direction when it is already active.
func (c *Controller) ToggleSort(ctx context.Context, field common.SortField) (*Result, error) {
	qc := c.install(func(q QueryContext) QueryContext {
		return q.WithSortToggled(field).WithPage(0, q.Size())
	})
	return c.Query.FetchFiltered(ctx, qc)
}

func (c *Controller) SetStatus(ctx context.Context, s status.Status) (*Result, error) {
	qc := c.install(func(q QueryContext) QueryContext {
		return q.WithStatus(s).WithPage(0, q.Size())
	})
	return c.Query.FetchFiltered(ctx, qc)
}

// SetDate filters the view to one compact date. An invalid date leaves the
// current context in place.
func (c *Controller) SetDate(ctx context.Context, compact string) (*Result, error) {
	if _, ok := utils.ParseCompact(compact); !ok || !utils.IsCompactDateOnly(compact) {
		return c.Query.FetchByDate(ctx, compact, c.Context())
	}
	qc := c.install(func(q QueryContext) QueryContext {
		return q.WithDate(compact)
	})
	return c.Query.FetchFiltered(ctx, qc)
}

func (c *Controller) ClearDate(ctx context.Context) (*Result, error) {
	qc := c.install(func(q QueryContext) QueryContext {
		return q.WithoutDate()
	})
	return c.Query.FetchFiltered(ctx, qc)
}

// LoadMore reads the next page of the general list. The date view and an
// unpaged context have nothing more to load.
func (c *Controller) LoadMore(ctx context.Context) (*Result, error) {
	cur := c.Context()
	if cur.HasDate() || !cur.Paged() {
		return &Result{}, nil
	}

	next := cur.NextPage()
	res, err := c.Query.FetchMore(ctx, next)
	if err != nil {
		return nil, err
	}
	if !res.Stale && res.HasMore {
		c.install(func(q QueryContext) QueryContext {
			if q == cur {
				return next
			}
			return q
		})
	}
	return res, nil
}

// View is the store's records in the current presentation order.
func (c *Controller) View() []model.WorkLog {
	return Project(c.Store.Snapshot(), c.Context())
}
