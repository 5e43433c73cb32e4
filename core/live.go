package core

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

type ChannelState int

const (
	StateDisconnected ChannelState = iota
	StateConnecting
	StateConnected
	StateError
	StateReconnecting
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	case StateReconnecting:
		return "RECONNECTING"
	}
	return "DISCONNECTED"
}

// ChannelStatus is what observers see. Live is the connection indicator: it goes
// off on a server error frame even though the stream stays open.
type ChannelStatus struct {
	State   ChannelState
	Live    bool
	Attempt int
}

type LiveConfig struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

func DefaultLiveConfig() LiveConfig {
	return LiveConfig{BaseDelay: 2 * time.Second, MaxAttempts: 5}
}

// Backoff is the delay before reconnect attempt n (1-based).
func (c LiveConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(c.BaseDelay) * math.Pow(1.5, float64(attempt-1)))
}

// AfterFunc schedules fn after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, fn func()) (stop func() bool)

func realAfter(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// LiveChannel keeps a push connection open and merges its events into the store.
type LiveChannel struct {
	source     EventSource
	store      *RecordStore
	notifier   Notifier
	logger     *zap.Logger
	cfg        LiveConfig
	visibility *Visibility
	after      AfterFunc
	refresh    func(ctx context.Context) error
	current    func() QueryContext
	observers  []func(ChannelStatus)

	mu          sync.Mutex
	state       ChannelState
	live        bool
	attempts    int
	gen         uint64
	cancel      context.CancelFunc
	stopTimer   func() bool
	deferred    bool
	started     bool
	closed      bool
	lastEventID string
	unwatch     func()
	wg          sync.WaitGroup
}

type LiveOption func(*LiveChannel)

func WithLiveConfig(cfg LiveConfig) LiveOption {
	return func(c *LiveChannel) {
		if cfg.BaseDelay > 0 {
			c.cfg.BaseDelay = cfg.BaseDelay
		}
		if cfg.MaxAttempts > 0 {
			c.cfg.MaxAttempts = cfg.MaxAttempts
		}
	}
}

func WithVisibility(v *Visibility) LiveOption {
	return func(c *LiveChannel) {
		c.visibility = v
	}
}

// WithAfterFunc replaces the reconnect timer. The callback must not be invoked
// synchronously from inside the scheduling call.
func WithAfterFunc(after AfterFunc) LiveOption {
	return func(c *LiveChannel) {
		c.after = after
	}
}

// WithRefresh sets the read used when an update arrives for a record that is not
// in the store.
func WithRefresh(refresh func(ctx context.Context) error) LiveOption {
	return func(c *LiveChannel) {
		c.refresh = refresh
	}
}

// WithCurrentContext sets where the channel reads the active date filter.
func WithCurrentContext(current func() QueryContext) LiveOption {
	return func(c *LiveChannel) {
		c.current = current
	}
}

// WithStatusObserver registers fn for state and indicator changes. Observers run
// on the channel's goroutines and must not call Close.
func WithStatusObserver(fn func(ChannelStatus)) LiveOption {
	return func(c *LiveChannel) {
		c.observers = append(c.observers, fn)
	}
}

func NewLiveChannel(source EventSource, store *RecordStore, notifier Notifier, logger *zap.Logger, opts ...LiveOption) *LiveChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &LiveChannel{
		source:     source,
		store:      store,
		notifier:   notifier,
		logger:     logger,
		cfg:        DefaultLiveConfig(),
		visibility: NewVisibility(),
		after:      realAfter,
		current:    NewQueryContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LiveChannel) Status() ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *LiveChannel) State() ChannelState {
	return c.Status().State
}

// Connect opens the push connection. It does nothing while connected or
// connecting; a pending reconnect is replaced by an immediate attempt.
func (c *LiveChannel) Connect() {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	if c.state == StateDisconnected {
		c.attempts = 0
	}
	c.closed = false
	c.started = true
	if c.unwatch == nil && c.visibility != nil {
		c.unwatch = c.visibility.OnChange(c.onVisibility)
	}
	c.stopPendingLocked()
	c.dialLocked()
	st := c.statusLocked()
	c.mu.Unlock()

	c.emit(st)
}

// Close tears down the connection and any pending reconnect. It is safe to call
// more than once and returns after the reader goroutine has exited.
func (c *LiveChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.stopPendingLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	changed := c.state != StateDisconnected || c.live
	c.state = StateDisconnected
	c.live = false
	unwatch := c.unwatch
	c.unwatch = nil
	st := c.statusLocked()
	c.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	c.wg.Wait()
	if changed {
		c.emit(st)
	}
	c.logger.Debug("live channel closed")
}

func (c *LiveChannel) dialLocked() {
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = StateConnecting
	c.deferred = false
	lastID := c.lastEventID

	c.wg.Add(1)
	go c.run(ctx, gen, lastID)
}

func (c *LiveChannel) stopPendingLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.deferred = false
}

func (c *LiveChannel) run(ctx context.Context, gen uint64, lastID string) {
	defer c.wg.Done()

	stream, err := c.source(ctx, lastID)
	if err != nil {
		c.fail(gen, err)
		return
	}
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer func() {
		if stop() {
			stream.Close()
		}
	}()

	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			c.fail(gen, err)
			return
		}
		if !c.track(gen, ev.ID) {
			return
		}
		c.handle(ctx, gen, DecodeEvent(ev))
	}
}

// track records the frame id and reports whether gen is still the live connection.
func (c *LiveChannel) track(gen uint64, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		return false
	}
	if id != "" {
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			c.lastEventID = id
		}
	}
	return true
}

func (c *LiveChannel) handle(ctx context.Context, gen uint64, ev LiveEvent) {
	switch e := ev.(type) {
	case ConnectedEvent:
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.attempts = 0
		c.state = StateConnected
		c.live = true
		st := c.statusLocked()
		c.mu.Unlock()

		c.logger.Info("live channel connected", zap.String("message", e.Message))
		c.emit(st)
		notify(c.notifier, LevelInfo, "Live updates connected", 2*time.Second)

	case UpdatedEvent:
		if c.store.ReplaceExisting(e.Record) {
			notify(c.notifier, LevelInfo, "Work log updated", ShortNotice)
			return
		}
		// the record may belong to the active filter; reread the view
		if c.refresh != nil {
			if err := c.refresh(ctx); err != nil {
				c.logger.Warn("refresh for unknown record failed", zap.Int64("id", e.Record.ID), zap.Error(err))
			}
		}

	case CreatedEvent:
		qc := c.current()
		if qc.HasDate() && e.Record.Date() != qc.Date() {
			c.logger.Debug("ignoring created record outside date filter",
				zap.Int64("id", e.Record.ID),
				zap.String("date", e.Record.Date()),
			)
			return
		}
		if c.store.InsertNew(e.Record) {
			notify(c.notifier, LevelInfo, "Work log added", ShortNotice)
		}

	case DeletedEvent:
		if c.store.Has(e.ID) {
			c.store.RemoveByIDs([]int64{e.ID})
			notify(c.notifier, LevelInfo, "Work log deleted", ShortNotice)
		}

	case ErrorEvent:
		c.mu.Lock()
		c.live = false
		st := c.statusLocked()
		c.mu.Unlock()

		c.logger.Warn("live channel error frame", zap.String("message", e.Message))
		c.emit(st)

	case RejectedEvent:
		c.logger.Warn("rejected live event",
			zap.String("event", e.Name),
			zap.String("data", e.Data),
			zap.Error(e.Reason),
		)
	}
}

func (c *LiveChannel) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.live = false
	c.state = StateError
	errStatus := c.statusLocked()
	cerr := &ChannelError{Attempt: c.attempts, Err: err}

	if c.attempts >= c.cfg.MaxAttempts {
		c.state = StateDisconnected
		st := c.statusLocked()
		c.mu.Unlock()

		c.logger.Error("live channel giving up", zap.Error(&ChannelError{Attempt: cerr.Attempt, Err: ErrReconnectExhausted}), zap.NamedError("cause", err))
		c.emit(errStatus)
		c.emit(st)
		notify(c.notifier, LevelError, "Live updates could not be restored. Reload to try again.", 0)
		return
	}

	c.attempts++
	delay := c.cfg.Backoff(c.attempts)
	c.state = StateReconnecting
	c.stopTimer = c.after(delay, func() { c.reconnectDue(gen) })
	st := c.statusLocked()
	c.mu.Unlock()

	c.logger.Warn("live channel dropped",
		zap.Error(cerr),
		zap.Int("attempt", st.Attempt),
		zap.Int("max_attempts", c.cfg.MaxAttempts),
		zap.Duration("delay", delay),
	)
	c.emit(errStatus)
	c.emit(st)
}

func (c *LiveChannel) reconnectDue(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.stopTimer = nil
	if c.visibility != nil && !c.visibility.Visible() {
		c.deferred = true
		c.mu.Unlock()
		c.logger.Debug("reconnect deferred until visible")
		return
	}
	c.dialLocked()
	st := c.statusLocked()
	c.mu.Unlock()

	c.emit(st)
}

func (c *LiveChannel) onVisibility(visible bool) {
	if !visible {
		return
	}
	c.mu.Lock()
	if c.closed || !c.started {
		c.mu.Unlock()
		return
	}
	switch {
	case c.state == StateReconnecting && c.deferred:
		c.dialLocked()
	case c.state == StateDisconnected:
		// one fresh attempt; the counter is kept so a failure does not restart retries
		c.dialLocked()
	default:
		c.mu.Unlock()
		return
	}
	st := c.statusLocked()
	c.mu.Unlock()

	c.emit(st)
}

func (c *LiveChannel) statusLocked() ChannelStatus {
	return ChannelStatus{State: c.state, Live: c.live, Attempt: c.attempts}
}

func (c *LiveChannel) emit(st ChannelStatus) {
	for _, fn := range c.observers {
		fn(st)
	}
}
