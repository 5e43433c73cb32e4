package core

import (
	"context"
	"sync"
	"testing"
	"time"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second
const tick = 5 * time.Millisecond

type liveFixture struct {
	source   *fakeSource
	clock    *fakeClock
	store    *RecordStore
	notices  *noticeRecorder
	vis      *Visibility
	channel  *LiveChannel
	refresh  int
	qc       QueryContext
	mu       sync.Mutex
	statuses []ChannelStatus
}

func newLiveFixture(t *testing.T, seed ...model.WorkLog) *liveFixture {
	t.Helper()
	f := &liveFixture{
		source:  newFakeSource(),
		clock:   &fakeClock{},
		store:   NewRecordStore(),
		notices: &noticeRecorder{},
		vis:     NewVisibility(),
		qc:      NewQueryContext(),
	}
	f.store.ReplaceAll(seed)
	f.channel = NewLiveChannel(f.source.Open, f.store, f.notices, nil,
		WithVisibility(f.vis),
		WithAfterFunc(f.clock.After),
		WithCurrentContext(func() QueryContext {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.qc
		}),
		WithRefresh(func(ctx context.Context) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.refresh++
			return nil
		}),
		WithStatusObserver(func(st ChannelStatus) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.statuses = append(f.statuses, st)
		}),
	)
	t.Cleanup(f.channel.Close)
	return f
}

func (f *liveFixture) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh
}

// connect opens the channel and delivers the server's connect frame.
func (f *liveFixture) connect(t *testing.T) *fakeStream {
	t.Helper()
	f.channel.Connect()
	stream := f.source.Next(waitFor)
	require.NotNil(t, stream)
	stream.Send(v1.EventConnect, "connected - ID: 1")
	require.Eventually(t, func() bool { return f.channel.State() == StateConnected }, waitFor, tick)
	return stream
}

func TestLiveConnect(t *testing.T) {
	f := newLiveFixture(t)
	assert.Equal(t, StateDisconnected, f.channel.State())

	f.connect(t)
	assert.True(t, f.channel.Status().Live)

	// already connected
	f.channel.Connect()
	assert.Equal(t, 1, f.source.Dials())
	assert.Contains(t, f.notices.Messages(), "Live updates connected")
}

func TestLiveMergesEvents(t *testing.T) {
	f := newLiveFixture(t, record(1, "25.01.05 08:00", "A"), record(2, "25.01.05 09:00", "B"))
	stream := f.connect(t)

	stream.Send(v1.EventCreated, `{"id":3,"workDatetime":"2025-01-05T10:00:00","carModel":"C","quantity":1}`)
	stream.Send(v1.EventUpdated, `{"id":1,"workDatetime":"2025-01-05T08:00:00","carModel":"A2","quantity":1}`)
	stream.Send(v1.EventDeleted, `{"id":2}`)

	require.Eventually(t, func() bool { return !f.store.Has(2) }, waitFor, tick)
	assert.Equal(t, []int64{3, 1}, ids(f.store.Snapshot()))
	got, _ := f.store.Get(1)
	assert.Equal(t, "A2", got.CarModel)
	assert.Zero(t, f.Refreshes())
}

func TestLiveDeleteUnknownIsNoop(t *testing.T) {
	f := newLiveFixture(t, record(1, "25.01.05 08:00", "A"))
	stream := f.connect(t)
	before := f.store.Snapshot()

	stream.Send(v1.EventDeleted, `{"id":77}`)
	// a later frame proves the delete was processed
	stream.Send(v1.EventCreated, `{"id":5,"workDatetime":"25.01.05 11:00","carModel":"E"}`)
	require.Eventually(t, func() bool { return f.store.Has(5) }, waitFor, tick)

	f.store.RemoveByIDs([]int64{5})
	assert.Equal(t, before, f.store.Snapshot())
}

func TestLiveUpdateForUnknownRecordRefreshes(t *testing.T) {
	f := newLiveFixture(t)
	stream := f.connect(t)

	stream.Send(v1.EventUpdated, `{"id":9,"workDatetime":"25.01.05 08:00","carModel":"X"}`)
	require.Eventually(t, func() bool { return f.Refreshes() == 1 }, waitFor, tick)
	assert.Zero(t, f.store.Len())
}

func TestLiveCreatedRespectsDateFilter(t *testing.T) {
	f := newLiveFixture(t)
	f.qc = NewQueryContext().WithDate("25.01.05")
	stream := f.connect(t)

	stream.Send(v1.EventCreated, `{"id":1,"workDatetime":"2025-01-06T08:00:00","carModel":"other day"}`)
	stream.Send(v1.EventCreated, `{"id":2,"workDatetime":"2025-01-05T08:00:00","carModel":"same day"}`)

	require.Eventually(t, func() bool { return f.store.Has(2) }, waitFor, tick)
	assert.False(t, f.store.Has(1))
}

func TestLiveConvergesRegardlessOfOrder(t *testing.T) {
	created := `{"id":1,"workDatetime":"25.01.05 08:00","carModel":"v1"}`
	updated := `{"id":1,"workDatetime":"25.01.05 08:00","carModel":"v2"}`

	tests := []struct {
		name   string
		frames [][2]string
	}{
		{name: "Create then update", frames: [][2]string{{v1.EventCreated, created}, {v1.EventUpdated, updated}}},
		{name: "Update then create", frames: [][2]string{{v1.EventUpdated, updated}, {v1.EventCreated, created}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLiveFixture(t)
			// the refresh for an unknown id reads the server's current state
			f.channel.refresh = func(ctx context.Context) error {
				f.store.Upsert(model.WorkLog{ID: 1, WorkDatetime: "25.01.05 08:00", CarModel: "v2"})
				return nil
			}
			stream := f.connect(t)

			for _, fr := range tt.frames {
				stream.Send(fr[0], fr[1])
			}
			stream.Send(v1.EventDeleted, `{"id":999}`)
			stream.Send(v1.EventCreated, `{"id":2,"workDatetime":"25.01.05 09:00","carModel":"marker"}`)
			require.Eventually(t, func() bool { return f.store.Has(2) }, waitFor, tick)

			got, ok := f.store.Get(1)
			require.True(t, ok)
			assert.Equal(t, "v2", got.CarModel)
		})
	}
}

func TestLiveRejectsMalformedPayload(t *testing.T) {
	f := newLiveFixture(t, record(1, "25.01.05 08:00", "A"))
	stream := f.connect(t)
	before := f.store.Snapshot()

	stream.Send(v1.EventUpdated, `not json`)
	stream.Send(v1.EventDeleted, `{}`)
	stream.Send(v1.EventCreated, `{"carModel":"no id"}`)
	stream.Send("worklog-renamed", `{"id":1}`)
	stream.Send(v1.EventCreated, `{"id":2,"workDatetime":"25.01.05 09:00","carModel":"marker"}`)
	require.Eventually(t, func() bool { return f.store.Has(2) }, waitFor, tick)

	f.store.RemoveByIDs([]int64{2})
	assert.Equal(t, before, f.store.Snapshot())
	assert.Equal(t, StateConnected, f.channel.State())
}

func TestDecodeEventValidatesRecords(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		data     string
		rejected string
	}{
		{
			name:  "Valid created",
			event: v1.EventCreated,
			data:  `{"id":1,"workDatetime":"2025-01-05T08:00:00","carModel":"ON SUB","quantity":2,"completedAt":"2025-01-05T09:00:00"}`,
		},
		{
			name:     "Unparseable work time",
			event:    v1.EventCreated,
			data:     `{"id":1,"workDatetime":"garbage","carModel":"ON SUB","quantity":2}`,
			rejected: "Field 'workDatetime' must be in YY.MM.DD HH:MM format",
		},
		{
			name:     "Empty car model",
			event:    v1.EventCreated,
			data:     `{"id":1,"workDatetime":"25.01.05 08:00","carModel":"","quantity":2}`,
			rejected: "Field 'carModel' is required",
		},
		{
			name:     "Negative quantity",
			event:    v1.EventUpdated,
			data:     `{"id":1,"workDatetime":"25.01.05 08:00","carModel":"ON SUB","quantity":-3}`,
			rejected: "Field 'quantity' must be at least 0",
		},
		{
			name:     "Completion time not a date",
			event:    v1.EventUpdated,
			data:     `{"id":1,"workDatetime":"25.01.05 08:00","carModel":"ON SUB","completedAt":"not-a-date"}`,
			rejected: "Field 'completedAt' must be an ISO datetime",
		},
		{
			name:     "Missing id",
			event:    v1.EventUpdated,
			data:     `{"workDatetime":"25.01.05 08:00","carModel":"ON SUB"}`,
			rejected: "Field 'id' must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := DecodeEvent(v1.Event{Name: tt.event, Data: tt.data})
			if tt.rejected == "" {
				created, ok := ev.(CreatedEvent)
				require.True(t, ok, "got %T", ev)
				assert.Equal(t, "25.01.05 08:00", created.Record.WorkDatetime)
				return
			}
			rejected, ok := ev.(RejectedEvent)
			require.True(t, ok, "got %T", ev)
			assert.EqualError(t, rejected.Reason, tt.rejected)
		})
	}
}

func TestLiveIgnoresInvalidRecord(t *testing.T) {
	f := newLiveFixture(t, record(1, "25.01.05 08:00", "A"))
	stream := f.connect(t)

	stream.Send(v1.EventUpdated, `{"id":1,"workDatetime":"25.01.05 08:00","carModel":"A","quantity":-3}`)
	stream.Send(v1.EventCreated, `{"id":2,"workDatetime":"garbage","carModel":"B"}`)
	stream.Send(v1.EventCreated, `{"id":3,"workDatetime":"25.01.05 09:00","carModel":"marker"}`)
	require.Eventually(t, func() bool { return f.store.Has(3) }, waitFor, tick)

	got, _ := f.store.Get(1)
	assert.Equal(t, 1, got.Quantity)
	assert.False(t, f.store.Has(2))
	assert.Zero(t, f.Refreshes())
}

func TestLiveServerErrorFrameKeepsStream(t *testing.T) {
	f := newLiveFixture(t)
	stream := f.connect(t)

	stream.Send(v1.EventError, "overloaded")
	require.Eventually(t, func() bool { return !f.channel.Status().Live }, waitFor, tick)
	assert.Equal(t, StateConnected, f.channel.State())
	assert.Equal(t, 1, f.source.Dials())
}

func TestLiveReconnectStopsAfterFiveFailures(t *testing.T) {
	f := newLiveFixture(t)
	f.source.SetFail(true)

	f.channel.Connect()
	for i := 1; i <= 5; i++ {
		require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick, "retry %d not scheduled", i)
		assert.Equal(t, StateReconnecting, f.channel.State())
		require.True(t, f.clock.Fire())
	}

	require.Eventually(t, func() bool { return f.channel.State() == StateDisconnected }, waitFor, tick)
	assert.Equal(t, 6, f.source.Dials())
	assert.Zero(t, f.clock.Pending())
	assert.False(t, f.clock.Fire())
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		3 * time.Second,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10125 * time.Millisecond,
	}, f.clock.Delays())

	last := f.notices.Last()
	assert.Equal(t, LevelError, last.Level)
	assert.Contains(t, last.Message, "Reload")
	assert.Zero(t, last.Duration)
}

func TestLiveConnectedFrameResetsAttempts(t *testing.T) {
	f := newLiveFixture(t)
	stream := f.connect(t)

	stream.Drop()
	require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick)
	assert.Equal(t, 1, f.channel.Status().Attempt)

	require.True(t, f.clock.Fire())
	next := f.source.Next(waitFor)
	require.NotNil(t, next)
	next.Send(v1.EventConnect, "again")
	require.Eventually(t, func() bool { return f.channel.State() == StateConnected }, waitFor, tick)
	assert.Zero(t, f.channel.Status().Attempt)
}

func TestLiveReconnectDeferredWhileHidden(t *testing.T) {
	f := newLiveFixture(t)
	stream := f.connect(t)

	stream.Drop()
	require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick)

	f.vis.SetVisible(false)
	require.True(t, f.clock.Fire())
	assert.Equal(t, 1, f.source.Dials())
	assert.Equal(t, StateReconnecting, f.channel.State())

	f.vis.SetVisible(true)
	require.NotNil(t, f.source.Next(waitFor))
	assert.Equal(t, 2, f.source.Dials())
	assert.Equal(t, StateConnecting, f.channel.State())
}

func TestLiveVisibilityRegainAfterExhaustion(t *testing.T) {
	f := newLiveFixture(t)
	f.source.SetFail(true)
	f.channel.Connect()
	for i := 0; i < 5; i++ {
		require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick)
		f.clock.Fire()
	}
	require.Eventually(t, func() bool { return f.channel.State() == StateDisconnected }, waitFor, tick)

	f.source.SetFail(false)
	f.vis.SetVisible(false)
	f.vis.SetVisible(true)

	stream := f.source.Next(waitFor)
	require.NotNil(t, stream)
	stream.Send(v1.EventConnect, "back")
	require.Eventually(t, func() bool { return f.channel.State() == StateConnected }, waitFor, tick)
}

func TestLiveResumesFromLastEventID(t *testing.T) {
	f := newLiveFixture(t)
	stream := f.connect(t)

	stream.SendID("41", v1.EventDeleted, `{"id":1}`)
	stream.SendID("42", v1.EventDeleted, `{"id":2}`)
	stream.Send(v1.EventCreated, `{"id":3,"workDatetime":"25.01.05 09:00","carModel":"marker"}`)
	require.Eventually(t, func() bool { return f.store.Has(3) }, waitFor, tick)

	stream.Drop()
	require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick)
	f.clock.Fire()
	require.NotNil(t, f.source.Next(waitFor))

	assert.Equal(t, []string{"", "42"}, f.source.LastIDs())
}

func TestLiveCloseIsIdempotent(t *testing.T) {
	f := newLiveFixture(t)
	stream := f.connect(t)

	stream.Drop()
	require.Eventually(t, func() bool { return f.clock.Pending() == 1 }, waitFor, tick)

	f.channel.Close()
	f.channel.Close()
	assert.Equal(t, StateDisconnected, f.channel.State())
	assert.Zero(t, f.clock.Pending())

	// a visibility change after close does nothing
	f.vis.SetVisible(false)
	f.vis.SetVisible(true)
	assert.Equal(t, 1, f.source.Dials())
}

func TestLiveCloseStopsReader(t *testing.T) {
	f := newLiveFixture(t)
	stream := f.connect(t)

	f.channel.Close()

	select {
	case <-stream.done:
	default:
		t.Fatal("stream was not closed")
	}
	assert.Equal(t, StateDisconnected, f.channel.State())
	assert.Zero(t, f.clock.Pending())
}

func TestBackoff(t *testing.T) {
	cfg := DefaultLiveConfig()
	assert.Equal(t, 2*time.Second, cfg.Backoff(1))
	assert.Equal(t, 3*time.Second, cfg.Backoff(2))
	assert.Equal(t, 2*time.Second, cfg.Backoff(0))
}
