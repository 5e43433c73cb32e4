package broker

import (
	"sync"

	"go.uber.org/zap"
)

const (
	EventConnect = "connect"
	EventCreated = "worklog-created"
	EventUpdated = "worklog-updated"
	EventDeleted = "worklog-deleted"
	EventError   = "error"

	DefaultReplaySize = 10
	subscriberBuffer  = 32
)

// Event is one push notification. ID increases monotonically per broker.
type Event struct {
	ID   int64
	Name string
	Data interface{}
}

// DeletedPayload is the body of a worklog-deleted event.
type DeletedPayload struct {
	ID int64 `json:"id"`
}

type subscriber struct {
	id int64
	ch chan Event
}

// Broker fans work log changes out to every subscriber and keeps the last few
// events so a reconnecting client can catch up.
type Broker struct {
	mu         sync.Mutex
	nextEvent  int64
	nextSub    int64
	replay     []Event
	replaySize int
	subs       map[int64]*subscriber
	logger     *zap.Logger
}

func New(replaySize int, logger *zap.Logger) *Broker {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		replaySize: replaySize,
		subs:       map[int64]*subscriber{},
		logger:     logger,
	}
}

// Subscription is one connected client.
type Subscription struct {
	ID     int64
	Events <-chan Event
	// Replay holds cached events newer than the client's last seen id.
	Replay []Event

	broker *Broker
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() { s.broker.remove(s.ID) })
}

// Subscribe registers a client. lastEventID is the last id it received, or 0
// for a fresh connection, in which case the whole cache is replayed.
func (b *Broker) Subscribe(lastEventID int64) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSub++
	sub := &subscriber{id: b.nextSub, ch: make(chan Event, subscriberBuffer)}
	b.subs[sub.id] = sub

	replay := make([]Event, 0, len(b.replay))
	for _, ev := range b.replay {
		if ev.ID > lastEventID {
			replay = append(replay, ev)
		}
	}

	b.logger.Info("sse client subscribed",
		zap.Int64("subscriber", sub.id),
		zap.Int64("lastEventID", lastEventID),
		zap.Int("replay", len(replay)),
		zap.Int("clients", len(b.subs)),
	)
	return &Subscription{ID: sub.id, Events: sub.ch, Replay: replay, broker: b}
}

func (b *Broker) remove(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
		b.logger.Info("sse client removed", zap.Int64("subscriber", id), zap.Int("clients", len(b.subs)))
	}
}

// Publish sends an event to every subscriber. A subscriber whose buffer is full
// is dropped; it reconnects and catches up from the cache.
func (b *Broker) Publish(name string, data interface{}) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextEvent++
	ev := Event{ID: b.nextEvent, Name: name, Data: data}

	b.replay = append(b.replay, ev)
	if len(b.replay) > b.replaySize {
		b.replay = b.replay[len(b.replay)-b.replaySize:]
	}

	for id, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(b.subs, id)
			close(sub.ch)
			b.logger.Warn("dropping slow sse client", zap.Int64("subscriber", id))
		}
	}
	return ev
}

func (b *Broker) PublishCreated(data interface{}) Event {
	return b.Publish(EventCreated, data)
}

func (b *Broker) PublishUpdated(data interface{}) Event {
	return b.Publish(EventUpdated, data)
}

func (b *Broker) PublishDeleted(id int64) Event {
	return b.Publish(EventDeleted, DeletedPayload{ID: id})
}

// Clients is the number of connected subscribers.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Shutdown disconnects every subscriber.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
