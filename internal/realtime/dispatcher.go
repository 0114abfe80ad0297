package realtime

import (
	"context"
	"sync"
)

const defaultBufferSize = 16

// Dispatcher delivers events to the in-process subscribers of each user. Delivery never blocks:
// a subscriber whose buffer is full misses the event.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Event
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe registers a stream for userID. The subscription ends when ctx is done or cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	if userID == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	entry := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.register(userID, entry)
	var once sync.Once
	done := make(chan struct{})
	cleanup := func() {
		once.Do(func() {
			d.unregister(userID, entry.id)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return entry.stream, cleanup
}

// Publish delivers event to the local subscribers of its user.
func (d *Dispatcher) Publish(_ context.Context, event Event) error {
	if !event.valid() {
		return ErrInvalidEvent
	}
	d.Deliver(event)
	return nil
}

// Deliver fans event out to the local subscribers of its user.
func (d *Dispatcher) Deliver(event Event) {
	d.mu.RLock()
	subscribers := d.subscribers[event.UserID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, entry := range subscribers {
		copies = append(copies, entry)
	}
	d.mu.RUnlock()
	for _, entry := range copies {
		select {
		case entry.stream <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of open subscriptions for userID.
func (d *Dispatcher) SubscriberCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[userID])
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(userID string, entry *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*subscriber)
	}
	d.subscribers[userID][entry.id] = entry
}

func (d *Dispatcher) unregister(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}
