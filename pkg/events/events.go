package events

import (
	"sync"
	"time"

	"github.com/cuemby/forkful/pkg/metrics"
)

// Table names the collection a change happened in
type Table string

const (
	TableUsers         Table = "users"
	TableRecipes       Table = "recipes"
	TableRatings       Table = "ratings"
	TableComments      Table = "comments"
	TableFollows       Table = "follows"
	TableMessages      Table = "messages"
	TableNotifications Table = "notifications"
)

// Op is the kind of change
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event represents a single change to a collection
type Event struct {
	ID        string
	Table     Table
	Op        Op
	RecordID  string
	ActorID   string
	Audience  []string // user IDs the change is addressed to, if any
	Timestamp time.Time
	Metadata  map[string]string
}

// Filter selects which events a subscriber receives. Empty fields match
// everything.
type Filter struct {
	Tables []Table
	UserID string // only events whose Audience contains this user
}

func (f Filter) matches(event *Event) bool {
	if len(f.Tables) > 0 {
		found := false
		for _, t := range f.Tables {
			if t == event.Table {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.UserID != "" {
		for _, id := range event.Audience {
			if id == f.UserID {
				return true
			}
		}
		return false
	}

	return true
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]Filter
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
	started     chan struct{}
	doneCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]Filter),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
		started:     make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	b.startOnce.Do(func() {
		close(b.started)
		go b.run()
	})
}

// Stop stops the broker and waits for the distribution loop to exit
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})

	select {
	case <-b.started:
		<-b.doneCh
	default:
	}
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe(filter Filter) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = filter
	metrics.RealtimeSubscribers.Set(float64(len(b.subscribers)))
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
	metrics.RealtimeSubscribers.Set(float64(len(b.subscribers)))
}

// Publish publishes an event to all matching subscribers
func (b *Broker) Publish(event *Event) {
	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
		metrics.EventsPublished.WithLabelValues(string(event.Table), string(event.Op)).Inc()
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, filter := range b.subscribers {
		if !filter.matches(event) {
			continue
		}
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
			metrics.EventsDropped.Inc()
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
