package notify

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is the normalized payload delivered to community-update
// subscribers. Raw collection contents never cross this boundary.
type Event struct {
	Event string    `json:"event"`
	Topic string    `json:"topic"`
	At    time.Time `json:"at"`
}

const (
	eventChanged = "changed"
	eventPoll    = "poll"
)

// Notifier delivers community freshness signals: every users/posts change
// event, plus an unconditional polling tick when the remote backend is
// active (the remote store has no push channel).
type Notifier struct {
	hub          *Hub
	remote       bool
	pollInterval time.Duration
}

// NewNotifier constructs a Notifier. pollInterval is the default ticker
// period used for remote backends when a subscription gives none.
func NewNotifier(hub *Hub, remote bool, pollInterval time.Duration) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Notifier{hub: hub, remote: remote, pollInterval: pollInterval}
}

// Hub exposes the underlying hub for components that publish directly.
func (n *Notifier) Hub() *Hub { return n.hub }

// SubscribeOption customises a subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	interval    time.Duration
	intervalSet bool
}

// WithInterval overrides the polling interval. Zero disables the timer.
func WithInterval(d time.Duration) SubscribeOption {
	return func(o *subscribeOptions) {
		o.interval = d
		o.intervalSet = true
	}
}

// Subscribe registers sub for users and posts change events and starts the
// polling timer when one applies. The returned cancel removes both topic
// registrations and stops the timer; it is safe to call exactly once.
func (n *Notifier) Subscribe(sub Subscriber, opts ...SubscribeOption) (cancel func()) {
	options := subscribeOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	interval := time.Duration(0)
	if options.intervalSet {
		interval = options.interval
	} else if n.remote {
		interval = n.pollInterval
	}

	// Change relays run on the publisher's goroutine and the poll timer
	// runs on its own; the subscriber must only ever see one writer.
	locked := &lockedSubscriber{sub: sub}

	relay := func(topic string) Subscriber {
		return SubscriberFunc(func([]byte) error {
			return locked.Send(marshalEvent(eventChanged, topic))
		})
	}
	usersRelay := relay(TopicUsers)
	postsRelay := relay(TopicPosts)
	n.hub.Register(TopicUsers, usersRelay)
	n.hub.Register(TopicPosts, postsRelay)

	stop := make(chan struct{})
	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := locked.Send(marshalEvent(eventPoll, "")); err != nil {
						return
					}
				case <-stop:
					return
				}
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			n.hub.Unregister(TopicUsers, usersRelay)
			n.hub.Unregister(TopicPosts, postsRelay)
			close(stop)
		})
	}
}

// SubscribeFunc registers a callback invoked on every freshness signal.
func (n *Notifier) SubscribeFunc(fn func(Event), opts ...SubscribeOption) (cancel func()) {
	return n.Subscribe(SubscriberFunc(func(payload []byte) error {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		fn(ev)
		return nil
	}), opts...)
}

// lockedSubscriber serializes Send calls to the wrapped subscriber.
type lockedSubscriber struct {
	mu  sync.Mutex
	sub Subscriber
}

func (l *lockedSubscriber) Send(payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub.Send(payload)
}

func (l *lockedSubscriber) Close() { l.sub.Close() }

func marshalEvent(name, topic string) []byte {
	b, _ := json.Marshal(Event{Event: name, Topic: topic, At: time.Now().UTC()})
	return b
}
