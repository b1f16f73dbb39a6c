package notify

import "sync"

// Topic names mirror the persisted collection keys, so key-value writes
// and explicit publishes share one channel namespace.
const (
	TopicUsers   = "users"
	TopicPosts   = "posts"
	TopicSession = "auth_session"
)

// Subscriber abstracts a change-notification sink.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans change events out to subscribers by topic. Delivery is
// synchronous: Publish returns after every subscriber has been invoked,
// matching the in-process broadcast semantics of local writes.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[Subscriber]struct{}
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[Subscriber]struct{})}
}

// Register adds a subscriber to a topic.
func (h *Hub) Register(topic string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[topic]; !ok {
		h.clients[topic] = make(map[Subscriber]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

// Unregister removes a subscriber from a topic.
func (h *Hub) Unregister(topic string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Publish sends payload to all subscribers of the topic. A subscriber
// whose Send fails is closed and dropped.
func (h *Hub) Publish(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[topic]
	if !ok {
		return
	}
	for c := range clients {
		if err := c.Send(payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, topic)
	}
}

type funcSubscriber struct {
	fn func([]byte) error
}

func (f *funcSubscriber) Send(payload []byte) error { return f.fn(payload) }

func (f *funcSubscriber) Close() {}

// SubscriberFunc adapts a function to the Subscriber interface. Each call
// yields a distinct subscriber identity, so the result must be kept to
// unregister it later.
func SubscriberFunc(fn func([]byte) error) Subscriber {
	return &funcSubscriber{fn: fn}
}
