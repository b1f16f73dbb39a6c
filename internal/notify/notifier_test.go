package notify

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNotifierRelaysCollectionChanges(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(hub, false, 0)

	var events []Event
	cancel := n.SubscribeFunc(func(ev Event) {
		events = append(events, ev)
	})
	defer cancel()

	hub.Publish(TopicUsers, []byte("ignored payload"))
	hub.Publish(TopicPosts, nil)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "changed" || events[0].Topic != TopicUsers {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Topic != TopicPosts {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestNotifierCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(hub, false, 0)

	count := 0
	cancel := n.SubscribeFunc(func(Event) { count++ })
	hub.Publish(TopicUsers, nil)
	cancel()
	cancel() // second call is a no-op
	hub.Publish(TopicUsers, nil)
	hub.Publish(TopicPosts, nil)

	if count != 1 {
		t.Fatalf("expected delivery to stop after cancel, got %d events", count)
	}
}

func TestNotifierPollTimer(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(hub, true, time.Second)

	polled := make(chan Event, 1)
	cancel := n.SubscribeFunc(func(ev Event) {
		if ev.Event == "poll" {
			select {
			case polled <- ev:
			default:
			}
		}
	}, WithInterval(10*time.Millisecond))
	defer cancel()

	select {
	case ev := <-polled:
		if ev.Topic != "" {
			t.Fatalf("poll events carry no topic, got %q", ev.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a poll event")
	}
}

// overlapSubscriber counts Send calls that run while another one is
// still in flight. The poll timer and change relays deliver from
// different goroutines; the notifier must serialize them.
type overlapSubscriber struct {
	inFlight atomic.Int32
	overlaps atomic.Int32
	sends    atomic.Int32
}

func (o *overlapSubscriber) Send([]byte) error {
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	time.Sleep(50 * time.Microsecond)
	o.inFlight.Add(-1)
	o.sends.Add(1)
	return nil
}

func (o *overlapSubscriber) Close() {}

func TestNotifierSerializesPollAndRelayDelivery(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(hub, true, time.Second)

	sub := &overlapSubscriber{}
	cancel := n.Subscribe(sub, WithInterval(time.Millisecond))
	defer cancel()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		hub.Publish(TopicPosts, nil)
	}

	if sub.sends.Load() == 0 {
		t.Fatalf("expected deliveries")
	}
	if got := sub.overlaps.Load(); got != 0 {
		t.Fatalf("expected serialized Send calls, got %d overlapping", got)
	}
}

func TestNotifierLocalBackendHasNoDefaultTimer(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(hub, false, 10*time.Millisecond)

	polled := make(chan struct{}, 1)
	cancel := n.SubscribeFunc(func(ev Event) {
		if ev.Event == "poll" {
			select {
			case polled <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()

	select {
	case <-polled:
		t.Fatalf("local backend must not poll by default")
	case <-time.After(50 * time.Millisecond):
	}
}
