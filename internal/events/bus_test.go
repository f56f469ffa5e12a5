package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventSignal, 4)
	defer unsub()

	bus.Publish(EventSignal, "hello")
	select {
	case msg := <-ch:
		if msg != "hello" {
			t.Fatalf("msg = %v, want hello", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventPositionOpened, 1)
	defer unsub()

	bus.Publish(EventPositionClosed, "other topic")
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	_, unsub := bus.Subscribe(EventSignal, 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(EventSignal, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if bus.Dropped() != 99 {
		t.Fatalf("dropped = %d, want 99", bus.Dropped())
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventSignal, 1)

	bus.Close()
	if _, open := <-ch; open {
		t.Fatal("channel still open after Close")
	}
	// publish and unsubscribe after Close must not panic
	bus.Publish(EventSignal, "late")
	unsub()

	late, lateUnsub := bus.Subscribe(EventSignal, 1)
	defer lateUnsub()
	if _, open := <-late; open {
		t.Fatal("subscribe on a closed bus returned a live channel")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventSignal, 1)
	unsub()
	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}
	// publishing after unsubscribe must not panic
	bus.Publish(EventSignal, "late")
}
