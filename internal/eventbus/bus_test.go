package eventbus

import "testing"

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	if v := <-ch; v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after Unsubscribe")
	}
}

func TestBus_FullSubscriberDrops(t *testing.T) {
	bus := NewBuffered[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2) // buffer full
	if got := bus.Dropped(); got != 1 {
		t.Fatalf("dropped = %d; want 1", got)
	}
	if v := <-ch; v != 1 {
		t.Fatalf("got %d; want 1", v)
	}
}

func TestBus_Close(t *testing.T) {
	bus := New[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	// publishing and subscribing after close must not panic
	bus.Publish(3)
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("expected subscription on closed bus to be closed")
	}
}

func TestBus_UnsubscribeAfterClose(t *testing.T) {
	bus := New[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
