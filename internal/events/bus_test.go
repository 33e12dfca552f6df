package events

import (
	"testing"
	"time"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel1()
	defer cancel2()

	bus.Emit(TypeTaskQueued, "task-1", nil)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != TypeTaskQueued {
				t.Errorf("subscriber %d: expected %s, got %s", i, TypeTaskQueued, ev.Type)
			}
			if ev.TaskID != "task-1" {
				t.Errorf("subscriber %d: expected task-1, got %s", i, ev.TaskID)
			}
			if ev.Timestamp.IsZero() {
				t.Errorf("subscriber %d: timestamp not stamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event delivered", i)
		}
	}
}

func TestBusOrdering(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	sequence := []Type{TypeTaskQueued, TypeTaskStarted, TypeTaskProgress, TypeTaskCompleted}
	for _, typ := range sequence {
		bus.Emit(typ, "task-1", nil)
	}

	for _, want := range sequence {
		select {
		case ev := <-ch:
			if ev.Type != want {
				t.Fatalf("expected %s, got %s", want, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %s", want)
		}
	}
}

func TestBusCancelDropsSubscription(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()

	// Channel closes on cancel
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}

	// Publishing after cancel must not panic
	bus.Emit(TypeTaskQueued, "task-1", nil)
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; Publish must never stall
	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultBuffer*2; i++ {
			bus.Emit(TypeTaskProgress, "task-1", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after bus close")
	}

	// Subscribe after close yields a closed channel
	ch2, _ := bus.Subscribe()
	if _, ok := <-ch2; ok {
		t.Error("expected closed channel when subscribing to closed bus")
	}
}
