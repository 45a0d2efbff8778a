package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	received := []Event{}

	unsub := bus.Subscribe(EventStepChanged, func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	defer unsub()

	bus.Publish(EventStepChanged, map[string]interface{}{
		"step": "resource-placement",
	})

	// Wait for async delivery
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}

	if received[0].Type != EventStepChanged {
		t.Errorf("expected type %s, got %s", EventStepChanged, received[0].Type)
	}

	if step, ok := received[0].Data["step"].(string); !ok || step != "resource-placement" {
		t.Errorf("expected step resource-placement, got %v", received[0].Data["step"])
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu1, mu2 sync.Mutex
	received1 := []Event{}
	received2 := []Event{}

	unsub1 := bus.Subscribe(EventCarrierPlaced, func(e Event) {
		mu1.Lock()
		received1 = append(received1, e)
		mu1.Unlock()
	})
	defer unsub1()

	unsub2 := bus.Subscribe(EventCarrierPlaced, func(e Event) {
		mu2.Lock()
		received2 = append(received2, e)
		mu2.Unlock()
	})
	defer unsub2()

	bus.Publish(EventCarrierPlaced, map[string]interface{}{
		"carrier_id": "car_1771722000_a3f2b7c1",
	})

	time.Sleep(50 * time.Millisecond)

	mu1.Lock()
	count1 := len(received1)
	mu1.Unlock()

	mu2.Lock()
	count2 := len(received2)
	mu2.Unlock()

	if count1 != 1 {
		t.Errorf("subscriber 1 expected 1 event, got %d", count1)
	}
	if count2 != 1 {
		t.Errorf("subscriber 2 expected 1 event, got %d", count2)
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	unsub := bus.Subscribe(EventSessionComplete, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(EventSessionComplete, nil)
	time.Sleep(50 * time.Millisecond)
	unsub()
	bus.Publish(EventSessionComplete, nil)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 event after unsubscribe, got %d", count)
	}
}

func TestBus_FullBufferDoesNotBlock(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	block := make(chan struct{})
	unsub := bus.Subscribe(EventAssetUnplaced, func(e Event) {
		<-block
	})
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(EventAssetUnplaced, nil)
		}
		close(done)
	}()

	select {
	case <-done:
		close(block)
	case <-time.After(time.Second):
		close(block)
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestBus_SubscriberPanicDoesNotKillBus(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	delivered := 0

	unsub := bus.Subscribe(EventSessionSkipped, func(e Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
		panic("subscriber bug")
	})
	defer unsub()

	bus.Publish(EventSessionSkipped, nil)
	bus.Publish(EventSessionSkipped, nil)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if delivered != 2 {
		t.Errorf("expected 2 deliveries despite panics, got %d", delivered)
	}
}
