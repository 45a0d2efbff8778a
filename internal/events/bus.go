// Package events delivers change notifications for planner and wizard
// state without introducing implicit reactivity: components publish,
// interested parties (UI, logging) subscribe.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// EventSetupCreated is published when the inference pipeline
	// produces a new deck setup.
	EventSetupCreated EventType = "setup_created"
	// EventRequirementDropped is published when no catalog carrier is
	// compatible with an inferred resource type.
	EventRequirementDropped EventType = "requirement_dropped"
	// EventAssetUnplaced is published when an asset finds no free
	// compatible slot.
	EventAssetUnplaced EventType = "asset_unplaced"
	// EventStepChanged is published on wizard step navigation.
	EventStepChanged EventType = "step_changed"
	// EventCarrierPlaced is published when a carrier's placement flag changes.
	EventCarrierPlaced EventType = "carrier_placed"
	// EventResourcePlaced is published when a resource's placement flag changes.
	EventResourcePlaced EventType = "resource_placed"
	// EventConsumableAssigned is published when auto-assignment resolves
	// an inventory item for an assignment.
	EventConsumableAssigned EventType = "consumable_assigned"
	// EventSessionComplete is published when the wizard session completes.
	EventSessionComplete EventType = "session_complete"
	// EventSessionSkipped is published when the operator skips the wizard.
	EventSessionSkipped EventType = "session_skipped"
)

// Event represents a system event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

// Bus is a non-blocking event bus using Publish/Subscribe pattern.
// Events are delivered asynchronously via buffered channels.
// If a subscriber's channel is full, the event is dropped silently.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a new event bus with the specified buffer size per subscriber.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber for a specific event type.
// The subscriber function is called asynchronously in a goroutine.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			// A panicking subscriber must not take the bus down.
			func() {
				defer func() {
					_ = recover()
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish sends an event to all subscribers of the given type.
// Uses select with default to ensure non-blocking behavior.
// If a subscriber's channel is full, the event is dropped for that subscriber.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
