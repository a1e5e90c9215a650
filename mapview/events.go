package mapview

import (
	"sync"
	"time"

	"patro-map/models"
)

// EventType identifies what the map emitted.
type EventType string

const (
	EventClick       EventType = "click"
	EventDoubleClick EventType = "double_click"
	EventCursor      EventType = "cursor"
	EventPointerMove EventType = "pointer_move"
	EventPointerUp   EventType = "pointer_up"
	EventIndicate    EventType = "indicate"
	EventHover       EventType = "hover"
	EventRobotAdded  EventType = "robot_added"
	EventRobotMoved  EventType = "robot_moved"
)

// Event is the envelope emitted on the bus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// PointerEvent carries one pointer position in every space plus the object under it.
type PointerEvent struct {
	Screen ScreenPoint        `json:"screen"`
	Scene  ViewPoint          `json:"scene"`
	Domain models.Coordinates `json:"domain"`
	Target *Object            `json:"target,omitempty"`
}

// HoverEvent reports a settled hover change.
type HoverEvent struct {
	Key      models.Key `json:"key"`
	Hovering bool       `json:"hovering"`
}

// RobotEvent reports a robot added or moved.
type RobotEvent struct {
	Key     models.Key         `json:"key"`
	Center  models.Coordinates `json:"center"`
	Heading float64            `json:"heading"`
}

// SubscriberID uniquely identifies an EventBus subscriber.
type SubscriberID uint64

// SubscriberFunc is a callback invoked when an event is emitted.
type SubscriberFunc func(Event)

type subscriber struct {
	id     SubscriberID
	fn     SubscriberFunc
	filter map[EventType]struct{}
}

// EventBus provides synchronous, typed event dispatch.
// Subscribers are called in registration order on the emitting goroutine.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	nextID      SubscriberID
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a callback for all event types.
func (eb *EventBus) Subscribe(fn SubscriberFunc) SubscriberID {
	return eb.add(subscriber{fn: fn})
}

// SubscribeTypes registers a callback only for the given event types.
func (eb *EventBus) SubscribeTypes(fn SubscriberFunc, types ...EventType) SubscriberID {
	filter := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}
	return eb.add(subscriber{fn: fn, filter: filter})
}

func (eb *EventBus) add(s subscriber) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	s.id = eb.nextID
	eb.subscribers = append(eb.subscribers, s)
	return s.id
}

// Unsubscribe removes a subscriber by ID.
func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.subscribers {
		if s.id == id {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Count is the number of live subscribers.
func (eb *EventBus) Count() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Emit dispatches an event synchronously to all matching subscribers. The subscriber list
// is copied first, so a handler may unsubscribe itself.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	subs := make([]subscriber, len(eb.subscribers))
	copy(subs, eb.subscribers)
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.filter != nil {
			if _, ok := s.filter[evt.Type]; !ok {
				continue
			}
		}
		s.fn(evt)
	}
}
