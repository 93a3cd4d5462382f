package lifecycle

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"modelhost/pkg/types"
)

// EventName identifies a lifecycle event.
type EventName string

const (
	EventWillLoad       EventName = "will_load"
	EventDidLoad        EventName = "did_load"
	EventLoadFailed     EventName = "load_failed"
	EventWillUnload     EventName = "will_unload"
	EventDidUnload      EventName = "did_unload"
	EventMemoryPressure EventName = "memory_pressure"
)

// Event is a lifecycle notification. Delivery is best-effort and
// fire-and-forget; producers never block on subscriber processing.
type Event struct {
	ID        string         `json:"id"`
	Name      EventName      `json:"name"`
	ModelID   string         `json:"model_id,omitempty"`
	Modality  types.Modality `json:"modality,omitempty"`
	Framework string         `json:"framework,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func newEvent(name EventName) Event {
	return Event{ID: uuid.NewString(), Name: name, Timestamp: time.Now()}
}

// Publisher receives lifecycle events. Implementations should be lightweight
// and non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// noopPublisher is the default external sink; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in publish order.
func (p *MemoryPublisher) Names() []EventName {
	evs := p.Events()
	out := make([]EventName, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

// Bus fans events out to subscriber channels. Sends are non-blocking: a
// subscriber that falls behind its buffer loses events rather than stalling
// the lifecycle core.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]chan Event
	bufSize int
}

func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Bus{subs: make(map[int]chan Event), bufSize: bufSize}
}

// Subscribe returns a receive channel and a cancel func that closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufSize)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
