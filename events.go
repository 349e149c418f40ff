package togglekit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a configuration mutation.
type ChangeType string

const (
	ChangeFlagRegistered   ChangeType = "flag_registered"
	ChangeFlagUpdated      ChangeType = "flag_updated"
	ChangeFlagUnregistered ChangeType = "flag_unregistered"
	ChangeOverrideSet      ChangeType = "override_set"
	ChangeOverrideRemoved  ChangeType = "override_removed"
	ChangeConfigImported   ChangeType = "configuration_imported"
)

// ChangeEvent notifies subscribers of one configuration mutation.
type ChangeEvent struct {
	ID        string     `json:"id"`
	Type      ChangeType `json:"type"`
	FlagKey   string     `json:"flag_key,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func newChangeEvent(t ChangeType, flagKey string) ChangeEvent {
	return ChangeEvent{
		ID:        uuid.NewString(),
		Type:      t,
		FlagKey:   flagKey,
		Timestamp: time.Now().UTC(),
	}
}

// subscriberBuffer bounds how far a subscriber may lag before events are
// dropped for it.
const subscriberBuffer = 64

// changeBus fans mutation events out to subscribers. Publication never
// blocks: a subscriber whose buffer is full misses the event.
type changeBus struct {
	mu     sync.Mutex
	subs   map[int]chan ChangeEvent
	nextID int
	closed bool
}

func newChangeBus() *changeBus {
	return &changeBus{subs: make(map[int]chan ChangeEvent)}
}

func (b *changeBus) subscribe() (<-chan ChangeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch := make(chan ChangeEvent)
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan ChangeEvent, subscriberBuffer)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *changeBus) publish(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *changeBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
