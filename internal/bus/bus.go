// Package bus provides the in-process publish/subscribe event bus that all
// desk components coordinate through.
//
// Topics carry two message classes. Persistent messages are the topic's
// last-value-wins current state and are replayed synchronously to late
// subscribers. Transient messages are one-shot events offered once to the
// handlers registered at publish time and then discarded.
package bus

import (
	"sync"
)

// Handler receives a published payload. It reports whether the payload
// matched its declared type and was consumed; mismatches are skipped
// silently so a topic only ever delivers its own payload type.
type Handler func(payload any) bool

// Typed adapts a strongly typed callback into a Handler. Delivery is
// type-checked at dispatch time: payloads of any other type are refused.
func Typed[T any](fn func(T)) Handler {
	return func(payload any) bool {
		v, ok := payload.(T)
		if !ok {
			return false
		}
		fn(v)
		return true
	}
}

type subscriber struct {
	id      string
	handler Handler
}

// topic holds the per-topic state. Its mutex guards registration and is
// held across handler invocation, so handlers must not block indefinitely
// and must not publish back to the same topic.
type topic struct {
	mu         sync.Mutex
	subs       []subscriber
	current    any
	hasCurrent bool
	pending    []any
}

// Metrics counts bus activity since construction.
type Metrics struct {
	Published uint64
	Replayed  uint64
	Delivered uint64
	Dropped   uint64
}

// Bus is the single shared coordination point of the process. Its lifetime
// is owned by the entry point and it is handed to every component at
// construction; there is no ambient global instance.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topic

	metricsMu sync.Mutex
	metrics   Metrics
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string]*topic)}
}

func (b *Bus) topicFor(name string) *topic {
	b.mu.RLock()
	t, ok := b.topics[name]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[name]; ok {
		return t
	}
	t = &topic{}
	b.topics[name] = t
	return t
}

// Subscribe registers handler under subscriberID for the topic. It is
// idempotent per subscriberID: re-subscribing replaces the handler. If a
// persistent message already exists the handler is invoked with it
// synchronously before Subscribe returns, so a late subscriber always
// observes current state.
func (b *Bus) Subscribe(name, subscriberID string, handler Handler) {
	t := b.topicFor(name)
	t.mu.Lock()
	defer t.mu.Unlock()

	replaced := false
	for i := range t.subs {
		if t.subs[i].id == subscriberID {
			t.subs[i].handler = handler
			replaced = true
			break
		}
	}
	if !replaced {
		t.subs = append(t.subs, subscriber{id: subscriberID, handler: handler})
	}

	if t.hasCurrent && handler(t.current) {
		b.count(func(m *Metrics) { m.Replayed++ })
	}
}

// Unsubscribe removes the handler registered under subscriberID; it is a
// no-op if absent.
func (b *Bus) Unsubscribe(name, subscriberID string) {
	t := b.topicFor(name)
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.subs {
		if t.subs[i].id == subscriberID {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

// Publish stores payload as the topic's persistent value, overwriting any
// prior value, then invokes every currently registered handler with it on
// the calling goroutine. By the time Publish returns all synchronous
// downstream effects have occurred.
func (b *Bus) Publish(name string, payload any) {
	t := b.topicFor(name)
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = payload
	t.hasCurrent = true
	b.count(func(m *Metrics) { m.Published++ })

	for _, s := range t.subs {
		if s.handler(payload) {
			b.count(func(m *Metrics) { m.Delivered++ })
		}
	}
}

// PublishTransient appends payload to the topic's one-shot queue and gives
// every currently registered handler the chance to drain the payloads
// matching its type. Whatever no handler consumed is discarded: a handler
// that is not registered at publish time never sees a transient message.
func (b *Bus) PublishTransient(name string, payload any) {
	t := b.topicFor(name)
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = append(t.pending, payload)
	b.count(func(m *Metrics) { m.Published++ })

	for _, s := range t.subs {
		var keep []any
		for _, p := range t.pending {
			if s.handler(p) {
				b.count(func(m *Metrics) { m.Delivered++ })
			} else {
				keep = append(keep, p)
			}
		}
		t.pending = keep
		if len(t.pending) == 0 {
			break
		}
	}

	if n := len(t.pending); n > 0 {
		b.count(func(m *Metrics) { m.Dropped += uint64(n) })
		t.pending = nil
	}
}

// Current returns the topic's persistent value, if any.
func (b *Bus) Current(name string) (any, bool) {
	t := b.topicFor(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.hasCurrent
}

// SubscriberCount returns the number of handlers registered for the topic.
func (b *Bus) SubscriberCount(name string) int {
	t := b.topicFor(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Metrics returns a snapshot of the bus counters.
func (b *Bus) Metrics() Metrics {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	return b.metrics
}

func (b *Bus) count(fn func(*Metrics)) {
	b.metricsMu.Lock()
	fn(&b.metrics)
	b.metricsMu.Unlock()
}
