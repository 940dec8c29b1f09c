package bus

import (
	"testing"
)

func TestPersistentReplayOnSubscribe(t *testing.T) {
	b := New()
	b.Publish("prices.GME", 10.5)

	var got float64
	called := 0
	b.Subscribe("prices.GME", "late", Typed(func(p float64) {
		got = p
		called++
	}))

	if called != 1 {
		t.Fatalf("expected synchronous replay, handler called %d times", called)
	}
	if got != 10.5 {
		t.Fatalf("replayed payload = %v, want 10.5", got)
	}
}

func TestPersistentOverwrite(t *testing.T) {
	b := New()
	b.Publish("prices.GME", 1.0)
	b.Publish("prices.GME", 2.0)

	var got float64
	b.Subscribe("prices.GME", "sub", Typed(func(p float64) { got = p }))
	if got != 2.0 {
		t.Fatalf("replayed payload = %v, want last written 2.0", got)
	}

	b.Publish("prices.GME", 3.0)
	if got != 3.0 {
		t.Fatalf("delivered payload = %v, want 3.0", got)
	}
}

func TestTransientNeverReplayed(t *testing.T) {
	b := New()
	b.PublishTransient("orders", "one-shot")

	called := 0
	b.Subscribe("orders", "late", Typed(func(string) { called++ }))
	if called != 0 {
		t.Fatalf("transient message delivered to late subscriber %d times", called)
	}
}

func TestTransientDeliveredOnce(t *testing.T) {
	b := New()

	var first, second []string
	b.Subscribe("orders", "a", Typed(func(s string) { first = append(first, s) }))
	b.Subscribe("orders", "b", Typed(func(s string) { second = append(second, s) }))

	b.PublishTransient("orders", "evt")

	// The first registered handler drains the queue; the second never sees
	// the consumed message.
	if len(first) != 1 || len(second) != 0 {
		t.Fatalf("delivery counts = %d/%d, want 1/0", len(first), len(second))
	}
}

func TestTypedDeliverySkipsMismatch(t *testing.T) {
	b := New()

	ints := 0
	strs := 0
	b.Subscribe("mixed", "ints", Typed(func(int) { ints++ }))
	b.Subscribe("mixed", "strs", Typed(func(string) { strs++ }))

	b.PublishTransient("mixed", 7)
	if ints != 1 || strs != 0 {
		t.Fatalf("int delivery = %d/%d, want 1/0", ints, strs)
	}

	b.PublishTransient("mixed", "hello")
	if strs != 1 {
		t.Fatalf("string handler called %d times, want 1", strs)
	}

	// A mismatched persistent payload is silently skipped on replay.
	b.Publish("mixed", 3.14)
	b.Subscribe("mixed", "late-int", Typed(func(int) { ints++ }))
	if ints != 1 {
		t.Fatalf("mismatched persistent payload replayed to typed handler")
	}
}

func TestResubscribeReplacesHandler(t *testing.T) {
	b := New()

	old, cur := 0, 0
	b.Subscribe("t", "sub", Typed(func(int) { old++ }))
	b.Subscribe("t", "sub", Typed(func(int) { cur++ }))

	if n := b.SubscriberCount("t"); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}

	b.Publish("t", 1)
	if old != 0 || cur != 1 {
		t.Fatalf("old handler called %d times, replacement %d", old, cur)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	called := 0
	b.Subscribe("t", "sub", Typed(func(int) { called++ }))
	b.Unsubscribe("t", "sub")
	b.Unsubscribe("t", "absent") // no-op

	b.Publish("t", 1)
	if called != 0 {
		t.Fatalf("handler called %d times after unsubscribe", called)
	}
}

func TestHandlerPublishesToOtherTopic(t *testing.T) {
	b := New()

	var got string
	b.Subscribe("downstream", "sink", Typed(func(s string) { got = s }))
	b.Subscribe("upstream", "relay", Typed(func(s string) {
		b.PublishTransient("downstream", s+"!")
	}))

	b.PublishTransient("upstream", "evt")
	if got != "evt!" {
		t.Fatalf("chained delivery = %q, want %q", got, "evt!")
	}
}

func TestMetrics(t *testing.T) {
	b := New()
	b.Subscribe("t", "sub", Typed(func(int) {}))
	b.Publish("t", 1)
	b.PublishTransient("dead-letter", 2)

	m := b.Metrics()
	if m.Published != 2 {
		t.Fatalf("published = %d, want 2", m.Published)
	}
	if m.Delivered != 1 {
		t.Fatalf("delivered = %d, want 1", m.Delivered)
	}
	if m.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", m.Dropped)
	}
}
