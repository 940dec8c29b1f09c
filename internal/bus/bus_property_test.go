package bus

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: for any sequence of persistent publishes followed by a
// subscribe, the subscriber observes exactly the last published value,
// synchronously, during the Subscribe call.
func TestProperty_ReplayDeliversLastValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("late subscriber sees the last write", prop.ForAll(
		func(values []float64, topicN int) bool {
			if len(values) == 0 {
				return true
			}
			b := New()
			topic := fmt.Sprintf("prices.SYM%d", topicN)
			for _, v := range values {
				b.Publish(topic, v)
			}

			var got []float64
			b.Subscribe(topic, "late", Typed(func(p float64) {
				got = append(got, p)
			}))

			return len(got) == 1 && got[0] == values[len(values)-1]
		},
		gen.SliceOf(gen.Float64Range(0, 1e6)),
		gen.IntRange(0, 20),
	))

	properties.Property("transient publishes are never replayed", prop.ForAll(
		func(count int) bool {
			b := New()
			for i := 0; i < count; i++ {
				b.PublishTransient("events", i)
			}

			seen := 0
			b.Subscribe("events", "late", Typed(func(int) { seen++ }))
			return seen == 0
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
