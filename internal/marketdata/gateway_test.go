package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/provider"
	"trading-desk/internal/topics"
)

func testProviders() []*provider.Provider {
	return []*provider.Provider{
		provider.New("JPMorgan", map[string]float64{"GME": 20, "AAPL": 150}, 0.25),
		provider.New("Goldman", map[string]float64{"TSLA": 200}, 0.25),
		provider.New("Citadel", map[string]float64{"AMZN": 130}, 0.25),
	}
}

func TestSeedUsesMinimumAcrossProviders(t *testing.T) {
	b := bus.New()
	b.Publish(topics.AllInstruments, []string{"GME", "TSLA", "UNLISTED"})

	providers := []*provider.Provider{
		provider.New("A", map[string]float64{"GME": 22, "TSLA": 210}, 0.25),
		provider.New("B", map[string]float64{"GME": 19}, 0.25),
	}
	g := New(b, providers, 5, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // seed only, no race loop activity
	g.Start(ctx)

	var gme, tsla, unlisted models.Stock
	b.Subscribe(topics.MarketPrice("GME"), "t", bus.Typed(func(s models.Stock) { gme = s }))
	b.Subscribe(topics.MarketPrice("TSLA"), "t", bus.Typed(func(s models.Stock) { tsla = s }))
	b.Subscribe(topics.MarketPrice("UNLISTED"), "t", bus.Typed(func(s models.Stock) { unlisted = s }))

	if gme.Price != 19 {
		t.Fatalf("GME seed = %v, want min 19", gme.Price)
	}
	if tsla.Price != 210 {
		t.Fatalf("TSLA seed = %v, want 210", tsla.Price)
	}
	if unlisted.Price != 0 {
		t.Fatalf("instrument with no provider seeded at %v, want 0", unlisted.Price)
	}
}

func TestRaceRoundProducesOneQuote(t *testing.T) {
	b := bus.New()
	b.Publish(topics.AllInstruments, []string{"GME", "AAPL", "TSLA", "AMZN"})

	g := New(b, testProviders(), 3, zerolog.Nop())
	g.setUniverse([]string{"GME", "AAPL", "TSLA", "AMZN"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quote, ok := g.runRound(ctx)
	if !ok {
		t.Fatal("race round produced no winner")
	}
	if quote.InstrumentID == "" {
		t.Fatal("winning quote has no instrument")
	}
}

func TestLoopPublishesTicksAndStops(t *testing.T) {
	b := bus.New()
	b.Publish(topics.AllInstruments, []string{"GME", "AAPL", "TSLA", "AMZN"})

	g := New(b, testProviders(), 2, zerolog.Nop())

	ticks := make(chan models.Stock, 64)
	for _, id := range []string{"GME", "AAPL", "TSLA", "AMZN"} {
		b.Subscribe(topics.MarketPrice(id), "collector", bus.Typed(func(s models.Stock) {
			select {
			case ticks <- s:
			default:
			}
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)

	// Seeding alone publishes one price per instrument; wait for a tick
	// beyond those.
	deadline := time.After(5 * time.Second)
	seen := 0
	for seen < 6 {
		select {
		case <-ticks:
			seen++
		case <-deadline:
			t.Fatalf("saw only %d price publications before deadline", seen)
		}
	}
	cancel()
}
