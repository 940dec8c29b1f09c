// Package marketdata merges the liquidity providers' simulated prices into
// a single reference price per instrument and republishes ticks on the bus.
package marketdata

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/provider"
	"trading-desk/internal/topics"
)

const subscriberID = "marketdata-gateway"

// Gateway runs the continuous first-responder race across the providers
// and publishes the winner's quote whenever its instrument is part of the
// tradable universe.
type Gateway struct {
	bus       *bus.Bus
	providers []*provider.Provider
	pace      int
	logger    zerolog.Logger

	universe atomic.Value // map[string]struct{}
}

// New creates a gateway over the given providers. pace controls the
// expected number of sleep increments before a provider wakes.
func New(b *bus.Bus, providers []*provider.Provider, pace int, logger zerolog.Logger) *Gateway {
	g := &Gateway{
		bus:       b,
		providers: providers,
		pace:      pace,
		logger:    logger.With().Str("component", "marketdata").Logger(),
	}
	g.universe.Store(map[string]struct{}{})
	return g
}

// Start seeds every tradable instrument's market price with the minimum
// across providers (zero when none carries it) and launches the race loop.
// The loop terminates when ctx is canceled.
func (g *Gateway) Start(ctx context.Context) {
	g.bus.Subscribe(topics.AllInstruments, subscriberID, bus.Typed(g.setUniverse))
	g.seed()
	go g.loop(ctx)
}

func (g *Gateway) setUniverse(instruments []string) {
	u := make(map[string]struct{}, len(instruments))
	for _, id := range instruments {
		u[id] = struct{}{}
	}
	g.universe.Store(u)
}

func (g *Gateway) tradable(instrumentID string) bool {
	u := g.universe.Load().(map[string]struct{})
	_, ok := u[instrumentID]
	return ok
}

// seed publishes the initial reference price for every tradable
// instrument: the minimum currently known price across the providers.
func (g *Gateway) seed() {
	u := g.universe.Load().(map[string]struct{})
	for id := range u {
		price := 0.0
		found := false
		for _, p := range g.providers {
			if v, ok := p.Prices()[id]; ok && (!found || v < price) {
				price, found = v, true
			}
		}
		g.bus.Publish(topics.MarketPrice(id), models.Stock{InstrumentID: id, Price: price})
	}
	g.logger.Info().Int("instruments", len(u)).Msg("reference prices seeded")
}

func (g *Gateway) loop(ctx context.Context) {
	for ctx.Err() == nil {
		quote, ok := g.runRound(ctx)
		if !ok {
			continue
		}
		if g.tradable(quote.InstrumentID) {
			g.bus.Publish(topics.MarketPrice(quote.InstrumentID), quote)
		}
	}
	g.logger.Info().Msg("market data loop stopped")
}

type raceResult struct {
	quote models.Stock
	ok    bool
}

// runRound races all providers: exactly one claims the shared winner flag
// and mutates its price; the rest are canceled and their no-op results
// discarded. Cancellation is best effort, a sleeping loser may take one
// increment to notice, which is fine because its result is dropped anyway.
func (g *Gateway) runRound(ctx context.Context) (models.Stock, bool) {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var winner atomic.Bool
	results := make(chan raceResult, len(g.providers))

	for _, p := range g.providers {
		go func(p *provider.Provider) {
			quote, ok := p.SimulatePriceChange(roundCtx, g.pace, &winner)
			results <- raceResult{quote: quote, ok: ok}
		}(p)
	}

	first := <-results
	cancel()

	outcome := first
	for i := 1; i < len(g.providers); i++ {
		r := <-results
		if !outcome.ok && r.ok {
			outcome = r
		}
	}
	return outcome.quote, outcome.ok
}
