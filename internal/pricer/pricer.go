// Package pricer maintains the latest reference price per instrument and
// republishes it as the client-facing price whenever it changes. Clients
// apply their own tier spread on top; the pricer passes prices through
// unmodified.
package pricer

import (
	"sync"

	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

const subscriberID = "pricer"

// Pricer is the bridge between internal market prices and client quotes.
type Pricer struct {
	bus    *bus.Bus
	logger zerolog.Logger

	mu     sync.RWMutex
	prices map[string]float64
}

// New creates a pricer.
func New(b *bus.Bus, logger zerolog.Logger) *Pricer {
	return &Pricer{
		bus:    b,
		logger: logger.With().Str("component", "pricer").Logger(),
		prices: make(map[string]float64),
	}
}

// Start seeds every configured instrument at zero and subscribes to its
// market price topic.
func (p *Pricer) Start() {
	p.bus.Subscribe(topics.AllInstruments, subscriberID, bus.Typed(func(instruments []string) {
		for _, id := range instruments {
			p.mu.Lock()
			if _, ok := p.prices[id]; !ok {
				p.prices[id] = 0
			}
			p.mu.Unlock()
			p.bus.Subscribe(topics.MarketPrice(id), subscriberID, bus.Typed(p.UpdatePrice))
		}
	}))
}

// UpdatePrice records the new reference price and republishes it on the
// client-facing topic. It is idempotent: republishing the same value
// produces the same observable state.
func (p *Pricer) UpdatePrice(quote models.Stock) {
	p.mu.Lock()
	p.prices[quote.InstrumentID] = quote.Price
	p.mu.Unlock()

	p.bus.Publish(topics.ClientPrice(quote.InstrumentID), quote)
}

// Price returns the last known reference price, zero when none was seen.
func (p *Pricer) Price(instrumentID string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prices[instrumentID]
}
