// Package provider implements the simulated liquidity providers. Each
// provider generates an independent random-walk price stream for its own
// disjoint set of instruments and participates in the market data gateway's
// first-responder race.
package provider

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"trading-desk/internal/models"
)

// tickIncrement is the sleep quantum between cancellation polls while a
// provider waits to wake.
const tickIncrement = time.Millisecond

// Provider is one simulated external liquidity venue.
type Provider struct {
	name string
	step float64

	mu     sync.RWMutex
	prices map[string]float64
}

// New creates a provider seeded with the given instrument prices. step is
// the fixed price move applied on every successful tick.
func New(name string, seedPrices map[string]float64, step float64) *Provider {
	prices := make(map[string]float64, len(seedPrices))
	for id, p := range seedPrices {
		prices[id] = p
	}
	return &Provider{name: name, step: step, prices: prices}
}

// Name returns the provider's venue name.
func (p *Provider) Name() string {
	return p.name
}

// Prices returns a read-only snapshot of current prices.
func (p *Provider) Prices() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]float64, len(p.prices))
	for id, price := range p.prices {
		out[id] = price
	}
	return out
}

// Stocks returns a quote snapshot for every instrument the provider trades.
func (p *Provider) Stocks() []models.Stock {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.Stock, 0, len(p.prices))
	for id, price := range p.prices {
		out = append(out, models.Stock{InstrumentID: id, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out
}

// SimulatePriceChange is one attempt in a race round. The provider sleeps
// in small increments, waking early with probability 1/pace per increment,
// and polls ctx between increments. On waking, the first provider to claim
// the shared winner flag moves one of its instruments by the fixed step
// (random direction, clamped at zero) and returns the updated quote. A
// canceled or losing attempt returns ok=false with a zero quote.
func (p *Provider) SimulatePriceChange(ctx context.Context, pace int, winner *atomic.Bool) (models.Stock, bool) {
	if pace <= 0 {
		pace = 1
	}

	for {
		select {
		case <-ctx.Done():
			return models.Stock{}, false
		default:
		}
		if winner.Load() {
			return models.Stock{}, false
		}
		time.Sleep(tickIncrement)
		if rand.Intn(pace) == 0 {
			break
		}
	}

	if !winner.CompareAndSwap(false, true) {
		return models.Stock{}, false
	}

	return p.tick(), true
}

// tick moves one randomly chosen instrument by one step.
func (p *Provider) tick() models.Stock {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.prices))
	for id := range p.prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return models.Stock{}
	}

	id := ids[rand.Intn(len(ids))]
	delta := p.step
	if rand.Intn(2) == 0 {
		delta = -delta
	}
	next := p.prices[id] + delta
	if next < 0 {
		next = 0
	}
	p.prices[id] = next

	return models.Stock{InstrumentID: id, Price: next}
}

// Trades reports whether the provider carries the instrument.
func (p *Provider) Trades(instrumentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.prices[instrumentID]
	return ok
}
