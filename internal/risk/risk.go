// Package risk decides whether a submitted order must be hedged against an
// external liquidity provider or can be absorbed into the house book.
package risk

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

const subscriberID = "risk-check"

// Checker intercepts submitted orders on the generic client-order topic.
// It publishes nothing itself: the decision is written onto the in-flight
// order, which downstream stages observe because dispatch is synchronous.
type Checker struct {
	bus    *bus.Bus
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[string]models.Client
	targets map[string]models.TargetPosition
}

// New creates a risk checker.
func New(b *bus.Bus, logger zerolog.Logger) *Checker {
	return &Checker{
		bus:     b,
		logger:  logger.With().Str("component", "risk").Logger(),
		clients: make(map[string]models.Client),
		targets: make(map[string]models.TargetPosition),
	}
}

// Start subscribes to the ledger snapshots and the client-order topic.
func (c *Checker) Start() {
	c.bus.Subscribe(topics.AllClients, subscriberID, bus.Typed(c.setClients))
	c.bus.Subscribe(topics.AllTargetPositions, subscriberID, bus.Typed(c.setTargets))
	c.bus.Subscribe(topics.ClientOrder, subscriberID, bus.Typed(c.Evaluate))
}

func (c *Checker) setClients(clients []models.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range clients {
		c.clients[cl.ID] = cl
	}
}

func (c *Checker) setTargets(targets []models.TargetPosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tp := range targets {
		c.targets[tp.InstrumentID] = tp
	}
}

// Evaluate applies the hedge decision rule to the order: a FillOrKill
// target whose band still contains the post-fill position lets the house
// absorb the trade; any other policy, or no target at all, requires an
// external hedge.
func (c *Checker) Evaluate(order *models.Order) {
	instrument := order.Stock.InstrumentID

	c.mu.RLock()
	client, haveClient := c.clients[order.ClientID]
	target, haveTarget := c.targets[instrument]
	c.mu.RUnlock()

	order.HedgeOrder = true
	if !haveTarget || target.Policy != models.PolicyFillOrKill {
		c.logger.Debug().Str("client", order.ClientID).Str("instrument", instrument).
			Msg("order requires hedge")
		return
	}

	holding := 0.0
	if haveClient {
		holding = client.HoldingFor(instrument)
	}

	next := holding + order.Stock.Size
	if order.Side == models.OrderSideSell {
		next = holding - order.Stock.Size
	}

	if math.Abs(next) <= target.Quantity {
		order.HedgeOrder = false
		c.logger.Debug().Str("client", order.ClientID).Str("instrument", instrument).
			Float64("position", next).Float64("band", target.Quantity).
			Msg("order absorbed internally")
	}
}
