// Package hedging picks the liquidity provider to hedge a transaction
// against.
package hedging

import (
	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

const subscriberID = "hedge-router"

// Inventory is the static instrument set one provider trades, captured at
// startup from the provider's quote snapshot.
type Inventory struct {
	Provider    string
	Instruments map[string]struct{}
}

// InventoryFromStocks builds an Inventory from a provider's snapshot.
func InventoryFromStocks(providerName string, stocks []models.Stock) Inventory {
	instruments := make(map[string]struct{}, len(stocks))
	for _, s := range stocks {
		instruments[s.InstrumentID] = struct{}{}
	}
	return Inventory{Provider: providerName, Instruments: instruments}
}

// Router routes hedge requests to the first provider carrying the
// instrument. Providers are assumed to always accept; rejection handling
// on the provider side is a future extension.
type Router struct {
	bus         *bus.Bus
	logger      zerolog.Logger
	inventories []Inventory
}

// New creates a router over the given provider inventories; order matters,
// the first match wins.
func New(b *bus.Bus, inventories []Inventory, logger zerolog.Logger) *Router {
	return &Router{
		bus:         b,
		logger:      logger.With().Str("component", "hedging").Logger(),
		inventories: inventories,
	}
}

// Start subscribes to the hedge-request topic.
func (r *Router) Start() {
	r.bus.Subscribe(topics.HedgeOrderRequest, subscriberID, bus.Typed(r.Route))
}

// Route publishes the (transaction, provider) pair on the hedge-response
// topic. When no provider carries the instrument the provider name is left
// empty, which downstream turns into a rejected hedge rather than a
// silently dropped or corrupting one.
func (r *Router) Route(tx models.Transaction) {
	for _, inv := range r.inventories {
		if _, ok := inv.Instruments[tx.InstrumentID]; ok {
			r.logger.Debug().Str("tx", tx.ID).Str("provider", inv.Provider).
				Str("instrument", tx.InstrumentID).Msg("hedge routed")
			r.bus.PublishTransient(topics.HedgeOrderResponse, models.HedgeResponse{
				Transaction: tx,
				Provider:    inv.Provider,
			})
			return
		}
	}

	r.logger.Warn().Str("tx", tx.ID).Str("instrument", tx.InstrumentID).
		Msg("no provider carries instrument")
	r.bus.PublishTransient(topics.HedgeOrderResponse, models.HedgeResponse{Transaction: tx})
}
