// Package execution validates approved orders against the live reference
// price, creates transactions, and routes them to booking or hedging.
package execution

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

const subscriberID = "execution"

// priceTolerance absorbs the float round-trip of the facade's spread
// removal; anything larger than this is a genuine quote mismatch.
const priceTolerance = 1e-9

// Engine executes approved orders for both sides.
type Engine struct {
	bus    *bus.Bus
	logger zerolog.Logger
	house  string

	mu       sync.RWMutex
	quotes   map[string]models.Stock
	rejected map[string]string
}

// New creates an execution engine. house is the client id of the implicit
// counterparty to every client trade.
func New(b *bus.Bus, house string, logger zerolog.Logger) *Engine {
	return &Engine{
		bus:      b,
		logger:   logger.With().Str("component", "execution").Logger(),
		house:    house,
		quotes:   make(map[string]models.Stock),
		rejected: make(map[string]string),
	}
}

// Start subscribes to the live market prices, the approved-order topic, and
// the hedge-response topic.
func (e *Engine) Start() {
	e.bus.Subscribe(topics.AllInstruments, subscriberID, bus.Typed(func(instruments []string) {
		for _, id := range instruments {
			e.bus.Subscribe(topics.MarketPrice(id), subscriberID, bus.Typed(e.cacheQuote))
		}
	}))
	e.bus.Subscribe(topics.OrderApproved, subscriberID, bus.Typed(e.HandleOrder))
	e.bus.Subscribe(topics.HedgeOrderResponse, subscriberID, bus.Typed(e.relayHedgeResponse))
}

func (e *Engine) cacheQuote(quote models.Stock) {
	e.mu.Lock()
	e.quotes[quote.InstrumentID] = quote
	e.mu.Unlock()
}

func (e *Engine) quote(instrumentID string) (models.Stock, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.quotes[instrumentID]
	return q, ok
}

// HandleOrder validates the order against the live quote and, on a match,
// creates the transaction and routes it. The finished order is always
// published on the client's completion topic, whatever the outcome.
func (e *Engine) HandleOrder(order *models.Order) {
	instrument := order.Stock.InstrumentID

	quote, ok := e.quote(instrument)
	if !ok || math.Abs(quote.Price-order.Stock.Price) > priceTolerance {
		order.Status = models.OrderStatusCanceled
		order.Error = "order price does not match live quote"
		e.logger.Warn().Str("client", order.ClientID).Str("instrument", instrument).
			Float64("order", order.Stock.Price).Float64("live", quote.Price).
			Msg("order canceled on price mismatch")
		e.bus.PublishTransient(topics.OrderEnded(order.ClientID), *order)
		return
	}

	tx := models.Transaction{
		ID:           uuid.NewString(),
		InstrumentID: instrument,
		Size:         order.Stock.Size,
		Price:        order.Stock.Price,
		SpreadPrice:  order.SpreadPrice,
		Succeeded:    true,
		Timestamp:    time.Now().UTC(),
	}
	// Only the client side is filled in here; booking inserts the house on
	// the missing side.
	if order.Side == models.OrderSideBuy {
		tx.BuyerID = order.ClientID
	} else {
		tx.SellerID = order.ClientID
	}

	order.Status = models.OrderStatusSuccess

	if order.HedgeOrder {
		e.bus.PublishTransient(topics.HedgeOrderRequest, tx)
		// Hedge routing, response relay, and booking all ran inside that
		// publish; an unhedgeable instrument surfaced as a rejection.
		if reason, rejected := e.takeRejection(tx.ID); rejected {
			order.Status = models.OrderStatusRejected
			order.Error = reason
		}
	} else {
		e.bus.PublishTransient(topics.BookOrder, tx)
	}

	e.logger.Info().Str("client", order.ClientID).Str("instrument", instrument).
		Str("status", string(order.Status)).Bool("hedged", order.HedgeOrder).
		Msg("order executed")
	e.bus.PublishTransient(topics.OrderEnded(order.ClientID), *order)
}

// relayHedgeResponse forwards a routed hedge to the final hedging topic for
// booking. A response without a provider means no venue carries the
// instrument: the transaction is recorded as failed (audit only, no
// settlement) and the order is flagged for rejection.
func (e *Engine) relayHedgeResponse(resp models.HedgeResponse) {
	if resp.Provider == "" {
		resp.Transaction.Succeeded = false
		e.bus.PublishTransient(topics.BookOrder, resp.Transaction)
		e.setRejection(resp.Transaction.ID, "no liquidity provider carries the instrument")
		e.logger.Warn().Str("tx", resp.Transaction.ID).
			Str("instrument", resp.Transaction.InstrumentID).
			Msg("hedge rejected: no provider")
		return
	}
	e.bus.PublishTransient(topics.HedgeOrder, resp)
}

func (e *Engine) setRejection(txID, reason string) {
	e.mu.Lock()
	e.rejected[txID] = reason
	e.mu.Unlock()
}

func (e *Engine) takeRejection(txID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	reason, ok := e.rejected[txID]
	if ok {
		delete(e.rejected, txID)
	}
	return reason, ok
}
