// Package facade is the client-facing entry point: login, live price
// streaming with tier spreads applied, and order submission into the
// processing pipeline.
package facade

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	apperrors "trading-desk/internal/errors"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

// Facade serves one client session. Cached client data is private to the
// instance; the authoritative state lives in the ledger and reaches the
// facade only through its data topic.
type Facade struct {
	bus    *bus.Bus
	logger zerolog.Logger
	id     string

	mu     sync.RWMutex
	client *models.Client
}

// New creates an unauthenticated facade.
func New(b *bus.Bus, logger zerolog.Logger) *Facade {
	return &Facade{
		bus:    b,
		logger: logger.With().Str("component", "facade").Logger(),
		id:     "facade-" + uuid.NewString(),
	}
}

// Login verifies the credential against the ledger. onResult is always
// called exactly once with the outcome; on success the facade additionally
// subscribes to the client's data topic, so onData fires immediately with
// the replayed snapshot and again on every later change.
func (f *Facade) Login(username, password string, onResult func(authenticated bool, clientID string), onData func(models.Client)) {
	var resp models.LoginResponse

	// One-shot subscription: the ledger answers synchronously while the
	// request publish is still on the stack.
	f.bus.Subscribe(topics.LoginResponded, f.id, bus.Typed(func(r models.LoginResponse) {
		resp = r
	}))
	f.bus.PublishTransient(topics.LoginRequested, models.LoginRequest{
		Username: username,
		Password: password,
	})
	f.bus.Unsubscribe(topics.LoginResponded, f.id)

	if !resp.Authenticated {
		f.logger.Warn().Str("username", username).Msg("login rejected")
		onResult(false, "")
		return
	}

	f.bus.Subscribe(topics.ClientData(resp.ClientID), f.id, bus.Typed(func(c models.Client) {
		f.mu.Lock()
		f.client = &c
		f.mu.Unlock()
		if onData != nil {
			onData(c.Clone())
		}
	}))
	f.logger.Info().Str("client", resp.ClientID).Msg("login accepted")
	onResult(true, resp.ClientID)
}

// Client returns the cached client snapshot, false before a successful
// login has replayed one.
func (f *Facade) Client() (models.Client, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.client == nil {
		return models.Client{}, false
	}
	return f.client.Clone(), true
}

// StreamPrice follows the instrument's client price topic. Each tick is
// converted to a bid or ask around the midpoint using the session's tier
// spread and handed to onPrice. A stream with LiveStreaming unset stops an
// existing subscription instead.
func (f *Facade) StreamPrice(stream models.Stock, isAsk bool, onPrice func(float64)) error {
	topic := topics.ClientPrice(stream.InstrumentID)
	if !stream.LiveStreaming {
		f.bus.Unsubscribe(topic, f.id)
		return nil
	}

	f.mu.RLock()
	client := f.client
	f.mu.RUnlock()
	if client == nil {
		return apperrors.ErrInvalidCredentials
	}
	spread := client.Tier.SpreadPercent()

	f.bus.Subscribe(topic, f.id, bus.Typed(func(quote models.Stock) {
		mid := quote.Price
		if isAsk {
			onPrice(mid * (1 + spread))
		} else {
			onPrice(mid * (1 - spread))
		}
	}))
	return nil
}

// HandleOrder strips the session tier's spread from the quoted price,
// records it on the order, and submits the order through risk and
// execution. callback fires exactly once with the finished order; by the
// time HandleOrder returns, the whole synchronous pipeline has run.
func (f *Facade) HandleOrder(order *models.Order, callback func(models.Order)) error {
	f.mu.RLock()
	client := f.client
	f.mu.RUnlock()
	if client == nil {
		return apperrors.ErrInvalidCredentials
	}
	if order == nil || order.Stock.InstrumentID == "" || order.Stock.Size <= 0 {
		return apperrors.ErrInvalidOrder
	}

	order.ClientID = client.ID
	order.Status = models.OrderStatusPending

	quoted := order.Stock.Price
	spread := client.Tier.SpreadPercent()
	if order.Side == models.OrderSideBuy {
		order.Stock.Price = quoted / (1 + spread)
		order.SpreadPrice = (quoted - order.Stock.Price) * order.Stock.Size
	} else {
		order.Stock.Price = quoted / (1 - spread)
		order.SpreadPrice = (order.Stock.Price - quoted) * order.Stock.Size
	}

	done := false
	f.bus.Subscribe(topics.OrderEnded(client.ID), f.id, bus.Typed(func(finished models.Order) {
		if done {
			return
		}
		done = true
		callback(finished)
	}))

	f.logger.Info().Str("client", client.ID).Str("side", string(order.Side)).
		Str("instrument", order.Stock.InstrumentID).Float64("quoted", quoted).
		Float64("price", order.Stock.Price).Msg("order submitted")

	// Risk annotates the order in place, then execution finalizes it. Both
	// run synchronously inside these publishes.
	f.bus.PublishTransient(topics.ClientOrder, order)
	f.bus.PublishTransient(topics.OrderApproved, order)

	f.bus.Unsubscribe(topics.OrderEnded(client.ID), f.id)
	return nil
}
