package risk

import (
	"testing"

	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

func newChecker(t *testing.T) (*Checker, *bus.Bus) {
	t.Helper()
	b := bus.New()
	c := New(b, zerolog.Nop())
	c.Start()
	return c, b
}

func submit(b *bus.Bus, order *models.Order) *models.Order {
	b.PublishTransient(topics.ClientOrder, order)
	return order
}

func TestNoTargetRequiresHedge(t *testing.T) {
	_, b := newChecker(t)

	order := submit(b, &models.Order{
		ClientID: "alice",
		Side:     models.OrderSideBuy,
		Stock:    models.Stock{InstrumentID: "GME", Size: 1, Price: 10},
	})
	if !order.HedgeOrder {
		t.Fatal("order without a configured target was not marked for hedging")
	}
}

func TestNonFillOrKillAlwaysHedges(t *testing.T) {
	_, b := newChecker(t)
	b.Publish(topics.AllTargetPositions, []models.TargetPosition{
		{InstrumentID: "GME", Quantity: 1000, Policy: models.PolicyGoodTillCanceled},
	})

	order := submit(b, &models.Order{
		ClientID: "alice",
		Side:     models.OrderSideBuy,
		Stock:    models.Stock{InstrumentID: "GME", Size: 1, Price: 10},
	})
	if !order.HedgeOrder {
		t.Fatal("non-FOK policy must always require hedging")
	}
}

func TestFillOrKillWithinBandAbsorbs(t *testing.T) {
	_, b := newChecker(t)
	b.Publish(topics.AllTargetPositions, []models.TargetPosition{
		{InstrumentID: "GME", Quantity: 100, Policy: models.PolicyFillOrKill},
	})
	b.Publish(topics.AllClients, []models.Client{
		{ID: "alice", Holdings: []models.Holding{{ClientID: "alice", InstrumentID: "GME", Quantity: 10}}},
	})

	order := submit(b, &models.Order{
		ClientID: "alice",
		Side:     models.OrderSideBuy,
		Stock:    models.Stock{InstrumentID: "GME", Size: 5, Price: 10},
	})
	if order.HedgeOrder {
		t.Fatal("in-band FOK order should be absorbed internally")
	}
}

func TestFillOrKillOutsideBandHedges(t *testing.T) {
	_, b := newChecker(t)
	b.Publish(topics.AllTargetPositions, []models.TargetPosition{
		{InstrumentID: "GME", Quantity: 10, Policy: models.PolicyFillOrKill},
	})
	b.Publish(topics.AllClients, []models.Client{
		{ID: "alice", Holdings: []models.Holding{{ClientID: "alice", InstrumentID: "GME", Quantity: 8}}},
	})

	buy := submit(b, &models.Order{
		ClientID: "alice",
		Side:     models.OrderSideBuy,
		Stock:    models.Stock{InstrumentID: "GME", Size: 5, Price: 10},
	})
	if !buy.HedgeOrder {
		t.Fatal("order moving position outside the band must hedge")
	}

	// The sell direction is banded symmetrically.
	sell := submit(b, &models.Order{
		ClientID: "alice",
		Side:     models.OrderSideSell,
		Stock:    models.Stock{InstrumentID: "GME", Size: 25, Price: 10},
	})
	if !sell.HedgeOrder {
		t.Fatal("large sell moving position outside the band must hedge")
	}
}

func TestSnapshotUpdatesAreObserved(t *testing.T) {
	_, b := newChecker(t)
	b.Publish(topics.AllTargetPositions, []models.TargetPosition{
		{InstrumentID: "GME", Quantity: 100, Policy: models.PolicyGoodForDay},
	})

	order := submit(b, &models.Order{
		ClientID: "alice",
		Side:     models.OrderSideBuy,
		Stock:    models.Stock{InstrumentID: "GME", Size: 1, Price: 10},
	})
	if !order.HedgeOrder {
		t.Fatal("GFD policy must hedge")
	}

	// Policy flips to FOK; the checker must pick up the new snapshot.
	b.Publish(topics.AllTargetPositions, []models.TargetPosition{
		{InstrumentID: "GME", Quantity: 100, Policy: models.PolicyFillOrKill},
	})
	order = submit(b, &models.Order{
		ClientID: "alice",
		Side:     models.OrderSideBuy,
		Stock:    models.Stock{InstrumentID: "GME", Size: 1, Price: 10},
	})
	if order.HedgeOrder {
		t.Fatal("updated FOK target not observed")
	}
}
