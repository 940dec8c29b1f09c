package facade

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/execution"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

// fakeLedger answers login requests the way the real ledger does: a
// transient response published synchronously from inside the request
// handler, with an empty client id on bad credentials.
func fakeLedger(b *bus.Bus, username, password, clientID string) {
	b.Subscribe(topics.LoginRequested, "ledger", bus.Typed(func(req models.LoginRequest) {
		resp := models.LoginResponse{}
		if req.Username == username && req.Password == password {
			resp = models.LoginResponse{ClientID: clientID, Authenticated: true}
		}
		b.PublishTransient(topics.LoginResponded, resp)
	}))
}

func loggedIn(t *testing.T, b *bus.Bus, client models.Client) *Facade {
	t.Helper()
	fakeLedger(b, "alice", "hunter2", client.ID)
	b.Publish(topics.ClientData(client.ID), client)

	f := New(b, zerolog.Nop())
	var ok bool
	f.Login("alice", "hunter2", func(authenticated bool, _ string) {
		ok = authenticated
	}, nil)
	if !ok {
		t.Fatal("login did not authenticate")
	}
	return f
}

func TestLoginSuccessReplaysClientData(t *testing.T) {
	b := bus.New()
	fakeLedger(b, "alice", "hunter2", "c1")
	b.Publish(topics.ClientData("c1"), models.Client{ID: "c1", Tier: models.TierRegular, Balance: 500})

	f := New(b, zerolog.Nop())
	var gotID string
	var snapshots []models.Client
	f.Login("alice", "hunter2", func(authenticated bool, clientID string) {
		if !authenticated {
			t.Fatal("expected authenticated login")
		}
		gotID = clientID
	}, func(c models.Client) {
		snapshots = append(snapshots, c)
	})

	if gotID != "c1" {
		t.Fatalf("clientID = %q, want c1", gotID)
	}
	if len(snapshots) != 1 || snapshots[0].Balance != 500 {
		t.Fatalf("replayed snapshot missing: %+v", snapshots)
	}

	// Later ledger updates keep flowing to the same session.
	b.Publish(topics.ClientData("c1"), models.Client{ID: "c1", Tier: models.TierRegular, Balance: 450})
	if len(snapshots) != 2 || snapshots[1].Balance != 450 {
		t.Fatalf("update not delivered: %+v", snapshots)
	}
	if cached, ok := f.Client(); !ok || cached.Balance != 450 {
		t.Fatalf("cached client stale: %+v", cached)
	}
}

func TestLoginFailure(t *testing.T) {
	b := bus.New()
	fakeLedger(b, "alice", "hunter2", "c1")

	f := New(b, zerolog.Nop())
	called := false
	f.Login("alice", "wrong", func(authenticated bool, clientID string) {
		called = true
		if authenticated || clientID != "" {
			t.Fatalf("bad credentials authenticated: %v %q", authenticated, clientID)
		}
	}, func(models.Client) {
		t.Fatal("data callback fired on failed login")
	})
	if !called {
		t.Fatal("result callback never fired")
	}
	if _, ok := f.Client(); ok {
		t.Fatal("failed login cached a client")
	}
}

func TestStreamPriceAskBySpreadTier(t *testing.T) {
	cases := []struct {
		tier models.Tier
		want float64
	}{
		{models.TierInternal, 10.01},
		{models.TierRegular, 10.02},
		{models.TierExternal, 10.05},
		{models.TierPremium, 10.005},
	}
	for _, tc := range cases {
		b := bus.New()
		f := loggedIn(t, b, models.Client{ID: "c1", Tier: tc.tier})

		var asks []float64
		err := f.StreamPrice(models.Stock{InstrumentID: "GME", LiveStreaming: true}, true, func(p float64) {
			asks = append(asks, p)
		})
		if err != nil {
			t.Fatalf("%s: %v", tc.tier, err)
		}

		b.Publish(topics.ClientPrice("GME"), models.Stock{InstrumentID: "GME", Price: 10})
		if len(asks) != 1 || math.Abs(asks[0]-tc.want) > 1e-9 {
			t.Fatalf("%s: asks = %v, want [%v]", tc.tier, asks, tc.want)
		}
		if asks[0] <= 10 {
			t.Fatalf("%s: ask %v not above midpoint", tc.tier, asks[0])
		}
	}
}

func TestStreamPriceBid(t *testing.T) {
	b := bus.New()
	f := loggedIn(t, b, models.Client{ID: "c1", Tier: models.TierRegular})

	var bids []float64
	if err := f.StreamPrice(models.Stock{InstrumentID: "GME", LiveStreaming: true}, false, func(p float64) {
		bids = append(bids, p)
	}); err != nil {
		t.Fatal(err)
	}

	b.Publish(topics.ClientPrice("GME"), models.Stock{InstrumentID: "GME", Price: 10})
	if len(bids) != 1 || math.Abs(bids[0]-9.98) > 1e-9 {
		t.Fatalf("bids = %v, want [9.98]", bids)
	}
}

func TestStreamPriceDisableStopsTicks(t *testing.T) {
	b := bus.New()
	f := loggedIn(t, b, models.Client{ID: "c1", Tier: models.TierRegular})

	ticks := 0
	if err := f.StreamPrice(models.Stock{InstrumentID: "GME", LiveStreaming: true}, true, func(float64) {
		ticks++
	}); err != nil {
		t.Fatal(err)
	}
	b.Publish(topics.ClientPrice("GME"), models.Stock{InstrumentID: "GME", Price: 10})

	if err := f.StreamPrice(models.Stock{InstrumentID: "GME"}, true, nil); err != nil {
		t.Fatal(err)
	}
	b.Publish(topics.ClientPrice("GME"), models.Stock{InstrumentID: "GME", Price: 11})

	if ticks != 1 {
		t.Fatalf("ticks = %d, want 1 (stream disabled after first)", ticks)
	}
}

func TestHandleOrderRemovesBuySpread(t *testing.T) {
	b := bus.New()
	f := loggedIn(t, b, models.Client{ID: "c1", Tier: models.TierRegular})

	var submitted *models.Order
	b.Subscribe(topics.OrderApproved, "test", bus.Typed(func(o *models.Order) {
		submitted = o
	}))

	order := &models.Order{
		Side:  models.OrderSideBuy,
		Stock: models.Stock{InstrumentID: "GME", Size: 2, Price: 10.02},
	}
	if err := f.HandleOrder(order, func(models.Order) {}); err != nil {
		t.Fatal(err)
	}

	if submitted == nil {
		t.Fatal("order never reached the pipeline")
	}
	if math.Abs(submitted.Stock.Price-10.0) > 1e-9 {
		t.Fatalf("price = %v, want 10.0 after removing 0.2%% spread", submitted.Stock.Price)
	}
	if math.Abs(submitted.SpreadPrice-0.04) > 1e-9 {
		t.Fatalf("spread price = %v, want 0.04", submitted.SpreadPrice)
	}
	if submitted.ClientID != "c1" {
		t.Fatalf("client id = %q, want c1", submitted.ClientID)
	}
}

func TestHandleOrderAddsSellSpread(t *testing.T) {
	b := bus.New()
	f := loggedIn(t, b, models.Client{ID: "c1", Tier: models.TierRegular})

	var submitted *models.Order
	b.Subscribe(topics.OrderApproved, "test", bus.Typed(func(o *models.Order) {
		submitted = o
	}))

	order := &models.Order{
		Side:  models.OrderSideSell,
		Stock: models.Stock{InstrumentID: "GME", Size: 1, Price: 9.98},
	}
	if err := f.HandleOrder(order, func(models.Order) {}); err != nil {
		t.Fatal(err)
	}

	// 9.98 / (1 - 0.002) = 10.0
	if math.Abs(submitted.Stock.Price-10.0) > 1e-9 {
		t.Fatalf("price = %v, want 10.0", submitted.Stock.Price)
	}
	if math.Abs(submitted.SpreadPrice-0.02) > 1e-9 {
		t.Fatalf("spread price = %v, want 0.02", submitted.SpreadPrice)
	}
}

func TestHandleOrderCompletionFiresOnce(t *testing.T) {
	b := bus.New()
	b.Publish(topics.AllInstruments, []string{"GME"})
	b.Publish(topics.MarketPrice("GME"), models.Stock{InstrumentID: "GME", Price: 10})
	execution.New(b, "house", zerolog.Nop()).Start()

	f := loggedIn(t, b, models.Client{ID: "c1", Tier: models.TierRegular})

	var finished []models.Order
	order := &models.Order{
		Side:  models.OrderSideBuy,
		Stock: models.Stock{InstrumentID: "GME", Size: 1, Price: 10.02},
	}
	if err := f.HandleOrder(order, func(o models.Order) {
		finished = append(finished, o)
	}); err != nil {
		t.Fatal(err)
	}

	if len(finished) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(finished))
	}
	if finished[0].Status != models.OrderStatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", finished[0].Status)
	}
}

func TestHandleOrderRequiresLogin(t *testing.T) {
	b := bus.New()
	f := New(b, zerolog.Nop())

	err := f.HandleOrder(&models.Order{
		Side:  models.OrderSideBuy,
		Stock: models.Stock{InstrumentID: "GME", Size: 1, Price: 10},
	}, func(models.Order) {})
	if err == nil {
		t.Fatal("order accepted without a session")
	}
}
