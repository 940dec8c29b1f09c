package pricer

import (
	"testing"

	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

func TestRepublishesMarketPriceUnmodified(t *testing.T) {
	b := bus.New()
	b.Publish(topics.AllInstruments, []string{"GME"})

	p := New(b, zerolog.Nop())
	p.Start()

	var got models.Stock
	b.Subscribe(topics.ClientPrice("GME"), "client", bus.Typed(func(s models.Stock) { got = s }))

	b.Publish(topics.MarketPrice("GME"), models.Stock{InstrumentID: "GME", Price: 21.5})

	if got.Price != 21.5 {
		t.Fatalf("client price = %v, want pass-through 21.5", got.Price)
	}
	if p.Price("GME") != 21.5 {
		t.Fatalf("cached price = %v, want 21.5", p.Price("GME"))
	}
}

func TestSeedsConfiguredInstrumentsAtZero(t *testing.T) {
	b := bus.New()
	p := New(b, zerolog.Nop())
	p.Start()

	b.Publish(topics.AllInstruments, []string{"GME", "AAPL"})

	if p.Price("GME") != 0 || p.Price("AAPL") != 0 {
		t.Fatalf("seed prices = %v/%v, want 0/0", p.Price("GME"), p.Price("AAPL"))
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	b := bus.New()
	b.Publish(topics.AllInstruments, []string{"GME"})

	p := New(b, zerolog.Nop())
	p.Start()

	quote := models.Stock{InstrumentID: "GME", Price: 10}
	p.UpdatePrice(quote)
	p.UpdatePrice(quote)

	var got models.Stock
	b.Subscribe(topics.ClientPrice("GME"), "late", bus.Typed(func(s models.Stock) { got = s }))
	if got.Price != 10 || p.Price("GME") != 10 {
		t.Fatalf("state after repeated update = %v/%v, want 10/10", got.Price, p.Price("GME"))
	}
}

func TestReplayedMarketPriceReachesPricer(t *testing.T) {
	b := bus.New()

	// Market price published before the pricer starts: the persistent
	// replay must still bring the pricer up to date.
	b.Publish(topics.MarketPrice("GME"), models.Stock{InstrumentID: "GME", Price: 42})
	b.Publish(topics.AllInstruments, []string{"GME"})

	p := New(b, zerolog.Nop())
	p.Start()

	if p.Price("GME") != 42 {
		t.Fatalf("price after replay = %v, want 42", p.Price("GME"))
	}
}
