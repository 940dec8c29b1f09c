package provider

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickMovesExactlyOneInstrument(t *testing.T) {
	p := New("JPMorgan", map[string]float64{"GME": 20, "AAPL": 150}, 0.25)

	before := p.Prices()
	quote := p.tick()
	after := p.Prices()

	moved := 0
	for id := range before {
		if before[id] != after[id] {
			moved++
			if id != quote.InstrumentID {
				t.Fatalf("moved instrument %s but quote reports %s", id, quote.InstrumentID)
			}
			if d := math.Abs(after[id] - before[id]); d != 0.25 {
				t.Fatalf("price moved by %v, want step 0.25", d)
			}
		}
	}
	if moved != 1 {
		t.Fatalf("%d instruments moved in one tick, want 1", moved)
	}
	if quote.Price != after[quote.InstrumentID] {
		t.Fatalf("quote price %v does not match state %v", quote.Price, after[quote.InstrumentID])
	}
}

func TestTickClampsAtZero(t *testing.T) {
	p := New("Goldman", map[string]float64{"PENNY": 0.1}, 0.25)

	for i := 0; i < 50; i++ {
		quote := p.tick()
		if quote.Price < 0 {
			t.Fatalf("price went negative: %v", quote.Price)
		}
	}
}

func TestCanceledAttemptIsNoOp(t *testing.T) {
	p := New("Citadel", map[string]float64{"AMZN": 130}, 0.25)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var winner atomic.Bool
	quote, ok := p.SimulatePriceChange(ctx, 1000, &winner)
	if ok {
		t.Fatal("canceled attempt claimed a win")
	}
	if quote.InstrumentID != "" {
		t.Fatalf("canceled attempt returned a quote: %+v", quote)
	}
	if got := p.Prices()["AMZN"]; got != 130 {
		t.Fatalf("canceled attempt mutated price to %v", got)
	}
}

func TestRaceHasExactlyOneWinner(t *testing.T) {
	providers := []*Provider{
		New("JPMorgan", map[string]float64{"GME": 20}, 0.25),
		New("Goldman", map[string]float64{"TSLA": 200}, 0.25),
		New("Citadel", map[string]float64{"AMZN": 130}, 0.25),
	}

	for round := 0; round < 10; round++ {
		ctx, cancel := context.WithCancel(context.Background())
		var winner atomic.Bool
		var wins int32
		var wg sync.WaitGroup

		for _, p := range providers {
			wg.Add(1)
			go func(p *Provider) {
				defer wg.Done()
				if _, ok := p.SimulatePriceChange(ctx, 3, &winner); ok {
					atomic.AddInt32(&wins, 1)
					cancel()
				}
			}(p)
		}

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("race round did not finish")
		}
		cancel()

		if got := atomic.LoadInt32(&wins); got != 1 {
			t.Fatalf("round %d: %d winners, want exactly 1", round, got)
		}
	}
}
