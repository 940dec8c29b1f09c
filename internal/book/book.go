// Package book commits transactions to the ledger, inserting the house as
// the missing counterparty and creating the offsetting hedge leg when
// required.
package book

import (
	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	"trading-desk/internal/models"
	"trading-desk/internal/topics"
)

const subscriberID = "book"

// Recorder is the ledger surface the book needs.
type Recorder interface {
	RecordTransaction(models.Transaction) error
}

// Book is the final pipeline stage before the ledger.
type Book struct {
	ledger Recorder
	bus    *bus.Bus
	logger zerolog.Logger
	house  string
}

// New creates a book committing to the given ledger.
func New(ledger Recorder, b *bus.Bus, house string, logger zerolog.Logger) *Book {
	return &Book{
		ledger: ledger,
		bus:    b,
		logger: logger.With().Str("component", "book").Logger(),
		house:  house,
	}
}

// Start subscribes to the booking and hedging topics.
func (b *Book) Start() {
	b.bus.Subscribe(topics.BookOrder, subscriberID, bus.Typed(b.BookOrder))
	b.bus.Subscribe(topics.HedgeOrder, subscriberID, bus.Typed(b.HedgeOrder))
}

// BookOrder records the transaction, inserting the house on whichever side
// is missing. When the house buys from a client the spread sign is
// inverted: spread is always measured from the client's perspective, so
// what the client paid becomes what the house owes back on its own side.
func (b *Book) BookOrder(tx models.Transaction) {
	switch {
	case tx.BuyerID != "" && tx.SellerID != "":
		// already complete, record as-is
	case tx.BuyerID != "":
		tx.SellerID = b.house
	case tx.SellerID != "":
		tx.BuyerID = b.house
		tx.SpreadPrice = -tx.SpreadPrice
	}

	if err := b.ledger.RecordTransaction(tx); err != nil {
		b.logger.Error().Err(err).Str("tx", tx.ID).Msg("booking failed")
	}
}

// HedgeOrder records the client-facing transaction, then a second leg with
// the same transaction id between the house and the provider, with zero
// spread: the markup was already captured on the client leg.
func (b *Book) HedgeOrder(resp models.HedgeResponse) {
	clientLeg := resp.Transaction
	b.BookOrder(clientLeg)

	hedgeLeg := models.Transaction{
		ID:           clientLeg.ID,
		InstrumentID: clientLeg.InstrumentID,
		Size:         clientLeg.Size,
		Price:        clientLeg.Price,
		SpreadPrice:  0,
		Succeeded:    clientLeg.Succeeded,
		Timestamp:    clientLeg.Timestamp,
	}
	// The house flattens the position it just took on: it buys from the
	// provider what a client bought from it, and sells to the provider
	// what a client sold to it.
	if clientLeg.BuyerID != "" && clientLeg.BuyerID != b.house {
		hedgeLeg.BuyerID = b.house
		hedgeLeg.SellerID = resp.Provider
	} else {
		hedgeLeg.BuyerID = resp.Provider
		hedgeLeg.SellerID = b.house
	}

	if err := b.ledger.RecordTransaction(hedgeLeg); err != nil {
		b.logger.Error().Err(err).Str("tx", hedgeLeg.ID).Msg("hedge leg booking failed")
	}
}
