package models

import "time"

// Stock is a point-in-time quote for an instrument. It is a value type and
// is always handed to consumers by copy.
type Stock struct {
	InstrumentID  string
	Price         float64
	Size          float64
	LiveStreaming bool
	Maturity      time.Time
}

// Order is the working object an order pipeline stage operates on. It is
// published by pointer so the risk stage's decision is visible downstream;
// finished orders are handed back to clients by value.
type Order struct {
	ClientID    string
	Side        OrderSide
	Stock       Stock
	Status      OrderStatus
	SpreadPrice float64
	HedgeOrder  bool
	Error       string
}

// Transaction is an immutable ledger row. Failed transactions are recorded
// for audit but never settle holdings or balances. The two legs of a hedged
// trade share one transaction id.
type Transaction struct {
	ID           string
	BuyerID      string
	SellerID     string
	InstrumentID string
	Size         float64
	Price        float64
	SpreadPrice  float64
	Succeeded    bool
	Timestamp    time.Time
}

// HedgeResponse pairs a transaction with the liquidity provider chosen to
// hedge it. Provider is empty when no provider carries the instrument.
type HedgeResponse struct {
	Transaction Transaction
	Provider    string
}
