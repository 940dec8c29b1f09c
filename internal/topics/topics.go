// Package topics is the single naming authority for event bus topics.
// Every topic string in the system is built here, which keeps the namespace
// collision-free; other packages must never hand-build topic names.
package topics

// Order pipeline topics. ClientOrder carries both sides despite its history
// as a buy-only channel.
const (
	ClientOrder        = "clientOrders.buyOrder"
	OrderApproved      = "clientOrders.buyOrderApproved"
	BookOrder          = "clientOrders.BookOrder"
	HedgeOrder         = "clientOrders.HedgeOrder"
	HedgeOrderRequest  = "clientOrders.HedgeOrderRequest"
	HedgeOrderResponse = "clientOrders.HedgeOrderResponse"
)

// Login topics, transient on both legs.
const (
	LoginRequested = "loginRequest.loginRequested"
	LoginResponded = "loginRequest.loginResponded"
)

// Persistent snapshot topics published by the ledger and the setup layer.
const (
	AllClients         = "StreamMisc.allClients"
	AllInstruments     = "StreamMisc.allInstruments"
	AllTargetPositions = "StreamMisc.allTargetPositions"
)

// ClientPrice is the client-facing price topic for an instrument.
func ClientPrice(instrumentID string) string {
	return "clientPrices." + instrumentID
}

// MarketPrice is the reference price topic for an instrument.
func MarketPrice(instrumentID string) string {
	return "marketPrices." + instrumentID
}

// OrderEnded is the per-client order completion topic.
func OrderEnded(clientID string) string {
	return "clientOrders.buyOrderEnded" + clientID
}

// ClientData is the per-client persistent data topic.
func ClientData(clientID string) string {
	return "StreamDBData.dbDataOfClient" + clientID
}

// TargetPositionUpdate is the per-instrument target position topic.
func TargetPositionUpdate(instrumentID string) string {
	return "StreamDBData.targetPositionUpdate" + instrumentID
}
