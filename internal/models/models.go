// Package models provides domain models for the trading desk.
package models

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusSuccess  OrderStatus = "SUCCESS"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Tier classifies a client and determines the spread applied to quotes.
type Tier string

const (
	TierExternal Tier = "EXTERNAL"
	TierInternal Tier = "INTERNAL"
	TierRegular  Tier = "REGULAR"
	TierPremium  Tier = "PREMIUM"
)

// SpreadPercent returns the fractional spread for the tier.
func (t Tier) SpreadPercent() float64 {
	switch t {
	case TierExternal:
		return 0.005
	case TierInternal:
		return 0.001
	case TierRegular:
		return 0.002
	case TierPremium:
		return 0.0005
	default:
		return 0
	}
}

// Valid reports whether the tier is one of the known classifications.
func (t Tier) Valid() bool {
	switch t {
	case TierExternal, TierInternal, TierRegular, TierPremium:
		return true
	}
	return false
}

// TargetPolicy governs how deviation from a target position is handled.
type TargetPolicy string

const (
	PolicyFillOrKill        TargetPolicy = "FOK"
	PolicyImmediateOrCancel TargetPolicy = "IOC"
	PolicyGoodTillCanceled  TargetPolicy = "GTC"
	PolicyGoodForDay        TargetPolicy = "GFD"
)

// TargetPosition is the desired net inventory for an instrument.
// At most one target is active per instrument.
type TargetPosition struct {
	InstrumentID string
	Quantity     float64
	Policy       TargetPolicy
}
