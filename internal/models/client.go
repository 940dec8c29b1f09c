package models

// Client represents a party known to the ledger. Balance and holdings are
// mutated only through transaction settlement.
type Client struct {
	ID       string
	Name     string
	Balance  float64
	Tier     Tier
	Holdings []Holding
}

// Holding is a signed position in one instrument. There is exactly one
// record per (client, instrument); it is created lazily on first trade and
// never deleted.
type Holding struct {
	ClientID     string
	InstrumentID string
	Quantity     float64
}

// HoldingFor returns the client's signed quantity in the given instrument,
// zero when the client has never traded it.
func (c Client) HoldingFor(instrumentID string) float64 {
	for _, h := range c.Holdings {
		if h.InstrumentID == instrumentID {
			return h.Quantity
		}
	}
	return 0
}

// Clone returns a deep copy so that one subscriber's view never aliases
// another's.
func (c Client) Clone() Client {
	cp := c
	cp.Holdings = make([]Holding, len(c.Holdings))
	copy(cp.Holdings, c.Holdings)
	return cp
}

// Customer is a login credential tied to a client. Only a subset of clients
// (not the house or hedge counterparties) have one.
type Customer struct {
	ClientID     string
	Username     string
	PasswordHash []byte
	Salt         []byte
}

// LoginRequest asks the ledger to verify a credential.
type LoginRequest struct {
	Username string
	Password string
}

// LoginResponse carries the outcome of a login check. ClientID is empty
// when authentication failed.
type LoginResponse struct {
	ClientID      string
	Authenticated bool
}
