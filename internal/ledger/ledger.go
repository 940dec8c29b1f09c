package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-desk/internal/bus"
	deskerrors "trading-desk/internal/errors"
	"trading-desk/internal/models"
	"trading-desk/internal/security"
	"trading-desk/internal/topics"
)

const subscriberID = "ledger"

// Ledger is the sole writer of authoritative client, holding, and
// transaction state. Every mutation is followed by persistent snapshot
// publications so downstream services observe changes without reaching
// into the store.
type Ledger struct {
	store  *Store
	bus    *bus.Bus
	logger zerolog.Logger
}

// New creates a ledger service over the given store.
func New(store *Store, b *bus.Bus, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		bus:    b,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Start publishes the bootstrap snapshots (full client list, full target
// position list, one data topic per client) and registers the login
// handler. Dependent services starting later replay these.
func (l *Ledger) Start() error {
	clients, err := l.store.Clients()
	if err != nil {
		return deskerrors.NewLedgerError("start", err)
	}
	l.bus.Publish(topics.AllClients, cloneAll(clients))
	for _, c := range clients {
		l.bus.Publish(topics.ClientData(c.ID), c.Clone())
	}

	targets, err := l.store.TargetPositions()
	if err != nil {
		return deskerrors.NewLedgerError("start", err)
	}
	l.bus.Publish(topics.AllTargetPositions, targets)
	for _, tp := range targets {
		l.bus.Publish(topics.TargetPositionUpdate(tp.InstrumentID), tp)
	}

	l.bus.Subscribe(topics.LoginRequested, subscriberID, bus.Typed(l.checkLogin))

	l.logger.Info().Int("clients", len(clients)).Int("targets", len(targets)).Msg("ledger started")
	return nil
}

// AddClient onboards a client, optionally with a login credential. The
// plaintext password is hashed with a fresh salt and discarded.
func (l *Ledger) AddClient(c models.Client, username, password string) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if !c.Tier.Valid() {
		return fmt.Errorf("%w: tier %q", deskerrors.ErrConfigInvalid, c.Tier)
	}

	if exists, err := l.store.HasClient(c.ID); err != nil {
		return deskerrors.NewLedgerError("add client", err)
	} else if exists {
		return deskerrors.ErrDuplicateClient
	}

	var customer models.Customer
	if username != "" {
		if _, taken, err := l.store.CustomerByUsername(username); err != nil {
			return deskerrors.NewLedgerError("add client", err)
		} else if taken {
			return deskerrors.ErrDuplicateUsername
		}

		salt, err := security.GenerateSalt()
		if err != nil {
			return deskerrors.NewLedgerError("add client", err)
		}
		customer = models.Customer{
			ClientID:     c.ID,
			Username:     username,
			PasswordHash: security.HashPassword(password, salt),
			Salt:         salt,
		}
	}

	if err := l.store.InsertClient(c, customer); err != nil {
		return deskerrors.NewLedgerError("add client", err)
	}

	l.publishClient(c.ID)
	l.publishAllClients()
	l.logger.Info().Str("client", c.ID).Str("tier", string(c.Tier)).Msg("client onboarded")
	return nil
}

// RecordTransaction appends the transaction and settles it when succeeded,
// then publishes fresh snapshots of both affected clients.
func (l *Ledger) RecordTransaction(t models.Transaction) error {
	if err := l.store.RecordTransaction(t); err != nil {
		return deskerrors.NewLedgerError("record transaction", err)
	}

	l.publishClient(t.BuyerID)
	l.publishClient(t.SellerID)
	l.publishAllClients()

	l.logger.Debug().
		Str("tx", t.ID).
		Str("buyer", t.BuyerID).
		Str("seller", t.SellerID).
		Str("instrument", t.InstrumentID).
		Float64("size", t.Size).
		Float64("price", t.Price).
		Bool("succeeded", t.Succeeded).
		Msg("transaction recorded")
	return nil
}

// UpdateTargetPosition stores the target and publishes it on both the
// per-instrument topic and the full snapshot topic.
func (l *Ledger) UpdateTargetPosition(tp models.TargetPosition) error {
	if err := l.store.UpsertTargetPosition(tp); err != nil {
		return deskerrors.NewLedgerError("update target position", err)
	}

	l.bus.Publish(topics.TargetPositionUpdate(tp.InstrumentID), tp)
	targets, err := l.store.TargetPositions()
	if err != nil {
		return deskerrors.NewLedgerError("update target position", err)
	}
	l.bus.Publish(topics.AllTargetPositions, targets)
	return nil
}

// TargetPosition returns the active target for an instrument, if any.
func (l *Ledger) TargetPosition(instrumentID string) (models.TargetPosition, bool, error) {
	return l.store.TargetPosition(instrumentID)
}

// Clients returns all clients with holdings.
func (l *Ledger) Clients() ([]models.Client, error) {
	return l.store.Clients()
}

// Client returns one client; ok is false when unknown.
func (l *Ledger) Client(id string) (models.Client, bool, error) {
	return l.store.Client(id)
}

// Holding returns the signed holding quantity, zero when the client never
// traded the instrument. "No data yet" and "no data at all" look the same
// to callers.
func (l *Ledger) Holding(clientID, instrumentID string) (float64, error) {
	return l.store.Holding(clientID, instrumentID)
}

// Transactions returns the full audit trail.
func (l *Ledger) Transactions() ([]models.Transaction, error) {
	return l.store.Transactions()
}

// TransactionsByID returns all legs recorded under one transaction id.
func (l *Ledger) TransactionsByID(id string) ([]models.Transaction, error) {
	return l.store.TransactionsByID(id)
}

// checkLogin verifies a credential and always publishes a transient
// response; an empty client id signals failure.
func (l *Ledger) checkLogin(req models.LoginRequest) {
	resp := models.LoginResponse{}

	customer, found, err := l.store.CustomerByUsername(req.Username)
	if err != nil {
		l.logger.Error().Err(err).Str("username", req.Username).Msg("login lookup failed")
	} else if found && security.VerifyPassword(req.Password, customer.Salt, customer.PasswordHash) {
		resp = models.LoginResponse{ClientID: customer.ClientID, Authenticated: true}
	}

	if !resp.Authenticated {
		l.logger.Warn().Str("username", req.Username).Msg("login rejected")
	}
	l.bus.PublishTransient(topics.LoginResponded, resp)
}

func (l *Ledger) publishClient(id string) {
	c, ok, err := l.store.Client(id)
	if err != nil {
		l.logger.Error().Err(err).Str("client", id).Msg("snapshot load failed")
		return
	}
	if ok {
		l.bus.Publish(topics.ClientData(id), c.Clone())
	}
}

func (l *Ledger) publishAllClients() {
	clients, err := l.store.Clients()
	if err != nil {
		l.logger.Error().Err(err).Msg("client list load failed")
		return
	}
	l.bus.Publish(topics.AllClients, cloneAll(clients))
}

func cloneAll(clients []models.Client) []models.Client {
	out := make([]models.Client, len(clients))
	for i, c := range clients {
		out[i] = c.Clone()
	}
	return out
}
