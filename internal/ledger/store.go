// Package ledger is the authoritative store of clients, credentials,
// holdings, transactions, and target positions. All mutations go through
// the Ledger service; other components observe changes only via the bus.
package ledger

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-desk/internal/models"
)

// Store persists ledger state in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		balance REAL NOT NULL DEFAULT 0,
		tier TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Login credentials; only a subset of clients have one.
	CREATE TABLE IF NOT EXISTS customers (
		client_id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash BLOB NOT NULL,
		salt BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (client_id) REFERENCES clients(id)
	);

	-- One signed position per (client, instrument); created lazily, never deleted.
	CREATE TABLE IF NOT EXISTS holdings (
		client_id TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (client_id, instrument_id)
	);

	-- Audit trail; failed transactions are recorded but never settle.
	-- The two legs of a hedged trade share one transaction id.
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		size REAL NOT NULL,
		price REAL NOT NULL,
		spread REAL NOT NULL,
		succeeded INTEGER NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS target_positions (
		instrument_id TEXT PRIMARY KEY,
		quantity REAL NOT NULL,
		policy TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_id ON transactions(id);
	CREATE INDEX IF NOT EXISTS idx_transactions_instrument ON transactions(instrument_id);
	CREATE INDEX IF NOT EXISTS idx_holdings_client ON holdings(client_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertClient stores a client and, when customer.Username is non-empty,
// its login credential, atomically.
func (s *Store) InsertClient(c models.Client, customer models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO clients (id, name, balance, tier) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Balance, string(c.Tier),
	); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}

	if customer.Username != "" {
		if _, err := tx.Exec(
			`INSERT INTO customers (client_id, username, password_hash, salt) VALUES (?, ?, ?, ?)`,
			customer.ClientID, customer.Username, customer.PasswordHash, customer.Salt,
		); err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
	}

	for _, h := range c.Holdings {
		if _, err := tx.Exec(
			`INSERT INTO holdings (client_id, instrument_id, quantity) VALUES (?, ?, ?)`,
			c.ID, h.InstrumentID, h.Quantity,
		); err != nil {
			return fmt.Errorf("insert holding: %w", err)
		}
	}

	return tx.Commit()
}

// HasClient reports whether a client row exists.
func (s *Store) HasClient(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM clients WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("query client: %w", err)
	}
	return n > 0, nil
}

// Client loads one client with its holdings. The second return is false
// when the client is unknown.
func (s *Store) Client(id string) (models.Client, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadClient(id)
}

func (s *Store) loadClient(id string) (models.Client, bool, error) {
	var c models.Client
	var tier string
	err := s.db.QueryRow(
		`SELECT id, name, balance, tier FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Balance, &tier)
	if err == sql.ErrNoRows {
		return models.Client{}, false, nil
	}
	if err != nil {
		return models.Client{}, false, fmt.Errorf("query client: %w", err)
	}
	c.Tier = models.Tier(tier)

	rows, err := s.db.Query(
		`SELECT client_id, instrument_id, quantity FROM holdings WHERE client_id = ? ORDER BY instrument_id`, id,
	)
	if err != nil {
		return models.Client{}, false, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ClientID, &h.InstrumentID, &h.Quantity); err != nil {
			return models.Client{}, false, fmt.Errorf("scan holding: %w", err)
		}
		c.Holdings = append(c.Holdings, h)
	}
	return c, true, rows.Err()
}

// Clients loads every client with holdings.
func (s *Store) Clients() ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id FROM clients ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	clients := make([]models.Client, 0, len(ids))
	for _, id := range ids {
		c, ok, err := s.loadClient(id)
		if err != nil {
			return nil, err
		}
		if ok {
			clients = append(clients, c)
		}
	}
	return clients, nil
}

// CustomerByUsername loads a credential; false when the username is unknown.
func (s *Store) CustomerByUsername(username string) (models.Customer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c models.Customer
	err := s.db.QueryRow(
		`SELECT client_id, username, password_hash, salt FROM customers WHERE username = ?`, username,
	).Scan(&c.ClientID, &c.Username, &c.PasswordHash, &c.Salt)
	if err == sql.ErrNoRows {
		return models.Customer{}, false, nil
	}
	if err != nil {
		return models.Customer{}, false, fmt.Errorf("query customer: %w", err)
	}
	return c, true, nil
}

// Customer loads the credential for a client id, if any.
func (s *Store) Customer(clientID string) (models.Customer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c models.Customer
	err := s.db.QueryRow(
		`SELECT client_id, username, password_hash, salt FROM customers WHERE client_id = ?`, clientID,
	).Scan(&c.ClientID, &c.Username, &c.PasswordHash, &c.Salt)
	if err == sql.ErrNoRows {
		return models.Customer{}, false, nil
	}
	if err != nil {
		return models.Customer{}, false, fmt.Errorf("query customer: %w", err)
	}
	return c, true, nil
}

// RecordTransaction appends the transaction row and, when it succeeded,
// settles holdings and balances atomically: buyer holding +size, seller
// holding -size, buyer balance debited size*price+spread and seller
// credited the same amount, so money and inventory are conserved.
func (s *Store) RecordTransaction(t models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO transactions (id, buyer_id, seller_id, instrument_id, size, price, spread, succeeded, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BuyerID, t.SellerID, t.InstrumentID, t.Size, t.Price, t.SpreadPrice, t.Succeeded, t.Timestamp,
	); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if t.Succeeded {
		if err := applyHoldingDelta(tx, t.BuyerID, t.InstrumentID, t.Size); err != nil {
			return err
		}
		if err := applyHoldingDelta(tx, t.SellerID, t.InstrumentID, -t.Size); err != nil {
			return err
		}

		total := t.Size*t.Price + t.SpreadPrice
		if _, err := tx.Exec(
			`UPDATE clients SET balance = balance - ? WHERE id = ?`, total, t.BuyerID,
		); err != nil {
			return fmt.Errorf("debit buyer: %w", err)
		}
		if _, err := tx.Exec(
			`UPDATE clients SET balance = balance + ? WHERE id = ?`, total, t.SellerID,
		); err != nil {
			return fmt.Errorf("credit seller: %w", err)
		}
	}

	return tx.Commit()
}

func applyHoldingDelta(tx *sql.Tx, clientID, instrumentID string, delta float64) error {
	_, err := tx.Exec(
		`INSERT INTO holdings (client_id, instrument_id, quantity) VALUES (?, ?, ?)
		 ON CONFLICT(client_id, instrument_id) DO UPDATE SET quantity = quantity + ?`,
		clientID, instrumentID, delta, delta,
	)
	if err != nil {
		return fmt.Errorf("apply holding delta: %w", err)
	}
	return nil
}

// Transactions returns all recorded transactions in insertion order.
func (s *Store) Transactions() ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTransactions(`SELECT id, buyer_id, seller_id, instrument_id, size, price, spread, succeeded, timestamp
		FROM transactions ORDER BY seq`)
}

// TransactionsByID returns the rows sharing a transaction id, e.g. both
// legs of a hedged trade.
func (s *Store) TransactionsByID(id string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTransactions(`SELECT id, buyer_id, seller_id, instrument_id, size, price, spread, succeeded, timestamp
		FROM transactions WHERE id = ? ORDER BY seq`, id)
}

func (s *Store) queryTransactions(query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.BuyerID, &t.SellerID, &t.InstrumentID,
			&t.Size, &t.Price, &t.SpreadPrice, &t.Succeeded, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Holding returns the signed quantity for (client, instrument), zero when
// no row exists.
func (s *Store) Holding(clientID, instrumentID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var qty float64
	err := s.db.QueryRow(
		`SELECT quantity FROM holdings WHERE client_id = ? AND instrument_id = ?`,
		clientID, instrumentID,
	).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query holding: %w", err)
	}
	return qty, nil
}

// UpsertTargetPosition stores the single active target for an instrument.
func (s *Store) UpsertTargetPosition(tp models.TargetPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO target_positions (instrument_id, quantity, policy) VALUES (?, ?, ?)
		 ON CONFLICT(instrument_id) DO UPDATE SET quantity = excluded.quantity, policy = excluded.policy`,
		tp.InstrumentID, tp.Quantity, string(tp.Policy),
	)
	if err != nil {
		return fmt.Errorf("upsert target position: %w", err)
	}
	return nil
}

// TargetPosition loads the target for an instrument; false when none is set.
func (s *Store) TargetPosition(instrumentID string) (models.TargetPosition, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tp models.TargetPosition
	var policy string
	err := s.db.QueryRow(
		`SELECT instrument_id, quantity, policy FROM target_positions WHERE instrument_id = ?`, instrumentID,
	).Scan(&tp.InstrumentID, &tp.Quantity, &policy)
	if err == sql.ErrNoRows {
		return models.TargetPosition{}, false, nil
	}
	if err != nil {
		return models.TargetPosition{}, false, fmt.Errorf("query target position: %w", err)
	}
	tp.Policy = models.TargetPolicy(policy)
	return tp, true, nil
}

// TargetPositions loads every configured target.
func (s *Store) TargetPositions() ([]models.TargetPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT instrument_id, quantity, policy FROM target_positions ORDER BY instrument_id`)
	if err != nil {
		return nil, fmt.Errorf("query target positions: %w", err)
	}
	defer rows.Close()

	var out []models.TargetPosition
	for rows.Next() {
		var tp models.TargetPosition
		var policy string
		if err := rows.Scan(&tp.InstrumentID, &tp.Quantity, &policy); err != nil {
			return nil, fmt.Errorf("scan target position: %w", err)
		}
		tp.Policy = models.TargetPolicy(policy)
		out = append(out, tp)
	}
	return out, rows.Err()
}
