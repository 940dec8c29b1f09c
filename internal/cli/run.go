package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trading-desk/internal/book"
	"trading-desk/internal/bus"
	deskerrors "trading-desk/internal/errors"
	"trading-desk/internal/execution"
	"trading-desk/internal/facade"
	"trading-desk/internal/hedging"
	"trading-desk/internal/ledger"
	"trading-desk/internal/marketdata"
	"trading-desk/internal/models"
	"trading-desk/internal/pricer"
	"trading-desk/internal/provider"
	"trading-desk/internal/risk"
	"trading-desk/internal/topics"
	"trading-desk/pkg/utils"
)

// desk holds a fully wired running system.
type desk struct {
	bus    *bus.Bus
	store  *ledger.Store
	ledger *ledger.Ledger
}

func (d *desk) Close() error {
	return d.store.Close()
}

func newRunCmd(app *App) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the trading desk",
		Long: `Starts the full desk: ledger, price race across the configured
liquidity providers, pricer, risk check, execution, hedge routing, and
booking. Runs until interrupted.

With --demo, a demo client is onboarded, logs in, streams a price, and
trades against the live quote before the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := startDesk(ctx, app)
			if err != nil {
				return err
			}
			defer d.Close()

			output := NewOutput(cmd)
			if demo {
				return runDemo(app, d, output)
			}

			output.Info("desk running, ctrl-c to stop")
			<-ctx.Done()
			output.Println()
			output.Dim("shutting down")
			return nil
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "run a scripted demo session and exit")
	return cmd
}

// startDesk wires every service onto one bus. Publication order matters:
// the instrument universe and ledger snapshots go out first so services
// starting afterwards pick them up by replay.
func startDesk(ctx context.Context, app *App) (*desk, error) {
	cfg := app.Config
	b := bus.New()

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	store, err := utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (*ledger.Store, error) {
		return ledger.NewStore(cfg.Database.Path)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deskerrors.ErrStorageUnavailable, err)
	}

	led := ledger.New(store, b, app.Logger)
	if err := led.Start(); err != nil {
		store.Close()
		return nil, err
	}

	b.Publish(topics.AllInstruments, cfg.Market.Instruments)

	if err := seedLedger(led, app); err != nil {
		store.Close()
		return nil, err
	}

	providers := make([]*provider.Provider, 0, len(cfg.Market.Providers))
	inventories := make([]hedging.Inventory, 0, len(cfg.Market.Providers))
	for _, pc := range cfg.Market.Providers {
		p := provider.New(pc.Name, pc.SeedPrices, cfg.Market.PriceStep)
		providers = append(providers, p)
		inventories = append(inventories, hedging.InventoryFromStocks(p.Name(), p.Stocks()))
	}

	pricer.New(b, app.Logger).Start()
	risk.New(b, app.Logger).Start()
	execution.New(b, cfg.House.ClientID, app.Logger).Start()
	hedging.New(b, inventories, app.Logger).Start()
	book.New(led, b, cfg.House.ClientID, app.Logger).Start()
	marketdata.New(b, providers, cfg.Market.TickPace, app.Logger).Start(ctx)

	app.Logger.Info().
		Int("providers", len(providers)).
		Int("instruments", len(cfg.Market.Instruments)).
		Msg("desk started")

	return &desk{bus: b, store: store, ledger: led}, nil
}

// seedLedger onboards the house and one counterparty client per provider,
// and installs the configured target positions. All of it is idempotent
// across restarts.
func seedLedger(led *ledger.Ledger, app *App) error {
	cfg := app.Config

	house := models.Client{
		ID:      cfg.House.ClientID,
		Name:    cfg.House.Name,
		Balance: cfg.House.Balance,
		Tier:    models.TierInternal,
	}
	if err := led.AddClient(house, "", ""); err != nil && !errors.Is(err, deskerrors.ErrDuplicateClient) {
		return err
	}

	for _, pc := range cfg.Market.Providers {
		counterparty := models.Client{
			ID:   pc.Name,
			Name: pc.Name,
			Tier: models.TierExternal,
		}
		if err := led.AddClient(counterparty, "", ""); err != nil && !errors.Is(err, deskerrors.ErrDuplicateClient) {
			return err
		}
	}

	for _, tc := range cfg.Targets {
		if _, exists, err := led.TargetPosition(tc.InstrumentID); err != nil {
			return err
		} else if exists {
			continue
		}
		tp := models.TargetPosition{
			InstrumentID: tc.InstrumentID,
			Quantity:     tc.Quantity,
			Policy:       models.TargetPolicy(tc.Policy),
		}
		if err := led.UpdateTargetPosition(tp); err != nil {
			return err
		}
	}

	return nil
}

// runDemo onboards a demo client and trades one buy and one sell against
// the live quote, then prints the resulting ledger rows.
func runDemo(app *App, d *desk, output *Output) error {
	const (
		demoUser     = "demo"
		demoPassword = "demo"
	)

	demoClient := models.Client{
		ID:      "demo",
		Name:    "Demo Client",
		Balance: 10_000,
		Tier:    models.TierRegular,
	}
	err := d.ledger.AddClient(demoClient, demoUser, demoPassword)
	if err != nil && !errors.Is(err, deskerrors.ErrDuplicateClient) {
		return err
	}

	session := facade.New(d.bus, app.Logger)
	var clientID string
	session.Login(demoUser, demoPassword, func(authenticated bool, id string) {
		if authenticated {
			clientID = id
		}
	}, nil)
	if clientID == "" {
		return deskerrors.ErrInvalidCredentials
	}
	output.Success("logged in as %s", clientID)

	instrument := app.Config.Market.Instruments[0]
	var lastAsk float64
	if err := session.StreamPrice(models.Stock{InstrumentID: instrument, LiveStreaming: true}, true, func(ask float64) {
		lastAsk = ask
		output.Dim("  %s ask %.4f", instrument, ask)
	}); err != nil {
		return err
	}

	// Let the provider race move the price a few times.
	time.Sleep(500 * time.Millisecond)
	if err := session.StreamPrice(models.Stock{InstrumentID: instrument}, true, nil); err != nil {
		return err
	}
	if lastAsk == 0 {
		output.Warning("no live price for %s, skipping trades", instrument)
		return nil
	}

	tradeDone := func(o models.Order) {
		switch o.Status {
		case models.OrderStatusSuccess:
			output.Success("%s %s x%.0f filled at %.4f (spread %.4f)", o.Side, o.Stock.InstrumentID, o.Stock.Size, o.Stock.Price, o.SpreadPrice)
		case models.OrderStatusCanceled:
			output.Warning("%s %s canceled: %s", o.Side, o.Stock.InstrumentID, o.Error)
		case models.OrderStatusRejected:
			output.Error("%s %s rejected: %s", o.Side, o.Stock.InstrumentID, o.Error)
		}
	}

	buy := &models.Order{
		Side:  models.OrderSideBuy,
		Stock: models.Stock{InstrumentID: instrument, Size: 5, Price: lastAsk},
	}
	if err := session.HandleOrder(buy, tradeDone); err != nil {
		return err
	}

	// Sell half back at the current bid.
	var lastBid float64
	if err := session.StreamPrice(models.Stock{InstrumentID: instrument, LiveStreaming: true}, false, func(bid float64) {
		lastBid = bid
	}); err != nil {
		return err
	}
	if err := session.StreamPrice(models.Stock{InstrumentID: instrument}, false, nil); err != nil {
		return err
	}
	if lastBid > 0 {
		sell := &models.Order{
			Side:  models.OrderSideSell,
			Stock: models.Stock{InstrumentID: instrument, Size: 2, Price: lastBid},
		}
		if err := session.HandleOrder(sell, tradeDone); err != nil {
			return err
		}
	}

	if client, ok := session.Client(); ok {
		output.Println()
		output.Info("balance %.2f, %s position %.0f", client.Balance, instrument, client.HoldingFor(instrument))
	}

	txs, err := d.ledger.Transactions()
	if err != nil {
		return err
	}
	output.Println()
	renderTransactions(output, txs)
	return nil
}
