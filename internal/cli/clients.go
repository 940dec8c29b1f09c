package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"trading-desk/internal/bus"
	deskerrors "trading-desk/internal/errors"
	"trading-desk/internal/ledger"
	"trading-desk/internal/models"
	"trading-desk/pkg/utils"
)

// openLedger opens the store and wraps it in a ledger service without
// starting the trading pipeline. Used by the inspection commands.
func openLedger(ctx context.Context, app *App) (*desk, *ledger.Ledger, error) {
	cfg := app.Config
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	store, err := utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (*ledger.Store, error) {
		return ledger.NewStore(cfg.Database.Path)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", deskerrors.ErrStorageUnavailable, err)
	}

	b := bus.New()
	led := ledger.New(store, b, app.Logger)
	return &desk{bus: b, store: store, ledger: led}, led, nil
}

func newClientsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List all clients and their positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			d, led, err := openLedger(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer d.Close()

			clients, err := led.Clients()
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(clients)
			}

			table := NewTable(output, "ID", "NAME", "TIER", "BALANCE", "HOLDINGS")
			for _, c := range clients {
				holdings := ""
				for i, h := range c.Holdings {
					if i > 0 {
						holdings += ", "
					}
					holdings += fmt.Sprintf("%s %s", h.InstrumentID, output.Signed(h.Quantity))
				}
				table.AddRow(c.ID, c.Name, string(c.Tier), fmt.Sprintf("%.2f", c.Balance), holdings)
			}
			table.Render()
			return nil
		},
	}
}

func newTransactionsCmd(app *App) *cobra.Command {
	var txID string

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Show the transaction audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			d, led, err := openLedger(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer d.Close()

			var txs []models.Transaction
			if txID != "" {
				txs, err = led.TransactionsByID(txID)
			} else {
				txs, err = led.Transactions()
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(txs)
			}
			renderTransactions(output, txs)
			return nil
		},
	}

	cmd.Flags().StringVar(&txID, "id", "", "show only legs of one transaction id")
	return cmd
}

func renderTransactions(output *Output, txs []models.Transaction) {
	if len(txs) == 0 {
		output.Dim("no transactions")
		return
	}
	table := NewTable(output, "ID", "BUYER", "SELLER", "INSTRUMENT", "SIZE", "PRICE", "SPREAD", "STATUS")
	for _, t := range txs {
		status := output.Green("settled")
		if !t.Succeeded {
			status = output.Red("failed")
		}
		table.AddRow(
			t.ID[:8],
			t.BuyerID,
			t.SellerID,
			t.InstrumentID,
			fmt.Sprintf("%.0f", t.Size),
			fmt.Sprintf("%.4f", t.Price),
			output.Signed(t.SpreadPrice),
			status,
		)
	}
	table.Render()
}

func newTargetsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Manage target positions",
		Long:  "List and set the per-instrument target positions used by the risk check.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			d, _, err := openLedger(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer d.Close()

			targets, err := d.store.TargetPositions()
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(targets)
			}
			table := NewTable(output, "INSTRUMENT", "QUANTITY", "POLICY")
			for _, tp := range targets {
				table.AddRow(tp.InstrumentID, fmt.Sprintf("%.0f", tp.Quantity), string(tp.Policy))
			}
			table.Render()
			return nil
		},
	}

	var (
		instrument string
		quantity   float64
		policy     string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Set a target position",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			d, led, err := openLedger(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer d.Close()

			tp := models.TargetPosition{
				InstrumentID: instrument,
				Quantity:     quantity,
				Policy:       models.TargetPolicy(policy),
			}
			if err := led.UpdateTargetPosition(tp); err != nil {
				return err
			}
			output.Success("target set: %s %.0f (%s)", tp.InstrumentID, tp.Quantity, tp.Policy)
			return nil
		},
	}
	set.Flags().StringVar(&instrument, "instrument", "", "instrument id")
	set.Flags().Float64Var(&quantity, "quantity", 0, "target quantity")
	set.Flags().StringVar(&policy, "policy", string(models.PolicyGoodTillCanceled), "fill policy: FOK, IOC, GTC, or GFD")
	set.MarkFlagRequired("instrument")
	cmd.AddCommand(set)

	return cmd
}
