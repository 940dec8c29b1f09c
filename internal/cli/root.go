// Package cli provides the command-line interface for the trading desk.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trading-desk/internal/config"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "tradedesk",
		Short: "In-process trading desk simulator",
		Long: `tradedesk runs a simulated trading desk: three liquidity providers race
to tick instrument prices, clients trade against the house at tier-based
spreads, and risk decides which fills get hedged back out.

All state lives in a local SQLite ledger. Use 'tradedesk run' to start the
desk, 'tradedesk onboard' to add clients, and 'tradedesk clients' to
inspect the book.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradedesk)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newOnboardCmd(app))
	rootCmd.AddCommand(newClientsCmd(app))
	rootCmd.AddCommand(newTransactionsCmd(app))
	rootCmd.AddCommand(newTargetsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("tradedesk v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate desk configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			output.Printf("Database:   %s\n", app.Config.Database.Path)
			output.Printf("Instruments: %v\n", app.Config.Market.Instruments)
			output.Printf("Tick pace:  %d\n", app.Config.Market.TickPace)
			output.Printf("Price step: %v\n", app.Config.Market.PriceStep)
			output.Printf("House:      %s (balance %.2f)\n", app.Config.House.ClientID, app.Config.House.Balance)
			for _, p := range app.Config.Market.Providers {
				output.Printf("Provider %-10s %v\n", p.Name, p.SeedPrices)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}
