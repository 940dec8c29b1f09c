package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trading-desk/internal/models"
)

func newOnboardCmd(app *App) *cobra.Command {
	var (
		name     string
		username string
		password string
		tier     string
		balance  float64
	)

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Onboard a new client",
		Long: `Creates a client in the ledger, optionally with a login credential.
The password is salted and hashed before storage; the plaintext is never
persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if username != "" && password == "" {
				return fmt.Errorf("--password is required with --username")
			}

			client := models.Client{
				ID:      uuid.NewString(),
				Name:    name,
				Balance: balance,
				Tier:    models.Tier(strings.ToUpper(tier)),
			}

			d, led, err := openLedger(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := led.AddClient(client, username, password); err != nil {
				output.Error("onboarding failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(client)
			}
			output.Success("client onboarded: %s (%s)", client.ID, client.Tier)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "client display name")
	cmd.Flags().StringVar(&username, "username", "", "login username (optional)")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.Flags().StringVar(&tier, "tier", string(models.TierRegular), "client tier: EXTERNAL, INTERNAL, REGULAR, or PREMIUM")
	cmd.Flags().Float64Var(&balance, "balance", 0, "starting balance")
	cmd.MarkFlagRequired("name")

	return cmd
}
