// services/payment-service/internal/cli/migrate.go
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/store/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the payment tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != "postgres" {
				return errors.New("migrate: STORE_DRIVER is not postgres")
			}
			db, err := postgres.Open(cmd.Context(), cfg.CommonConfig.GetDBURL())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.NewStore(db).Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
