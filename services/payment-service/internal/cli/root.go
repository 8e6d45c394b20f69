// services/payment-service/internal/cli/root.go
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/config"
)

var Version = "dev"

var configFile string

// NewRootCmd builds the payment-service command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "payment-service",
		Short:         "Payment gateway webhook ingestion and result normalization",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional config file (env vars still win)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

// Execute runs the command tree until SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func loadConfig() (*config.PaymentConfig, error) {
	return config.LoadConfig(viper.New(), configFile)
}
