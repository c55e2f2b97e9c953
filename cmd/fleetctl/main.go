package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleetpilot/internal/bootstrap"
	"fleetpilot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "Inspect the fleetpilot audit ledger and action catalogue",
	Long: `fleetctl reads the same FLEETPILOT_* settings as the server and talks to
its stores directly. Use it to review audit records, list the actions the
controller accepts, and run a retention sweep by hand.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("db-dsn", "", "database DSN (overrides FLEETPILOT_DB_DSN)")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("db-dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
}

func registerCommands() {
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(actionsCmd())
	rootCmd.AddCommand(reapCmd())
}

// openStores loads the server configuration, letting --db-dsn win over the environment.
func openStores(cmd *cobra.Command) (*bootstrap.Stores, error) {
	v := config.New()
	if dsn := viper.GetString("db-dsn"); dsn != "" {
		v.Set("db_dsn", dsn)
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, err
	}
	return bootstrap.OpenStores(cmd.Context(), cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
