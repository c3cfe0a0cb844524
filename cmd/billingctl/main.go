// billingctl is the operator CLI for the billing service. It talks to the
// database directly with the same DB_* environment as the server.
package main

import (
	"fmt"
	"os"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "billingctl",
	Short:   "Operator tools for project billing",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.ConnectDatabaseWithRetry()
		if config.GetDB() == nil {
			return fmt.Errorf("database not initialized; set DB_* env vars")
		}
		return nil
	},
}

func db() *gorm.DB {
	return config.GetDB()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		config.GetLogger().WithField("field", "billingctl").Error(err.Error())
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
