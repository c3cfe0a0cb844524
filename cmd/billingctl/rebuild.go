package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-financials",
	Short: "Recompute project revenue/spent/profit from paid invoices and bills",
	Long: `Recompute each project's revenue and spent from its PAID invoices and vendor bills.
Profit moves by the opposite of the spent correction. Projects that needed a
correction are printed as JSON.`,
	Example: `  # every project of every tenant
  billingctl rebuild-financials

  # one project
  billingctl rebuild-financials --tenant acme --project 5f0c...`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().String("tenant", "", "tenant id (required with --project)")
	rebuildCmd.Flags().String("project", "", "rebuild a single project")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	project, _ := cmd.Flags().GetString("project")
	ctx := context.Background()

	var drifts []*models.FinancialDrift
	if project != "" {
		if tenant == "" {
			return fmt.Errorf("--tenant is required with --project")
		}
		// operator runs as a synthetic admin of the tenant
		ctx = utils.WithActor(ctx, utils.Actor{TenantId: tenant, UserId: "billingctl", Name: "billingctl", Role: string(models.UserRoleAdmin)})
		d, err := models.RebuildProjectFinancials(ctx, project)
		if err != nil {
			return err
		}
		if d.Changed {
			drifts = append(drifts, d)
		}
	} else {
		var err error
		drifts, err = models.RebuildAllProjectFinancials(ctx, db())
		if err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(drifts, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	fmt.Fprintf(cmd.OutOrStdout(), "%d project(s) corrected\n", len(drifts))
	return nil
}
