package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/mmdatafocus/project_billing/models"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay-notifications",
	Short: "Requeue DEAD approval notifications",
	Example: `  # all tenants
  billingctl replay-notifications

  # a single record
  billingctl replay-notifications --id 42`,
	RunE: runReplay,
}

var outboxStatusCmd = &cobra.Command{
	Use:   "outbox-status",
	Short: "Count notification outbox rows by delivery status",
	RunE:  runOutboxStatus,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(outboxStatusCmd)
	replayCmd.Flags().String("tenant", "", "limit to one tenant")
	replayCmd.Flags().Uint64("id", 0, "replay one FAILED or DEAD record")
}

func runReplay(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	id, _ := cmd.Flags().GetUint64("id")
	ctx := context.Background()

	if id != 0 {
		rec, err := models.ReplayNotification(ctx, db(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "notification %d requeued (%s %s)\n", rec.ID, rec.DocumentKind, rec.DocumentId)
		return nil
	}
	n, err := models.ReplayDeadNotifications(ctx, db(), tenant)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d notification(s) requeued\n", n)
	return nil
}

func runOutboxStatus(cmd *cobra.Command, args []string) error {
	rows, err := models.CountNotificationsByStatus(context.Background(), db())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\n", r.PublishStatus, r.Count)
	}
	return w.Flush()
}
