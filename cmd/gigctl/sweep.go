package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Ручные проходы sweeper: истечение гигов и сверка холдов",
	}

	sweepCmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Истечь гиги с прошедшим сроком и отменить их авторизации",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			return withSweepLock(a.Config.SweepLockPath, func() error {
				report, err := a.Sweeper.ExpireDue(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatExpiryReport(report))
				return nil
			})
		},
	})

	sweepCmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Дожать застрявшие холды и сверить кошельки с журналом",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			return withSweepLock(a.Config.SweepLockPath, func() error {
				report, err := a.Sweeper.Reconcile(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "resumed=%d failed=%d\n", report.Resumed, report.Failed)
				if len(report.NeedsOperator) > 0 {
					fmt.Fprintln(out, "Холды, требующие оператора:")
					fmt.Fprintln(out, renderTable(
						[]string{"Hold", "Gig", "Status", "Amount", "Updated"},
						holdRows(report.NeedsOperator),
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					))
				}
				if len(report.Discrepancies) > 0 {
					fmt.Fprintln(out, "Замороженные кошельки:")
					fmt.Fprintln(out, renderDiscrepancies(report.Discrepancies))
				}
				return nil
			})
		},
	})

	return sweepCmd
}

func formatExpiryReport(r *service.ExpiryReport) string {
	return "expired=" + strconv.Itoa(r.Expired) +
		" lost=" + strconv.Itoa(r.Lost) +
		" voided=" + strconv.Itoa(r.Voided) +
		" void_failed=" + strconv.Itoa(r.VoidFailed)
}

func holdRows(holds []models.EscrowHold) [][]string {
	rows := make([][]string, 0, len(holds))
	for _, h := range holds {
		rows = append(rows, []string{
			h.ID.String(),
			h.GigID.String(),
			string(h.Status),
			valueobject.Money{Amount: h.Amount, Currency: h.Currency}.String(),
			h.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}
