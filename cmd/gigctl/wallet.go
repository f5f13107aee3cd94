package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

func newWalletCommand(ctx *commandContext) *cobra.Command {
	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Проверка кошельков",
	}

	walletCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Сверить балансы с журналом и заморозить расходящиеся кошельки",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			discrepancies, err := a.Escrow.ReconcileWallets(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(discrepancies) == 0 {
				fmt.Fprintln(out, "расхождений нет")
				return nil
			}
			fmt.Fprintln(out, renderDiscrepancies(discrepancies))
			return fmt.Errorf("найдено расхождений: %d", len(discrepancies))
		},
	})

	walletCmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Показать кошельки пользователя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("user-id должен быть UUID: %w", err)
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			wallets, err := a.Escrow.GetWallets(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Currency", "Balance", "Frozen"},
				walletRows(wallets),
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	})

	return walletCmd
}

func renderDiscrepancies(items []models.WalletDiscrepancy) string {
	rows := make([][]string, 0, len(items))
	for _, d := range items {
		rows = append(rows, []string{
			d.WalletID.String(),
			d.UserID.String(),
			d.Currency,
			d.Balance.String(),
			d.LedgerTotal.String(),
			d.Balance.Sub(d.LedgerTotal).String(),
		})
	}
	return renderTable(
		[]string{"Wallet", "User", "Currency", "Balance", "Ledger", "Diff"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func walletRows(wallets []models.Wallet) [][]string {
	rows := make([][]string, 0, len(wallets))
	for _, w := range wallets {
		frozen := "no"
		if w.Frozen {
			frozen = "yes"
		}
		rows = append(rows, []string{w.Currency, w.Balance.String(), frozen})
	}
	return rows
}
